package keysym

//go:generate go run gen.go -o keysymdef.go /usr/include/X11/keysymdef.h /usr/include/X11/XF86keysym.h

// Keysyms referenced by code elsewhere.
const (
	Space          Code = 0x0020
	BackSpace      Code = 0xff08
	Tab            Code = 0xff09
	Return         Code = 0xff0d
	Escape         Code = 0xff1b
	Delete         Code = 0xffff
	Home           Code = 0xff50
	Left           Code = 0xff51
	Up             Code = 0xff52
	Right          Code = 0xff53
	Down           Code = 0xff54
	Prior          Code = 0xff55
	Next           Code = 0xff56
	End            Code = 0xff57
	Insert         Code = 0xff63
	ModeSwitch     Code = 0xff7e
	NumLock        Code = 0xff7f
	F1             Code = 0xffbe
	ShiftL         Code = 0xffe1
	HyperR         Code = 0xffee
	ISOLevel3Shift Code = 0xfe03
	ISOLevel5Shift Code = 0xfe11
)

var (
	byName map[string]Code
	byCode map[Code]string
)

func init() {
	byName = make(map[string]Code, len(table))
	byCode = make(map[Code]string, len(table))
	for _, e := range table {
		byName[e.name] = e.code
		if _, ok := byCode[e.code]; !ok {
			byCode[e.code] = e.name
		}
	}
}
