// Package x11 delivers chords from an X server: passive grabs for the first
// chord of every binding and a keyboard grab while a sequence is pending.
package x11

import (
	"errors"
	"fmt"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"go.uber.org/zap"

	"github.com/matheus3301/chordd/internal/chord"
	"github.com/matheus3301/chordd/internal/keysym"
)

// ErrConnectionClosed is delivered on Errors when the server goes away.
var ErrConnectionClosed = errors.New("x11 connection closed")

type grab struct {
	code xproto.Keycode
	mods uint16
}

// Conn is a connection to one display.
type Conn struct {
	conn    *xgb.Conn
	root    xproto.Window
	keymap  *Keymap
	ignored uint16 // Lock plus whichever modifier carries NumLock
	logger  *zap.Logger

	mu    sync.Mutex
	grabs []grab

	chords    chan chord.Chord
	errs      chan error
	closing   chan struct{}
	closeOnce sync.Once
}

// Dial connects to display, loads the keyboard mapping and starts reading
// events. An empty display means $DISPLAY.
func Dial(display string, logger *zap.Logger) (*Conn, error) {
	xc, err := xgb.NewConnDisplay(display)
	if err != nil {
		return nil, fmt.Errorf("connect to display %q: %w", display, err)
	}
	setup := xproto.Setup(xc)
	screen := setup.DefaultScreen(xc)

	count := int(setup.MaxKeycode) - int(setup.MinKeycode) + 1
	mapping, err := xproto.GetKeyboardMapping(xc, setup.MinKeycode, byte(count)).Reply()
	if err != nil {
		xc.Close()
		return nil, fmt.Errorf("get keyboard mapping: %w", err)
	}
	km := NewKeymap(setup.MinKeycode, int(mapping.KeysymsPerKeycode), mapping.Keysyms)

	ignored := uint16(xproto.ModMaskLock)
	if mask, err := numLockMask(xc, km); err != nil {
		logger.Warn("cannot read modifier mapping", zap.Error(err))
	} else {
		ignored |= mask
	}

	c := &Conn{
		conn:    xc,
		root:    screen.Root,
		keymap:  km,
		ignored: ignored,
		logger:  logger,
		chords:  make(chan chord.Chord, 16),
		errs:    make(chan error, 1),
		closing: make(chan struct{}),
	}
	logger.Info("connected to display",
		zap.String("display", display),
		zap.Uint32("root", uint32(c.root)),
		zap.Int("keycodes", count),
		zap.Int("keysyms_per_keycode", int(mapping.KeysymsPerKeycode)),
	)
	go c.pump()
	return c, nil
}

// numLockMask finds the modifier bit that NumLock is mapped to.
func numLockMask(xc *xgb.Conn, km *Keymap) (uint16, error) {
	reply, err := xproto.GetModifierMapping(xc).Reply()
	if err != nil {
		return 0, err
	}
	per := int(reply.KeycodesPerModifier)
	for mod := 0; mod < 8; mod++ {
		for _, code := range reply.Keycodes[mod*per : (mod+1)*per] {
			if code != 0 && km.Keysym(code, 0) == keysym.NumLock {
				return 1 << mod, nil
			}
		}
	}
	return 0, nil
}

// Canonical implements eventloop.Source.
func (c *Conn) Canonical(ch chord.Chord) (chord.Chord, error) {
	return c.keymap.Canonical(ch)
}

// Listen replaces the passive grabs with one per chord, for every
// combination of the ignored lock modifiers.
func (c *Conn) Listen(chords []chord.Chord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, g := range c.grabs {
		if err := xproto.UngrabKeyChecked(c.conn, g.code, c.root, g.mods).Check(); err != nil {
			c.logger.Warn("ungrab failed", zap.Uint8("keycode", uint8(g.code)), zap.Error(err))
		}
	}
	c.grabs = c.grabs[:0]

	failed := 0
	for _, ch := range chords {
		codes := c.keymap.Keycodes(ch.Key)
		if len(codes) == 0 {
			c.logger.Warn("no keycode for chord", zap.Stringer("chord", ch))
			failed++
			continue
		}
		ok := true
		for _, code := range codes {
			for _, extra := range lockCombos(c.ignored) {
				mods := uint16(ch.Mods) | extra
				err := xproto.GrabKeyChecked(c.conn, true, c.root, mods, code,
					xproto.GrabModeAsync, xproto.GrabModeAsync).Check()
				if err != nil {
					c.logger.Warn("grab failed", zap.Stringer("chord", ch), zap.Uint8("keycode", uint8(code)), zap.Error(err))
					ok = false
					continue
				}
				c.grabs = append(c.grabs, grab{code: code, mods: mods})
			}
		}
		if !ok {
			failed++
		}
	}
	if len(chords) > 0 && failed == len(chords) {
		return fmt.Errorf("none of %d chords could be grabbed; is another hotkey daemon running?", len(chords))
	}
	return nil
}

// lockCombos returns every subset of the bits in mask.
func lockCombos(mask uint16) []uint16 {
	out := []uint16{0}
	for bit := uint16(1); bit != 0 && bit <= mask; bit <<= 1 {
		if mask&bit == 0 {
			continue
		}
		for _, m := range out {
			out = append(out, m|bit)
		}
	}
	return out
}

// Capture grabs the whole keyboard so the rest of a sequence reaches us.
func (c *Conn) Capture(on bool) error {
	if !on {
		return xproto.UngrabKeyboardChecked(c.conn, xproto.TimeCurrentTime).Check()
	}
	reply, err := xproto.GrabKeyboard(c.conn, true, c.root, xproto.TimeCurrentTime,
		xproto.GrabModeAsync, xproto.GrabModeAsync).Reply()
	if err != nil {
		return fmt.Errorf("grab keyboard: %w", err)
	}
	if reply.Status != xproto.GrabStatusSuccess {
		return fmt.Errorf("grab keyboard: status %d", reply.Status)
	}
	return nil
}

// Chords implements eventloop.Source.
func (c *Conn) Chords() <-chan chord.Chord { return c.chords }

// Errors implements eventloop.Source.
func (c *Conn) Errors() <-chan error { return c.errs }

// Close releases every grab and closes the connection.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		close(c.closing)
		c.mu.Lock()
		for _, g := range c.grabs {
			xproto.UngrabKey(c.conn, g.code, c.root, g.mods)
		}
		c.grabs = nil
		c.mu.Unlock()
		c.conn.Close()
	})
	return nil
}

func (c *Conn) pump() {
	for {
		ev, xerr := c.conn.WaitForEvent()
		if ev == nil && xerr == nil {
			select {
			case <-c.closing:
			default:
				c.errs <- ErrConnectionClosed
			}
			return
		}
		if xerr != nil {
			c.logger.Warn("x11 error", zap.String("error", xerr.Error()))
			continue
		}

		switch e := ev.(type) {
		case xproto.KeyPressEvent:
			ch, ok := c.keymap.Chord(e.Detail, e.State, c.ignored)
			if !ok {
				continue
			}
			select {
			case c.chords <- ch:
			case <-c.closing:
				return
			}
		case xproto.MappingNotifyEvent:
			c.logger.Warn("keyboard mapping changed; restart chordd to pick it up")
		}
	}
}
