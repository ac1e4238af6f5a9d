//go:build ignore

// gen reads X11's keysymdef.h and XF86keysym.h and writes the keysym name
// table in keysymdef.go.
//
//	go run gen.go -o keysymdef.go /usr/include/X11/keysymdef.h /usr/include/X11/XF86keysym.h
package main

import (
	"bufio"
	"bytes"
	"flag"
	"fmt"
	"go/format"
	"log"
	"os"
	"regexp"
	"strconv"
)

// evdevBase is the value of XF86keysym.h's _EVDEVK(0).
const evdevBase = 0x10081000

var (
	plain = regexp.MustCompile(`^#define (XK|XF86XK)_([A-Za-z0-9_]+)\s+0x([0-9A-Fa-f]+)\b`)
	evdev = regexp.MustCompile(`^#define (XF86XK)_([A-Za-z0-9_]+)\s+_EVDEVK\(0x([0-9A-Fa-f]+)\)`)
)

type entry struct {
	name string
	code uint64
}

func main() {
	out := flag.String("o", "keysymdef.go", "output file")
	flag.Parse()

	var entries []entry
	seen := make(map[string]bool)
	for _, path := range flag.Args() {
		es, err := parse(path)
		if err != nil {
			log.Fatal(err)
		}
		for _, e := range es {
			if seen[e.name] {
				continue
			}
			seen[e.name] = true
			entries = append(entries, e)
		}
	}

	var buf bytes.Buffer
	buf.WriteString("// Code generated by gen.go from keysymdef.h and XF86keysym.h; DO NOT EDIT.\n\n")
	buf.WriteString("package keysym\n\n")
	buf.WriteString("// table lists every named keysym in header order. The first name listed\n")
	buf.WriteString("// for a code is the one String returns.\n")
	buf.WriteString("var table = []struct {\n\tname string\n\tcode Code\n}{\n")
	for _, e := range entries {
		fmt.Fprintf(&buf, "\t{%q, 0x%x},\n", e.name, e.code)
	}
	buf.WriteString("}\n")

	src, err := format.Source(buf.Bytes())
	if err != nil {
		log.Fatal(err)
	}
	if err := os.WriteFile(*out, src, 0644); err != nil {
		log.Fatal(err)
	}
}

func parse(path string) ([]entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var entries []entry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		m := plain.FindStringSubmatch(line)
		offset := uint64(0)
		if m == nil {
			if m = evdev.FindStringSubmatch(line); m == nil {
				continue
			}
			offset = evdevBase
		}
		v, err := strconv.ParseUint(m[3], 16, 32)
		if err != nil {
			return nil, fmt.Errorf("%s: %q: %w", path, line, err)
		}
		name := m[2]
		if m[1] == "XF86XK" {
			name = "XF86" + name
		}
		entries = append(entries, entry{name: name, code: v + offset})
	}
	return entries, sc.Err()
}
