// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package screenlcd shows the content of an emulated character LCD on the
// terminal using ANSI color codes, or as a PNG picture.
//
// Useful to try a layout before the display board arrives.
package screenlcd

import (
	"bytes"
	"fmt"
	"image/color"
	"io"
	"strings"

	"github.com/GermanBionicSystems/charlcd/hd44780/hd44780test"
	"github.com/maruel/ansi256"
	"github.com/mattn/go-colorable"
)

var (
	backlightOn  = color.NRGBA{0x9b, 0xc7, 0x2d, 255}
	backlightOff = color.NRGBA{0x3c, 0x4a, 0x20, 255}
)

// Opts represents the options available for the console.
type Opts struct {
	Palette *ansi256.Palette
	// W receives the rendering. Defaults to a color capable stdout.
	W io.Writer

	_ struct{}
}

// Console renders an emulated display to a terminal.
type Console struct {
	w       io.Writer
	palette ansi256.Palette

	buf bytes.Buffer
}

// New returns a Console writing to the terminal.
func New(opts *Opts) *Console {
	if opts == nil {
		opts = &Opts{}
	}
	p := opts.Palette
	if p == nil {
		p = ansi256.Default
	}
	w := opts.W
	if w == nil {
		w = colorable.NewColorableStdout()
	}
	return &Console{w: w, palette: *p}
}

func (c *Console) String() string {
	return "ScreenLCD"
}

// Halt implements conn.Resource.
//
// It resets the terminal colors.
func (c *Console) Halt() error {
	_, err := c.w.Write([]byte("\n\033[0m"))
	return err
}

// Render draws a frame holding the visible rows of bus. The lamp at the left
// of each row shows the backlight state. Custom glyphs are shown as their
// slot number.
func (c *Console) Render(bus *hd44780test.Bus) error {
	st := bus.State()
	lamp := c.palette.Block(backlightOff)
	if st.Backlight {
		lamp = c.palette.Block(backlightOn)
	}
	border := "+" + strings.Repeat("-", bus.Cols()) + "+\n"

	c.buf.Reset()
	_, _ = c.buf.WriteString("\033[0m")
	_, _ = c.buf.WriteString(border)
	for _, line := range bus.Lines() {
		_, _ = c.buf.WriteString(lamp)
		_, _ = c.buf.WriteString("\033[0m|")
		for _, ch := range []byte(line) {
			_ = c.buf.WriteByte(printable(ch, st.DisplayOn))
		}
		_, _ = c.buf.WriteString("|\n")
	}
	_, _ = c.buf.WriteString(border)
	_, err := c.buf.WriteTo(c.w)
	if err != nil {
		return fmt.Errorf("screenlcd: %w", err)
	}
	return nil
}

// printable maps a character code to what the terminal shows for it.
func printable(ch byte, on bool) byte {
	switch {
	case !on:
		return ' '
	case ch < 8:
		return '0' + ch
	case ch < 0x20 || ch > 0x7e:
		return '?'
	default:
		return ch
	}
}
