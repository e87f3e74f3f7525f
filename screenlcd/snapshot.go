// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package screenlcd

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/GermanBionicSystems/charlcd/hd44780/hd44780test"
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
)

// Picture geometry, in pixels. A cell is 5x8 dots plus one dot of spacing.
const (
	Dot    = 4
	cellW  = 6 * Dot
	cellH  = 9 * Dot
	Margin = 2 * Dot
)

var ink = color.NRGBA{0x14, 0x24, 0x10, 255}

var loadFace = sync.OnceValues(func() (font.Face, error) {
	f, err := truetype.Parse(gomono.TTF)
	if err != nil {
		return nil, err
	}
	return truetype.NewFace(f, &truetype.Options{Size: 0.75 * cellH, DPI: 72}), nil
})

// CellOrigin returns the top left pixel of the cell at col, row.
func CellOrigin(col, row int) image.Point {
	return image.Point{X: Margin + col*cellW, Y: Margin + row*cellH}
}

// Image draws the visible content of bus the way the glass would show it.
// Custom glyphs are drawn from glyph memory dot by dot, other characters use
// a monospace font.
func Image(bus *hd44780test.Bus) (image.Image, error) {
	face, err := loadFace()
	if err != nil {
		return nil, fmt.Errorf("screenlcd: %w", err)
	}
	st := bus.State()
	dc := gg.NewContext(2*Margin+bus.Cols()*cellW, 2*Margin+bus.Rows()*cellH)
	if st.Backlight {
		dc.SetColor(backlightOn)
	} else {
		dc.SetColor(backlightOff)
	}
	dc.Clear()
	if !st.DisplayOn {
		return dc.Image(), nil
	}

	dc.SetColor(ink)
	dc.SetFontFace(face)
	for row, line := range bus.Lines() {
		for col, ch := range []byte(line) {
			p := CellOrigin(col, row)
			switch {
			case ch < 8:
				drawGlyph(dc, p, bus.Glyph(int(ch)))
			case ch > 0x20 && ch <= 0x7e:
				dc.DrawStringAnchored(string(rune(ch)), float64(p.X)+2.5*Dot, float64(p.Y)+4*Dot, 0.5, 0.5)
			}
		}
	}
	return dc.Image(), nil
}

func drawGlyph(dc *gg.Context, p image.Point, g [8]byte) {
	for y, bits := range g {
		for x := range 5 {
			if bits&(0x10>>x) == 0 {
				continue
			}
			dc.DrawRectangle(float64(p.X+x*Dot), float64(p.Y+y*Dot), Dot, Dot)
		}
	}
	dc.Fill()
}

// Snapshot saves the picture of bus as a PNG file at path.
func Snapshot(bus *hd44780test.Bus, path string) error {
	img, err := Image(bus)
	if err != nil {
		return err
	}
	if err := gg.SavePNG(path, img); err != nil {
		return fmt.Errorf("screenlcd: %w", err)
	}
	return nil
}
