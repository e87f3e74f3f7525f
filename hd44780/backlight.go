// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package hd44780

import (
	"periph.io/x/conn/v3/display"
)

// The backlight transistor hangs off P3 of the expander. There is no separate
// control line, so the bit has to ride along in every byte written.

// SetBacklight turns the backlight on or off. The new state is written to
// the expander right away.
func (dev *Dev) SetBacklight(on bool) error {
	return dev.run(func() error {
		return dev.setBacklight(on)
	})
}

func (dev *Dev) setBacklight(on bool) error {
	if on {
		dev.backlight = pcfBacklight
	} else {
		dev.backlight = 0
	}
	return dev.expanderWrite(0)
}

// BacklightOn reports the backlight state. The bus is not accessed.
func (dev *Dev) BacklightOn() bool {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	return dev.backlight == pcfBacklight
}

// Turn the display's backlight on or off. Any non zero intensity turns it on.
func (dev *Dev) Backlight(intensity display.Intensity) error {
	return dev.SetBacklight(intensity > 0)
}

var _ display.DisplayBacklight = &Dev{}
