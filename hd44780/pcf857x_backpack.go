// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package hd44780

import (
	"periph.io/x/conn/v3/i2c"
)

// Bits of the PCF8574 output port. D4-D7 of the LCD are on P4-P7, so a nibble
// always travels in the upper half of the byte.
const (
	pcfRS        byte = 1 << 0
	pcfRW        byte = 1 << 1 // held low, the display is only written to
	pcfEnable    byte = 1 << 2
	pcfBacklight byte = 1 << 3
)

// This function returns a display configured to use the pcf8574 i2c backpacks.
//
// # Product Information
//
// https://www.handsontec.com/dataspecs/I2C_2004_LCD.pdf
//
// The bus is held for the life of the display. To use this, get an I2C bus,
// and call this function with the bus, i2c address, number of rows, and
// columns. The returned display is initialized.
func NewPCF857xBackpack(bus i2c.Bus, address uint16, rows, cols int) (*Dev, error) {
	dev := New(&i2c.Dev{Bus: bus, Addr: address}, &Opts{Rows: rows, Cols: cols})
	if err := dev.Init(); err != nil {
		return nil, err
	}
	return dev, nil
}

// expanderWrite sets the expander port to value with the backlight bit
// added.
func (dev *Dev) expanderWrite(value byte) error {
	return dev.c.Tx([]byte{value | dev.backlight}, nil)
}

// pulseEnable strobes E so the controller latches the nibble on D4-D7.
func (dev *Dev) pulseEnable(value byte) error {
	if err := dev.expanderWrite(value | pcfEnable); err != nil {
		return err
	}
	dev.sleep(delayEnablePulse)
	if err := dev.expanderWrite(value &^ pcfEnable); err != nil {
		return err
	}
	dev.sleep(delaySettle)
	return nil
}

func (dev *Dev) write4Bits(value byte) error {
	if err := dev.expanderWrite(value); err != nil {
		return err
	}
	return dev.pulseEnable(value)
}

// send writes value as two nibbles, high first. mode is 0 for instructions
// and pcfRS for data.
func (dev *Dev) send(value, mode byte) error {
	if err := dev.write4Bits((value & 0xf0) | mode); err != nil {
		return err
	}
	return dev.write4Bits(((value << 4) & 0xf0) | mode)
}

func (dev *Dev) command(value byte) error {
	return dev.send(value, 0)
}

func (dev *Dev) writeData(value byte) error {
	return dev.send(value, pcfRS)
}
