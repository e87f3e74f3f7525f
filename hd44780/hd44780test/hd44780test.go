// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package hd44780test emulates an HD44780 controller sitting behind a PCF8574
// I²C backpack, so code driving such a display can be checked without
// hardware.
//
// Bus decodes every byte written to the expander: a nibble is latched on each
// falling edge of E, the controller starts in 8-bit mode and switches to 4-bit
// mode on a function set with DL cleared, exactly like the real chip after
// power on. Instructions are executed against DDRAM and CGRAM.
package hd44780test

import (
	"errors"
	"fmt"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2ctest"
	"periph.io/x/conn/v3/physic"
)

// Backpack port bits.
const (
	bitRS        byte = 0x01
	bitRW        byte = 0x02
	bitEnable    byte = 0x04
	bitBacklight byte = 0x08
)

const (
	ddramSize = 0x80
	cgramSize = 0x40
	// Characters per line in 2-line mode, and in 1-line mode.
	lineLen2 = 40
	lineLen1 = 80
)

var (
	errRead = errors.New("hd44780test: reads are not emulated")

	rowOffsets = [...]byte{0x00, 0x40, 0x14, 0x54}
)

// Instruction is one byte received by the controller.
type Instruction struct {
	// Data is true for a data write (RS high), false for an instruction.
	Data  bool
	Value byte
}

func (i Instruction) String() string {
	if i.Data {
		return fmt.Sprintf("data 0x%02x", i.Value)
	}
	return fmt.Sprintf("cmd 0x%02x", i.Value)
}

// Bus is an i2c.Bus with an emulated display at one address.
type Bus struct {
	mu   sync.Mutex
	addr uint16
	cols int
	rows int

	ops          []i2ctest.IO
	instructions []Instruction

	port    byte
	fourBit bool
	half    bool
	hi      byte

	ddram   [ddramSize]byte
	cgram   [cgramSize]byte
	ac      byte
	cgMode  bool
	shift   int
	twoLine bool
	font10  bool
	on      bool
	cursor  bool
	blink   bool
	inc     bool
	autoS   bool
}

// New returns a Bus emulating a cols x rows display at addr, in the state
// the controller is in right after power on.
func New(addr uint16, cols, rows int) *Bus {
	b := &Bus{addr: addr, cols: cols, rows: rows, inc: true}
	for ix := range b.ddram {
		b.ddram[ix] = ' '
	}
	return b
}

func (b *Bus) String() string {
	return fmt.Sprintf("hd44780test(0x%02x)", b.addr)
}

// Tx implements i2c.Bus. Every byte written is applied to the expander port
// in order.
func (b *Bus) Tx(addr uint16, w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if addr != b.addr {
		return fmt.Errorf("hd44780test: no device at address 0x%02x", addr)
	}
	if len(r) != 0 {
		return errRead
	}
	io := i2ctest.IO{Addr: addr, W: make([]byte, len(w))}
	copy(io.W, w)
	b.ops = append(b.ops, io)
	for _, v := range w {
		b.setPort(v)
	}
	return nil
}

// SetSpeed implements i2c.Bus.
func (b *Bus) SetSpeed(f physic.Frequency) error {
	return nil
}

// Close implements i2c.BusCloser. The emulated state is kept.
func (b *Bus) Close() error {
	return nil
}

func (b *Bus) setPort(v byte) {
	prev := b.port
	b.port = v
	if prev&bitEnable != 0 && v&bitEnable == 0 && prev&bitRW == 0 {
		b.latch(prev)
	}
}

// latch receives the nibble present on D4-D7 while E was high.
func (b *Bus) latch(v byte) {
	nibble := v >> 4
	data := v&bitRS != 0
	if !b.fourBit {
		// DB3-DB0 aren't connected and read as zero.
		b.execute(data, nibble<<4)
		return
	}
	if !b.half {
		b.hi = nibble
		b.half = true
		return
	}
	b.half = false
	b.execute(data, b.hi<<4|nibble)
}

func (b *Bus) execute(data bool, v byte) {
	b.instructions = append(b.instructions, Instruction{Data: data, Value: v})
	if data {
		b.writeData(v)
		return
	}
	switch {
	case v&0x80 != 0:
		b.ac = v & 0x7f
		b.cgMode = false
	case v&0x40 != 0:
		b.ac = v & 0x3f
		b.cgMode = true
	case v&0x20 != 0:
		b.fourBit = v&0x10 == 0
		b.half = false
		b.twoLine = v&0x08 != 0
		b.font10 = v&0x04 != 0
	case v&0x10 != 0:
		right := v&0x04 != 0
		if v&0x08 != 0 {
			b.shiftDisplay(right)
		} else if right {
			b.advance(1)
		} else {
			b.advance(-1)
		}
	case v&0x08 != 0:
		b.on = v&0x04 != 0
		b.cursor = v&0x02 != 0
		b.blink = v&0x01 != 0
	case v&0x04 != 0:
		b.inc = v&0x02 != 0
		b.autoS = v&0x01 != 0
	case v&0x02 != 0:
		b.ac = 0
		b.shift = 0
		b.cgMode = false
	case v&0x01 != 0:
		for ix := range b.ddram {
			b.ddram[ix] = ' '
		}
		b.ac = 0
		b.shift = 0
		b.cgMode = false
		b.inc = true
	}
}

func (b *Bus) writeData(v byte) {
	if b.cgMode {
		b.cgram[b.ac&(cgramSize-1)] = v
		if b.inc {
			b.ac = (b.ac + 1) & (cgramSize - 1)
		} else {
			b.ac = (b.ac - 1) & (cgramSize - 1)
		}
		return
	}
	b.ddram[b.ac] = v
	if b.inc {
		b.advance(1)
	} else {
		b.advance(-1)
	}
	if b.autoS {
		// The display moves against the cursor so the cursor stays put.
		b.shiftDisplay(!b.inc)
	}
}

// advance moves the DDRAM address counter, wrapping the way the controller
// does between and within lines.
func (b *Bus) advance(delta int) {
	if b.cgMode {
		b.ac = byte(int(b.ac)+delta) & (cgramSize - 1)
		return
	}
	if !b.twoLine {
		b.ac = byte(mod(int(b.ac)+delta, lineLen1))
		return
	}
	// Two lines: 0x00-0x27 then 0x40-0x67.
	pos := int(b.ac & 0x3f)
	if b.ac&0x40 != 0 {
		pos += lineLen2
	}
	pos = mod(pos+delta, 2*lineLen2)
	if pos >= lineLen2 {
		b.ac = 0x40 | byte(pos-lineLen2)
	} else {
		b.ac = byte(pos)
	}
}

func (b *Bus) shiftDisplay(right bool) {
	if right {
		b.shift--
	} else {
		b.shift++
	}
}

func mod(a, n int) int {
	return ((a % n) + n) % n
}

// Lines returns the characters visible on each row, honoring the display
// shift. The content is returned even when the display is off.
func (b *Bus) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	rows := min(b.rows, len(rowOffsets))
	lines := make([]string, rows)
	for row := range rows {
		line := make([]byte, b.cols)
		for col := range b.cols {
			line[col] = b.ddram[b.visibleAddr(row, col)]
		}
		lines[row] = string(line)
	}
	return lines
}

func (b *Bus) visibleAddr(row, col int) byte {
	base := rowOffsets[row]
	if !b.twoLine {
		return byte(mod(int(base)+col+b.shift, lineLen1))
	}
	start := base & 0x40
	return start | byte(mod(int(base&0x3f)+col+b.shift, lineLen2))
}

// DDRAM returns the byte stored at a display data address.
func (b *Bus) DDRAM(addr byte) byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ddram[addr&(ddramSize-1)]
}

// Glyph returns the eight dot rows of custom character slot.
func (b *Bus) Glyph(slot int) [8]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	var g [8]byte
	copy(g[:], b.cgram[(slot&7)*8:])
	return g
}

// Address returns the address counter.
func (b *Bus) Address() byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ac
}

// Cols returns the emulated display width.
func (b *Bus) Cols() int {
	return b.cols
}

// Rows returns the emulated display height.
func (b *Bus) Rows() int {
	return b.rows
}

// Addr returns the address the emulated backpack answers at.
func (b *Bus) Addr() uint16 {
	return b.addr
}

// State is a snapshot of the controller flags.
type State struct {
	FourBit   bool
	TwoLine   bool
	LargeFont bool
	DisplayOn bool
	CursorOn  bool
	BlinkOn   bool
	Increment bool
	AutoShift bool
	Backlight bool
	Shift     int
}

// State returns the current controller flags.
func (b *Bus) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return State{
		FourBit:   b.fourBit,
		TwoLine:   b.twoLine,
		LargeFont: b.font10,
		DisplayOn: b.on,
		CursorOn:  b.cursor,
		BlinkOn:   b.blink,
		Increment: b.inc,
		AutoShift: b.autoS,
		Backlight: b.port&bitBacklight != 0,
		Shift:     b.shift,
	}
}

// Ops returns every transfer received so far.
func (b *Bus) Ops() []i2ctest.IO {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]i2ctest.IO(nil), b.ops...)
}

// Instructions returns every byte the controller received so far.
func (b *Bus) Instructions() []Instruction {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Instruction(nil), b.instructions...)
}

var _ i2c.BusCloser = &Bus{}
