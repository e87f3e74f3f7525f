// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package hd44780 controls the Hitachi LCD display chipset HD-44780 when it is
// connected through a PCF8574 I²C backpack, the small board found on the back
// of the LCD1602 and LCD2004 modules.
//
// The backpack only wires the upper four expander lines to the LCD data pins,
// so the controller runs in 4-bit mode and every byte is sent as two nibbles,
// each clocked in by strobing the enable line.
//
// A Dev must be initialized with Init before anything else is sent to the
// display. Until then every operation returns ErrNotInitialized.
//
// # Datasheet
//
// https://www.sparkfun.com/datasheets/LCD/HD44780.pdf
package hd44780

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/GermanBionicSystems/charlcd/i2cdev"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/display"
)

// Instructions.
const (
	cmdClearDisplay   byte = 0x01
	cmdReturnHome     byte = 0x02
	cmdEntryModeSet   byte = 0x04
	cmdDisplayControl byte = 0x08
	cmdCursorShift    byte = 0x10
	cmdFunctionSet    byte = 0x20
	cmdSetCGRAMAddr   byte = 0x40
	cmdSetDDRAMAddr   byte = 0x80
)

// Entry mode flags.
const (
	entryLeft           byte = 0x02
	entryShiftIncrement byte = 0x01
)

// Display control flags.
const (
	displayOn byte = 0x04
	cursorOn  byte = 0x02
	blinkOn   byte = 0x01
)

// Cursor or display shift flags.
const (
	displayMove byte = 0x08
	moveRight   byte = 0x04
)

// Function set flags. 4-bit mode, one line and 5x8 dots are all zero.
const (
	twoLine  byte = 0x08
	dots5x10 byte = 0x04
)

// Controller timings. These are minimums from the datasheet, rounded up.
const (
	delayPowerOn     = 50 * time.Millisecond
	delayExpander    = time.Second
	delayReset       = 4500 * time.Microsecond
	delayResetLast   = 150 * time.Microsecond
	delayEnablePulse = time.Microsecond
	delaySettle      = 50 * time.Microsecond
	delayClearHome   = 2 * time.Millisecond
)

const (
	packageName = "hd44780"

	// DefaultAddress is the factory address of most PCF8574 backpacks. Boards
	// using the PCF8574A answer at 0x3f.
	DefaultAddress uint16 = 0x27

	glyphRows = 8
)

var (
	// ErrNotInitialized is returned by operations issued before Init.
	ErrNotInitialized = errors.New("hd44780: display not initialized")

	// DDRAM address of the first column of each row. Rows 2 and 3 continue
	// rows 0 and 1 in controller memory.
	rowOffsets = [...]byte{0x00, 0x40, 0x14, 0x54}
)

// CharSize selects the character cell.
type CharSize int

const (
	// Font5x8 is the standard cell, usable on any number of rows.
	Font5x8 CharSize = iota
	// Font5x10 is only honored on single row displays.
	Font5x10
)

// Opts describes the display geometry.
type Opts struct {
	Cols     int
	Rows     int
	CharSize CharSize
}

// DefaultOpts is a 16x2 display with the small font.
var DefaultOpts = Opts{Cols: 16, Rows: 2, CharSize: Font5x8}

// Dev is an HD44780 display behind a PCF8574 backpack.
//
// The flag fields mirror the latched state of the controller and are only
// updated once the corresponding instruction was written.
//
// Implements periph.io/x/conn/v3/display.TextDisplay and
// display.DisplayBacklight.
type Dev struct {
	mu       sync.Mutex
	c        conn.Conn
	cols     int
	rows     int
	charSize CharSize

	function  byte
	control   byte
	entry     byte
	backlight byte
	ready     bool

	sleep func(time.Duration)
}

func wrap(err error) error {
	if err == nil || strings.HasPrefix(err.Error(), packageName) {
		return err
	}
	return fmt.Errorf("%s: %w", packageName, err)
}

// New returns a display writing to c. Nothing is sent to the device; call
// Init before use. Use nil opts for DefaultOpts.
func New(c conn.Conn, opts *Opts) *Dev {
	if opts == nil {
		opts = &DefaultOpts
	}
	return &Dev{
		c:         c,
		cols:      opts.Cols,
		rows:      opts.Rows,
		charSize:  opts.CharSize,
		backlight: pcfBacklight,
		sleep:     time.Sleep,
	}
}

// NewI2C returns a display at addr that acquires the bus through open for
// every transfer. Nothing is sent to the device.
func NewI2C(open i2cdev.Opener, addr uint16, opts *Opts, connOpts ...i2cdev.Option) (*Dev, error) {
	c, err := i2cdev.New(open, addr, connOpts...)
	if err != nil {
		return nil, wrap(err)
	}
	return New(c, opts), nil
}

// Init runs the power-on initialization sequence. It must complete before any
// other call. Calling it again re-initializes the controller.
func (dev *Dev) Init() error {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	dev.ready = false
	err := dev.init()
	dev.ready = err == nil
	return wrap(err)
}

func (dev *Dev) init() error {
	dev.function = 0
	if dev.rows > 1 {
		dev.function |= twoLine
	}
	if dev.charSize == Font5x10 && dev.rows == 1 {
		dev.function |= dots5x10
	}

	dev.sleep(delayPowerOn)
	// Only the backlight bit, so the expander starts from a known idle state.
	if err := dev.expanderWrite(0); err != nil {
		return err
	}
	dev.sleep(delayExpander)

	// Three blind resets put the controller in 8-bit mode whatever state it
	// was left in, then switch to 4-bit.
	for _, d := range []time.Duration{delayReset, delayReset, delayResetLast} {
		if err := dev.write4Bits(0x03 << 4); err != nil {
			return err
		}
		dev.sleep(d)
	}
	if err := dev.write4Bits(0x02 << 4); err != nil {
		return err
	}

	if err := dev.command(cmdFunctionSet | dev.function); err != nil {
		return err
	}
	dev.control = 0
	if err := dev.setControl(displayOn, true); err != nil {
		return err
	}
	if err := dev.clear(); err != nil {
		return err
	}
	dev.entry = 0
	if err := dev.setEntry(entryLeft, true); err != nil {
		return err
	}
	return dev.home()
}

// run serializes op with other calls and refuses it before Init.
func (dev *Dev) run(op func() error) error {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	if !dev.ready {
		return ErrNotInitialized
	}
	return wrap(op())
}

// Clear blanks the display and moves the cursor to the origin.
func (dev *Dev) Clear() error {
	return dev.run(dev.clear)
}

func (dev *Dev) clear() error {
	if err := dev.command(cmdClearDisplay); err != nil {
		return err
	}
	dev.sleep(delayClearHome)
	return nil
}

// Home moves the cursor to the origin and undoes any display shift. The
// content is kept.
func (dev *Dev) Home() error {
	return dev.run(dev.home)
}

func (dev *Dev) home() error {
	if err := dev.command(cmdReturnHome); err != nil {
		return err
	}
	dev.sleep(delayClearHome)
	return nil
}

// SetCursor moves the cursor to the zero based col and row. Rows past the
// last one are clamped to the last row.
func (dev *Dev) SetCursor(col, row int) error {
	return dev.run(func() error {
		return dev.setCursor(col, row)
	})
}

func (dev *Dev) setCursor(col, row int) error {
	if row >= dev.rows {
		row = dev.rows - 1
	}
	row = min(max(row, 0), len(rowOffsets)-1)
	col = max(col, 0)
	return dev.command(cmdSetDDRAMAddr | (byte(col) + rowOffsets[row]))
}

// Move the cursor forward or backward.
func (dev *Dev) Move(dir display.CursorDirection) error {
	var val = cmdCursorShift
	switch dir {
	case display.Backward:
	case display.Forward:
		val |= moveRight
	case display.Down, display.Up:
		fallthrough
	default:
		return fmt.Errorf("%s: %w", packageName, display.ErrNotImplemented)
	}
	return dev.run(func() error {
		return dev.command(val)
	})
}

// Move the cursor to arbitrary position. Positions are one based and must
// be on the display.
func (dev *Dev) MoveTo(row, col int) error {
	if row < dev.MinRow() || row > dev.rows || col < dev.MinCol() || col > dev.cols {
		return fmt.Errorf("%s: MoveTo(%d,%d) value out of range", packageName, row, col)
	}
	return dev.run(func() error {
		return dev.setCursor(col-1, row-1)
	})
}

// ScrollLeft shifts the whole display content one cell to the left. The
// cursor follows the content.
func (dev *Dev) ScrollLeft() error {
	return dev.run(func() error {
		return dev.command(cmdCursorShift | displayMove)
	})
}

// ScrollRight shifts the whole display content one cell to the right.
func (dev *Dev) ScrollRight() error {
	return dev.run(func() error {
		return dev.command(cmdCursorShift | displayMove | moveRight)
	})
}

// Display turns the display on or off. The content is kept while off.
func (dev *Dev) Display(on bool) error {
	return dev.run(func() error {
		return dev.setControl(displayOn, on)
	})
}

// ShowCursor shows or hides the underline cursor.
func (dev *Dev) ShowCursor(on bool) error {
	return dev.run(func() error {
		return dev.setControl(cursorOn, on)
	})
}

// Blink turns the blinking block cursor on or off.
func (dev *Dev) Blink(on bool) error {
	return dev.run(func() error {
		return dev.setControl(blinkOn, on)
	})
}

// Set the cursor mode. You can pass multiple arguments.
// Cursor(CursorOff, CursorUnderline)
//
// CursorBlink and CursorBlock both select the blinking block, which is the
// only block cursor this controller has.
func (dev *Dev) Cursor(modes ...display.CursorMode) error {
	return dev.run(func() error {
		control := dev.control
		for _, mode := range modes {
			switch mode {
			case display.CursorOff:
				control &^= cursorOn | blinkOn
			case display.CursorUnderline:
				control |= cursorOn
			case display.CursorBlink, display.CursorBlock:
				control |= blinkOn
			default:
				return fmt.Errorf("%w: unexpected cursor %d", display.ErrInvalidCommand, mode)
			}
		}
		if err := dev.command(cmdDisplayControl | control); err != nil {
			return err
		}
		dev.control = control
		return nil
	})
}

func (dev *Dev) setControl(flag byte, on bool) error {
	control := setFlag(dev.control, flag, on)
	if err := dev.command(cmdDisplayControl | control); err != nil {
		return err
	}
	dev.control = control
	return nil
}

// LeftToRight makes text flow to the right of the cursor.
func (dev *Dev) LeftToRight() error {
	return dev.run(func() error {
		return dev.setEntry(entryLeft, true)
	})
}

// RightToLeft makes text flow to the left of the cursor.
func (dev *Dev) RightToLeft() error {
	return dev.run(func() error {
		return dev.setEntry(entryLeft, false)
	})
}

// AutoScroll shifts the display on each character written so the cursor
// stays in place and the text moves instead.
func (dev *Dev) AutoScroll(enabled bool) error {
	return dev.run(func() error {
		return dev.setEntry(entryShiftIncrement, enabled)
	})
}

func (dev *Dev) setEntry(flag byte, on bool) error {
	entry := setFlag(dev.entry, flag, on)
	if err := dev.command(cmdEntryModeSet | entry); err != nil {
		return err
	}
	dev.entry = entry
	return nil
}

func setFlag(flags, flag byte, on bool) byte {
	if on {
		return flags | flag
	}
	return flags &^ flag
}

// Print writes buf at the cursor position. It stops at the first NUL byte or
// after maxLength bytes, whichever comes first, and returns the count of
// bytes written. Text is neither wrapped nor clipped to the display; the
// controller advances the cursor according to the entry mode.
func (dev *Dev) Print(buf []byte, maxLength int) (n int, err error) {
	err = dev.run(func() error {
		for _, b := range buf {
			if n >= maxLength || b == 0 {
				break
			}
			if err := dev.writeData(b); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	return n, err
}

// PrintString writes text at the cursor position, at most Cols() bytes of
// it, stopping early at a NUL byte.
func (dev *Dev) PrintString(text string) (int, error) {
	return dev.Print([]byte(text), dev.cols)
}

// Write a set of bytes to the display. Unlike Print every byte is sent,
// including 0x00 which displays custom glyph 0.
func (dev *Dev) Write(p []byte) (n int, err error) {
	err = dev.run(func() error {
		for _, b := range p {
			if err := dev.writeData(b); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	return n, err
}

// Write a string output to the display.
func (dev *Dev) WriteString(text string) (int, error) {
	return dev.Write([]byte(text))
}

// CreateChar defines custom glyph slot, shown for character codes 0 to 7.
// Only the low 3 bits of slot are used. rows holds one byte per dot row, of
// which the low 5 bits are used; missing rows are blank and rows past the
// eighth are ignored.
//
// The controller keeps writing data to glyph memory afterwards, so set the
// cursor position before printing text.
func (dev *Dev) CreateChar(slot int, rows []byte) error {
	return dev.run(func() error {
		slot &= 0x7
		if err := dev.command(cmdSetCGRAMAddr | byte(slot<<3)); err != nil {
			return err
		}
		for ix := range glyphRows {
			var b byte
			if ix < len(rows) {
				b = rows[ix]
			}
			if err := dev.writeData(b); err != nil {
				return err
			}
		}
		return nil
	})
}

// Halt clears the display, turns it off and switches the backlight off.
func (dev *Dev) Halt() error {
	return dev.run(func() error {
		if err := dev.clear(); err != nil {
			return err
		}
		if err := dev.setControl(displayOn, false); err != nil {
			return err
		}
		return dev.setBacklight(false)
	})
}

// Return the number of rows the display supports.
func (dev *Dev) Rows() int {
	return dev.rows
}

// Return the number of columns the display supports
func (dev *Dev) Cols() int {
	return dev.cols
}

// Return the min row position.
func (dev *Dev) MinRow() int {
	return 1
}

// Return the min column position.
func (dev *Dev) MinCol() int {
	return 1
}

// Return info about the display.
func (dev *Dev) String() string {
	return fmt.Sprintf("HD44780::%s - Rows: %d, Cols: %d", dev.c.String(), dev.rows, dev.cols)
}

var _ display.TextDisplay = &Dev{}
var _ conn.Resource = &Dev{}
