// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package i2cdev provides an I²C connection that acquires the bus for every
// single transfer and releases it as soon as the transfer is done.
//
// Character LCD backpacks are written one byte at a time at a low rate. Opening
// the bus per transfer means a failure half way through a command sequence
// never leaves a bus handle behind, at the cost of an open/close per byte.
package i2cdev

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
)

const (
	packageName = "i2cdev"

	// DefaultDevice is the bus device node exposed on a Raspberry Pi.
	DefaultDevice = "/dev/i2c-1"
)

var (
	// ErrBusUnavailable is returned when the bus cannot be opened.
	ErrBusUnavailable = errors.New("i2cdev: bus unavailable")
	// ErrBind is returned when the slave address cannot be bound on the
	// opened bus.
	ErrBind = errors.New("i2cdev: cannot bind slave address")
	// ErrAddress is returned for addresses that don't fit in 7 bits.
	ErrAddress = fmt.Errorf("%w: not a 7-bit address", ErrBind)
)

// Opener acquires a bus for exactly one transfer. The returned bus is closed
// once the transfer completes.
type Opener func() (i2c.BusCloser, error)

// Registry returns an Opener for a bus known to periph's i2creg. Use "" for
// the first bus found. host.Init() must have been called.
func Registry(name string) Opener {
	return func() (i2c.BusCloser, error) {
		return i2creg.Open(name)
	}
}

// Option configures a Conn.
type Option func(*Conn)

// WithLogger sets the sink that receives bus diagnostics.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Conn) {
		c.log = l
	}
}

// WithName sets the bus name used in String() and diagnostics.
func WithName(name string) Option {
	return func(c *Conn) {
		c.name = name
	}
}

// Conn is a conn.Conn bound to one slave address. Every Tx opens the bus,
// performs the transfer and closes the bus again. It does not retry.
type Conn struct {
	open Opener
	addr uint16
	name string
	log  logrus.FieldLogger
}

func wrap(err error) error {
	if err == nil || strings.HasPrefix(err.Error(), packageName) {
		return err
	}
	return fmt.Errorf("%s: %w", packageName, err)
}

// New returns a Conn for the device at addr. No I/O is performed.
func New(open Opener, addr uint16, opts ...Option) (*Conn, error) {
	if addr > 0x7f {
		return nil, fmt.Errorf("%w: 0x%x", ErrAddress, addr)
	}
	c := &Conn{open: open, addr: addr, name: "i2c", log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Addr returns the slave address.
func (c *Conn) Addr() uint16 {
	return c.addr
}

// Tx implements conn.Conn.
func (c *Conn) Tx(w, r []byte) (err error) {
	bus, err := c.open()
	if err != nil {
		c.log.WithError(err).WithField("bus", c.name).Error("failed to open I²C bus")
		return fmt.Errorf("%w: %w", ErrBusUnavailable, err)
	}
	defer func() {
		if cerr := bus.Close(); cerr != nil && err == nil {
			err = wrap(cerr)
		}
	}()
	if err = bus.Tx(c.addr, w, r); err != nil {
		entry := c.log.WithError(err).WithFields(logrus.Fields{"bus": c.name, "addr": fmt.Sprintf("0x%02x", c.addr)})
		if errors.Is(err, ErrBind) {
			entry.Error("failed to set I²C address")
		} else {
			entry.Error("I²C transfer failed")
		}
		return wrap(err)
	}
	return nil
}

// Write writes p in a single transfer.
func (c *Conn) Write(p []byte) (int, error) {
	if err := c.Tx(p, nil); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Duplex implements conn.Conn.
func (c *Conn) Duplex() conn.Duplex {
	return conn.Half
}

func (c *Conn) String() string {
	return fmt.Sprintf("%s@0x%02x", c.name, c.addr)
}

var _ conn.Conn = &Conn{}
