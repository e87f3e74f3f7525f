// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

//go:build linux

package i2cdev

import (
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

// I2C_SLAVE from linux/i2c-dev.h.
const ioctlSlave = 0x0703

// devfsBus talks to a /dev/i2c-N node directly: the slave address is bound
// with ioctl(I2C_SLAVE) and bytes go out with plain write(2).
type devfsBus struct {
	path string
	fd   int
}

// DevFS returns an Opener for the bus device node at path, for example
// DefaultDevice. It doesn't need periph's host drivers.
func DevFS(path string) Opener {
	return func() (i2c.BusCloser, error) {
		fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
		if err != nil {
			return nil, &os.PathError{Op: "open", Path: path, Err: err}
		}
		return &devfsBus{path: path, fd: fd}, nil
	}
}

func (b *devfsBus) String() string {
	return b.path
}

func (b *devfsBus) Tx(addr uint16, w, r []byte) error {
	if err := unix.IoctlSetInt(b.fd, ioctlSlave, int(addr)); err != nil {
		return fmt.Errorf("%w 0x%02x on %s: %v", ErrBind, addr, b.path, err)
	}
	if len(w) != 0 {
		n, err := unix.Write(b.fd, w)
		if err != nil {
			return fmt.Errorf("%s: write: %w", b.path, err)
		}
		if n != len(w) {
			return fmt.Errorf("%s: %w", b.path, io.ErrShortWrite)
		}
	}
	if len(r) != 0 {
		n, err := unix.Read(b.fd, r)
		if err != nil {
			return fmt.Errorf("%s: read: %w", b.path, err)
		}
		if n != len(r) {
			return fmt.Errorf("%s: %w", b.path, io.ErrUnexpectedEOF)
		}
	}
	return nil
}

func (b *devfsBus) SetSpeed(f physic.Frequency) error {
	return errors.New("i2cdev: SetSpeed is not supported on " + b.path)
}

func (b *devfsBus) Close() error {
	return unix.Close(b.fd)
}

var _ i2c.BusCloser = &devfsBus{}
