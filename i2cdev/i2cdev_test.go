// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package i2cdev

import (
	"errors"
	"fmt"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2ctest"
)

// countingBus wraps a recorder and counts how often it is closed.
type countingBus struct {
	i2c.Bus
	closes   *int
	closeErr error
}

func (b *countingBus) Close() error {
	*b.closes++
	return b.closeErr
}

type failingBus struct {
	i2ctest.Record
	err error
}

func (b *failingBus) Tx(addr uint16, w, r []byte) error {
	return b.err
}

func newCounting(rec i2c.Bus) (Opener, *int, *int) {
	opens, closes := 0, 0
	open := func() (i2c.BusCloser, error) {
		opens++
		return &countingBus{Bus: rec, closes: &closes}, nil
	}
	return open, &opens, &closes
}

func TestTxAcquiresBusPerTransfer(t *testing.T) {
	rec := &i2ctest.Record{}
	open, opens, closes := newCounting(rec)
	c, err := New(open, 0x27)
	require.NoError(t, err)

	for _, b := range []byte{0x08, 0x3c, 0x38} {
		n, err := c.Write([]byte{b})
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	}
	assert.Equal(t, 3, *opens)
	assert.Equal(t, 3, *closes)
	require.Len(t, rec.Ops, 3)
	for ix, want := range []byte{0x08, 0x3c, 0x38} {
		assert.Equal(t, uint16(0x27), rec.Ops[ix].Addr)
		assert.Equal(t, []byte{want}, rec.Ops[ix].W)
	}
}

func TestOpenFailure(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	boom := errors.New("no such file or directory")
	c, err := New(func() (i2c.BusCloser, error) { return nil, boom }, 0x27,
		WithLogger(logger), WithName("/dev/i2c-9"))
	require.NoError(t, err)

	err = c.Tx([]byte{0}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBusUnavailable)
	assert.ErrorIs(t, err, boom)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.Equal(t, "/dev/i2c-9", entry.Data["bus"])
}

func TestBindFailure(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	closes := 0
	bus := &failingBus{err: fmt.Errorf("%w 0x27 on test: EREMOTEIO", ErrBind)}
	c, err := New(func() (i2c.BusCloser, error) {
		return &countingBus{Bus: bus, closes: &closes}, nil
	}, 0x27, WithLogger(logger))
	require.NoError(t, err)

	err = c.Tx([]byte{0}, nil)
	assert.ErrorIs(t, err, ErrBind)
	assert.Equal(t, 1, closes, "bus must be released when the transfer fails")
	require.Len(t, hook.Entries, 1)
	assert.Equal(t, "failed to set I²C address", hook.LastEntry().Message)
	assert.Equal(t, "0x27", hook.LastEntry().Data["addr"])
}

func TestCloseErrorReported(t *testing.T) {
	closes := 0
	closeErr := errors.New("bad descriptor")
	c, err := New(func() (i2c.BusCloser, error) {
		return &countingBus{Bus: &i2ctest.Record{}, closes: &closes, closeErr: closeErr}, nil
	}, 0x20)
	require.NoError(t, err)

	err = c.Tx([]byte{1}, nil)
	assert.ErrorIs(t, err, closeErr)
	assert.Contains(t, err.Error(), "i2cdev: ")
}

func TestAddressValidation(t *testing.T) {
	open, opens, _ := newCounting(&i2ctest.Record{})
	_, err := New(open, 0x80)
	assert.ErrorIs(t, err, ErrAddress)
	assert.ErrorIs(t, err, ErrBind)
	assert.Zero(t, *opens)

	c, err := New(open, 0x7f)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x7f), c.Addr())
	assert.Equal(t, "i2c@0x7f", c.String())
	assert.Zero(t, *opens, "New must not touch the bus")
}

func TestDevFSMissingNode(t *testing.T) {
	c, err := New(DevFS("/nonexistent/i2c-42"), 0x27, WithLogger(logrus.New()))
	require.NoError(t, err)
	_, err = c.Write([]byte{0x08})
	assert.ErrorIs(t, err, ErrBusUnavailable)
}
