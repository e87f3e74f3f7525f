// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package bustrace

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/GermanBionicSystems/charlcd/hd44780"
	"github.com/GermanBionicSystems/charlcd/hd44780/hd44780test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2ctest"
)

func fixedClock(r *Recorder) time.Time {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return ts }
	return ts
}

func TestRecordBus(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf)
	ts := fixedClock(r)
	b := r.Bus(&i2ctest.Record{})

	require.NoError(t, b.Tx(0x27, []byte{0x08}, nil))
	require.NoError(t, b.Tx(0x27, []byte{0x3c, 0x38}, nil))
	assert.Contains(t, b.String(), "bustrace(")

	events, err := ReadAll(&buf)
	require.NoError(t, err)
	require.Len(t, events, 2)
	for ix, w := range [][]byte{{0x08}, {0x3c, 0x38}} {
		assert.True(t, ts.Equal(events[ix].Timestamp), "timestamp %v", events[ix].Timestamp)
		assert.Equal(t, r.Session(), events[ix].Session)
		assert.Equal(t, uint16(0x27), events[ix].Addr)
		assert.Equal(t, w, events[ix].W)
		assert.Empty(t, events[ix].Err)
	}
}

type failing struct {
	i2ctest.Record
}

func (f *failing) Tx(addr uint16, w, r []byte) error {
	return errors.New("nack")
}

func TestRecordFailure(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf)
	c := r.Conn(&i2c.Dev{Bus: &failing{}, Addr: 0x3f}, 0x3f)

	assert.ErrorContains(t, c.Tx([]byte{1}, nil), "nack")

	events, err := ReadAll(&buf)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, uint16(0x3f), events[0].Addr)
	assert.Contains(t, events[0].Err, "nack")

	n, err := Replay(events, &i2ctest.Record{}, "")
	require.NoError(t, err)
	assert.Zero(t, n, "failed transfers are not replayed")
}

func TestSessionsDiffer(t *testing.T) {
	assert.NotEqual(t, New(&bytes.Buffer{}).Session(), New(&bytes.Buffer{}).Session())
}

func TestClosedRecorderIgnoresTransfers(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf)
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	require.NoError(t, r.Bus(&i2ctest.Record{}).Tx(0x27, []byte{0}, nil))
	assert.Zero(t, buf.Len())
}

func TestReadAllTruncated(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf)
	require.NoError(t, r.Bus(&i2ctest.Record{}).Tx(0x27, []byte{1, 2, 3}, nil))
	data := buf.Bytes()

	_, err := ReadAll(bytes.NewReader(data[:len(data)-1]))
	assert.Error(t, err)
}

// A session recorded from the driver and replayed into a fresh emulator
// shows the same text.
func TestRecordAndReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lcd.trace")
	r, err := Create(path)
	require.NoError(t, err)

	src := hd44780test.New(hd44780.DefaultAddress, 16, 2)
	dev := hd44780.New(&i2c.Dev{Bus: r.Bus(src), Addr: hd44780.DefaultAddress}, nil)
	require.NoError(t, dev.Init())
	_, err = dev.PrintString("traced")
	require.NoError(t, err)
	require.NoError(t, dev.SetCursor(2, 1))
	_, err = dev.PrintString("bytes")
	require.NoError(t, err)
	require.NoError(t, r.Close())

	events, err := ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, events, len(src.Ops()))

	dst := hd44780test.New(hd44780.DefaultAddress, 16, 2)
	n, err := Replay(events, dst, r.Session())
	require.NoError(t, err)
	assert.Equal(t, len(events), n)
	assert.Equal(t, src.Lines(), dst.Lines())
	assert.Equal(t, src.State(), dst.State())

	n, err = Replay(events, hd44780test.New(hd44780.DefaultAddress, 16, 2), "other")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestReplayError(t *testing.T) {
	events := []Event{{Addr: 0x27, W: []byte{0x08}}, {Addr: 0x20, W: []byte{0x08}}}
	n, err := Replay(events, hd44780test.New(0x27, 16, 2), "")
	assert.Equal(t, 1, n)
	assert.ErrorContains(t, err, "replaying transfer 1")
}

func TestReadFileMissing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "none"))
	assert.Error(t, err)
}
