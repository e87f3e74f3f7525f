// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package bustrace records every I²C write sent to a display into a CBOR
// stream, and plays such a stream back.
//
// A trace taken on real hardware can be replayed into the emulator in
// hd44780test to see what the display was shown.
package bustrace

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/i2c"
)

// Event is one transfer.
type Event struct {
	Timestamp time.Time `cbor:"1,keyasint"`
	// Session identifies the Recorder that wrote the event.
	Session string `cbor:"2,keyasint"`
	Addr    uint16 `cbor:"3,keyasint"`
	W       []byte `cbor:"4,keyasint,omitempty"`
	// Err is the transfer error, if any.
	Err string `cbor:"5,keyasint,omitempty"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	}
	if encMode, err = encOpts.EncMode(); err != nil {
		panic(fmt.Sprintf("failed to create trace CBOR encoder mode: %v", err))
	}
	decOpts := cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyQuiet,
		IndefLength: cbor.IndefLengthAllowed,
	}
	if decMode, err = decOpts.DecMode(); err != nil {
		panic(fmt.Sprintf("failed to create trace CBOR decoder mode: %v", err))
	}
}

// Recorder appends an Event to its stream for every transfer going through
// the buses and connections it wraps. It is safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	enc     *cbor.Encoder
	c       io.Closer
	session string
	closed  bool
	log     logrus.FieldLogger

	now func() time.Time
}

// New returns a Recorder writing to w with a fresh session ID.
func New(w io.Writer) *Recorder {
	return &Recorder{
		enc:     encMode.NewEncoder(w),
		session: uuid.New().String(),
		log:     logrus.StandardLogger(),
		now:     time.Now,
	}
}

// Create returns a Recorder appending to the file at path. The file is
// created with permissions 0644 if it doesn't exist.
func Create(path string) (*Recorder, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("bustrace: %w", err)
	}
	r := New(f)
	r.c = f
	return r, nil
}

// Session returns the ID stamped on every event of this Recorder.
func (r *Recorder) Session() string {
	return r.session
}

// Close stops recording and closes the file opened by Create. It is safe to
// call Close multiple times.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	if r.c != nil {
		return r.c.Close()
	}
	return nil
}

func (r *Recorder) record(addr uint16, w []byte, txErr error) {
	ev := Event{Timestamp: r.now(), Session: r.session, Addr: addr, W: append([]byte(nil), w...)}
	if txErr != nil {
		ev.Err = txErr.Error()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	// The transfer result is what matters to the caller.
	if err := r.enc.Encode(ev); err != nil {
		r.log.WithError(err).Warn("failed to record transfer")
	}
}

// Bus returns b with every transfer recorded.
func (r *Recorder) Bus(b i2c.Bus) i2c.Bus {
	return &bus{Bus: b, r: r}
}

// Conn returns c, talking to addr, with every transfer recorded.
func (r *Recorder) Conn(c conn.Conn, addr uint16) conn.Conn {
	return &tracedConn{Conn: c, addr: addr, r: r}
}

type bus struct {
	i2c.Bus
	r *Recorder
}

func (b *bus) Tx(addr uint16, w, r []byte) error {
	err := b.Bus.Tx(addr, w, r)
	b.r.record(addr, w, err)
	return err
}

func (b *bus) String() string {
	return "bustrace(" + b.Bus.String() + ")"
}

type tracedConn struct {
	conn.Conn
	addr uint16
	r    *Recorder
}

func (c *tracedConn) Tx(w, r []byte) error {
	err := c.Conn.Tx(w, r)
	c.r.record(c.addr, w, err)
	return err
}

func (c *tracedConn) String() string {
	return "bustrace(" + c.Conn.String() + ")"
}

// ReadAll decodes every event in r.
func ReadAll(r io.Reader) ([]Event, error) {
	dec := decMode.NewDecoder(r)
	var events []Event
	for {
		var ev Event
		if err := dec.Decode(&ev); err != nil {
			if errors.Is(err, io.EOF) {
				return events, nil
			}
			return events, fmt.Errorf("bustrace: event %d: %w", len(events), err)
		}
		events = append(events, ev)
	}
}

// ReadFile decodes every event in the file at path.
func ReadFile(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("bustrace: %w", err)
	}
	defer f.Close()
	return ReadAll(f)
}

// Replay writes the events of session to b in order, skipping the transfers
// that failed when recorded. Use "" to replay every session. It returns the
// count of transfers replayed.
func Replay(events []Event, b i2c.Bus, session string) (int, error) {
	n := 0
	for _, ev := range events {
		if ev.Err != "" || (session != "" && ev.Session != session) {
			continue
		}
		if err := b.Tx(ev.Addr, ev.W, nil); err != nil {
			return n, fmt.Errorf("bustrace: replaying transfer %d: %w", n, err)
		}
		n++
	}
	return n, nil
}

var _ i2c.Bus = &bus{}
var _ conn.Conn = &tracedConn{}
