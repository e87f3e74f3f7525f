// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/GermanBionicSystems/charlcd/bustrace"
	"github.com/GermanBionicSystems/charlcd/hd44780"
	"github.com/GermanBionicSystems/charlcd/hd44780/hd44780test"
	"github.com/GermanBionicSystems/charlcd/i2cdev"
	"github.com/GermanBionicSystems/charlcd/internal/config"
	"github.com/GermanBionicSystems/charlcd/screenlcd"
	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/host/v3"
)

// session is an initialized display, real or emulated.
type session struct {
	dev *hd44780.Dev
	log logrus.FieldLogger

	// Set when emulating.
	emu      *hd44780test.Bus
	console  *screenlcd.Console
	snapshot string

	trace *bustrace.Recorder
}

func openSession(cfg *config.Config, g globals, stdout io.Writer, log logrus.FieldLogger) (*session, error) {
	s := &session{log: log, snapshot: g.snapshot}
	if cfg.Trace != "" {
		rec, err := bustrace.Create(cfg.Trace)
		if err != nil {
			return nil, err
		}
		s.trace = rec
		log.WithField("session", rec.Session()).Info("recording bus transfers to " + cfg.Trace)
	}

	var c conn.Conn
	if g.emulate {
		s.emu = hd44780test.New(cfg.Address, cfg.Cols, cfg.Rows)
		s.console = screenlcd.New(&screenlcd.Opts{W: stdout})
		var b i2c.Bus = s.emu
		if s.trace != nil {
			b = s.trace.Bus(b)
		}
		c = &i2c.Dev{Bus: b, Addr: cfg.Address}
	} else {
		open, name, err := opener(cfg)
		if err != nil {
			s.close()
			return nil, err
		}
		ic, err := i2cdev.New(open, cfg.Address, i2cdev.WithLogger(log), i2cdev.WithName(name))
		if err != nil {
			s.close()
			return nil, err
		}
		c = ic
		if s.trace != nil {
			c = s.trace.Conn(c, cfg.Address)
		}
	}

	s.dev = hd44780.New(c, cfg.Opts())
	if err := s.dev.Init(); err != nil {
		s.close()
		return nil, err
	}
	if !*cfg.Backlight {
		if err := s.dev.SetBacklight(false); err != nil {
			s.close()
			return nil, err
		}
	}
	log.WithField("display", s.dev.String()).Debug("display initialized")
	return s, nil
}

// opener returns how the bus is acquired for every transfer, and its name.
func opener(cfg *config.Config) (i2cdev.Opener, string, error) {
	switch cfg.Backend {
	case config.BackendDevFS:
		return i2cdev.DevFS(cfg.Bus), cfg.Bus, nil
	case config.BackendPeriph:
		if _, err := host.Init(); err != nil {
			return nil, "", fmt.Errorf("periph host init: %w", err)
		}
		// periph names buses by number.
		bus := strings.TrimPrefix(cfg.Bus, "/dev/i2c-")
		name := bus
		if name == "" {
			name = "i2c"
		}
		return i2cdev.Registry(bus), name, nil
	}
	return nil, "", fmt.Errorf("unknown backend %q", cfg.Backend)
}

// show presents the emulated display after a command.
func (s *session) show() error {
	if s.emu == nil {
		return nil
	}
	if err := s.console.Render(s.emu); err != nil {
		return err
	}
	if s.snapshot != "" {
		return screenlcd.Snapshot(s.emu, s.snapshot)
	}
	return nil
}

func (s *session) close() error {
	var errs []error
	if s.console != nil {
		errs = append(errs, s.console.Halt())
	}
	if s.trace != nil {
		errs = append(errs, s.trace.Close())
	}
	return errors.Join(errs...)
}
