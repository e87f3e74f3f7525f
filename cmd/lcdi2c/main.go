// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Command lcdi2c drives an HD44780 character display behind a PCF8574 I²C
// backpack.
//
// Usage:
//
//	lcdi2c [flags] <command> [args]
//
// Commands:
//
//	init                      initialize the display
//	print [-col N -row N] txt print text at a position
//	clear                     clear the display
//	backlight on|off          switch the backlight
//	glyph slot row...         define and show a custom glyph, rows in hex
//	clock                     show the time until interrupted
//	shell                     interactive prompt
//	replay trace              replay a recorded trace on the emulator
//
// Every command except replay initializes the display first, which clears it.
//
// Examples:
//
//	# Try a layout without hardware
//	lcdi2c -emulate -cols 20 -rows 4 print -row 2 "Hello"
//
//	# Record the transfers of a session, then look at it later
//	lcdi2c -trace lcd.trace print "Hello"
//	lcdi2c -snapshot lcd.png replay lcd.trace
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/GermanBionicSystems/charlcd/internal/config"
	"github.com/mattn/go-colorable"
	"github.com/sirupsen/logrus"
)

const usage = `lcdi2c - HD44780 display on a PCF8574 I²C backpack

Usage:
  lcdi2c [flags] <command> [args]

Commands:
  init                      initialize the display
  print [-col N -row N] txt print text at a zero based position
  clear                     clear the display
  backlight on|off          switch the backlight
  glyph slot row...         define custom glyph slot from up to 8 hex rows and show it
  clock                     show the time until interrupted
  shell                     interactive prompt
  replay [-session id] file replay a recorded trace on the emulator

Flags:
`

// errUsage is returned for invalid command lines. The usage was printed.
var errUsage = errors.New("invalid usage")

// globals holds the flags given before the command.
type globals struct {
	configPath string
	emulate    bool
	snapshot   string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], colorable.NewColorableStdout(), os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one command line and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	log := logrus.New()
	log.SetOutput(stderr)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	cfg, g, rest, err := parseGlobals(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		if !errors.Is(err, errUsage) {
			log.WithError(err).Error("invalid configuration")
		}
		return 2
	}
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}
	log.WithFields(logrus.Fields{
		"backend": cfg.Backend,
		"bus":     cfg.Bus,
		"addr":    fmt.Sprintf("0x%02x", cfg.Address),
		"size":    fmt.Sprintf("%dx%d", cfg.Cols, cfg.Rows),
		"emulate": g.emulate,
	}).Debug("effective config")

	cmd, cmdArgs := rest[0], rest[1:]
	if cmd == "replay" {
		err = runReplay(cfg, g, cmdArgs, stdout, stderr)
	} else {
		err = runDisplay(ctx, cfg, g, cmd, cmdArgs, stdout, stderr, log)
	}
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage):
		return 2
	default:
		log.WithError(err).Error(cmd + " failed")
		return 1
	}
}

// parseGlobals loads the configuration and applies the flags given before
// the command on top of it.
func parseGlobals(args []string, stderr io.Writer) (*config.Config, globals, []string, error) {
	var g globals
	fs := flag.NewFlagSet("lcdi2c", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}
	fs.StringVar(&g.configPath, "config", "", "YAML configuration file")
	fs.BoolVar(&g.emulate, "emulate", false, "drive an emulated display shown on the terminal")
	fs.StringVar(&g.snapshot, "snapshot", "", "save a PNG picture of the emulated display")
	backend := fs.String("backend", "", "bus backend, devfs or periph")
	bus := fs.String("bus", "", "I²C device node, or periph bus name")
	addr := fs.Uint("addr", 0, "7-bit device address, e.g. 0x27")
	cols := fs.Int("cols", 0, "display columns")
	rows := fs.Int("rows", 0, "display rows")
	font := fs.String("font", "", "character font, 5x8 or 5x10")
	trace := fs.String("trace", "", "record bus transfers to this file")
	level := fs.String("log-level", "", "log level")
	if err := fs.Parse(args); err != nil {
		return nil, g, nil, err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return nil, g, nil, errUsage
	}

	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, g, nil, err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "backend":
			cfg.Backend = *backend
		case "bus":
			cfg.Bus = *bus
		case "addr":
			cfg.Address = uint16(min(*addr, 0xffff))
		case "cols":
			cfg.Cols = *cols
		case "rows":
			cfg.Rows = *rows
		case "font":
			cfg.Font = *font
		case "trace":
			cfg.Trace = *trace
		case "log-level":
			cfg.LogLevel = *level
		}
	})
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, g, nil, err
	}
	if g.snapshot != "" && !g.emulate && fs.Arg(0) != "replay" {
		return nil, g, nil, errors.New("-snapshot requires -emulate")
	}
	return cfg, g, fs.Args(), nil
}
