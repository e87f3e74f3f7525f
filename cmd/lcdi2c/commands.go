// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/GermanBionicSystems/charlcd/bustrace"
	"github.com/GermanBionicSystems/charlcd/hd44780"
	"github.com/GermanBionicSystems/charlcd/hd44780/hd44780test"
	"github.com/GermanBionicSystems/charlcd/internal/config"
	"github.com/GermanBionicSystems/charlcd/screenlcd"
	"github.com/sirupsen/logrus"
)

// runDisplay opens the display and runs one of the commands driving it.
func runDisplay(ctx context.Context, cfg *config.Config, g globals, cmd string, args []string, stdout, stderr io.Writer, log logrus.FieldLogger) error {
	var op func(*session) error
	switch cmd {
	case "init":
		op = func(*session) error { return nil }
	case "print":
		fs := flag.NewFlagSet("print", flag.ContinueOnError)
		fs.SetOutput(stderr)
		col := fs.Int("col", 0, "zero based column")
		row := fs.Int("row", 0, "zero based row")
		if err := fs.Parse(args); err != nil {
			return errUsage
		}
		text := strings.Join(fs.Args(), " ")
		op = func(s *session) error {
			return printAt(s.dev, *col, *row, text)
		}
	case "clear":
		op = func(s *session) error { return s.dev.Clear() }
	case "backlight":
		if len(args) != 1 {
			fmt.Fprintln(stderr, "usage: lcdi2c backlight on|off")
			return errUsage
		}
		on, err := parseOnOff(args[0])
		if err != nil {
			fmt.Fprintln(stderr, err)
			return errUsage
		}
		op = func(s *session) error { return s.dev.SetBacklight(on) }
	case "glyph":
		slot, rows, err := parseGlyph(args)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return errUsage
		}
		op = func(s *session) error { return showGlyph(s.dev, slot, rows) }
	case "clock":
		op = func(s *session) error { return runClock(ctx, s, cfg.Clock) }
	case "shell":
		op = func(s *session) error { return runShell(ctx, s) }
	default:
		fmt.Fprintf(stderr, "unknown command: %s\n", cmd)
		fmt.Fprint(stderr, usage)
		return errUsage
	}

	s, err := openSession(cfg, g, stdout, log)
	if err != nil {
		return err
	}
	err = op(s)
	if err == nil {
		err = s.show()
	}
	return errors.Join(err, s.close())
}

func printAt(dev *hd44780.Dev, col, row int, text string) error {
	if err := dev.SetCursor(col, row); err != nil {
		return err
	}
	_, err := dev.PrintString(text)
	return err
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "1", "true":
		return true, nil
	case "off", "0", "false":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", s)
}

// parseGlyph parses a slot followed by up to 8 dot rows in hex.
func parseGlyph(args []string) (int, []byte, error) {
	if len(args) < 2 || len(args) > 9 {
		return 0, nil, errors.New("usage: glyph slot row... (1 to 8 hex rows)")
	}
	slot, err := strconv.Atoi(args[0])
	if err != nil || slot < 0 || slot > 7 {
		return 0, nil, fmt.Errorf("glyph slot must be 0 to 7, got %q", args[0])
	}
	rows := make([]byte, 0, len(args)-1)
	for _, a := range args[1:] {
		v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(a), "0x"), 16, 8)
		if err != nil || v > 0x1f {
			return 0, nil, fmt.Errorf("glyph row must be 00 to 1f, got %q", a)
		}
		rows = append(rows, byte(v))
	}
	return slot, rows, nil
}

// showGlyph defines slot and shows it at the origin.
func showGlyph(dev *hd44780.Dev, slot int, rows []byte) error {
	if err := dev.CreateChar(slot, rows); err != nil {
		return err
	}
	if err := dev.SetCursor(0, 0); err != nil {
		return err
	}
	_, err := dev.Write([]byte{byte(slot)})
	return err
}

// runReplay feeds a trace to a fresh emulator and shows the result.
func runReplay(cfg *config.Config, g globals, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("replay", flag.ContinueOnError)
	fs.SetOutput(stderr)
	id := fs.String("session", "", "only replay this recording session")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "usage: lcdi2c replay [-session id] file")
		return errUsage
	}
	events, err := bustrace.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	emu := hd44780test.New(cfg.Address, cfg.Cols, cfg.Rows)
	n, err := bustrace.Replay(events, emu, *id)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "replayed %d of %d transfers\n", n, len(events))
	if err := screenlcd.New(&screenlcd.Opts{W: stdout}).Render(emu); err != nil {
		return err
	}
	if g.snapshot != "" {
		return screenlcd.Snapshot(emu, g.snapshot)
	}
	return nil
}
