// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/GermanBionicSystems/charlcd/i2cdev"
	"github.com/chzyer/readline"
	"periph.io/x/conn/v3/display"
)

const shellHelp = `Commands:
  print text          print at the cursor
  at col row          move the cursor, zero based
  clear | home
  left | right        scroll the display
  ltr | rtl           text direction
  autoscroll on|off
  display on|off
  cursor on|off
  blink on|off
  backlight on|off
  glyph slot row...   define a glyph, rows in hex
  char code           write one character code
  help | quit
`

var errQuit = errors.New("quit")

var completer = readline.NewPrefixCompleter(
	readline.PcItem("print"),
	readline.PcItem("at"),
	readline.PcItem("clear"),
	readline.PcItem("home"),
	readline.PcItem("left"),
	readline.PcItem("right"),
	readline.PcItem("ltr"),
	readline.PcItem("rtl"),
	readline.PcItem("autoscroll", readline.PcItem("on"), readline.PcItem("off")),
	readline.PcItem("display", readline.PcItem("on"), readline.PcItem("off")),
	readline.PcItem("cursor", readline.PcItem("on"), readline.PcItem("off")),
	readline.PcItem("blink", readline.PcItem("on"), readline.PcItem("off")),
	readline.PcItem("backlight", readline.PcItem("on"), readline.PcItem("off")),
	readline.PcItem("glyph"),
	readline.PcItem("char"),
	readline.PcItem("help"),
	readline.PcItem("quit"),
)

// runShell reads commands from the terminal until EOF, quit or ctx is done.
func runShell(ctx context.Context, s *session) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "lcd> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
		AutoComplete:    completer,
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	fmt.Fprint(rl.Stdout(), shellHelp)
	return s.repl(ctx, func() (string, error) {
		for {
			line, err := rl.Readline()
			if err != readline.ErrInterrupt {
				return line, err
			}
		}
	}, rl.Stdout())
}

// repl executes the lines returned by next until it fails, quit is entered
// or ctx is done. Command errors are printed and the loop goes on, except for
// bus errors which end it.
func (s *session) repl(ctx context.Context, next func() (string, error), out io.Writer) error {
	for ctx.Err() == nil {
		line, err := next()
		if err != nil {
			return nil
		}
		if err := s.execute(line, out); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			if errors.Is(err, i2cdev.ErrBusUnavailable) || errors.Is(err, i2cdev.ErrBind) {
				return err
			}
			fmt.Fprintln(out, "error:", err)
			continue
		}
		if err := s.show(); err != nil {
			return err
		}
	}
	return nil
}

// execute runs one shell line. errQuit ends the shell.
func (s *session) execute(line string, out io.Writer) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]
	dev := s.dev
	switch cmd {
	case "help", "?":
		_, err := fmt.Fprint(out, shellHelp)
		return err
	case "quit", "exit", "q":
		return errQuit
	case "print", "p":
		// Keep the spacing of the text as typed.
		text := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), fields[0]))
		_, err := dev.PrintString(text)
		return err
	case "at":
		if len(args) != 2 {
			return errors.New("usage: at col row")
		}
		col, err1 := strconv.Atoi(args[0])
		row, err2 := strconv.Atoi(args[1])
		if err := errors.Join(err1, err2); err != nil {
			return err
		}
		return dev.SetCursor(col, row)
	case "clear":
		return dev.Clear()
	case "home":
		return dev.Home()
	case "left":
		return dev.ScrollLeft()
	case "right":
		return dev.ScrollRight()
	case "ltr":
		return dev.LeftToRight()
	case "rtl":
		return dev.RightToLeft()
	case "glyph":
		slot, rows, err := parseGlyph(args)
		if err != nil {
			return err
		}
		return dev.CreateChar(slot, rows)
	case "char":
		if len(args) != 1 {
			return errors.New("usage: char code")
		}
		v, err := strconv.ParseUint(args[0], 0, 8)
		if err != nil {
			return err
		}
		_, err = dev.Write([]byte{byte(v)})
		return err
	case "autoscroll", "display", "cursor", "blink", "backlight":
		if len(args) != 1 {
			return fmt.Errorf("usage: %s on|off", cmd)
		}
		on, err := parseOnOff(args[0])
		if err != nil {
			return err
		}
		switch cmd {
		case "autoscroll":
			return dev.AutoScroll(on)
		case "display":
			return dev.Display(on)
		case "cursor":
			return dev.ShowCursor(on)
		case "blink":
			return dev.Blink(on)
		default:
			return dev.SetBacklight(on)
		}
	}
	return fmt.Errorf("%w: %q, try help", display.ErrInvalidCommand, cmd)
}
