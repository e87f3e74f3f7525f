// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package config holds the settings of the lcdi2c tool and loads them from a
// YAML file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/GermanBionicSystems/charlcd/hd44780"
	"github.com/GermanBionicSystems/charlcd/i2cdev"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Bus backends.
const (
	// BackendDevFS opens the Linux character device for every transfer.
	BackendDevFS = "devfs"
	// BackendPeriph opens the bus through the periph.io registry.
	BackendPeriph = "periph"
)

// Fonts.
const (
	Font5x8  = "5x8"
	Font5x10 = "5x10"
)

// ClockConfig configures the clock subcommand.
type ClockConfig struct {
	// Schedule is a cron spec, seconds field optional.
	Schedule string `yaml:"schedule"`
	// Layouts holds one Go time layout per row. Missing rows are left blank.
	Layouts []string `yaml:"layouts"`
}

// Config is the top-level configuration.
type Config struct {
	Backend string `yaml:"backend"`
	// Bus is a device node for the devfs backend, or a periph bus name.
	Bus     string `yaml:"bus"`
	Address uint16 `yaml:"address"`
	Cols    int    `yaml:"cols"`
	Rows    int    `yaml:"rows"`
	Font    string `yaml:"font"`
	// Backlight is the state set after Init. Defaults to on.
	Backlight *bool `yaml:"backlight,omitempty"`

	LogLevel string `yaml:"log_level"`
	// Trace, if set, is the file bus transfers are recorded to.
	Trace string `yaml:"trace,omitempty"`

	Clock ClockConfig `yaml:"clock"`
}

// Default returns the configuration of a 16x2 display at the usual address
// on the first Raspberry Pi bus.
func Default() *Config {
	c := &Config{}
	c.Normalize()
	return c
}

// Normalize fills in zero values.
func (c *Config) Normalize() {
	if c.Backend == "" {
		c.Backend = BackendDevFS
	}
	if c.Bus == "" && c.Backend == BackendDevFS {
		c.Bus = i2cdev.DefaultDevice
	}
	if c.Address == 0 {
		c.Address = hd44780.DefaultAddress
	}
	if c.Cols == 0 {
		c.Cols = hd44780.DefaultOpts.Cols
	}
	if c.Rows == 0 {
		c.Rows = hd44780.DefaultOpts.Rows
	}
	if c.Font == "" {
		c.Font = Font5x8
	}
	if c.Backlight == nil {
		on := true
		c.Backlight = &on
	}
	if c.LogLevel == "" {
		c.LogLevel = logrus.InfoLevel.String()
	}
	if c.Clock.Schedule == "" {
		c.Clock.Schedule = "@every 1s"
	}
	if c.Clock.Layouts == nil {
		c.Clock.Layouts = []string{"15:04:05", "Mon 02 Jan 2006"}
	}
}

var cronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSchedule parses a clock schedule.
func ParseSchedule(spec string) (cron.Schedule, error) {
	return cronParser.Parse(spec)
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	switch c.Backend {
	case BackendDevFS, BackendPeriph:
	default:
		errs = append(errs, fmt.Errorf("unknown backend %q", c.Backend))
	}
	if c.Address > 0x7f {
		errs = append(errs, fmt.Errorf("address 0x%x is not a 7-bit address", c.Address))
	}
	if c.Cols < 1 || c.Cols > 40 {
		errs = append(errs, fmt.Errorf("cols %d out of range [1, 40]", c.Cols))
	}
	if c.Rows < 1 || c.Rows > 4 {
		errs = append(errs, fmt.Errorf("rows %d out of range [1, 4]", c.Rows))
	}
	if c.Font != Font5x8 && c.Font != Font5x10 {
		errs = append(errs, fmt.Errorf("unknown font %q", c.Font))
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseSchedule(c.Clock.Schedule); err != nil {
		errs = append(errs, fmt.Errorf("clock schedule: %w", err))
	}
	if len(errs) != 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// Opts returns the display geometry.
func (c *Config) Opts() *hd44780.Opts {
	o := &hd44780.Opts{Cols: c.Cols, Rows: c.Rows}
	if strings.EqualFold(c.Font, Font5x10) {
		o.CharSize = hd44780.Font5x10
	}
	return o
}

// Load reads the configuration at path. A missing file yields the defaults,
// so the tool runs without any file.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	cfg.Normalize()
	return &cfg, nil
}
