// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package charlcd is a container for the HD44780 character LCD driver and
// the tools around it.
//
// The driver lives in hd44780 and talks to the display through a PCF8574 I²C
// backpack. i2cdev acquires the bus for every transfer, hd44780test emulates
// the display, screenlcd shows the emulated display on a terminal or as a
// picture, and bustrace records and replays bus traffic. cmd/lcdi2c ties
// them together.
package charlcd
