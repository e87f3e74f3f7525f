// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

//go:build !linux

package i2cdev

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
)

// DevFS returns an Opener for a Linux bus device node. On other systems it
// always fails with ErrBusUnavailable.
func DevFS(path string) Opener {
	return func() (i2c.BusCloser, error) {
		return nil, fmt.Errorf("%s: /dev/i2c nodes require linux", path)
	}
}
