// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/GermanBionicSystems/charlcd/hd44780"
	"github.com/GermanBionicSystems/charlcd/internal/config"
	"github.com/robfig/cron/v3"
)

// runClock shows the time on every tick of the schedule until ctx is done.
// The first failed update stops the clock and is returned; the bus is not
// retried.
func runClock(ctx context.Context, s *session, cc config.ClockConfig) error {
	sched, err := config.ParseSchedule(cc.Schedule)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu     sync.Mutex
		failed error
	)
	tick := func() {
		err := showTime(s.dev, cc.Layouts, time.Now())
		if err == nil {
			err = s.show()
		}
		if err == nil {
			return
		}
		mu.Lock()
		if failed == nil {
			failed = err
		}
		mu.Unlock()
		cancel()
	}
	tick()
	if failed != nil {
		return failed
	}

	logger := cron.PrintfLogger(s.log.WithField("component", "clock"))
	c := cron.New(cron.WithLogger(logger), cron.WithChain(cron.SkipIfStillRunning(logger)))
	c.Schedule(sched, cron.FuncJob(tick))
	c.Start()
	s.log.WithField("schedule", cc.Schedule).Info("clock running")

	<-ctx.Done()
	<-c.Stop().Done()
	mu.Lock()
	defer mu.Unlock()
	return failed
}

// showTime formats now with one layout per row, padded to the display width
// so shorter text overwrites the previous one.
func showTime(dev *hd44780.Dev, layouts []string, now time.Time) error {
	for row := range dev.Rows() {
		var text string
		if row < len(layouts) {
			text = now.Format(layouts[row])
		}
		if err := printAt(dev, 0, row, fmt.Sprintf("%-*s", dev.Cols(), text)); err != nil {
			return err
		}
	}
	return nil
}
