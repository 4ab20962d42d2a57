// Copyright 2026 The Spool Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Real returns a Clock backed by the standard time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	time.Sleep(d)
}

func (realClock) After(d time.Duration) <-chan time.Time {
	if d <= 0 {
		immediate := make(chan time.Time, 1)
		immediate <- time.Now()
		return immediate
	}
	return time.After(d)
}
