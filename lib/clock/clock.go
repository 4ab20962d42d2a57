// Copyright 2026 The Spool Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Clock abstracts the time operations the decode pipeline uses.
// Production code injects Real(); tests inject Fake() for deterministic
// time control. The interface is deliberately small — only the
// operations this codebase actually performs.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Sleep pauses the current goroutine for at least duration d.
	// A d <= 0 returns immediately.
	Sleep(d time.Duration)

	// After returns a channel that receives the current time after
	// duration d elapses. If d <= 0, the channel receives immediately.
	After(d time.Duration) <-chan time.Time
}
