// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts time so that admission decisions and
// credential expiry can be tested at arbitrary instants.
//
// Code that needs the current time, a delay, or a periodic tick takes
// a Clock field or parameter instead of calling the time package.
// Binaries wire Real(); tests wire Fake(initial) and move time by
// hand:
//
//	c := clock.Fake(time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC))
//	ctrl := admission.NewController(admission.ControllerConfig{Clock: c, ...})
//	// ... start goroutines that wait on the clock ...
//	c.WaitForTimers(1)       // a ticker is now registered
//	c.Advance(5 * time.Minute) // fires it deterministically
//
// WaitForTimers removes the race between a goroutine registering its
// timer and the test advancing the clock, so tests never sleep for
// real.
package clock
