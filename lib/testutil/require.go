// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"testing"
	"time"
)

// RequireClosed waits until ch is closed (or yields a value), failing
// the test after timeout. Tests use it to join background loops that
// announce completion by closing a done channel.
//
//	testutil.RequireClosed(t, done, 5*time.Second, "sweeper shutdown")
func RequireClosed(t testing.TB, ch <-chan struct{}, timeout time.Duration, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(timeout):
		t.Fatalf("%s: channel still open after %v", what, timeout)
	}
}
