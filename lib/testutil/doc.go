// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds small helpers shared by Gatehouse test
// suites.
//
// [RequireClosed] is the sanctioned home for wall-clock timeouts in
// tests: it joins a background goroutine through its done channel and
// fails the test instead of hanging when the goroutine never exits.
// Assertions about time itself belong on lib/clock's fake, not here.
package testutil
