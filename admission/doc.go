// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package admission decides whether a request may proceed to the
// upstream service. Every proxied request passes through a
// [Controller], which evaluates the route's policy and yields a
// [Decision] — admitted, or denied with a [Reason]. Evaluation never
// returns an error and never panics; a Decision always comes back.
//
// # Policies
//
// Two policies exist, and a route carries at most one:
//
//   - Rate ([PolicyRate]): a per-identity sliding window. An identity
//     that hit the gateway within the cooldown (default 2 minutes) is
//     denied IDENTITY_COOLDOWN. Before the per-identity check, a
//     global circuit breaker runs: when at least two identities each
//     hold two or more hits inside the retention horizon (default 5
//     minutes), every rate-limited request is denied
//     GLOBAL_BURST_EXCEEDED until the window drains.
//
//   - Calendar ([PolicyCalendar]): a weekly blackout [Schedule]. The
//     weekday set is checked first and outranks the hour set: Monday
//     13:00 is BLACKOUT_DAY even though 13 is outside the blackout
//     hours. Defaults: all of Monday, and 08:00–11:59 on any day.
//
// # Bookkeeping
//
// Hits live in a [Tracker], a per-key table of timestamps. The Tracker
// itself is not safe for concurrent use; the Controller owns it and
// holds one mutex across the whole sweep–check–record sequence, so two
// concurrent requests for the same identity cannot both observe "no
// recent hit" and both admit. Denied requests record nothing — a
// denial never extends a cooldown.
//
// The empty identity is tracked like any other key. Requests that
// arrive without an identity share one bucket; exempting them would
// let unauthenticated traffic burst freely.
//
// # Time
//
// All decisions take their instant from a [clock.Clock] (or the
// explicit-time variants, which exist for tests and tooling). Window
// boundaries are inclusive: a hit exactly cooldown-old still blocks,
// and a hit exactly retention-old still counts toward the burst rule.
//
// A background sweeper ([Controller.RunSweeper]) prunes stale keys on
// a retention-interval ticker so idle periods do not hold dead
// identities in memory.
package admission
