// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package admission

import (
	"fmt"
	"time"
)

// Policy selects which admission rule a route runs. A route carries
// exactly one policy; rate and calendar are never combined.
type Policy int

const (
	// PolicyNone admits unconditionally. The request still counts in
	// the admitted counter.
	PolicyNone Policy = iota

	// PolicyRate runs the sliding-window sequence: global burst
	// breaker, then per-identity cooldown.
	PolicyRate

	// PolicyCalendar runs the weekly blackout schedule.
	PolicyCalendar
)

// String returns the policy's config-file spelling.
func (p Policy) String() string {
	switch p {
	case PolicyNone:
		return "none"
	case PolicyRate:
		return "rate"
	case PolicyCalendar:
		return "calendar"
	default:
		return "unknown"
	}
}

// ParsePolicy parses a config-file policy value.
func ParsePolicy(value string) (Policy, error) {
	switch value {
	case "none":
		return PolicyNone, nil
	case "rate":
		return PolicyRate, nil
	case "calendar":
		return PolicyCalendar, nil
	default:
		return PolicyNone, fmt.Errorf("admission: unknown policy %q (want rate, calendar, or none)", value)
	}
}

// Reason states why a decision came out the way it did. The string
// forms are wire-stable: they appear in error envelopes and journal
// rows.
type Reason int

const (
	// ReasonAdmitted is the reason on every admitted decision.
	ReasonAdmitted Reason = iota

	// ReasonGlobalBurst denies when enough identities are bursting
	// inside the retention horizon.
	ReasonGlobalBurst

	// ReasonCooldown denies an identity that hit the gateway within
	// the cooldown horizon.
	ReasonCooldown

	// ReasonBlackoutDay denies on a blocked weekday.
	ReasonBlackoutDay

	// ReasonBlackoutHours denies inside a blocked hour.
	ReasonBlackoutHours
)

// String returns the wire-stable reason code.
func (r Reason) String() string {
	switch r {
	case ReasonAdmitted:
		return "ADMITTED"
	case ReasonGlobalBurst:
		return "GLOBAL_BURST_EXCEEDED"
	case ReasonCooldown:
		return "IDENTITY_COOLDOWN"
	case ReasonBlackoutDay:
		return "BLACKOUT_DAY"
	case ReasonBlackoutHours:
		return "BLACKOUT_HOURS"
	default:
		return "UNKNOWN"
	}
}

// Decision is the outcome of one admission evaluation.
type Decision struct {
	// Admitted is true when the request may proceed.
	Admitted bool

	// Reason is ReasonAdmitted on admission, or the denying rule.
	Reason Reason

	// RetryAfter is an advisory wait before retrying. Zero when
	// admitted, and on denials for which no bound is computable
	// (blackout denials: the client should not poll through a
	// blackout window).
	RetryAfter time.Duration
}

// Rate-limit defaults. A RateConfig zero field takes the
// corresponding default.
const (
	DefaultRetention       = 5 * time.Minute
	DefaultCooldown        = 2 * time.Minute
	DefaultBurstHits       = 2
	DefaultBurstIdentities = 2
)

// RateConfig holds the sliding-window thresholds for PolicyRate.
type RateConfig struct {
	// Retention is the long horizon. Hits older than this are swept
	// and never influence a decision.
	Retention time.Duration

	// Cooldown is the short horizon. One hit inside it denies the
	// identity's next request.
	Cooldown time.Duration

	// BurstHits is the per-identity hit count inside Retention at
	// which the identity counts as bursting.
	BurstHits int

	// BurstIdentities is the number of simultaneously bursting
	// identities that trips the global breaker.
	BurstIdentities int
}

func (c *RateConfig) applyDefaults() {
	if c.Retention == 0 {
		c.Retention = DefaultRetention
	}
	if c.Cooldown == 0 {
		c.Cooldown = DefaultCooldown
	}
	if c.BurstHits == 0 {
		c.BurstHits = DefaultBurstHits
	}
	if c.BurstIdentities == 0 {
		c.BurstIdentities = DefaultBurstIdentities
	}
}

// Counters is a snapshot of the controller's evaluation counts.
type Counters struct {
	// Admitted counts every evaluation that admitted, none-policy
	// routes included.
	Admitted uint64

	DeniedGlobalBurst   uint64
	DeniedCooldown      uint64
	DeniedBlackoutDay   uint64
	DeniedBlackoutHours uint64
}

// TotalDenied sums the per-reason denial counts.
func (c Counters) TotalDenied() uint64 {
	return c.DeniedGlobalBurst + c.DeniedCooldown + c.DeniedBlackoutDay + c.DeniedBlackoutHours
}
