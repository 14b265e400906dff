// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package admission

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/gatehouse/lib/clock"
)

// ControllerConfig holds the parameters for NewController. All fields
// are optional: zero rate thresholds take the package defaults, the
// zero Schedule blocks nothing, a nil Clock reads the wall clock, and
// a nil Logger discards.
type ControllerConfig struct {
	Rate     RateConfig
	Schedule Schedule
	Clock    clock.Clock
	Logger   *slog.Logger
}

// Controller evaluates admission policies. One controller guards one
// gateway process: its mutex serializes the whole rate-limit sequence
// (sweep, burst check, cooldown check, record) so concurrent requests
// see a consistent record set.
//
// Safe for concurrent use.
type Controller struct {
	mu       sync.Mutex
	tracker  *Tracker
	schedule Schedule
	rate     RateConfig
	clock    clock.Clock
	logger   *slog.Logger

	admitted            atomic.Uint64
	deniedGlobalBurst   atomic.Uint64
	deniedCooldown      atomic.Uint64
	deniedBlackoutDay   atomic.Uint64
	deniedBlackoutHours atomic.Uint64
}

// NewController builds a Controller from cfg.
func NewController(cfg ControllerConfig) *Controller {
	cfg.Rate.applyDefaults()
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &Controller{
		tracker:  NewTracker(),
		schedule: cfg.Schedule,
		rate:     cfg.Rate,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
	}
}

// Evaluate runs policy for identity at the clock's current instant.
func (c *Controller) Evaluate(policy Policy, identity string) Decision {
	return c.EvaluateAt(policy, identity, c.clock.Now())
}

// EvaluateAt runs policy for identity at an explicit instant. The
// identity is ignored by PolicyCalendar and PolicyNone.
func (c *Controller) EvaluateAt(policy Policy, identity string, now time.Time) Decision {
	var decision Decision
	switch policy {
	case PolicyRate:
		decision = c.evaluateRateAt(identity, now)
	case PolicyCalendar:
		decision = c.evaluateCalendarAt(now)
	default:
		decision = Decision{Admitted: true, Reason: ReasonAdmitted}
	}

	c.count(decision)
	if !decision.Admitted {
		c.logger.Info("admission denied",
			"policy", policy.String(),
			"reason", decision.Reason.String(),
			"retry_after", decision.RetryAfter,
		)
	}
	return decision
}

// evaluateRateAt is the rate-limit critical section: sweep, global
// burst, cooldown, record. Denied requests record nothing.
func (c *Controller) evaluateRateAt(identity string, now time.Time) Decision {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tracker.SweepAll(now, c.rate.Retention)

	if c.tracker.KeysAtLeast(now, c.rate.Retention, c.rate.BurstHits) >= c.rate.BurstIdentities {
		return Decision{
			Reason:     ReasonGlobalBurst,
			RetryAfter: c.burstRetryLocked(now),
		}
	}

	if c.tracker.RecentWithin(identity, now, c.rate.Cooldown) >= 1 {
		return Decision{
			Reason:     ReasonCooldown,
			RetryAfter: c.cooldownRetryLocked(identity, now),
		}
	}

	c.tracker.Record(identity, now)
	return Decision{Admitted: true, Reason: ReasonAdmitted}
}

// evaluateCalendarAt runs the blackout schedule. The weekday set
// outranks the hours.
func (c *Controller) evaluateCalendarAt(now time.Time) Decision {
	if c.schedule.BlackoutDay(now) {
		return Decision{Reason: ReasonBlackoutDay}
	}
	if c.schedule.BlackoutHour(now) {
		return Decision{Reason: ReasonBlackoutHours}
	}
	return Decision{Admitted: true, Reason: ReasonAdmitted}
}

// cooldownRetryLocked computes the advisory wait for a cooldown
// denial: the time until the identity's newest in-cooldown hit ages
// out. The boundary is inclusive, so the result is floored at one
// second to keep the advice non-zero right at the edge.
func (c *Controller) cooldownRetryLocked(identity string, now time.Time) time.Duration {
	var newest time.Time
	for _, hit := range c.tracker.hits[identity] {
		if now.Sub(hit) <= c.rate.Cooldown && hit.After(newest) {
			newest = hit
		}
	}
	if newest.IsZero() {
		return 0
	}
	retry := newest.Add(c.rate.Cooldown).Sub(now)
	if retry < time.Second {
		retry = time.Second
	}
	return retry
}

// burstRetryLocked computes the advisory wait for a global-burst
// denial: the time until the soonest bursting identity drops below
// the burst hit threshold. A lower bound — the breaker may still be
// tripped by the remaining identities when the client retries.
func (c *Controller) burstRetryLocked(now time.Time) time.Duration {
	relief, ok := c.tracker.burstRelief(now, c.rate.Retention, c.rate.BurstHits)
	if !ok {
		return 0
	}
	retry := relief.Sub(now)
	if retry < time.Second {
		retry = time.Second
	}
	return retry
}

func (c *Controller) count(decision Decision) {
	switch decision.Reason {
	case ReasonAdmitted:
		c.admitted.Add(1)
	case ReasonGlobalBurst:
		c.deniedGlobalBurst.Add(1)
	case ReasonCooldown:
		c.deniedCooldown.Add(1)
	case ReasonBlackoutDay:
		c.deniedBlackoutDay.Add(1)
	case ReasonBlackoutHours:
		c.deniedBlackoutHours.Add(1)
	}
}

// Counters returns a snapshot of the evaluation counts.
func (c *Controller) Counters() Counters {
	return Counters{
		Admitted:            c.admitted.Load(),
		DeniedGlobalBurst:   c.deniedGlobalBurst.Load(),
		DeniedCooldown:      c.deniedCooldown.Load(),
		DeniedBlackoutDay:   c.deniedBlackoutDay.Load(),
		DeniedBlackoutHours: c.deniedBlackoutHours.Load(),
	}
}

// ActiveIdentities returns the number of identities currently holding
// at least one tracked hit.
func (c *Controller) ActiveIdentities() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tracker.ActiveKeyCount()
}

// RunSweeper prunes the tracker on a retention-interval ticker until
// ctx is cancelled. Evaluation sweeps on its own; this loop exists so
// idle periods do not hold stale keys in memory.
func (c *Controller) RunSweeper(ctx context.Context) {
	ticker := c.clock.NewTicker(c.rate.Retention)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			c.mu.Lock()
			removed := c.tracker.SweepAll(now, c.rate.Retention)
			active := c.tracker.ActiveKeyCount()
			c.mu.Unlock()
			if removed > 0 {
				c.logger.Debug("swept admission tracker",
					"removed", removed,
					"active_identities", active,
				)
			}
		}
	}
}
