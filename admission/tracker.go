// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package admission

import (
	"time"
)

// Tracker is a sliding-window hit table: per-key timestamp sequences
// in ascending order. It answers "how many hits inside this horizon"
// for any key, for any horizon, over one shared record set — the
// cooldown check (short horizon) and the burst rule (long horizon)
// read the same entries.
//
// Tracker is NOT safe for concurrent use. The Controller owns it and
// serializes access under its own mutex. Timestamps must be recorded
// in non-decreasing order; the Controller always records clock-now.
type Tracker struct {
	hits map[string][]time.Time
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{hits: make(map[string][]time.Time)}
}

// Record appends a hit for key at now. The empty string is a valid
// key: unidentified requests share one bucket.
func (t *Tracker) Record(key string, now time.Time) {
	t.hits[key] = append(t.hits[key], now)
}

// CountRecent prunes entries older than horizon for key, then returns
// the remaining count. A timestamp u is retained iff now - u <=
// horizon (a hit exactly horizon-old still counts). If the key's
// sequence empties, the key is removed from the table.
func (t *Tracker) CountRecent(key string, now time.Time, horizon time.Duration) int {
	t.pruneKey(key, now, horizon)
	return len(t.hits[key])
}

// RecentWithin returns the count of entries for key with now - u <=
// horizon, without pruning anything. This is how a second, shorter
// horizon is checked against the record set: the cooldown check must
// not disturb entries the retention-horizon burst rule still needs.
func (t *Tracker) RecentWithin(key string, now time.Time, horizon time.Duration) int {
	count := 0
	for _, hit := range t.hits[key] {
		if now.Sub(hit) <= horizon {
			count++
		}
	}
	return count
}

// SweepAll prunes every key to horizon and removes keys whose
// sequences empty. Returns the number of entries removed. Idempotent:
// an immediate second sweep with the same arguments removes nothing.
func (t *Tracker) SweepAll(now time.Time, horizon time.Duration) int {
	removed := 0
	for key := range t.hits {
		removed += t.pruneKey(key, now, horizon)
	}
	return removed
}

// ActiveKeyCount returns the number of keys currently tracked. Every
// tracked key holds at least one entry — pruning removes empty keys.
func (t *Tracker) ActiveKeyCount() int {
	return len(t.hits)
}

// KeysAtLeast returns the number of keys with at least minHits entries
// inside horizon. Read-only; feeds the global-burst rule.
func (t *Tracker) KeysAtLeast(now time.Time, horizon time.Duration, minHits int) int {
	count := 0
	for key := range t.hits {
		if t.RecentWithin(key, now, horizon) >= minHits {
			count++
		}
	}
	return count
}

// burstRelief returns the earliest instant at which any key currently
// holding at least minHits entries inside horizon drops below minHits,
// i.e. the soonest the bursting-key count can decrease. Returns false
// when no key is bursting.
func (t *Tracker) burstRelief(now time.Time, horizon time.Duration, minHits int) (time.Time, bool) {
	var earliest time.Time
	found := false
	for _, entries := range t.hits {
		// Skip past entries already outside the horizon; the rest
		// are the within-horizon suffix (entries ascend).
		first := 0
		for first < len(entries) && now.Sub(entries[first]) > horizon {
			first++
		}
		within := entries[first:]
		if len(within) < minHits {
			continue
		}
		// The key stops bursting when its minHits-th newest entry
		// ages out of the horizon.
		relief := within[len(within)-minHits].Add(horizon)
		if !found || relief.Before(earliest) {
			earliest = relief
			found = true
		}
	}
	return earliest, found
}

// pruneKey drops entries older than horizon for key, deleting the key
// if nothing remains. Returns the number of entries removed.
func (t *Tracker) pruneKey(key string, now time.Time, horizon time.Duration) int {
	entries := t.hits[key]
	keep := 0
	for keep < len(entries) && now.Sub(entries[keep]) > horizon {
		keep++
	}
	if keep == 0 {
		return 0
	}
	if keep == len(entries) {
		delete(t.hits, key)
		return keep
	}
	t.hits[key] = append(entries[:0], entries[keep:]...)
	return keep
}
