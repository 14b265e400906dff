// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package admission

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Default blackout window: all of Monday, and the 08:00–11:59 morning
// hours on the remaining days.
const (
	DefaultBlackoutWeekdays = "monday"
	DefaultBlackoutHours    = "8-11"
)

// Schedule is a weekly blackout calendar: a set of blocked weekdays
// and a set of blocked hours, evaluated against local wall-clock time.
// The weekday set outranks the hour set — on a blocked weekday the
// hour is never consulted.
//
// The zero Schedule blocks nothing.
type Schedule struct {
	weekdays bitset64
	hours    bitset64
	location *time.Location
}

// bitset64 uses a uint64 as a compact set of integers 0-63.
type bitset64 uint64

func (b bitset64) has(value int) bool { return b&(1<<uint(value)) != 0 }
func (b *bitset64) set(value int)     { *b |= 1 << uint(value) }

// ParseSchedule builds a Schedule from cron-style field syntax.
//
// The weekday field accepts comma-separated weekday names ("monday"),
// three-letter abbreviations ("mon"), and numeric cron terms with 0 =
// Sunday ("1", "1-3", "*/2", "*"). The hour field accepts numeric cron
// terms over 0-23 ("8-11", "8-10,14", "*", "*/6"). An hour term blocks
// the whole hour: "8-11" covers 08:00:00 through 11:59:59, and 12:00
// admits. Minutes and seconds never matter.
//
// Empty fields take the package defaults (Monday, 8-11). A nil
// location pins evaluation to time.Local.
func ParseSchedule(weekdayField, hourField string, location *time.Location) (Schedule, error) {
	if weekdayField == "" {
		weekdayField = DefaultBlackoutWeekdays
	}
	if hourField == "" {
		hourField = DefaultBlackoutHours
	}
	if location == nil {
		location = time.Local
	}

	weekdays, err := parseWeekdayField(weekdayField)
	if err != nil {
		return Schedule{}, fmt.Errorf("admission: weekday field: %w", err)
	}
	hours, err := parseField(hourField, 0, 23)
	if err != nil {
		return Schedule{}, fmt.Errorf("admission: hour field: %w", err)
	}

	return Schedule{weekdays: weekdays, hours: hours, location: location}, nil
}

// BlackoutDay reports whether now falls on a blocked weekday,
// evaluated in the schedule's location.
func (s Schedule) BlackoutDay(now time.Time) bool {
	return s.weekdays.has(int(s.localize(now).Weekday()))
}

// BlackoutHour reports whether now falls inside a blocked hour,
// evaluated in the schedule's location.
func (s Schedule) BlackoutHour(now time.Time) bool {
	return s.hours.has(s.localize(now).Hour())
}

func (s Schedule) localize(now time.Time) time.Time {
	if s.location == nil {
		return now.In(time.Local)
	}
	return now.In(s.location)
}

// parseWeekdayField parses a comma-separated weekday field. Each term
// is a weekday name, a three-letter abbreviation, or a numeric cron
// term (0 = Sunday).
func parseWeekdayField(field string) (bitset64, error) {
	var result bitset64
	for _, term := range strings.Split(field, ",") {
		term = strings.TrimSpace(term)
		if day, ok := weekdayNumber(term); ok {
			result.set(day)
			continue
		}
		bits, err := parseTerm(term, 0, 6)
		if err != nil {
			return 0, err
		}
		result |= bits
	}
	if result == 0 {
		return 0, fmt.Errorf("field %q produces empty set", field)
	}
	return result, nil
}

// weekdayNumber resolves a weekday name ("monday") or three-letter
// abbreviation ("mon") to its number, Sunday = 0.
func weekdayNumber(name string) (int, bool) {
	lowered := strings.ToLower(name)
	for day := time.Sunday; day <= time.Saturday; day++ {
		full := strings.ToLower(day.String())
		if lowered == full || lowered == full[:3] {
			return int(day), true
		}
	}
	return 0, false
}

// parseField parses a single field into a bitset. The field may
// contain comma-separated terms, each of which is a wildcard, value,
// range, or stepped range/wildcard.
func parseField(field string, minimum, maximum int) (bitset64, error) {
	var result bitset64
	for _, term := range strings.Split(field, ",") {
		bits, err := parseTerm(strings.TrimSpace(term), minimum, maximum)
		if err != nil {
			return 0, err
		}
		result |= bits
	}
	if result == 0 {
		return 0, fmt.Errorf("field %q produces empty set", field)
	}
	return result, nil
}

// parseTerm parses a single term: *, */N, V, V-V, V-V/N.
func parseTerm(term string, minimum, maximum int) (bitset64, error) {
	// Split on "/" for step expressions.
	parts := strings.SplitN(term, "/", 2)
	rangeExpression := parts[0]
	step := 1
	if len(parts) == 2 {
		parsed, err := strconv.Atoi(parts[1])
		if err != nil {
			return 0, fmt.Errorf("invalid step %q: %w", parts[1], err)
		}
		if parsed <= 0 {
			return 0, fmt.Errorf("step must be positive, got %d", parsed)
		}
		step = parsed
	}

	var rangeStart, rangeEnd int

	if rangeExpression == "*" {
		rangeStart = minimum
		rangeEnd = maximum
	} else if dashIndex := strings.IndexByte(rangeExpression, '-'); dashIndex >= 0 {
		startStr := rangeExpression[:dashIndex]
		endStr := rangeExpression[dashIndex+1:]
		var err error
		rangeStart, err = strconv.Atoi(startStr)
		if err != nil {
			return 0, fmt.Errorf("invalid range start %q: %w", startStr, err)
		}
		rangeEnd, err = strconv.Atoi(endStr)
		if err != nil {
			return 0, fmt.Errorf("invalid range end %q: %w", endStr, err)
		}
		if rangeStart > rangeEnd {
			return 0, fmt.Errorf("range start %d > end %d", rangeStart, rangeEnd)
		}
	} else {
		value, err := strconv.Atoi(rangeExpression)
		if err != nil {
			return 0, fmt.Errorf("invalid value %q: %w", rangeExpression, err)
		}
		rangeStart = value
		rangeEnd = value
	}

	if rangeStart < minimum || rangeEnd > maximum {
		return 0, fmt.Errorf("value out of range [%d-%d]: got %d-%d", minimum, maximum, rangeStart, rangeEnd)
	}

	var result bitset64
	for value := rangeStart; value <= rangeEnd; value += step {
		result.set(value)
	}
	return result, nil
}
