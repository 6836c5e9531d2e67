/*
Copyright (C) 2026 Fieldworks

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduling

import "time"

// Flags are the process-wide scheduling switches, fixed at startup and
// injected so both flag combinations can be exercised deterministically.
type Flags struct {
	// AlwaysOpen ignores weekly rosters for conflict purposes: only
	// time-off and existing bookings block a window.
	AlwaysOpen bool

	// SameDayOnly rejects bookings whose start and end fall on different
	// local calendar days, independent of roster and time-off.
	SameDayOnly bool
}

// Interval is a half-open time interval [Start, End). The end instant is
// excluded everywhere, so back-to-back bookings do not conflict.
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Overlaps reports whether two half-open intervals share any instant.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// Empty reports whether the interval covers no time at all.
func (iv Interval) Empty() bool {
	return !iv.End.After(iv.Start)
}

// Clip bounds the interval to [from, to). The zero Interval is returned
// when nothing remains.
func (iv Interval) Clip(from, to time.Time) Interval {
	start := iv.Start
	if start.Before(from) {
		start = from
	}
	end := iv.End
	if end.After(to) {
		end = to
	}
	if !end.After(start) {
		return Interval{}
	}
	return Interval{Start: start, End: end}
}

// Contains reports whether the instant falls inside the interval.
func (iv Interval) Contains(at time.Time) bool {
	return !at.Before(iv.Start) && at.Before(iv.End)
}

func sameLocalDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// startOfDay returns local midnight for the instant's calendar day.
func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// clockOffset converts minutes-since-midnight into an instant on day.
func clockOffset(day time.Time, minutes int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), minutes/60, minutes%60, 0, 0, day.Location())
}
