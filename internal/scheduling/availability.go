/*
Copyright (C) 2026 Fieldworks

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduling

import (
	"time"

	"github.com/fieldworks/fixdesk/internal/models"
)

// Evaluator answers availability queries from a technician's roster and
// time-off data. It performs no store access; callers load the record.
type Evaluator struct {
	flags Flags
}

// NewEvaluator creates an availability evaluator with the given flags.
func NewEvaluator(flags Flags) *Evaluator {
	return &Evaluator{flags: flags}
}

// BlockedIntervals returns the technician's blocked sub-intervals within
// [from, to), for calendar background rendering. Output intervals may
// overlap each other; any instant inside any returned interval is
// unavailable. A zero-length window yields nothing.
func (e *Evaluator) BlockedIntervals(tech *models.Technician, from, to time.Time) []Interval {
	if tech == nil || !to.After(from) {
		return nil
	}

	var blocked []Interval

	if !e.flags.AlwaysOpen {
		for day := startOfDay(from); day.Before(to); day = day.AddDate(0, 0, 1) {
			for _, gap := range rosterGaps(tech.WeeklyRoster, day) {
				if clipped := gap.Clip(from, to); !clipped.Empty() {
					blocked = append(blocked, clipped)
				}
			}
		}
	}

	for _, off := range tech.TimeOff {
		iv := Interval{Start: off.Start, End: off.End}
		if clipped := iv.Clip(from, to); !clipped.Empty() {
			blocked = append(blocked, clipped)
		}
	}

	return blocked
}

// IsOpen reports whether the technician is available at the given
// instant: inside a working slot (unless AlwaysOpen) and not on time-off.
func (e *Evaluator) IsOpen(tech *models.Technician, at time.Time) bool {
	if tech == nil || !tech.Active {
		return false
	}

	for _, off := range tech.TimeOff {
		if (Interval{Start: off.Start, End: off.End}).Contains(at) {
			return false
		}
	}

	if e.flags.AlwaysOpen {
		return true
	}

	day := startOfDay(at)
	for _, slot := range tech.WeeklyRoster.SlotsFor(at.Weekday()) {
		start, end, err := slot.Minutes()
		if err != nil {
			continue
		}
		iv := Interval{Start: clockOffset(day, start), End: clockOffset(day, end)}
		if iv.Contains(at) {
			return true
		}
	}
	return false
}

// rosterGaps computes the complement of the day's working slots against
// the full 24h day: [00:00, first start), the gaps between consecutive
// slots, and [last end, 24:00). A day with no slots is blocked entirely.
// Slots are stored pre-sorted by start time (enforced at write time).
func rosterGaps(roster models.WeeklyRoster, day time.Time) []Interval {
	dayEnd := day.AddDate(0, 0, 1)

	var gaps []Interval
	cursor := day
	for _, slot := range roster.SlotsFor(day.Weekday()) {
		start, end, err := slot.Minutes()
		if err != nil {
			continue
		}
		slotStart := clockOffset(day, start)
		slotEnd := clockOffset(day, end)
		if slotStart.After(cursor) {
			gaps = append(gaps, Interval{Start: cursor, End: slotStart})
		}
		if slotEnd.After(cursor) {
			cursor = slotEnd
		}
	}
	if dayEnd.After(cursor) {
		gaps = append(gaps, Interval{Start: cursor, End: dayEnd})
	}
	return gaps
}

// slotContaining returns the working slot that fully contains
// [start, end) on start's weekday, or false when none does. Containment
// is required, not mere overlap: a booking must fit inside one
// contiguous slot, because a gap between slots represents a break.
func slotContaining(roster models.WeeklyRoster, start, end time.Time) (Interval, bool) {
	day := startOfDay(start)
	for _, slot := range roster.SlotsFor(start.Weekday()) {
		slotStart, slotEnd, err := slot.Minutes()
		if err != nil {
			continue
		}
		iv := Interval{Start: clockOffset(day, slotStart), End: clockOffset(day, slotEnd)}
		if !start.Before(iv.Start) && !end.After(iv.End) {
			return iv, true
		}
	}
	return Interval{}, false
}
