/*
Copyright (C) 2026 Fieldworks

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeSlot is a time-of-day working window in HH:MM form, no timezone
// (business-local). The end is exclusive.
type TimeSlot struct {
	Start string `json:"start"` // HH:MM
	End   string `json:"end"`   // HH:MM
}

// WeeklyRoster maps weekdays to ordered, non-overlapping working slots.
// A day with no slots means the technician does not work that day.
type WeeklyRoster map[time.Weekday][]TimeSlot

// TimeOffEntry is an absolute, non-recurring unavailability interval.
type TimeOffEntry struct {
	ID     string    `json:"id"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Reason string    `json:"reason,omitempty"`
}

// DefaultWeeklyRoster returns the roster applied when a technician is
// created without one: Mon-Fri 09:00-17:00, weekends empty.
func DefaultWeeklyRoster() WeeklyRoster {
	r := WeeklyRoster{}
	for d := time.Monday; d <= time.Friday; d++ {
		r[d] = []TimeSlot{{Start: "09:00", End: "17:00"}}
	}
	return r
}

// ParseClock parses an HH:MM string into minutes since midnight.
func ParseClock(s string) (int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 24 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	total := hour*60 + minute
	if total > 24*60 {
		return 0, fmt.Errorf("time of day %q past midnight", s)
	}
	return total, nil
}

// Minutes returns the slot bounds as minutes since midnight.
func (s TimeSlot) Minutes() (start, end int, err error) {
	start, err = ParseClock(s.Start)
	if err != nil {
		return 0, 0, err
	}
	end, err = ParseClock(s.End)
	if err != nil {
		return 0, 0, err
	}
	if end <= start {
		return 0, 0, fmt.Errorf("slot end %s must be after start %s", s.End, s.Start)
	}
	return start, end, nil
}

// Validate checks every day's slots parse, are ordered by start time, and
// do not overlap each other.
func (r WeeklyRoster) Validate() error {
	for day, slots := range r {
		prevEnd := -1
		for i, slot := range slots {
			start, end, err := slot.Minutes()
			if err != nil {
				return fmt.Errorf("%s slot %d: %w", day, i, err)
			}
			if start < prevEnd {
				return fmt.Errorf("%s slot %d overlaps previous slot", day, i)
			}
			prevEnd = end
		}
	}
	return nil
}

// SlotsFor returns the day's slots, sorted state is the caller's
// responsibility at write time (Validate enforces ordering).
func (r WeeklyRoster) SlotsFor(day time.Weekday) []TimeSlot {
	if r == nil {
		return nil
	}
	return r[day]
}
