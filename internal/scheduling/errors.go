/*
Copyright (C) 2026 Fieldworks

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduling

// RejectReason is a machine-readable booking rejection code.
type RejectReason string

const (
	ReasonTechnicianNotFound RejectReason = "technician_not_found"
	ReasonNotSameDay         RejectReason = "not_same_day"
	ReasonOutsideHours       RejectReason = "outside_working_hours"
	ReasonTimeOff            RejectReason = "technician_time_off"
	ReasonJobOverlap         RejectReason = "job_overlap"
)

// rejectMessages maps reasons to end-user messaging. Every rejection
// path carries a message usable directly in the UI.
var rejectMessages = map[RejectReason]string{
	ReasonTechnicianNotFound: "technician not found",
	ReasonNotSameDay:         "booking must start and end on the same day",
	ReasonOutsideHours:       "time is outside the technician's working hours",
	ReasonTimeOff:            "technician is on time-off",
	ReasonJobOverlap:         "time overlaps another job for this technician",
}

// Message returns the human-readable text for the reason.
func (r RejectReason) Message() string {
	if msg, ok := rejectMessages[r]; ok {
		return msg
	}
	return string(r)
}
