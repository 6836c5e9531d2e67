/*
Copyright (C) 2026 Fieldworks

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/fieldworks/fixdesk/internal/models"
)

// Decision is the outcome of a booking assessment. A rejected decision
// carries the specific reason; rules are evaluated in a fixed order and
// the first failure wins, so the reason is deterministic.
type Decision struct {
	Allowed bool
	Reason  RejectReason
	Message string

	// Technician is the resolved record when the booking names one.
	Technician *models.Technician
}

func accept(tech *models.Technician) *Decision {
	return &Decision{Allowed: true, Technician: tech}
}

func reject(reason RejectReason, tech *models.Technician) *Decision {
	return &Decision{Allowed: false, Reason: reason, Message: reason.Message(), Technician: tech}
}

// Rejection builds a rejected decision for the given reason.
func Rejection(reason RejectReason) *Decision {
	return reject(reason, nil)
}

// Detector decides whether a proposed booking may be persisted.
type Detector struct {
	db     *gorm.DB
	flags  Flags
	logger zerolog.Logger
}

// NewDetector creates a conflict detector.
func NewDetector(db *gorm.DB, flags Flags, logger zerolog.Logger) *Detector {
	return &Detector{
		db:     db,
		flags:  flags,
		logger: logger.With().Str("component", "conflict_detector").Logger(),
	}
}

// Flags returns the detector's scheduling flags.
func (d *Detector) Flags() Flags {
	return d.flags
}

// Assess evaluates a proposed (technician, start, end) booking within an
// account. An empty technician name accepts unconditionally: the engine
// only governs technician-bound bookings. ignoreJobID excludes a job
// from the overlap scan so an update does not conflict with itself.
// The returned error is a store failure only; rejections come back as a
// non-allowed Decision.
func (d *Detector) Assess(ctx context.Context, accountID, technicianName string, start, end time.Time, ignoreJobID string) (*Decision, error) {
	if technicianName == "" {
		return accept(nil), nil
	}

	tech, err := d.ResolveTechnician(ctx, accountID, technicianName)
	if err != nil {
		return nil, err
	}
	if tech == nil {
		return reject(ReasonTechnicianNotFound, nil), nil
	}

	return d.AssessTechnician(ctx, tech, start, end, ignoreJobID)
}

// ResolveTechnician looks up an active technician by name within the
// account. The match is exact and case-sensitive regardless of the
// backend's collation. A nil technician with a nil error means no match.
func (d *Detector) ResolveTechnician(ctx context.Context, accountID, name string) (*models.Technician, error) {
	var tech models.Technician
	result := d.db.WithContext(ctx).
		Where("account_id = ? AND name = ? AND active = ?", accountID, name, true).
		First(&tech)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		return nil, result.Error
	}
	if tech.Name != name {
		return nil, nil
	}
	return &tech, nil
}

// AssessTechnician evaluates a booking against an already-resolved
// technician record. Used on the update path, where the effective
// technician may come from the stored job rather than the request.
func (d *Detector) AssessTechnician(ctx context.Context, tech *models.Technician, start, end time.Time, ignoreJobID string) (*Decision, error) {
	if tech == nil || !tech.Active {
		return reject(ReasonTechnicianNotFound, nil), nil
	}

	if d.flags.SameDayOnly && !sameLocalDay(start, end) {
		return reject(ReasonNotSameDay, tech), nil
	}

	if !d.flags.AlwaysOpen {
		if _, ok := slotContaining(tech.WeeklyRoster, start, end); !ok {
			return reject(ReasonOutsideHours, tech), nil
		}
	}

	proposed := Interval{Start: start, End: end}
	for _, off := range tech.TimeOff {
		if proposed.Overlaps(Interval{Start: off.Start, End: off.End}) {
			return reject(ReasonTimeOff, tech), nil
		}
	}

	query := d.db.WithContext(ctx).Model(&models.Job{}).
		Where("account_id = ? AND technician_id = ?", tech.AccountID, tech.ID).
		Where("start_at < ? AND end_at > ?", end, start).
		Where("status <> ?", models.JobStatusCancelled)
	if ignoreJobID != "" {
		query = query.Where("id <> ?", ignoreJobID)
	}

	var overlapping int64
	if err := query.Count(&overlapping).Error; err != nil {
		return nil, err
	}
	if overlapping > 0 {
		d.logger.Debug().
			Str("technician_id", tech.ID).
			Time("start", start).
			Time("end", end).
			Int64("overlapping", overlapping).
			Msg("booking overlaps existing job")
		return reject(ReasonJobOverlap, tech), nil
	}

	return accept(tech), nil
}
