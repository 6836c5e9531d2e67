/*
Copyright (C) 2026 Fieldworks

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/fieldworks/fixdesk/internal/events"
	"github.com/fieldworks/fixdesk/internal/models"
)

// Service handles audit logging by subscribing to events and storing audit entries.
type Service struct {
	db     *gorm.DB
	bus    *events.Bus
	logger zerolog.Logger
}

// NewService creates a new audit service.
func NewService(db *gorm.DB, bus *events.Bus, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		bus:    bus,
		logger: logger.With().Str("component", "audit").Logger(),
	}
}

// Start subscribes to relevant events and logs them as audit entries.
func (s *Service) Start(ctx context.Context) {
	s.logger.Info().Msg("audit service starting")

	bookingCreated := s.bus.Subscribe(events.EventBookingCreated)
	bookingUpdated := s.bus.Subscribe(events.EventBookingUpdated)
	bookingDeleted := s.bus.Subscribe(events.EventBookingDeleted)
	bookingRejected := s.bus.Subscribe(events.EventBookingRejected)

	rosterUpdated := s.bus.Subscribe(events.EventRosterUpdated)
	timeOffAdded := s.bus.Subscribe(events.EventTimeOffAdded)
	timeOffRemoved := s.bus.Subscribe(events.EventTimeOffRemoved)

	leadCaptured := s.bus.Subscribe(events.EventLeadCaptured)

	apiKeyCreate := s.bus.Subscribe(events.EventAuditAPIKeyCreate)
	apiKeyRevoke := s.bus.Subscribe(events.EventAuditAPIKeyRevoke)

	defer func() {
		s.bus.Unsubscribe(events.EventBookingCreated, bookingCreated)
		s.bus.Unsubscribe(events.EventBookingUpdated, bookingUpdated)
		s.bus.Unsubscribe(events.EventBookingDeleted, bookingDeleted)
		s.bus.Unsubscribe(events.EventBookingRejected, bookingRejected)
		s.bus.Unsubscribe(events.EventRosterUpdated, rosterUpdated)
		s.bus.Unsubscribe(events.EventTimeOffAdded, timeOffAdded)
		s.bus.Unsubscribe(events.EventTimeOffRemoved, timeOffRemoved)
		s.bus.Unsubscribe(events.EventLeadCaptured, leadCaptured)
		s.bus.Unsubscribe(events.EventAuditAPIKeyCreate, apiKeyCreate)
		s.bus.Unsubscribe(events.EventAuditAPIKeyRevoke, apiKeyRevoke)
	}()

	s.logger.Info().Msg("audit service started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("audit service stopping")
			return

		case payload := <-bookingCreated:
			s.logAuditEntry(ctx, models.AuditActionBookingCreate, payload)

		case payload := <-bookingUpdated:
			s.logAuditEntry(ctx, models.AuditActionBookingUpdate, payload)

		case payload := <-bookingDeleted:
			s.logAuditEntry(ctx, models.AuditActionBookingDelete, payload)

		case payload := <-bookingRejected:
			s.logAuditEntry(ctx, models.AuditActionBookingRejected, payload)

		case payload := <-rosterUpdated:
			s.logAuditEntry(ctx, models.AuditActionRosterUpdate, payload)

		case payload := <-timeOffAdded:
			s.logAuditEntry(ctx, models.AuditActionTimeOffAdd, payload)

		case payload := <-timeOffRemoved:
			s.logAuditEntry(ctx, models.AuditActionTimeOffRemove, payload)

		case payload := <-leadCaptured:
			s.logAuditEntry(ctx, models.AuditActionLeadCapture, payload)

		case payload := <-apiKeyCreate:
			s.logAuditEntry(ctx, models.AuditActionAPIKeyCreate, payload)

		case payload := <-apiKeyRevoke:
			s.logAuditEntry(ctx, models.AuditActionAPIKeyRevoke, payload)
		}
	}
}

// logAuditEntry creates an audit log entry from an event payload.
func (s *Service) logAuditEntry(ctx context.Context, action models.AuditAction, payload events.Payload) {
	entry := &models.AuditLog{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Action:    action,
		Details:   make(map[string]any),
		CreatedAt: time.Now(),
	}

	if accountID, ok := payload["account_id"].(string); ok && accountID != "" {
		entry.AccountID = &accountID
	}
	if userID, ok := payload["user_id"].(string); ok && userID != "" {
		entry.UserID = &userID
	}
	if userEmail, ok := payload["user_email"].(string); ok {
		entry.UserEmail = userEmail
	}
	if resourceType, ok := payload["resource_type"].(string); ok {
		entry.ResourceType = resourceType
	}
	if resourceID, ok := payload["resource_id"].(string); ok {
		entry.ResourceID = resourceID
	}
	if ipAddress, ok := payload["ip_address"].(string); ok {
		entry.IPAddress = ipAddress
	}
	if userAgent, ok := payload["user_agent"].(string); ok {
		entry.UserAgent = userAgent
	}

	for k, v := range payload {
		switch k {
		case "account_id", "user_id", "user_email", "resource_type", "resource_id", "ip_address", "user_agent":
			// Already extracted
		default:
			entry.Details[k] = v
		}
	}

	if err := s.Log(ctx, entry); err != nil {
		s.logger.Error().Err(err).
			Str("action", string(action)).
			Msg("failed to log audit entry")
	}
}

// Log records an audit entry directly (for non-event-bus actions).
func (s *Service) Log(ctx context.Context, entry *models.AuditLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if entry.Details == nil {
		entry.Details = make(map[string]any)
	}

	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return err
	}

	s.logger.Debug().
		Str("action", string(entry.Action)).
		Str("id", entry.ID).
		Msg("audit entry logged")

	return nil
}

// QueryFilters defines filters for querying audit logs.
type QueryFilters struct {
	AccountID *string
	UserID    *string
	Action    *models.AuditAction
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int
	Offset    int
}

// Query retrieves audit logs with filters.
func (s *Service) Query(ctx context.Context, filters QueryFilters) ([]models.AuditLog, int64, error) {
	var logs []models.AuditLog
	var total int64

	query := s.db.WithContext(ctx).Model(&models.AuditLog{})

	if filters.AccountID != nil {
		query = query.Where("account_id = ?", *filters.AccountID)
	}
	if filters.UserID != nil {
		query = query.Where("user_id = ?", *filters.UserID)
	}
	if filters.Action != nil {
		query = query.Where("action = ?", *filters.Action)
	}
	if filters.StartTime != nil {
		query = query.Where("timestamp >= ?", *filters.StartTime)
	}
	if filters.EndTime != nil {
		query = query.Where("timestamp <= ?", *filters.EndTime)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	} else {
		query = query.Limit(100)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}

	if err := query.Order("timestamp DESC").Find(&logs).Error; err != nil {
		return nil, 0, err
	}

	return logs, total, nil
}
