/*
Copyright (C) 2026 Fieldworks

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/fieldworks/fixdesk/internal/events"
	"github.com/fieldworks/fixdesk/internal/models"
)

// DeliveryPayload is the body posted to webhook endpoints.
type DeliveryPayload struct {
	Event     string         `json:"event"`
	Timestamp time.Time      `json:"timestamp"`
	AccountID string         `json:"account_id"`
	Data      map[string]any `json:"data,omitempty"`
}

// Service delivers booking events to account webhook targets.
type Service struct {
	db     *gorm.DB
	bus    *events.Bus
	logger zerolog.Logger
	client *http.Client
}

// NewService creates a new webhook delivery service.
func NewService(db *gorm.DB, bus *events.Bus, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		bus:    bus,
		logger: logger.With().Str("component", "webhooks").Logger(),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Start begins listening for events to deliver.
func (s *Service) Start(ctx context.Context) {
	s.logger.Info().Msg("webhook service starting")

	bookingCreated := s.bus.Subscribe(events.EventBookingCreated)
	bookingUpdated := s.bus.Subscribe(events.EventBookingUpdated)
	bookingDeleted := s.bus.Subscribe(events.EventBookingDeleted)
	bookingRejected := s.bus.Subscribe(events.EventBookingRejected)
	timeOffAdded := s.bus.Subscribe(events.EventTimeOffAdded)
	timeOffRemoved := s.bus.Subscribe(events.EventTimeOffRemoved)

	defer func() {
		s.bus.Unsubscribe(events.EventBookingCreated, bookingCreated)
		s.bus.Unsubscribe(events.EventBookingUpdated, bookingUpdated)
		s.bus.Unsubscribe(events.EventBookingDeleted, bookingDeleted)
		s.bus.Unsubscribe(events.EventBookingRejected, bookingRejected)
		s.bus.Unsubscribe(events.EventTimeOffAdded, timeOffAdded)
		s.bus.Unsubscribe(events.EventTimeOffRemoved, timeOffRemoved)
	}()

	s.logger.Info().Msg("webhook service started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("webhook service stopping")
			return

		case payload := <-bookingCreated:
			s.dispatch(ctx, events.EventBookingCreated, payload)

		case payload := <-bookingUpdated:
			s.dispatch(ctx, events.EventBookingUpdated, payload)

		case payload := <-bookingDeleted:
			s.dispatch(ctx, events.EventBookingDeleted, payload)

		case payload := <-bookingRejected:
			s.dispatch(ctx, events.EventBookingRejected, payload)

		case payload := <-timeOffAdded:
			s.dispatch(ctx, events.EventTimeOffAdded, payload)

		case payload := <-timeOffRemoved:
			s.dispatch(ctx, events.EventTimeOffRemoved, payload)
		}
	}
}

// dispatch fans an event out to every matching target of its account.
func (s *Service) dispatch(ctx context.Context, eventType events.EventType, payload events.Payload) {
	accountID, ok := payload["account_id"].(string)
	if !ok || accountID == "" {
		return
	}

	var targets []models.WebhookTarget
	if err := s.db.Where("account_id = ? AND active = ?", accountID, true).Find(&targets).Error; err != nil {
		s.logger.Error().Err(err).Str("account", accountID).Msg("failed to fetch webhook targets")
		return
	}

	for _, target := range targets {
		if !s.targetHandlesEvent(target, string(eventType)) {
			continue
		}
		go s.deliver(ctx, target, string(eventType), accountID, payload)
	}
}

// targetHandlesEvent checks the target's event subscription list.
func (s *Service) targetHandlesEvent(target models.WebhookTarget, eventType string) bool {
	if target.Events == "" {
		return true // Default: handle all events
	}
	for _, e := range strings.Split(target.Events, ",") {
		if strings.TrimSpace(e) == eventType {
			return true
		}
	}
	return false
}

// deliver posts one signed delivery to a target and logs the attempt.
func (s *Service) deliver(ctx context.Context, target models.WebhookTarget, eventType, accountID string, data events.Payload) {
	payload := DeliveryPayload{
		Event:     eventType,
		Timestamp: time.Now().UTC(),
		AccountID: accountID,
		Data:      data,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error().Err(err).Str("target", target.ID).Msg("failed to marshal webhook payload")
		return
	}

	started := time.Now()
	statusCode, err := s.post(ctx, target, eventType, body)
	duration := int(time.Since(started).Milliseconds())

	errMsg := ""
	if err != nil {
		errMsg = err.Error()
		s.logger.Error().Err(err).Str("target", target.ID).Str("url", target.URL).Msg("webhook delivery failed")
	} else if statusCode < 200 || statusCode >= 300 {
		s.logger.Warn().Str("target", target.ID).Str("event", eventType).Int("status", statusCode).Msg("webhook returned error status")
	} else {
		s.logger.Debug().Str("target", target.ID).Str("event", eventType).Int("status", statusCode).Msg("webhook delivered")
	}

	s.logDelivery(target, eventType, statusCode, errMsg, duration)
}

// post sends the signed HTTP request.
func (s *Service) post(ctx context.Context, target models.WebhookTarget, eventType string, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.URL, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "FixDesk-Webhook/1.0")
	req.Header.Set("X-FixDesk-Event", eventType)
	req.Header.Set("X-FixDesk-Timestamp", fmt.Sprintf("%d", time.Now().Unix()))

	if target.Secret != "" {
		req.Header.Set("X-FixDesk-Signature", SignPayload(body, target.Secret))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	return resp.StatusCode, nil
}

// SignPayload creates an HMAC-SHA256 signature for a delivery body.
func SignPayload(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return "sha256=" + hex.EncodeToString(h.Sum(nil))
}

// logDelivery records a delivery attempt.
func (s *Service) logDelivery(target models.WebhookTarget, eventType string, statusCode int, errorMsg string, duration int) {
	entry := &models.WebhookLog{
		ID:         uuid.NewString(),
		TargetID:   target.ID,
		Event:      eventType,
		StatusCode: statusCode,
		Error:      errorMsg,
		Duration:   duration,
	}

	if err := s.db.Create(entry).Error; err != nil {
		s.logger.Error().Err(err).Msg("failed to log webhook delivery")
	}
}

// TestTarget sends a test payload so an operator can verify a target.
func (s *Service) TestTarget(ctx context.Context, target *models.WebhookTarget) error {
	payload := DeliveryPayload{
		Event:     "test",
		Timestamp: time.Now().UTC(),
		AccountID: target.AccountID,
		Data: map[string]any{
			"message": "test webhook delivery",
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	statusCode, err := s.post(ctx, *target, "test", body)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if statusCode < 200 || statusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", statusCode)
	}
	return nil
}
