/*
Copyright (C) 2026 Fieldworks

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package notifications

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/fieldworks/fixdesk/internal/events"
	"github.com/fieldworks/fixdesk/internal/models"
)

// Config holds notification service configuration.
type Config struct {
	// SMTP settings
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string

	// Reminder settings
	ReminderLeadTime      time.Duration
	ReminderCheckInterval time.Duration
}

// Service sends customer booking emails and in-app notices to staff.
type Service struct {
	db     *gorm.DB
	bus    *events.Bus
	config Config
	logger zerolog.Logger
}

// NewService creates a new notification service.
func NewService(db *gorm.DB, bus *events.Bus, config Config, logger zerolog.Logger) *Service {
	if config.ReminderLeadTime <= 0 {
		config.ReminderLeadTime = 24 * time.Hour
	}
	if config.ReminderCheckInterval <= 0 {
		config.ReminderCheckInterval = time.Minute
	}
	return &Service{
		db:     db,
		bus:    bus,
		config: config,
		logger: logger.With().Str("component", "notifications").Logger(),
	}
}

// Start subscribes to booking events and runs the reminder scheduler.
func (s *Service) Start(ctx context.Context) {
	s.logger.Info().Msg("notification service starting")

	bookingCreated := s.bus.Subscribe(events.EventBookingCreated)
	bookingDeleted := s.bus.Subscribe(events.EventBookingDeleted)

	defer func() {
		s.bus.Unsubscribe(events.EventBookingCreated, bookingCreated)
		s.bus.Unsubscribe(events.EventBookingDeleted, bookingDeleted)
	}()

	reminderTicker := time.NewTicker(s.config.ReminderCheckInterval)
	defer reminderTicker.Stop()

	s.logger.Info().Msg("notification service started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("notification service stopping")
			return

		case payload := <-bookingCreated:
			s.handleBookingCreated(ctx, payload)

		case payload := <-bookingDeleted:
			s.handleBookingDeleted(ctx, payload)

		case <-reminderTicker.C:
			s.ProcessReminders(ctx)
		}
	}
}

// handleBookingCreated emails the customer a confirmation when the new
// job has a customer with an address and a scheduled window.
func (s *Service) handleBookingCreated(ctx context.Context, payload events.Payload) {
	jobID, _ := payload["resource_id"].(string)
	if jobID == "" {
		return
	}

	var job models.Job
	if err := s.db.Preload("Customer").Preload("Technician").First(&job, "id = ?", jobID).Error; err != nil {
		return
	}
	if !job.Scheduled() || job.Customer == nil || job.Customer.Email == "" {
		return
	}

	techName := ""
	if job.Technician != nil {
		techName = job.Technician.Name
	}

	body := fmt.Sprintf("Your appointment %q is confirmed for %s.",
		job.Title, job.StartAt.Format("Monday, January 2 at 3:04 PM"))
	if techName != "" {
		body += fmt.Sprintf("\n\nTechnician: %s", techName)
	}

	s.Send(ctx, &models.Notification{
		AccountID:        job.AccountID,
		CustomerID:       job.CustomerID,
		NotificationType: models.NotificationTypeBookingConfirmed,
		Channel:          models.NotificationChannelEmail,
		Recipient:        job.Customer.Email,
		Subject:          fmt.Sprintf("Appointment confirmed: %s", job.Title),
		Body:             body,
		ReferenceType:    "job",
		ReferenceID:      job.ID,
		Metadata:         map[string]any{"technician": techName, "start_at": job.StartAt},
	})
}

// handleBookingDeleted emails the customer a cancellation notice. The
// job row is gone by the time this runs, so everything needed comes
// from the event payload.
func (s *Service) handleBookingDeleted(ctx context.Context, payload events.Payload) {
	accountID, _ := payload["account_id"].(string)
	jobID, _ := payload["resource_id"].(string)
	customerID, _ := payload["customer_id"].(string)
	title, _ := payload["title"].(string)
	if accountID == "" || customerID == "" {
		return
	}

	var customer models.Customer
	if err := s.db.First(&customer, "id = ? AND account_id = ?", customerID, accountID).Error; err != nil {
		return
	}
	if customer.Email == "" {
		return
	}

	s.Send(ctx, &models.Notification{
		AccountID:        accountID,
		CustomerID:       &customer.ID,
		NotificationType: models.NotificationTypeBookingCancelled,
		Channel:          models.NotificationChannelEmail,
		Recipient:        customer.Email,
		Subject:          fmt.Sprintf("Appointment cancelled: %s", title),
		Body:             fmt.Sprintf("Your appointment %q has been cancelled. Contact us to reschedule.", title),
		ReferenceType:    "job",
		ReferenceID:      jobID,
	})
}

// ProcessReminders emails customers whose scheduled jobs start within
// the configured lead time. A reminder that already exists for a job
// is not sent again.
func (s *Service) ProcessReminders(ctx context.Context) {
	now := time.Now()

	var jobs []models.Job
	if err := s.db.WithContext(ctx).
		Where("status = ?", models.JobStatusScheduled).
		Where("start_at > ? AND start_at < ?", now, now.Add(s.config.ReminderLeadTime)).
		Preload("Customer").
		Preload("Technician").
		Find(&jobs).Error; err != nil {
		s.logger.Error().Err(err).Msg("failed to scan jobs for reminders")
		return
	}

	for _, job := range jobs {
		if job.Customer == nil || job.Customer.Email == "" {
			continue
		}

		var existing int64
		s.db.Model(&models.Notification{}).
			Where("reference_type = ? AND reference_id = ? AND notification_type = ?",
				"job", job.ID, models.NotificationTypeBookingReminder).
			Count(&existing)
		if existing > 0 {
			continue
		}

		techName := ""
		if job.Technician != nil {
			techName = job.Technician.Name
		}

		body := fmt.Sprintf("Reminder: your appointment %q is scheduled for %s.",
			job.Title, job.StartAt.Format("Monday, January 2 at 3:04 PM"))
		if techName != "" {
			body += fmt.Sprintf("\n\nTechnician: %s", techName)
		}

		s.Send(ctx, &models.Notification{
			AccountID:        job.AccountID,
			CustomerID:       job.CustomerID,
			NotificationType: models.NotificationTypeBookingReminder,
			Channel:          models.NotificationChannelEmail,
			Recipient:        job.Customer.Email,
			Subject:          fmt.Sprintf("Upcoming appointment: %s", job.Title),
			Body:             body,
			ReferenceType:    "job",
			ReferenceID:      job.ID,
			Metadata:         map[string]any{"technician": techName, "start_at": job.StartAt},
		})
	}
}

// Send persists the notification and delivers it on its channel.
func (s *Service) Send(ctx context.Context, notification *models.Notification) error {
	if notification.ID == "" {
		notification.ID = uuid.NewString()
	}
	if notification.Status == "" {
		notification.Status = models.NotificationStatusPending
	}

	if err := s.db.WithContext(ctx).Create(notification).Error; err != nil {
		s.logger.Error().Err(err).Str("id", notification.ID).Msg("failed to save notification")
		return err
	}

	var err error
	switch notification.Channel {
	case models.NotificationChannelEmail:
		err = s.sendEmail(notification)
	case models.NotificationChannelInApp:
		// In-app notifications are already stored, mark as sent
		notification.Status = models.NotificationStatusSent
		now := time.Now()
		notification.SentAt = &now
	default:
		err = fmt.Errorf("unknown notification channel: %s", notification.Channel)
	}

	if err != nil {
		notification.Status = models.NotificationStatusFailed
		notification.Error = err.Error()
		s.logger.Error().Err(err).
			Str("id", notification.ID).
			Str("channel", string(notification.Channel)).
			Msg("failed to send notification")
	}

	s.db.WithContext(ctx).Model(notification).Updates(map[string]any{
		"status":  notification.Status,
		"sent_at": notification.SentAt,
		"error":   notification.Error,
	})

	return err
}

// sendEmail delivers via SMTP.
func (s *Service) sendEmail(notification *models.Notification) error {
	if s.config.SMTPHost == "" {
		return fmt.Errorf("SMTP not configured")
	}
	if notification.Recipient == "" {
		return fmt.Errorf("notification has no recipient address")
	}

	from := s.config.SMTPFrom
	if s.config.SMTPFromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.SMTPFromName, s.config.SMTPFrom)
	}

	msg := strings.Builder{}
	msg.WriteString(fmt.Sprintf("From: %s\r\n", from))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", notification.Recipient))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", notification.Subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(notification.Body)

	addr := fmt.Sprintf("%s:%d", s.config.SMTPHost, s.config.SMTPPort)
	var auth smtp.Auth
	if s.config.SMTPUsername != "" {
		auth = smtp.PlainAuth("", s.config.SMTPUsername, s.config.SMTPPassword, s.config.SMTPHost)
	}

	if err := smtp.SendMail(addr, auth, s.config.SMTPFrom, []string{notification.Recipient}, []byte(msg.String())); err != nil {
		return fmt.Errorf("SMTP send failed: %w", err)
	}

	notification.Status = models.NotificationStatusSent
	now := time.Now()
	notification.SentAt = &now

	s.logger.Info().
		Str("id", notification.ID).
		Str("to", notification.Recipient).
		Str("subject", notification.Subject).
		Msg("email notification sent")

	return nil
}

// ListForUser retrieves a user's in-app notifications.
func (s *Service) ListForUser(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]models.Notification, int64, error) {
	var items []models.Notification
	var total int64

	query := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND channel = ?", userID, models.NotificationChannelInApp)
	if unreadOnly {
		query = query.Where("status != ?", models.NotificationStatusRead)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		limit = 50
	}
	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// MarkAsRead marks a single notification as read.
func (s *Service) MarkAsRead(ctx context.Context, notificationID, userID string) error {
	now := time.Now()
	result := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Updates(map[string]any{
			"status":  models.NotificationStatusRead,
			"read_at": now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("notification not found")
	}
	return nil
}

// MarkAllAsRead marks all of a user's notifications as read.
func (s *Service) MarkAllAsRead(ctx context.Context, userID string) error {
	now := time.Now()
	return s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND status != ?", userID, models.NotificationStatusRead).
		Updates(map[string]any{
			"status":  models.NotificationStatusRead,
			"read_at": now,
		}).Error
}

// UnreadCount returns how many in-app notifications remain unread.
func (s *Service) UnreadCount(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND status != ?", userID, models.NotificationStatusRead).
		Where("channel = ?", models.NotificationChannelInApp).
		Count(&count).Error
	return count, err
}
