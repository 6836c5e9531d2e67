package notifications

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/fieldworks/fixdesk/internal/events"
	"github.com/fieldworks/fixdesk/internal/models"
)

func openNotificationTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Customer{},
		&models.Technician{},
		&models.Job{},
		&models.Notification{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedScheduledJob(t *testing.T, db *gorm.DB, accountID string, startIn time.Duration, customerEmail string) *models.Job {
	t.Helper()

	customer := &models.Customer{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Name:      "Pat Doe",
		Email:     customerEmail,
	}
	if err := db.Create(customer).Error; err != nil {
		t.Fatalf("create customer: %v", err)
	}

	tech := &models.Technician{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Name:      "Sam",
		Active:    true,
	}
	if err := db.Create(tech).Error; err != nil {
		t.Fatalf("create technician: %v", err)
	}

	start := time.Now().Add(startIn)
	end := start.Add(time.Hour)
	job := &models.Job{
		ID:           uuid.NewString(),
		AccountID:    accountID,
		CustomerID:   &customer.ID,
		TechnicianID: &tech.ID,
		Title:        "Boiler service",
		StartAt:      &start,
		EndAt:        &end,
		Status:       models.JobStatusScheduled,
	}
	if err := db.Create(job).Error; err != nil {
		t.Fatalf("create job: %v", err)
	}
	return job
}

func TestProcessRemindersCreatesOnePerJob(t *testing.T) {
	db := openNotificationTestDB(t)
	accountID := uuid.NewString()
	job := seedScheduledJob(t, db, accountID, 2*time.Hour, "pat@example.com")

	svc := NewService(db, events.NewBus(), Config{ReminderLeadTime: 24 * time.Hour}, zerolog.Nop())

	svc.ProcessReminders(t.Context())
	svc.ProcessReminders(t.Context())

	var reminders []models.Notification
	if err := db.Where("reference_id = ? AND notification_type = ?",
		job.ID, models.NotificationTypeBookingReminder).Find(&reminders).Error; err != nil {
		t.Fatalf("load reminders: %v", err)
	}
	if len(reminders) != 1 {
		t.Fatalf("expected exactly 1 reminder after two passes, got %d", len(reminders))
	}

	reminder := reminders[0]
	if reminder.Recipient != "pat@example.com" {
		t.Fatalf("recipient = %q", reminder.Recipient)
	}
	// SMTP is unconfigured, so delivery fails but the record is kept.
	if reminder.Status != models.NotificationStatusFailed {
		t.Fatalf("status = %s, want failed without SMTP", reminder.Status)
	}
}

func TestProcessRemindersSkipsDistantAndUnscheduledJobs(t *testing.T) {
	db := openNotificationTestDB(t)
	accountID := uuid.NewString()

	// Too far out to remind yet.
	seedScheduledJob(t, db, accountID, 72*time.Hour, "far@example.com")

	// Cancelled jobs never remind.
	cancelled := seedScheduledJob(t, db, accountID, 2*time.Hour, "cancelled@example.com")
	if err := db.Model(cancelled).Update("status", models.JobStatusCancelled).Error; err != nil {
		t.Fatalf("cancel job: %v", err)
	}

	svc := NewService(db, events.NewBus(), Config{ReminderLeadTime: 24 * time.Hour}, zerolog.Nop())
	svc.ProcessReminders(t.Context())

	var count int64
	if err := db.Model(&models.Notification{}).Count(&count).Error; err != nil {
		t.Fatalf("count notifications: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no reminders, got %d", count)
	}
}

func TestSendInAppMarksSent(t *testing.T) {
	db := openNotificationTestDB(t)
	svc := NewService(db, events.NewBus(), Config{}, zerolog.Nop())

	userID := uuid.NewString()
	notification := &models.Notification{
		AccountID:        uuid.NewString(),
		UserID:           &userID,
		NotificationType: models.NotificationTypeBookingConfirmed,
		Channel:          models.NotificationChannelInApp,
		Subject:          "Booking confirmed",
		Body:             "A job was booked.",
	}

	if err := svc.Send(t.Context(), notification); err != nil {
		t.Fatalf("send: %v", err)
	}
	if notification.Status != models.NotificationStatusSent {
		t.Fatalf("status = %s, want sent", notification.Status)
	}
	if notification.SentAt == nil {
		t.Fatalf("expected sent_at to be set")
	}
}

func TestMarkAsReadAndUnreadCount(t *testing.T) {
	db := openNotificationTestDB(t)
	svc := NewService(db, events.NewBus(), Config{}, zerolog.Nop())
	userID := uuid.NewString()

	var ids []string
	for i := 0; i < 3; i++ {
		n := &models.Notification{
			AccountID:        uuid.NewString(),
			UserID:           &userID,
			NotificationType: models.NotificationTypeBookingConfirmed,
			Channel:          models.NotificationChannelInApp,
			Body:             "hello",
		}
		if err := svc.Send(t.Context(), n); err != nil {
			t.Fatalf("send: %v", err)
		}
		ids = append(ids, n.ID)
	}

	unread, err := svc.UnreadCount(t.Context(), userID)
	if err != nil {
		t.Fatalf("unread count: %v", err)
	}
	if unread != 3 {
		t.Fatalf("unread = %d, want 3", unread)
	}

	if err := svc.MarkAsRead(t.Context(), ids[0], userID); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if err := svc.MarkAsRead(t.Context(), ids[0], uuid.NewString()); err == nil {
		t.Fatal("expected error marking another user's notification")
	}

	unread, err = svc.UnreadCount(t.Context(), userID)
	if err != nil {
		t.Fatalf("unread count: %v", err)
	}
	if unread != 2 {
		t.Fatalf("unread = %d, want 2", unread)
	}

	if err := svc.MarkAllAsRead(t.Context(), userID); err != nil {
		t.Fatalf("mark all read: %v", err)
	}
	unread, _ = svc.UnreadCount(t.Context(), userID)
	if unread != 0 {
		t.Fatalf("unread = %d, want 0 after read-all", unread)
	}

	items, total, err := svc.ListForUser(t.Context(), userID, false, 10, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 3 || len(items) != 3 {
		t.Fatalf("list returned %d/%d, want 3/3", len(items), total)
	}
}
