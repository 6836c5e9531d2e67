package audit

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/fieldworks/fixdesk/internal/events"
	"github.com/fieldworks/fixdesk/internal/models"
)

func openAuditTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.AuditLog{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestLogFillsDefaults(t *testing.T) {
	db := openAuditTestDB(t)
	svc := NewService(db, events.NewBus(), zerolog.Nop())

	entry := &models.AuditLog{Action: models.AuditActionBookingCreate}
	if err := svc.Log(context.Background(), entry); err != nil {
		t.Fatalf("log: %v", err)
	}
	if entry.ID == "" || entry.Timestamp.IsZero() {
		t.Fatalf("expected generated id and timestamp, got %+v", entry)
	}
}

func TestLogAuditEntryExtractsPayload(t *testing.T) {
	db := openAuditTestDB(t)
	svc := NewService(db, events.NewBus(), zerolog.Nop())

	svc.logAuditEntry(context.Background(), models.AuditActionBookingRejected, events.Payload{
		"account_id":    "acct-1",
		"user_id":       "user-1",
		"user_email":    "dispatcher@example.com",
		"resource_type": "job",
		"resource_id":   "job-1",
		"reason":        "job_overlap",
	})

	var stored models.AuditLog
	if err := db.First(&stored).Error; err != nil {
		t.Fatalf("read entry: %v", err)
	}
	if stored.Action != models.AuditActionBookingRejected {
		t.Fatalf("action = %s", stored.Action)
	}
	if stored.AccountID == nil || *stored.AccountID != "acct-1" {
		t.Fatalf("account_id not extracted: %+v", stored.AccountID)
	}
	if stored.ResourceID != "job-1" || stored.ResourceType != "job" {
		t.Fatalf("resource not extracted: %+v", stored)
	}
	if stored.Details["reason"] != "job_overlap" {
		t.Fatalf("expected leftover payload in details, got %v", stored.Details)
	}
	if _, ok := stored.Details["user_email"]; ok {
		t.Fatalf("extracted field should not repeat in details")
	}
}

func TestQueryFilters(t *testing.T) {
	db := openAuditTestDB(t)
	svc := NewService(db, events.NewBus(), zerolog.Nop())
	ctx := context.Background()

	acctA, acctB := "acct-a", "acct-b"
	base := time.Now().Add(-time.Hour)
	for i, entry := range []*models.AuditLog{
		{AccountID: &acctA, Action: models.AuditActionBookingCreate},
		{AccountID: &acctA, Action: models.AuditActionBookingDelete},
		{AccountID: &acctB, Action: models.AuditActionBookingCreate},
	} {
		entry.Timestamp = base.Add(time.Duration(i) * time.Minute)
		if err := svc.Log(ctx, entry); err != nil {
			t.Fatalf("log: %v", err)
		}
	}

	action := models.AuditActionBookingCreate
	logs, total, err := svc.Query(ctx, QueryFilters{AccountID: &acctA, Action: &action})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if total != 1 || len(logs) != 1 {
		t.Fatalf("expected 1 entry, got total=%d len=%d", total, len(logs))
	}
	if logs[0].AccountID == nil || *logs[0].AccountID != acctA {
		t.Fatalf("wrong account in result")
	}
}
