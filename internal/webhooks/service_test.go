package webhooks

import (
	"crypto/hmac"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/fieldworks/fixdesk/internal/events"
	"github.com/fieldworks/fixdesk/internal/models"
)

func openWebhookTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.WebhookTarget{}, &models.WebhookLog{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestTargetHandlesEvent(t *testing.T) {
	svc := NewService(nil, events.NewBus(), zerolog.Nop())

	cases := []struct {
		name   string
		events string
		event  string
		want   bool
	}{
		{"empty subscription handles everything", "", "booking.created", true},
		{"listed event", "booking.created,booking.rejected", "booking.rejected", true},
		{"unlisted event", "booking.created", "booking.deleted", false},
		{"whitespace tolerated", "booking.created, booking.deleted", "booking.deleted", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			target := models.WebhookTarget{Events: tc.events}
			if got := svc.targetHandlesEvent(target, tc.event); got != tc.want {
				t.Fatalf("targetHandlesEvent(%q, %q) = %v, want %v", tc.events, tc.event, got, tc.want)
			}
		})
	}
}

func TestSignPayload(t *testing.T) {
	body := []byte(`{"event":"booking.created"}`)
	sig := SignPayload(body, "hunter2")

	if sig[:7] != "sha256=" {
		t.Fatalf("signature missing prefix: %q", sig)
	}
	// Same input must sign identically; a different secret must not.
	if sig != SignPayload(body, "hunter2") {
		t.Fatalf("signature not deterministic")
	}
	if hmac.Equal([]byte(sig), []byte(SignPayload(body, "other"))) {
		t.Fatalf("different secrets produced the same signature")
	}
}

func TestDeliverPostsSignedPayload(t *testing.T) {
	db := openWebhookTestDB(t)

	received := make(chan *http.Request, 1)
	bodies := make(chan []byte, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received <- r
		bodies <- body
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	svc := NewService(db, events.NewBus(), zerolog.Nop())
	target := models.WebhookTarget{
		ID:        uuid.NewString(),
		AccountID: uuid.NewString(),
		URL:       ts.URL,
		Secret:    "hunter2",
		Active:    true,
	}

	svc.deliver(t.Context(), target, "booking.created", target.AccountID, events.Payload{
		"account_id": target.AccountID,
		"job_id":     "job-1",
	})

	select {
	case req := <-received:
		if req.Header.Get("X-FixDesk-Event") != "booking.created" {
			t.Fatalf("event header = %q", req.Header.Get("X-FixDesk-Event"))
		}
		body := <-bodies
		if got := req.Header.Get("X-FixDesk-Signature"); got != SignPayload(body, "hunter2") {
			t.Fatalf("signature mismatch: %q", got)
		}
		var payload DeliveryPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if payload.Event != "booking.created" || payload.AccountID != target.AccountID {
			t.Fatalf("unexpected payload: %+v", payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("webhook not delivered")
	}

	var logCount int64
	if err := db.Model(&models.WebhookLog{}).Where("target_id = ?", target.ID).Count(&logCount).Error; err != nil {
		t.Fatalf("count logs: %v", err)
	}
	if logCount != 1 {
		t.Fatalf("expected 1 delivery log, got %d", logCount)
	}
}

func TestDispatchSkipsInactiveAndUnsubscribedTargets(t *testing.T) {
	db := openWebhookTestDB(t)
	accountID := uuid.NewString()

	hits := make(chan string, 4)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits <- r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	targets := []models.WebhookTarget{
		{ID: uuid.NewString(), AccountID: accountID, URL: ts.URL + "/active", Active: true},
		{ID: uuid.NewString(), AccountID: accountID, URL: ts.URL + "/inactive", Active: false},
		{ID: uuid.NewString(), AccountID: accountID, URL: ts.URL + "/other-event", Events: "booking.deleted", Active: true},
		{ID: uuid.NewString(), AccountID: uuid.NewString(), URL: ts.URL + "/other-account", Active: true},
	}
	for i := range targets {
		if err := db.Create(&targets[i]).Error; err != nil {
			t.Fatalf("create target: %v", err)
		}
	}

	svc := NewService(db, events.NewBus(), zerolog.Nop())
	svc.dispatch(t.Context(), events.EventBookingCreated, events.Payload{"account_id": accountID})

	select {
	case path := <-hits:
		if path != "/active" {
			t.Fatalf("unexpected delivery to %s", path)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("active target never hit")
	}

	// No further deliveries should arrive.
	select {
	case path := <-hits:
		t.Fatalf("unexpected extra delivery to %s", path)
	case <-time.After(200 * time.Millisecond):
	}
}
