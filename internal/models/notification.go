/*
Copyright (C) 2026 Fieldworks

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// NotificationType categorizes what a notification is about.
type NotificationType string

const (
	NotificationTypeBookingConfirmed NotificationType = "booking_confirmed"
	NotificationTypeBookingCancelled NotificationType = "booking_cancelled"
	NotificationTypeBookingReminder  NotificationType = "booking_reminder"
)

// NotificationChannel is the delivery mechanism.
type NotificationChannel string

const (
	NotificationChannelEmail NotificationChannel = "email"
	NotificationChannelInApp NotificationChannel = "in_app"
)

// NotificationStatus tracks delivery state.
type NotificationStatus string

const (
	NotificationStatusPending NotificationStatus = "pending"
	NotificationStatusSent    NotificationStatus = "sent"
	NotificationStatusFailed  NotificationStatus = "failed"
	NotificationStatusRead    NotificationStatus = "read"
)

// Notification is a message for a customer or account user. Email
// notifications go out via SMTP; in-app ones are read from the API.
type Notification struct {
	ID         string  `gorm:"type:uuid;primaryKey" json:"id"`
	AccountID  string  `gorm:"type:uuid;index;not null" json:"account_id"`
	UserID     *string `gorm:"type:uuid;index:idx_notifications_user" json:"user_id,omitempty"`
	CustomerID *string `gorm:"type:uuid;index" json:"customer_id,omitempty"`

	NotificationType NotificationType    `gorm:"type:varchar(64);not null" json:"notification_type"`
	Channel          NotificationChannel `gorm:"type:varchar(32);not null" json:"channel"`
	Recipient        string              `gorm:"type:varchar(255)" json:"recipient,omitempty"` // email address for email channel
	Subject          string              `gorm:"type:varchar(255)" json:"subject,omitempty"`
	Body             string              `gorm:"type:text;not null" json:"body"`
	Status           NotificationStatus  `gorm:"type:varchar(32);not null;default:'pending';index:idx_notifications_status" json:"status"`
	SentAt           *time.Time          `json:"sent_at,omitempty"`
	ReadAt           *time.Time          `json:"read_at,omitempty"`
	Error            string              `gorm:"type:text" json:"error,omitempty"`

	// Reference to the related entity (job, technician, ...)
	ReferenceType string `gorm:"type:varchar(64);index:idx_notifications_ref" json:"reference_type,omitempty"`
	ReferenceID   string `gorm:"type:uuid;index:idx_notifications_ref" json:"reference_id,omitempty"`

	Metadata map[string]any `gorm:"type:jsonb;serializer:json" json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the table name for GORM.
func (Notification) TableName() string {
	return "notifications"
}
