/*
Copyright (C) 2026 Fieldworks

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// AuditAction defines the type of audited action.
type AuditAction string

// Audit action constants for sensitive operations.
const (
	AuditActionBookingCreate   AuditAction = "booking.create"
	AuditActionBookingUpdate   AuditAction = "booking.update"
	AuditActionBookingDelete   AuditAction = "booking.delete"
	AuditActionBookingRejected AuditAction = "booking.rejected"
	AuditActionRosterUpdate    AuditAction = "technician.roster_update"
	AuditActionTimeOffAdd      AuditAction = "technician.timeoff_add"
	AuditActionTimeOffRemove   AuditAction = "technician.timeoff_remove"
	AuditActionTechnicianAdd   AuditAction = "technician.create"
	AuditActionTechnicianEdit  AuditAction = "technician.update"
	AuditActionAPIKeyCreate    AuditAction = "apikey.create"
	AuditActionAPIKeyRevoke    AuditAction = "apikey.revoke"
	AuditActionLeadCapture     AuditAction = "lead.capture"
)

// AuditLog records sensitive operations for review.
type AuditLog struct {
	ID           string         `gorm:"type:uuid;primaryKey"`
	Timestamp    time.Time      `gorm:"index:idx_audit_timestamp;not null"`
	AccountID    *string        `gorm:"type:uuid;index:idx_audit_account"`
	UserID       *string        `gorm:"type:uuid;index:idx_audit_user"` // NULL for system actions
	UserEmail    string         `gorm:"type:varchar(255)"`              // Denormalized for readability
	Action       AuditAction    `gorm:"type:varchar(64);index:idx_audit_action;not null"`
	ResourceType string         `gorm:"type:varchar(64)"` // "job", "technician", "apikey"
	ResourceID   string         `gorm:"type:uuid"`
	Details      map[string]any `gorm:"type:jsonb;serializer:json"`
	IPAddress    string         `gorm:"type:varchar(45)"`
	UserAgent    string         `gorm:"type:varchar(512)"`
	CreatedAt    time.Time
}

// TableName returns the table name for GORM.
func (AuditLog) TableName() string {
	return "audit_logs"
}
