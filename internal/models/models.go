/*
Copyright (C) 2026 Fieldworks

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// RoleName enumerates the RBAC roles.
type RoleName string

const (
	RoleAdmin      RoleName = "admin"
	RoleDispatcher RoleName = "dispatcher"
	RoleTech       RoleName = "tech"
)

// Account is the owner/tenant under which all records are scoped.
// No data is visible across accounts.
type Account struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex" json:"name"`
	Timezone  string    `gorm:"type:varchar(32)" json:"timezone"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// User represents an authenticated account member.
type User struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	AccountID string    `gorm:"type:uuid;index" json:"account_id"`
	Email     string    `gorm:"uniqueIndex" json:"email"`
	Password  string    `json:"-"`
	Role      RoleName  `gorm:"type:varchar(16)" json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Customer is a service customer record.
type Customer struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	AccountID string    `gorm:"type:uuid;index" json:"account_id"`
	Name      string    `gorm:"index" json:"name"`
	Email     string    `gorm:"index" json:"email,omitempty"`
	Phone     string    `gorm:"type:varchar(32)" json:"phone,omitempty"`
	Address   string    `gorm:"type:text" json:"address,omitempty"`
	Notes     string    `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Technician is a bookable field technician. The weekly roster and the
// time-off list live inside the record; time-off entries have no
// independent lifecycle.
type Technician struct {
	ID        string `gorm:"type:uuid;primaryKey" json:"id"`
	AccountID string `gorm:"type:uuid;index:idx_technicians_account_name,unique" json:"account_id"`
	Name      string `gorm:"index:idx_technicians_account_name,unique" json:"name"`
	Email     string `json:"email,omitempty"`
	Phone     string `gorm:"type:varchar(32)" json:"phone,omitempty"`
	Active    bool   `gorm:"not null;default:true" json:"active"`

	WeeklyRoster WeeklyRoster   `gorm:"type:jsonb;serializer:json" json:"weekly_roster,omitempty"`
	TimeOff      []TimeOffEntry `gorm:"type:jsonb;serializer:json" json:"time_off,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// JobStatus tracks the workflow state of a job.
type JobStatus string

const (
	JobStatusOpen      JobStatus = "open"
	JobStatusScheduled JobStatus = "scheduled"
	JobStatusCompleted JobStatus = "completed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Job is a repair job, optionally bound to a technician and a time window.
// StartAt and EndAt are both set or both unset; when set, EndAt > StartAt
// and the window was accepted by the conflict detector before persisting.
type Job struct {
	ID         string  `gorm:"type:uuid;primaryKey" json:"id"`
	AccountID  string  `gorm:"type:uuid;index" json:"account_id"`
	CustomerID *string `gorm:"type:uuid;index" json:"customer_id,omitempty"`

	// TechnicianID is resolved from the technician's name at booking time
	// (exact, case-sensitive match within the account) and stored as an
	// owned-id reference so renames do not break existing bookings.
	TechnicianID *string `gorm:"type:uuid;index:idx_jobs_technician_window" json:"technician_id,omitempty"`

	Title       string `gorm:"index" json:"title"`
	Description string `gorm:"type:text" json:"description,omitempty"`

	StartAt *time.Time `gorm:"index:idx_jobs_technician_window" json:"start_at,omitempty"`
	EndAt   *time.Time `gorm:"index:idx_jobs_technician_window" json:"end_at,omitempty"`

	Status JobStatus `gorm:"type:varchar(16);default:'open'" json:"status"`
	Notes  string    `gorm:"type:text" json:"notes,omitempty"`

	Customer   *Customer   `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	Technician *Technician `gorm:"foreignKey:TechnicianID" json:"technician,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Scheduled reports whether the job occupies a technician time window.
func (j *Job) Scheduled() bool {
	return j.TechnicianID != nil && j.StartAt != nil && j.EndAt != nil
}

// InvoiceStatus tracks invoice workflow state.
type InvoiceStatus string

const (
	InvoiceDraft InvoiceStatus = "draft"
	InvoiceSent  InvoiceStatus = "sent"
	InvoicePaid  InvoiceStatus = "paid"
)

// Invoice is a billing record attached to a job and/or customer.
type Invoice struct {
	ID         string  `gorm:"type:uuid;primaryKey" json:"id"`
	AccountID  string  `gorm:"type:uuid;index" json:"account_id"`
	JobID      *string `gorm:"type:uuid;index" json:"job_id,omitempty"`
	CustomerID *string `gorm:"type:uuid;index" json:"customer_id,omitempty"`

	Number      string        `gorm:"index" json:"number"`
	AmountCents int64         `json:"amount_cents"`
	Status      InvoiceStatus `gorm:"type:varchar(16);default:'draft'" json:"status"`
	IssuedAt    *time.Time    `json:"issued_at,omitempty"`
	DueAt       *time.Time    `json:"due_at,omitempty"`

	Job      *Job      `gorm:"foreignKey:JobID" json:"job,omitempty"`
	Customer *Customer `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Lead is a marketing-site capture, written without authentication.
type Lead struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	AccountID string    `gorm:"type:uuid;index" json:"account_id"`
	Name      string    `json:"name"`
	Email     string    `gorm:"index" json:"email,omitempty"`
	Phone     string    `gorm:"type:varchar(32)" json:"phone,omitempty"`
	Message   string    `gorm:"type:text" json:"message,omitempty"`
	Source    string    `gorm:"type:varchar(64)" json:"source,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
