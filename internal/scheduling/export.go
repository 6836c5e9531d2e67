/*
Copyright (C) 2026 Fieldworks

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduling

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/fieldworks/fixdesk/internal/models"
)

// ExportService renders jobs and technician schedules to exchange
// formats.
type ExportService struct {
	db        *gorm.DB
	evaluator *Evaluator
	logger    zerolog.Logger
}

// NewExportService creates an export service.
func NewExportService(db *gorm.DB, evaluator *Evaluator, logger zerolog.Logger) *ExportService {
	return &ExportService{
		db:        db,
		evaluator: evaluator,
		logger:    logger.With().Str("component", "export").Logger(),
	}
}

// ExportResult contains rendered export data.
type ExportResult struct {
	Data        []byte
	Filename    string
	ContentType string
}

// JobsToCSV exports the account's jobs in [start, end) as CSV.
func (s *ExportService) JobsToCSV(ctx context.Context, accountID string, start, end time.Time) (*ExportResult, error) {
	var jobs []models.Job
	if err := s.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Where("start_at IS NULL OR (start_at < ? AND end_at > ?)", end, start).
		Preload("Technician").
		Preload("Customer").
		Order("start_at ASC, created_at ASC").
		Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("fetch jobs: %w", err)
	}

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	header := []string{"id", "title", "status", "technician", "customer", "start_at", "end_at", "amount_due"}
	if err := writer.Write(header); err != nil {
		return nil, err
	}

	for _, job := range jobs {
		techName := ""
		if job.Technician != nil {
			techName = job.Technician.Name
		}
		customerName := ""
		if job.Customer != nil {
			customerName = job.Customer.Name
		}
		startAt, endAt := "", ""
		if job.StartAt != nil {
			startAt = job.StartAt.UTC().Format(time.RFC3339)
		}
		if job.EndAt != nil {
			endAt = job.EndAt.UTC().Format(time.RFC3339)
		}

		var amountDue int64
		var invoices []models.Invoice
		if err := s.db.WithContext(ctx).
			Where("job_id = ? AND status <> ?", job.ID, models.InvoicePaid).
			Find(&invoices).Error; err == nil {
			for _, inv := range invoices {
				amountDue += inv.AmountCents
			}
		}

		record := []string{
			job.ID,
			job.Title,
			string(job.Status),
			techName,
			customerName,
			startAt,
			endAt,
			strconv.FormatInt(amountDue, 10),
		}
		if err := writer.Write(record); err != nil {
			return nil, err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}

	filename := fmt.Sprintf("jobs-%s-to-%s.csv",
		start.Format("2006-01-02"), end.Format("2006-01-02"))

	return &ExportResult{
		Data:        buf.Bytes(),
		Filename:    filename,
		ContentType: "text/csv; charset=utf-8",
	}, nil
}

// TechnicianToICal exports a technician's bookings and blocked windows
// in [start, end) as an iCal feed importable into external calendars.
func (s *ExportService) TechnicianToICal(ctx context.Context, tech *models.Technician, start, end time.Time) (*ExportResult, error) {
	var jobs []models.Job
	if err := s.db.WithContext(ctx).
		Where("technician_id = ? AND status <> ?", tech.ID, models.JobStatusCancelled).
		Where("start_at < ? AND end_at > ?", end, start).
		Order("start_at ASC").
		Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("fetch jobs: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("BEGIN:VCALENDAR\r\n")
	buf.WriteString("VERSION:2.0\r\n")
	buf.WriteString("PRODID:-//Fieldworks//FixDesk Schedule Export//EN\r\n")
	buf.WriteString(fmt.Sprintf("X-WR-CALNAME:%s Schedule\r\n", escapeICalText(tech.Name)))
	buf.WriteString("CALSCALE:GREGORIAN\r\n")
	buf.WriteString("METHOD:PUBLISH\r\n")

	for _, job := range jobs {
		if job.StartAt == nil || job.EndAt == nil {
			continue
		}
		buf.WriteString("BEGIN:VEVENT\r\n")
		buf.WriteString(fmt.Sprintf("UID:%s@fixdesk\r\n", job.ID))
		buf.WriteString(fmt.Sprintf("DTSTAMP:%s\r\n", formatICalTime(time.Now())))
		buf.WriteString(fmt.Sprintf("DTSTART:%s\r\n", formatICalTime(*job.StartAt)))
		buf.WriteString(fmt.Sprintf("DTEND:%s\r\n", formatICalTime(*job.EndAt)))
		buf.WriteString(fmt.Sprintf("SUMMARY:%s\r\n", escapeICalText(job.Title)))
		if job.Description != "" {
			buf.WriteString(fmt.Sprintf("DESCRIPTION:%s\r\n", escapeICalText(job.Description)))
		}
		buf.WriteString("END:VEVENT\r\n")
	}

	// Time-off shows up as transparent busy blocks.
	for _, off := range tech.TimeOff {
		iv := (Interval{Start: off.Start, End: off.End}).Clip(start, end)
		if iv.Empty() {
			continue
		}
		buf.WriteString("BEGIN:VEVENT\r\n")
		buf.WriteString(fmt.Sprintf("UID:%s@fixdesk\r\n", off.ID))
		buf.WriteString(fmt.Sprintf("DTSTAMP:%s\r\n", formatICalTime(time.Now())))
		buf.WriteString(fmt.Sprintf("DTSTART:%s\r\n", formatICalTime(iv.Start)))
		buf.WriteString(fmt.Sprintf("DTEND:%s\r\n", formatICalTime(iv.End)))
		summary := "Time off"
		if off.Reason != "" {
			summary = "Time off: " + off.Reason
		}
		buf.WriteString(fmt.Sprintf("SUMMARY:%s\r\n", escapeICalText(summary)))
		buf.WriteString("END:VEVENT\r\n")
	}

	buf.WriteString("END:VCALENDAR\r\n")

	filename := fmt.Sprintf("%s-schedule-%s-to-%s.ics",
		slugify(tech.Name),
		start.Format("2006-01-02"),
		end.Format("2006-01-02"))

	return &ExportResult{
		Data:        buf.Bytes(),
		Filename:    filename,
		ContentType: "text/calendar; charset=utf-8",
	}, nil
}

func formatICalTime(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}

func escapeICalText(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, ";", "\\;")
	s = strings.ReplaceAll(s, ",", "\\,")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}

func slugify(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, " ", "-")
	var result strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			result.WriteRune(r)
		}
	}
	return result.String()
}
