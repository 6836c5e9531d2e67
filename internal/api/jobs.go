/*
Copyright (C) 2026 Fieldworks

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fieldworks/fixdesk/internal/events"
	"github.com/fieldworks/fixdesk/internal/models"
	"github.com/fieldworks/fixdesk/internal/scheduling"
	"github.com/fieldworks/fixdesk/internal/telemetry"
)

type jobCreateRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	CustomerID  *string    `json:"customer_id"`
	Technician  string     `json:"technician"`
	StartAt     *time.Time `json:"start_at"`
	EndAt       *time.Time `json:"end_at"`
	Status      string     `json:"status"`
	Notes       string     `json:"notes"`
}

// jobUpdateRequest uses pointers so omitted fields keep their stored
// values. An explicit empty technician string unassigns the job.
type jobUpdateRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	CustomerID  *string    `json:"customer_id"`
	Technician  *string    `json:"technician"`
	StartAt     *time.Time `json:"start_at"`
	EndAt       *time.Time `json:"end_at"`
	Status      *string    `json:"status"`
	Notes       *string    `json:"notes"`
	ClearWindow bool       `json:"clear_window"`
}

func (a *API) handleJobsList(w http.ResponseWriter, r *http.Request) {
	accountID, ok := a.accountID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	query := a.db.WithContext(r.Context()).Model(&models.Job{}).
		Where("account_id = ?", accountID)

	if status := r.URL.Query().Get("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if techID := r.URL.Query().Get("technician_id"); techID != "" {
		query = query.Where("technician_id = ?", techID)
	}
	if customerID := r.URL.Query().Get("customer_id"); customerID != "" {
		query = query.Where("customer_id = ?", customerID)
	}
	if from, ok := parseTimeParam(r, "from"); ok {
		query = query.Where("end_at > ?", from)
	}
	if to, ok := parseTimeParam(r, "to"); ok {
		query = query.Where("start_at < ?", to)
	}
	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		pattern := "%" + q + "%"
		query = query.Where("title LIKE ? OR description LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	limit, offset := parsePagination(r)

	var jobs []models.Job
	if err := query.
		Preload("Technician").
		Preload("Customer").
		Order("start_at ASC, created_at ASC").
		Limit(limit).Offset(offset).
		Find(&jobs).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"jobs":   jobs,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

func (a *API) handleJobsGet(w http.ResponseWriter, r *http.Request) {
	accountID, ok := a.accountID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var job models.Job
	if err := a.db.WithContext(r.Context()).
		Preload("Technician").
		Preload("Customer").
		First(&job, "id = ? AND account_id = ?", chi.URLParam(r, "jobID"), accountID).Error; err != nil {
		writeError(w, http.StatusNotFound, "job_not_found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (a *API) handleJobsCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accountID, ok := a.accountID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req jobCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(w, http.StatusBadRequest, "title_required")
		return
	}
	if code := validateWindow(req.StartAt, req.EndAt, req.Technician); code != "" {
		writeError(w, http.StatusBadRequest, code)
		return
	}

	job := models.Job{
		ID:          uuid.NewString(),
		AccountID:   accountID,
		CustomerID:  req.CustomerID,
		Title:       req.Title,
		Description: req.Description,
		StartAt:     req.StartAt,
		EndAt:       req.EndAt,
		Notes:       req.Notes,
		Status:      models.JobStatusOpen,
	}
	if req.Status != "" {
		status, ok := parseJobStatus(req.Status)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_status")
			return
		}
		job.Status = status
	}

	if req.Technician != "" {
		tech, err := a.detector.ResolveTechnician(ctx, accountID, req.Technician)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}
		if tech == nil {
			a.rejectBooking(w, r, scheduling.Rejection(scheduling.ReasonTechnicianNotFound), "")
			return
		}

		// Hold the technician's lock across check and write so a
		// concurrent booking cannot slip between them.
		release, err := a.locks.Acquire(ctx, accountID, tech.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "lock_error")
			return
		}
		defer release()

		decision, err := a.detector.AssessTechnician(ctx, tech, *req.StartAt, *req.EndAt, "")
		if err != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}
		if !decision.Allowed {
			a.rejectBooking(w, r, decision, "")
			return
		}

		job.TechnicianID = &tech.ID
		if req.Status == "" {
			job.Status = models.JobStatusScheduled
		}
	}

	if err := a.db.WithContext(ctx).Create(&job).Error; err != nil {
		if isOverlapGuardError(err) {
			a.rejectBooking(w, r, scheduling.Rejection(scheduling.ReasonJobOverlap), job.ID)
			return
		}
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	telemetry.RecordBookingDecision(true, "")

	payload := a.auditContext(r)
	payload["resource_type"] = "job"
	payload["resource_id"] = job.ID
	payload["title"] = job.Title
	if job.TechnicianID != nil {
		payload["technician_id"] = *job.TechnicianID
	}
	a.bus.Publish(events.EventBookingCreated, payload)

	writeJSON(w, http.StatusCreated, job)
}

func (a *API) handleJobsUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accountID, ok := a.accountID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var job models.Job
	if err := a.db.WithContext(ctx).
		First(&job, "id = ? AND account_id = ?", chi.URLParam(r, "jobID"), accountID).Error; err != nil {
		writeError(w, http.StatusNotFound, "job_not_found")
		return
	}

	var req jobUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	if req.Title != nil {
		if strings.TrimSpace(*req.Title) == "" {
			writeError(w, http.StatusBadRequest, "title_required")
			return
		}
		job.Title = *req.Title
	}
	if req.Description != nil {
		job.Description = *req.Description
	}
	if req.CustomerID != nil {
		if *req.CustomerID == "" {
			job.CustomerID = nil
		} else {
			job.CustomerID = req.CustomerID
		}
	}
	if req.Notes != nil {
		job.Notes = *req.Notes
	}
	if req.Status != nil {
		status, ok := parseJobStatus(*req.Status)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_status")
			return
		}
		job.Status = status
	}

	// Merge the window and technician before re-checking: the stored
	// values stand in for anything the request omits.
	if req.ClearWindow {
		job.StartAt = nil
		job.EndAt = nil
	} else {
		if req.StartAt != nil {
			job.StartAt = req.StartAt
		}
		if req.EndAt != nil {
			job.EndAt = req.EndAt
		}
	}

	var effectiveTech *models.Technician
	switch {
	case req.Technician != nil && *req.Technician == "":
		job.TechnicianID = nil
	case req.Technician != nil:
		tech, err := a.detector.ResolveTechnician(ctx, accountID, *req.Technician)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}
		if tech == nil {
			a.rejectBooking(w, r, scheduling.Rejection(scheduling.ReasonTechnicianNotFound), job.ID)
			return
		}
		effectiveTech = tech
		job.TechnicianID = &tech.ID
	case job.TechnicianID != nil:
		var tech models.Technician
		if err := a.db.WithContext(ctx).
			First(&tech, "id = ? AND account_id = ?", *job.TechnicianID, accountID).Error; err != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}
		effectiveTech = &tech
	}

	techName := ""
	if effectiveTech != nil {
		techName = effectiveTech.Name
	}
	if code := validateWindow(job.StartAt, job.EndAt, techName); code != "" {
		writeError(w, http.StatusBadRequest, code)
		return
	}

	if effectiveTech != nil && job.Scheduled() && job.Status != models.JobStatusCancelled {
		release, err := a.locks.Acquire(ctx, accountID, effectiveTech.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "lock_error")
			return
		}
		defer release()

		decision, err := a.detector.AssessTechnician(ctx, effectiveTech, *job.StartAt, *job.EndAt, job.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}
		if !decision.Allowed {
			a.rejectBooking(w, r, decision, job.ID)
			return
		}
	}

	if err := a.db.WithContext(ctx).Save(&job).Error; err != nil {
		if isOverlapGuardError(err) {
			a.rejectBooking(w, r, scheduling.Rejection(scheduling.ReasonJobOverlap), job.ID)
			return
		}
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	telemetry.RecordBookingDecision(true, "")

	payload := a.auditContext(r)
	payload["resource_type"] = "job"
	payload["resource_id"] = job.ID
	a.bus.Publish(events.EventBookingUpdated, payload)

	writeJSON(w, http.StatusOK, job)
}

// handleJobsDelete removes a job outright. Deletion has no guard rules:
// a freed window is immediately bookable again.
func (a *API) handleJobsDelete(w http.ResponseWriter, r *http.Request) {
	accountID, ok := a.accountID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	jobID := chi.URLParam(r, "jobID")
	var job models.Job
	if err := a.db.WithContext(r.Context()).
		First(&job, "id = ? AND account_id = ?", jobID, accountID).Error; err != nil {
		writeError(w, http.StatusNotFound, "job_not_found")
		return
	}

	if err := a.db.WithContext(r.Context()).Delete(&job).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	payload := a.auditContext(r)
	payload["resource_type"] = "job"
	payload["resource_id"] = jobID
	payload["title"] = job.Title
	if job.CustomerID != nil {
		payload["customer_id"] = *job.CustomerID
	}
	a.bus.Publish(events.EventBookingDeleted, payload)

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// rejectBooking reports a conflict to the caller and records it for
// audit and metrics.
func (a *API) rejectBooking(w http.ResponseWriter, r *http.Request, decision *scheduling.Decision, jobID string) {
	telemetry.RecordBookingDecision(false, string(decision.Reason))

	payload := a.auditContext(r)
	payload["resource_type"] = "job"
	if jobID != "" {
		payload["resource_id"] = jobID
	}
	payload["reason"] = string(decision.Reason)
	a.bus.Publish(events.EventBookingRejected, payload)

	writeConflict(w, decision)
}

// validateWindow checks the shape of a booking window. Both endpoints
// are required together, the end must come after the start, and a
// technician assignment needs a window to book against.
func validateWindow(start, end *time.Time, technician string) string {
	if (start == nil) != (end == nil) {
		return "incomplete_window"
	}
	if start != nil && !end.After(*start) {
		return "end_before_start"
	}
	if technician != "" && start == nil {
		return "window_required"
	}
	return ""
}

func parseJobStatus(raw string) (models.JobStatus, bool) {
	switch models.JobStatus(raw) {
	case models.JobStatusOpen, models.JobStatusScheduled, models.JobStatusCompleted, models.JobStatusCancelled:
		return models.JobStatus(raw), true
	}
	return "", false
}

// isOverlapGuardError detects the store-level overlap trigger firing,
// which only happens when two writers race past the advisory lock.
func isOverlapGuardError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "overlapping booking for technician")
}
