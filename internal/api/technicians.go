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
)

type technicianRequest struct {
	Name         string              `json:"name"`
	Email        string              `json:"email"`
	Phone        string              `json:"phone"`
	Active       *bool               `json:"active"`
	WeeklyRoster models.WeeklyRoster `json:"weekly_roster"`
	TimeOff      *json.RawMessage    `json:"time_off,omitempty"` // rejected; managed via /time-off
}

type timeOffRequest struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Reason string    `json:"reason"`
}

func (a *API) handleTechniciansList(w http.ResponseWriter, r *http.Request) {
	accountID, ok := a.accountID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	query := a.db.WithContext(r.Context()).
		Where("account_id = ?", accountID).
		Order("name ASC")
	if r.URL.Query().Get("active") == "true" {
		query = query.Where("active = ?", true)
	}

	var techs []models.Technician
	if err := query.Find(&techs).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, techs)
}

func (a *API) handleTechniciansGet(w http.ResponseWriter, r *http.Request) {
	tech, ok := a.loadTechnician(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, tech)
}

func (a *API) handleTechniciansCreate(w http.ResponseWriter, r *http.Request) {
	accountID, ok := a.accountID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req technicianRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name_required")
		return
	}
	if req.TimeOff != nil {
		writeError(w, http.StatusBadRequest, "time_off_managed_separately")
		return
	}

	roster := req.WeeklyRoster
	if roster == nil {
		roster = models.DefaultWeeklyRoster()
	}
	if err := roster.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_roster")
		return
	}

	tech := models.Technician{
		ID:           uuid.NewString(),
		AccountID:    accountID,
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		Active:       true,
		WeeklyRoster: roster,
	}
	if req.Active != nil {
		tech.Active = *req.Active
	}

	if err := a.db.WithContext(r.Context()).Create(&tech).Error; err != nil {
		// The (account, name) unique index rejects duplicates.
		writeError(w, http.StatusConflict, "name_taken")
		return
	}

	payload := a.auditContext(r)
	payload["resource_type"] = "technician"
	payload["resource_id"] = tech.ID
	payload["name"] = tech.Name
	a.auditLog(r, models.AuditActionTechnicianAdd, payload)

	writeJSON(w, http.StatusCreated, tech)
}

func (a *API) handleTechniciansUpdate(w http.ResponseWriter, r *http.Request) {
	tech, ok := a.loadTechnician(w, r)
	if !ok {
		return
	}

	var req technicianRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.TimeOff != nil {
		writeError(w, http.StatusBadRequest, "time_off_managed_separately")
		return
	}

	// Renames are safe: jobs reference the technician by id, so
	// existing bookings follow the new name.
	if req.Name != "" {
		tech.Name = req.Name
	}
	if req.Email != "" {
		tech.Email = req.Email
	}
	if req.Phone != "" {
		tech.Phone = req.Phone
	}
	if req.Active != nil {
		tech.Active = *req.Active
	}
	if req.WeeklyRoster != nil {
		if err := req.WeeklyRoster.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_roster")
			return
		}
		tech.WeeklyRoster = req.WeeklyRoster
	}

	if err := a.db.WithContext(r.Context()).Save(tech).Error; err != nil {
		writeError(w, http.StatusConflict, "name_taken")
		return
	}

	payload := a.auditContext(r)
	payload["resource_type"] = "technician"
	payload["resource_id"] = tech.ID
	a.auditLog(r, models.AuditActionTechnicianEdit, payload)

	writeJSON(w, http.StatusOK, tech)
}

func (a *API) handleTechniciansDelete(w http.ResponseWriter, r *http.Request) {
	tech, ok := a.loadTechnician(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	// Deactivate instead of delete when bookings reference the record,
	// so job history keeps resolving.
	var jobCount int64
	if err := a.db.WithContext(ctx).Model(&models.Job{}).
		Where("technician_id = ?", tech.ID).Count(&jobCount).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	if jobCount > 0 {
		if err := a.db.WithContext(ctx).Model(tech).Update("active", false).Error; err != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
		return
	}

	if err := a.db.WithContext(ctx).Delete(tech).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleSetWorkingHours replaces the technician's weekly roster.
func (a *API) handleSetWorkingHours(w http.ResponseWriter, r *http.Request) {
	tech, ok := a.loadTechnician(w, r)
	if !ok {
		return
	}

	var roster models.WeeklyRoster
	if err := json.NewDecoder(r.Body).Decode(&roster); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if err := roster.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_roster")
		return
	}

	tech.WeeklyRoster = roster
	if err := a.db.WithContext(r.Context()).Save(tech).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	payload := a.auditContext(r)
	payload["resource_type"] = "technician"
	payload["resource_id"] = tech.ID
	a.bus.Publish(events.EventRosterUpdated, payload)

	writeJSON(w, http.StatusOK, tech)
}

func (a *API) handleTimeOffList(w http.ResponseWriter, r *http.Request) {
	tech, ok := a.loadTechnician(w, r)
	if !ok {
		return
	}

	from, fromOK := parseTimeParam(r, "from")
	to, toOK := parseTimeParam(r, "to")

	entries := make([]models.TimeOffEntry, 0, len(tech.TimeOff))
	for _, entry := range tech.TimeOff {
		if fromOK && !entry.End.After(from) {
			continue
		}
		if toOK && !entry.Start.Before(to) {
			continue
		}
		entries = append(entries, entry)
	}
	writeJSON(w, http.StatusOK, entries)
}

func (a *API) handleTimeOffAdd(w http.ResponseWriter, r *http.Request) {
	tech, ok := a.loadTechnician(w, r)
	if !ok {
		return
	}

	var req timeOffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if !req.End.After(req.Start) {
		writeError(w, http.StatusBadRequest, "end_before_start")
		return
	}

	entry := models.TimeOffEntry{
		ID:     uuid.NewString(),
		Start:  req.Start,
		End:    req.End,
		Reason: req.Reason,
	}
	tech.TimeOff = append(tech.TimeOff, entry)

	if err := a.db.WithContext(r.Context()).Save(tech).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	payload := a.auditContext(r)
	payload["resource_type"] = "technician"
	payload["resource_id"] = tech.ID
	payload["entry_id"] = entry.ID
	a.bus.Publish(events.EventTimeOffAdded, payload)

	writeJSON(w, http.StatusCreated, entry)
}

func (a *API) handleTimeOffRemove(w http.ResponseWriter, r *http.Request) {
	tech, ok := a.loadTechnician(w, r)
	if !ok {
		return
	}

	entryID := chi.URLParam(r, "entryID")
	kept := tech.TimeOff[:0]
	found := false
	for _, entry := range tech.TimeOff {
		if entry.ID == entryID {
			found = true
			continue
		}
		kept = append(kept, entry)
	}
	if !found {
		writeError(w, http.StatusNotFound, "entry_not_found")
		return
	}
	tech.TimeOff = kept

	if err := a.db.WithContext(r.Context()).Save(tech).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	payload := a.auditContext(r)
	payload["resource_type"] = "technician"
	payload["resource_id"] = tech.ID
	payload["entry_id"] = entryID
	a.bus.Publish(events.EventTimeOffRemoved, payload)

	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

// loadTechnician fetches the technician named by the URL within the
// caller's account, writing the error response itself on failure.
func (a *API) loadTechnician(w http.ResponseWriter, r *http.Request) (*models.Technician, bool) {
	accountID, ok := a.accountID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}

	var tech models.Technician
	if err := a.db.WithContext(r.Context()).
		First(&tech, "id = ? AND account_id = ?", chi.URLParam(r, "technicianID"), accountID).Error; err != nil {
		writeError(w, http.StatusNotFound, "technician_not_found")
		return nil, false
	}
	return &tech, true
}

// auditLog records an entry directly for actions with no dedicated bus
// event.
func (a *API) auditLog(r *http.Request, action models.AuditAction, payload events.Payload) {
	entry := &models.AuditLog{Action: action, Details: make(map[string]any)}
	if accountID, ok := payload["account_id"].(string); ok {
		entry.AccountID = &accountID
	}
	if userID, ok := payload["user_id"].(string); ok {
		entry.UserID = &userID
	}
	if email, ok := payload["user_email"].(string); ok {
		entry.UserEmail = email
	}
	if rt, ok := payload["resource_type"].(string); ok {
		entry.ResourceType = rt
	}
	if rid, ok := payload["resource_id"].(string); ok {
		entry.ResourceID = rid
	}
	entry.IPAddress, _ = payload["ip_address"].(string)
	entry.UserAgent, _ = payload["user_agent"].(string)

	if err := a.auditSvc.Log(r.Context(), entry); err != nil {
		a.logger.Error().Err(err).Str("action", string(action)).Msg("audit log failed")
	}
}
