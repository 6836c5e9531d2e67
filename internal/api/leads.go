/*
Copyright (C) 2026 Fieldworks

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/fieldworks/fixdesk/internal/events"
	"github.com/fieldworks/fixdesk/internal/models"
	"github.com/fieldworks/fixdesk/internal/telemetry"
)

type leadCaptureRequest struct {
	AccountID string `json:"account_id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Message   string `json:"message"`
	Source    string `json:"source"`
}

// handleLeadCapture accepts contact form submissions from the marketing
// site without authentication.
func (a *API) handleLeadCapture(w http.ResponseWriter, r *http.Request) {
	var req leadCaptureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.AccountID == "" {
		writeError(w, http.StatusBadRequest, "account_id_required")
		return
	}
	if strings.TrimSpace(req.Name) == "" && strings.TrimSpace(req.Email) == "" && strings.TrimSpace(req.Phone) == "" {
		writeError(w, http.StatusBadRequest, "contact_required")
		return
	}

	// Validate the account exists but reveal nothing else about it.
	var count int64
	if err := a.db.WithContext(r.Context()).Model(&models.Account{}).
		Where("id = ?", req.AccountID).Count(&count).Error; err != nil || count == 0 {
		writeError(w, http.StatusBadRequest, "unknown_account")
		return
	}

	lead := models.Lead{
		ID:        uuid.NewString(),
		AccountID: req.AccountID,
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		Message:   req.Message,
		Source:    req.Source,
	}
	if err := a.db.WithContext(r.Context()).Create(&lead).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	telemetry.LeadsCapturedTotal.Inc()

	a.bus.Publish(events.EventLeadCaptured, events.Payload{
		"account_id":    lead.AccountID,
		"resource_type": "lead",
		"resource_id":   lead.ID,
		"source":        lead.Source,
		"ip_address":    r.RemoteAddr,
		"user_agent":    r.UserAgent(),
	})

	writeJSON(w, http.StatusCreated, map[string]string{"status": "received", "id": lead.ID})
}

func (a *API) handleLeadsList(w http.ResponseWriter, r *http.Request) {
	accountID, ok := a.accountID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	query := a.db.WithContext(r.Context()).Model(&models.Lead{}).
		Where("account_id = ?", accountID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	limit, offset := parsePagination(r)

	var leads []models.Lead
	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&leads).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"leads":  leads,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}
