/*
Copyright (C) 2026 Fieldworks

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fieldworks/fixdesk/internal/models"
)

type webhookRequest struct {
	URL    string `json:"url"`
	Events string `json:"events"`
	Secret string `json:"secret"`
	Active *bool  `json:"active"`
}

func (a *API) handleWebhooksList(w http.ResponseWriter, r *http.Request) {
	accountID, ok := a.accountID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var targets []models.WebhookTarget
	if err := a.db.WithContext(r.Context()).
		Where("account_id = ?", accountID).
		Order("created_at ASC").
		Find(&targets).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, targets)
}

func (a *API) handleWebhooksCreate(w http.ResponseWriter, r *http.Request) {
	accountID, ok := a.accountID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if !validWebhookURL(req.URL) {
		writeError(w, http.StatusBadRequest, "invalid_url")
		return
	}

	target := models.WebhookTarget{
		ID:        uuid.NewString(),
		AccountID: accountID,
		URL:       req.URL,
		Events:    req.Events,
		Secret:    req.Secret,
		Active:    true,
	}
	if req.Active != nil {
		target.Active = *req.Active
	}

	if err := a.db.WithContext(r.Context()).Create(&target).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusCreated, target)
}

func (a *API) handleWebhooksUpdate(w http.ResponseWriter, r *http.Request) {
	target, ok := a.loadWebhook(w, r)
	if !ok {
		return
	}

	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	if req.URL != "" {
		if !validWebhookURL(req.URL) {
			writeError(w, http.StatusBadRequest, "invalid_url")
			return
		}
		target.URL = req.URL
	}
	if req.Events != "" {
		target.Events = req.Events
	}
	if req.Secret != "" {
		target.Secret = req.Secret
	}
	if req.Active != nil {
		target.Active = *req.Active
	}

	if err := a.db.WithContext(r.Context()).Save(target).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, target)
}

func (a *API) handleWebhooksDelete(w http.ResponseWriter, r *http.Request) {
	target, ok := a.loadWebhook(w, r)
	if !ok {
		return
	}

	if err := a.db.WithContext(r.Context()).Delete(target).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleWebhooksTest sends a test delivery so the operator can verify
// the endpoint and its signature handling.
func (a *API) handleWebhooksTest(w http.ResponseWriter, r *http.Request) {
	target, ok := a.loadWebhook(w, r)
	if !ok {
		return
	}

	if err := a.webhookSvc.TestTarget(r.Context(), target); err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"status": "failed",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "delivered"})
}

func (a *API) handleWebhookLogs(w http.ResponseWriter, r *http.Request) {
	target, ok := a.loadWebhook(w, r)
	if !ok {
		return
	}

	limit, offset := parsePagination(r)

	var logs []models.WebhookLog
	if err := a.db.WithContext(r.Context()).
		Where("target_id = ?", target.ID).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&logs).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

func (a *API) loadWebhook(w http.ResponseWriter, r *http.Request) (*models.WebhookTarget, bool) {
	accountID, ok := a.accountID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}

	var target models.WebhookTarget
	if err := a.db.WithContext(r.Context()).
		First(&target, "id = ? AND account_id = ?", chi.URLParam(r, "webhookID"), accountID).Error; err != nil {
		writeError(w, http.StatusNotFound, "webhook_not_found")
		return nil, false
	}
	return &target, true
}

func validWebhookURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
