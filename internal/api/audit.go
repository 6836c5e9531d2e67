/*
Copyright (C) 2026 Fieldworks

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"
	"time"

	"github.com/fieldworks/fixdesk/internal/audit"
	"github.com/fieldworks/fixdesk/internal/models"
)

// auditLogResponse is the JSON response for an audit log entry.
type auditLogResponse struct {
	ID           string         `json:"id"`
	Timestamp    time.Time      `json:"timestamp"`
	UserID       *string        `json:"user_id,omitempty"`
	UserEmail    string         `json:"user_email,omitempty"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resource_type,omitempty"`
	ResourceID   string         `json:"resource_id,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
	IPAddress    string         `json:"ip_address,omitempty"`
	UserAgent    string         `json:"user_agent,omitempty"`
}

// handleAuditList returns a paginated list of the account's audit logs.
func (a *API) handleAuditList(w http.ResponseWriter, r *http.Request) {
	accountID, ok := a.accountID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	filters := parseAuditFilters(r)
	filters.AccountID = &accountID

	logs, total, err := a.auditSvc.Query(r.Context(), filters)
	if err != nil {
		a.logger.Error().Err(err).Msg("failed to query audit logs")
		writeError(w, http.StatusInternalServerError, "query_failed")
		return
	}

	response := make([]auditLogResponse, len(logs))
	for i, log := range logs {
		response[i] = auditLogResponse{
			ID:           log.ID,
			Timestamp:    log.Timestamp,
			UserID:       log.UserID,
			UserEmail:    log.UserEmail,
			Action:       string(log.Action),
			ResourceType: log.ResourceType,
			ResourceID:   log.ResourceID,
			Details:      log.Details,
			IPAddress:    log.IPAddress,
			UserAgent:    log.UserAgent,
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"audit_logs": response,
		"total":      total,
		"limit":      filters.Limit,
		"offset":     filters.Offset,
	})
}

func parseAuditFilters(r *http.Request) audit.QueryFilters {
	filters := audit.QueryFilters{}
	filters.Limit, filters.Offset = parsePagination(r)

	if raw := r.URL.Query().Get("user_id"); raw != "" {
		filters.UserID = &raw
	}
	if raw := r.URL.Query().Get("action"); raw != "" {
		action := models.AuditAction(raw)
		filters.Action = &action
	}
	if t, ok := parseTimeParam(r, "start"); ok {
		filters.StartTime = &t
	}
	if t, ok := parseTimeParam(r, "end"); ok {
		filters.EndTime = &t
	}

	return filters
}
