/*
Copyright (C) 2026 Fieldworks

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fieldworks/fixdesk/internal/auth"
)

func (a *API) handleNotificationsList(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit, offset := parsePagination(r)
	unreadOnly := r.URL.Query().Get("unread") == "true"

	items, total, err := a.notificationSvc.ListForUser(r.Context(), claims.UserID, unreadOnly, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	unread, err := a.notificationSvc.UnreadCount(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"notifications": items,
		"total":         total,
		"unread":        unread,
	})
}

func (a *API) handleNotificationRead(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := a.notificationSvc.MarkAsRead(r.Context(), chi.URLParam(r, "notificationID"), claims.UserID); err != nil {
		writeError(w, http.StatusNotFound, "notification_not_found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "read"})
}

func (a *API) handleNotificationsReadAll(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := a.notificationSvc.MarkAllAsRead(r.Context(), claims.UserID); err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "read"})
}
