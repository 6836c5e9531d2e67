/*
Copyright (C) 2026 Fieldworks

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/fieldworks/fixdesk/internal/models"
)

// handleTechnicianAvailability returns the technician's blocked windows
// within [from, to) for calendar background rendering.
func (a *API) handleTechnicianAvailability(w http.ResponseWriter, r *http.Request) {
	tech, ok := a.loadTechnician(w, r)
	if !ok {
		return
	}

	from, fromOK := parseTimeParam(r, "from")
	to, toOK := parseTimeParam(r, "to")
	if !fromOK || !toOK {
		writeError(w, http.StatusBadRequest, "invalid_window")
		return
	}
	if !to.After(from) {
		writeError(w, http.StatusBadRequest, "end_before_start")
		return
	}
	if to.Sub(from) > 92*24*time.Hour {
		writeError(w, http.StatusBadRequest, "window_too_large")
		return
	}

	blocked := a.evaluator.BlockedIntervals(tech, from, to)

	writeJSON(w, http.StatusOK, map[string]any{
		"technician_id": tech.ID,
		"from":          from,
		"to":            to,
		"blocked":       blocked,
	})
}

type accountTimeOffEntry struct {
	TechnicianID   string    `json:"technician_id"`
	TechnicianName string    `json:"technician_name"`
	EntryID        string    `json:"entry_id"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	Reason         string    `json:"reason,omitempty"`
}

// handleAccountTimeOff lists technicians' time-off in one pass, tagged
// with names, so the dispatch calendar needs a single request. Optional
// from/to bound the window and technician narrows to a single id.
func (a *API) handleAccountTimeOff(w http.ResponseWriter, r *http.Request) {
	accountID, ok := a.accountID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var techs []models.Technician
	if err := a.db.WithContext(r.Context()).
		Where("account_id = ?", accountID).
		Order("name ASC").
		Find(&techs).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	from, fromOK := parseTimeParam(r, "from")
	to, toOK := parseTimeParam(r, "to")
	techFilter := strings.TrimSpace(r.URL.Query().Get("technician"))

	entries := make([]accountTimeOffEntry, 0)
	for _, tech := range techs {
		if techFilter != "" && tech.ID != techFilter {
			continue
		}
		for _, off := range tech.TimeOff {
			if fromOK && !off.End.After(from) {
				continue
			}
			if toOK && !off.Start.Before(to) {
				continue
			}
			entries = append(entries, accountTimeOffEntry{
				TechnicianID:   tech.ID,
				TechnicianName: tech.Name,
				EntryID:        off.ID,
				Start:          off.Start,
				End:            off.End,
				Reason:         off.Reason,
			})
		}
	}

	writeJSON(w, http.StatusOK, entries)
}
