/*
Copyright (C) 2026 Fieldworks

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"
	"time"
)

// exportWindow reads from/to parameters, defaulting to the next 30 days.
func exportWindow(r *http.Request) (time.Time, time.Time, bool) {
	from, fromOK := parseTimeParam(r, "from")
	to, toOK := parseTimeParam(r, "to")
	if !fromOK {
		from = time.Now().Truncate(24 * time.Hour)
	}
	if !toOK {
		to = from.AddDate(0, 0, 30)
	}
	return from, to, to.After(from)
}

func (a *API) handleJobsExportCSV(w http.ResponseWriter, r *http.Request) {
	accountID, ok := a.accountID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	from, to, ok := exportWindow(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_window")
		return
	}

	result, err := a.exporter.JobsToCSV(r.Context(), accountID, from, to)
	if err != nil {
		a.logger.Error().Err(err).Msg("csv export failed")
		writeError(w, http.StatusInternalServerError, "export_failed")
		return
	}

	w.Header().Set("Content-Type", result.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+result.Filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

func (a *API) handleTechnicianICal(w http.ResponseWriter, r *http.Request) {
	tech, ok := a.loadTechnician(w, r)
	if !ok {
		return
	}

	from, to, ok := exportWindow(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_window")
		return
	}

	result, err := a.exporter.TechnicianToICal(r.Context(), tech, from, to)
	if err != nil {
		a.logger.Error().Err(err).Msg("ical export failed")
		writeError(w, http.StatusInternalServerError, "export_failed")
		return
	}

	w.Header().Set("Content-Type", result.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+result.Filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}
