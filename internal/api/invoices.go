/*
Copyright (C) 2026 Fieldworks

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fieldworks/fixdesk/internal/models"
)

type invoiceRequest struct {
	JobID       *string    `json:"job_id"`
	CustomerID  *string    `json:"customer_id"`
	AmountCents *int64     `json:"amount_cents"`
	Status      *string    `json:"status"`
	IssuedAt    *time.Time `json:"issued_at"`
	DueAt       *time.Time `json:"due_at"`
}

func (a *API) handleInvoicesList(w http.ResponseWriter, r *http.Request) {
	accountID, ok := a.accountID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	query := a.db.WithContext(r.Context()).Model(&models.Invoice{}).
		Where("account_id = ?", accountID)

	if status := r.URL.Query().Get("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if jobID := r.URL.Query().Get("job_id"); jobID != "" {
		query = query.Where("job_id = ?", jobID)
	}
	if customerID := r.URL.Query().Get("customer_id"); customerID != "" {
		query = query.Where("customer_id = ?", customerID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	limit, offset := parsePagination(r)

	var invoices []models.Invoice
	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&invoices).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"invoices": invoices,
		"total":    total,
		"limit":    limit,
		"offset":   offset,
	})
}

func (a *API) handleInvoicesGet(w http.ResponseWriter, r *http.Request) {
	invoice, ok := a.loadInvoice(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, invoice)
}

func (a *API) handleInvoicesCreate(w http.ResponseWriter, r *http.Request) {
	accountID, ok := a.accountID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req invoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.AmountCents == nil || *req.AmountCents < 0 {
		writeError(w, http.StatusBadRequest, "invalid_amount")
		return
	}

	invoice := models.Invoice{
		ID:          uuid.NewString(),
		AccountID:   accountID,
		JobID:       req.JobID,
		CustomerID:  req.CustomerID,
		AmountCents: *req.AmountCents,
		Status:      models.InvoiceDraft,
		IssuedAt:    req.IssuedAt,
		DueAt:       req.DueAt,
	}
	if req.Status != nil {
		status, ok := parseInvoiceStatus(*req.Status)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_status")
			return
		}
		invoice.Status = status
	}

	// Invoice numbers are per-account sequential.
	var count int64
	if err := a.db.WithContext(r.Context()).Model(&models.Invoice{}).
		Where("account_id = ?", accountID).Count(&count).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	invoice.Number = fmt.Sprintf("INV-%05d", count+1)

	if err := a.db.WithContext(r.Context()).Create(&invoice).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusCreated, invoice)
}

func (a *API) handleInvoicesUpdate(w http.ResponseWriter, r *http.Request) {
	invoice, ok := a.loadInvoice(w, r)
	if !ok {
		return
	}

	var req invoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	if req.AmountCents != nil {
		if *req.AmountCents < 0 {
			writeError(w, http.StatusBadRequest, "invalid_amount")
			return
		}
		invoice.AmountCents = *req.AmountCents
	}
	if req.Status != nil {
		status, ok := parseInvoiceStatus(*req.Status)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_status")
			return
		}
		invoice.Status = status
	}
	if req.JobID != nil {
		invoice.JobID = req.JobID
	}
	if req.CustomerID != nil {
		invoice.CustomerID = req.CustomerID
	}
	if req.IssuedAt != nil {
		invoice.IssuedAt = req.IssuedAt
	}
	if req.DueAt != nil {
		invoice.DueAt = req.DueAt
	}

	if err := a.db.WithContext(r.Context()).Save(invoice).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, invoice)
}

func (a *API) handleInvoicesDelete(w http.ResponseWriter, r *http.Request) {
	invoice, ok := a.loadInvoice(w, r)
	if !ok {
		return
	}

	if invoice.Status == models.InvoicePaid {
		writeError(w, http.StatusConflict, "paid_invoice_immutable")
		return
	}

	if err := a.db.WithContext(r.Context()).Delete(invoice).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (a *API) loadInvoice(w http.ResponseWriter, r *http.Request) (*models.Invoice, bool) {
	accountID, ok := a.accountID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}

	var invoice models.Invoice
	if err := a.db.WithContext(r.Context()).
		First(&invoice, "id = ? AND account_id = ?", chi.URLParam(r, "invoiceID"), accountID).Error; err != nil {
		writeError(w, http.StatusNotFound, "invoice_not_found")
		return nil, false
	}
	return &invoice, true
}

func parseInvoiceStatus(raw string) (models.InvoiceStatus, bool) {
	switch models.InvoiceStatus(raw) {
	case models.InvoiceDraft, models.InvoiceSent, models.InvoicePaid:
		return models.InvoiceStatus(raw), true
	}
	return "", false
}
