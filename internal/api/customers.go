/*
Copyright (C) 2026 Fieldworks

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fieldworks/fixdesk/internal/models"
)

type customerRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	Notes   string `json:"notes"`
}

func (a *API) handleCustomersList(w http.ResponseWriter, r *http.Request) {
	accountID, ok := a.accountID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	query := a.db.WithContext(r.Context()).Model(&models.Customer{}).
		Where("account_id = ?", accountID)

	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		pattern := "%" + q + "%"
		query = query.Where("name LIKE ? OR email LIKE ? OR phone LIKE ?", pattern, pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	limit, offset := parsePagination(r)

	var customers []models.Customer
	if err := query.Order("name ASC").Limit(limit).Offset(offset).Find(&customers).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"customers": customers,
		"total":     total,
		"limit":     limit,
		"offset":    offset,
	})
}

func (a *API) handleCustomersGet(w http.ResponseWriter, r *http.Request) {
	customer, ok := a.loadCustomer(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, customer)
}

func (a *API) handleCustomersCreate(w http.ResponseWriter, r *http.Request) {
	accountID, ok := a.accountID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req customerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name_required")
		return
	}

	customer := models.Customer{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		Address:   req.Address,
		Notes:     req.Notes,
	}
	if err := a.db.WithContext(r.Context()).Create(&customer).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusCreated, customer)
}

func (a *API) handleCustomersUpdate(w http.ResponseWriter, r *http.Request) {
	customer, ok := a.loadCustomer(w, r)
	if !ok {
		return
	}

	var req customerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	if req.Name != "" {
		customer.Name = req.Name
	}
	if req.Email != "" {
		customer.Email = req.Email
	}
	if req.Phone != "" {
		customer.Phone = req.Phone
	}
	if req.Address != "" {
		customer.Address = req.Address
	}
	if req.Notes != "" {
		customer.Notes = req.Notes
	}

	if err := a.db.WithContext(r.Context()).Save(customer).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, customer)
}

func (a *API) handleCustomersDelete(w http.ResponseWriter, r *http.Request) {
	customer, ok := a.loadCustomer(w, r)
	if !ok {
		return
	}

	// Jobs keep a nullable reference; detach them rather than cascade.
	if err := a.db.WithContext(r.Context()).Model(&models.Job{}).
		Where("customer_id = ?", customer.ID).
		Update("customer_id", nil).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	if err := a.db.WithContext(r.Context()).Delete(customer).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (a *API) loadCustomer(w http.ResponseWriter, r *http.Request) (*models.Customer, bool) {
	accountID, ok := a.accountID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}

	var customer models.Customer
	if err := a.db.WithContext(r.Context()).
		First(&customer, "id = ? AND account_id = ?", chi.URLParam(r, "customerID"), accountID).Error; err != nil {
		writeError(w, http.StatusNotFound, "customer_not_found")
		return nil, false
	}
	return &customer, true
}
