/*
Copyright (C) 2026 Fieldworks

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/fieldworks/fixdesk/internal/audit"
	"github.com/fieldworks/fixdesk/internal/auth"
	"github.com/fieldworks/fixdesk/internal/events"
	"github.com/fieldworks/fixdesk/internal/models"
	"github.com/fieldworks/fixdesk/internal/notifications"
	"github.com/fieldworks/fixdesk/internal/scheduling"
	"github.com/fieldworks/fixdesk/internal/version"
	"github.com/fieldworks/fixdesk/internal/webhooks"
)

// API exposes HTTP handlers.
type API struct {
	db              *gorm.DB
	jwtSecret       []byte
	detector        *scheduling.Detector
	evaluator       *scheduling.Evaluator
	locks           *scheduling.BookingLocks
	exporter        *scheduling.ExportService
	auditSvc        *audit.Service
	webhookSvc      *webhooks.Service
	notificationSvc *notifications.Service
	updateChecker   *version.Checker
	bus             *events.Bus
	logger          zerolog.Logger
}

// New creates the API router wrapper.
func New(db *gorm.DB, jwtSecret []byte, detector *scheduling.Detector, evaluator *scheduling.Evaluator, locks *scheduling.BookingLocks, exporter *scheduling.ExportService, auditSvc *audit.Service, webhookSvc *webhooks.Service, notificationSvc *notifications.Service, updateChecker *version.Checker, bus *events.Bus, logger zerolog.Logger) *API {
	return &API{
		db:              db,
		jwtSecret:       jwtSecret,
		detector:        detector,
		evaluator:       evaluator,
		locks:           locks,
		exporter:        exporter,
		auditSvc:        auditSvc,
		webhookSvc:      webhookSvc,
		notificationSvc: notificationSvc,
		updateChecker:   updateChecker,
		bus:             bus,
		logger:          logger,
	}
}

// Routes mounts all API endpoints on the router.
func (a *API) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", a.handleHealth)

		// Public endpoints (no auth required)
		r.Post("/auth/login", a.handleLogin)
		r.Post("/public/leads", a.handleLeadCapture)

		r.Group(func(pr chi.Router) {
			pr.Use(a.authMiddleware())

			pr.Get("/auth/me", a.handleMe)

			pr.Route("/apikeys", func(r chi.Router) {
				r.Get("/", a.handleAPIKeysList)
				r.Post("/", a.handleAPIKeysCreate)
				r.Delete("/{keyID}", a.handleAPIKeysRevoke)
			})

			pr.Route("/jobs", func(r chi.Router) {
				r.Get("/", a.handleJobsList)
				r.With(a.requireRoles(models.RoleAdmin, models.RoleDispatcher)).Post("/", a.handleJobsCreate)
				r.Get("/export.csv", a.handleJobsExportCSV)
				r.Route("/{jobID}", func(r chi.Router) {
					r.Get("/", a.handleJobsGet)
					r.With(a.requireRoles(models.RoleAdmin, models.RoleDispatcher)).Put("/", a.handleJobsUpdate)
					r.With(a.requireRoles(models.RoleAdmin, models.RoleDispatcher)).Delete("/", a.handleJobsDelete)
				})
			})

			pr.Route("/technicians", func(r chi.Router) {
				r.Get("/", a.handleTechniciansList)
				r.With(a.requireRoles(models.RoleAdmin, models.RoleDispatcher)).Post("/", a.handleTechniciansCreate)
				r.Route("/{technicianID}", func(r chi.Router) {
					r.Get("/", a.handleTechniciansGet)
					r.With(a.requireRoles(models.RoleAdmin, models.RoleDispatcher)).Put("/", a.handleTechniciansUpdate)
					r.With(a.requireRoles(models.RoleAdmin)).Delete("/", a.handleTechniciansDelete)
					r.With(a.requireRoles(models.RoleAdmin, models.RoleDispatcher)).Put("/working-hours", a.handleSetWorkingHours)
					r.Get("/availability", a.handleTechnicianAvailability)
					r.Get("/schedule.ics", a.handleTechnicianICal)
					r.Route("/time-off", func(r chi.Router) {
						r.Get("/", a.handleTimeOffList)
						r.With(a.requireRoles(models.RoleAdmin, models.RoleDispatcher)).Post("/", a.handleTimeOffAdd)
						r.With(a.requireRoles(models.RoleAdmin, models.RoleDispatcher)).Delete("/{entryID}", a.handleTimeOffRemove)
					})
				})
			})

			// Account-wide time-off listing for calendar rendering.
			pr.Get("/time-off", a.handleAccountTimeOff)

			pr.Route("/customers", func(r chi.Router) {
				r.Get("/", a.handleCustomersList)
				r.With(a.requireRoles(models.RoleAdmin, models.RoleDispatcher)).Post("/", a.handleCustomersCreate)
				r.Route("/{customerID}", func(r chi.Router) {
					r.Get("/", a.handleCustomersGet)
					r.With(a.requireRoles(models.RoleAdmin, models.RoleDispatcher)).Put("/", a.handleCustomersUpdate)
					r.With(a.requireRoles(models.RoleAdmin)).Delete("/", a.handleCustomersDelete)
				})
			})

			pr.Route("/invoices", func(r chi.Router) {
				r.Get("/", a.handleInvoicesList)
				r.With(a.requireRoles(models.RoleAdmin, models.RoleDispatcher)).Post("/", a.handleInvoicesCreate)
				r.Route("/{invoiceID}", func(r chi.Router) {
					r.Get("/", a.handleInvoicesGet)
					r.With(a.requireRoles(models.RoleAdmin, models.RoleDispatcher)).Put("/", a.handleInvoicesUpdate)
					r.With(a.requireRoles(models.RoleAdmin)).Delete("/", a.handleInvoicesDelete)
				})
			})

			pr.Route("/notifications", func(r chi.Router) {
				r.Get("/", a.handleNotificationsList)
				r.Post("/read-all", a.handleNotificationsReadAll)
				r.Post("/{notificationID}/read", a.handleNotificationRead)
			})

			pr.Route("/webhooks", func(r chi.Router) {
				r.Use(a.requireRoles(models.RoleAdmin))
				r.Get("/", a.handleWebhooksList)
				r.Post("/", a.handleWebhooksCreate)
				r.Route("/{webhookID}", func(r chi.Router) {
					r.Put("/", a.handleWebhooksUpdate)
					r.Delete("/", a.handleWebhooksDelete)
					r.Post("/test", a.handleWebhooksTest)
					r.Get("/logs", a.handleWebhookLogs)
				})
			})

			pr.With(a.requireRoles(models.RoleAdmin, models.RoleDispatcher)).Get("/leads", a.handleLeadsList)

			pr.With(a.requireRoles(models.RoleAdmin)).Get("/audit", a.handleAuditList)

			pr.With(a.requireRoles(models.RoleAdmin)).Get("/system/version", a.handleSystemVersion)

			pr.Get("/events", a.handleEvents)
		})
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSystemVersion reports the running version and, once the
// background check has run, whether a newer release exists.
func (a *API) handleSystemVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.updateChecker.Info())
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	var user models.User
	if err := a.db.WithContext(r.Context()).First(&user, "email = ?", req.Email).Error; err != nil {
		writeError(w, http.StatusUnauthorized, "invalid_credentials")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid_credentials")
		return
	}

	token, err := auth.Issue(a.jwtSecret, auth.Claims{
		UserID:    user.ID,
		AccountID: user.AccountID,
		Roles:     []string{string(user.Role)},
	}, 24*time.Hour)
	if err != nil {
		a.logger.Error().Err(err).Msg("failed to issue token")
		writeError(w, http.StatusInternalServerError, "token_error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token": token,
		"user": map[string]any{
			"id":         user.ID,
			"email":      user.Email,
			"role":       user.Role,
			"account_id": user.AccountID,
		},
	})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var user models.User
	if err := a.db.WithContext(r.Context()).First(&user, "id = ?", claims.UserID).Error; err != nil {
		writeError(w, http.StatusNotFound, "user_not_found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":         user.ID,
		"email":      user.Email,
		"role":       user.Role,
		"account_id": user.AccountID,
	})
}

type apiKeyCreateRequest struct {
	Name      string `json:"name"`
	ExpiresIn string `json:"expires_in"` // Go duration, e.g. "720h"
}

func (a *API) handleAPIKeysCreate(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req apiKeyCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name_required")
		return
	}

	expiresIn := 90 * 24 * time.Hour
	if req.ExpiresIn != "" {
		d, err := time.ParseDuration(req.ExpiresIn)
		if err != nil || d <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_expires_in")
			return
		}
		expiresIn = d
	}

	plaintext, key, err := auth.GenerateAPIKey(claims.UserID, req.Name, expiresIn)
	if err != nil {
		a.logger.Error().Err(err).Msg("failed to generate api key")
		writeError(w, http.StatusInternalServerError, "keygen_failed")
		return
	}
	if err := a.db.WithContext(r.Context()).Create(key).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	payload := a.auditContext(r)
	payload["resource_type"] = "apikey"
	payload["resource_id"] = key.ID
	payload["key_name"] = key.Name
	a.bus.Publish(events.EventAuditAPIKeyCreate, payload)

	// The plaintext key is only shown once.
	writeJSON(w, http.StatusCreated, map[string]any{
		"key":     plaintext,
		"api_key": key,
	})
}

func (a *API) handleAPIKeysList(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	keys, err := auth.ListAPIKeys(a.db.WithContext(r.Context()), claims.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, keys)
}

func (a *API) handleAPIKeysRevoke(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	keyID := chi.URLParam(r, "keyID")
	if err := auth.RevokeAPIKey(a.db.WithContext(r.Context()), keyID, claims.UserID); err != nil {
		writeError(w, http.StatusNotFound, "key_not_found")
		return
	}

	payload := a.auditContext(r)
	payload["resource_type"] = "apikey"
	payload["resource_id"] = keyID
	a.bus.Publish(events.EventAuditAPIKeyRevoke, payload)

	writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

func (a *API) authMiddleware() func(http.Handler) http.Handler {
	return auth.MiddlewareWithJWT(a.db, a.jwtSecret)
}

func (a *API) requireRoles(allowed ...models.RoleName) func(http.Handler) http.Handler {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[string(role)] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := auth.ClaimsFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			for _, role := range claims.Roles {
				if _, exists := allowedSet[role]; exists {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, "insufficient_role")
		})
	}
}

// accountID resolves the caller's account scope. Every query in the
// authenticated surface filters on it.
func (a *API) accountID(r *http.Request) (string, bool) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok || claims.AccountID == "" {
		return "", false
	}
	return claims.AccountID, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

// writeConflict reports a rejected booking with its specific reason.
func writeConflict(w http.ResponseWriter, decision *scheduling.Decision) {
	writeJSON(w, http.StatusConflict, map[string]string{
		"error":   "booking_conflict",
		"reason":  string(decision.Reason),
		"message": decision.Message,
	})
}

// auditContext extracts user and request info for audit logging.
func (a *API) auditContext(r *http.Request) events.Payload {
	payload := events.Payload{
		"ip_address": r.RemoteAddr,
		"user_agent": r.UserAgent(),
	}

	if claims, ok := auth.ClaimsFromContext(r.Context()); ok && claims != nil {
		payload["user_id"] = claims.UserID
		payload["account_id"] = claims.AccountID

		var user models.User
		if err := a.db.Select("email").First(&user, "id = ?", claims.UserID).Error; err == nil {
			payload["user_email"] = user.Email
		}
	}

	return payload
}

// parsePagination reads limit/offset query parameters with defaults.
func parsePagination(r *http.Request) (limit, offset int) {
	limit = 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 && v <= 500 {
			limit = v
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			offset = v
		}
	}
	return limit, offset
}

// parseTimeParam parses an RFC 3339 query parameter.
func parseTimeParam(r *http.Request, name string) (time.Time, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
