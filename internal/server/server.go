/*
Copyright (C) 2026 Fieldworks

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/fieldworks/fixdesk/internal/api"
	"github.com/fieldworks/fixdesk/internal/audit"
	"github.com/fieldworks/fixdesk/internal/config"
	"github.com/fieldworks/fixdesk/internal/db"
	"github.com/fieldworks/fixdesk/internal/events"
	"github.com/fieldworks/fixdesk/internal/notifications"
	"github.com/fieldworks/fixdesk/internal/scheduling"
	"github.com/fieldworks/fixdesk/internal/telemetry"
	"github.com/fieldworks/fixdesk/internal/version"
	"github.com/fieldworks/fixdesk/internal/webhooks"
)

// Server bundles HTTP and supporting services.
type Server struct {
	cfg        *config.Config
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server
	closers    []func() error

	db              *gorm.DB
	bus             *events.Bus
	auditSvc        *audit.Service
	webhookSvc      *webhooks.Service
	notificationSvc *notifications.Service
	updateChecker   *version.Checker
	locks           *scheduling.BookingLocks
	evaluator       *scheduling.Evaluator
	detector        *scheduling.Detector
	exporter        *scheduling.ExportService
	api             *api.API

	metricsServer *http.Server

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// New wires configuration into a ready-to-run server.
func New(cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(securityHeadersMiddleware)
	router.Use(telemetry.TracingMiddleware("fixdesk-api"))
	router.Use(telemetry.MetricsMiddleware)
	// Skip the request timeout for websocket connections.
	router.Use(func(next http.Handler) http.Handler {
		timeout := middleware.Timeout(60 * time.Second)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Upgrade") == "websocket" {
				next.ServeHTTP(w, r)
				return
			}
			timeout(next).ServeHTTP(w, r)
		})
	})

	srv := &Server{
		cfg:    cfg,
		logger: logger,
		router: router,
		bus:    events.NewBus(),
	}

	if err := srv.initDependencies(); err != nil {
		return nil, err
	}

	srv.configureRoutes()
	srv.startBackgroundWorkers()

	addr := fmt.Sprintf("%s:%d", cfg.HTTPBind, cfg.HTTPPort)
	srv.httpServer = &http.Server{
		Addr:              addr,
		Handler:           srv.router,
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      0, // websocket feed manages its own deadlines
		IdleTimeout:       60 * time.Second,
	}

	return srv, nil
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; frame-ancestors 'none'; base-uri 'self'")

		// Only advertise HSTS for requests served over HTTPS.
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) initDependencies() error {
	database, err := db.Connect(s.cfg)
	if err != nil {
		return err
	}
	if err := db.Migrate(database); err != nil {
		return err
	}
	s.db = database
	s.DeferClose(func() error { return db.Close(database) })

	if s.cfg.BookingLockRedisAddr != "" {
		locks, err := scheduling.NewBookingLocksWithRedis(scheduling.RedisLockConfig{
			Addr:     s.cfg.BookingLockRedisAddr,
			Password: s.cfg.BookingLockRedisPassword,
			DB:       s.cfg.BookingLockRedisDB,
			TTL:      s.cfg.BookingLockTTL,
		}, s.logger)
		if err != nil {
			s.logger.Warn().Err(err).Msg("redis booking locks unavailable, falling back to local locks")
			s.locks = scheduling.NewBookingLocks(s.logger)
		} else {
			s.locks = locks
			s.DeferClose(locks.Close)
		}
	} else {
		s.locks = scheduling.NewBookingLocks(s.logger)
	}

	flags := scheduling.Flags{
		AlwaysOpen:  s.cfg.SchedulingAlwaysOpen,
		SameDayOnly: s.cfg.SchedulingSameDayOnly,
	}
	s.logger.Info().
		Bool("always_open", flags.AlwaysOpen).
		Bool("same_day_only", flags.SameDayOnly).
		Msg("scheduling flags loaded")

	s.evaluator = scheduling.NewEvaluator(flags)
	s.detector = scheduling.NewDetector(database, flags, s.logger)
	s.exporter = scheduling.NewExportService(database, s.evaluator, s.logger)
	s.auditSvc = audit.NewService(database, s.bus, s.logger)
	s.webhookSvc = webhooks.NewService(database, s.bus, s.logger)
	s.notificationSvc = notifications.NewService(database, s.bus, notifications.Config{
		SMTPHost:              s.cfg.SMTPHost,
		SMTPPort:              s.cfg.SMTPPort,
		SMTPUsername:          s.cfg.SMTPUsername,
		SMTPPassword:          s.cfg.SMTPPassword,
		SMTPFrom:              s.cfg.SMTPFrom,
		SMTPFromName:          s.cfg.SMTPFromName,
		ReminderLeadTime:      s.cfg.ReminderLeadTime,
		ReminderCheckInterval: s.cfg.ReminderCheckInterval,
	}, s.logger)
	s.updateChecker = version.NewChecker(s.logger)

	s.api = api.New(
		database,
		[]byte(s.cfg.JWTSigningKey),
		s.detector,
		s.evaluator,
		s.locks,
		s.exporter,
		s.auditSvc,
		s.webhookSvc,
		s.notificationSvc,
		s.updateChecker,
		s.bus,
		s.logger,
	)

	return nil
}

func (s *Server) configureRoutes() {
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	s.api.Routes(s.router)
}

func (s *Server) startBackgroundWorkers() {
	ctx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel

	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		s.auditSvc.Start(ctx)
	}()

	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		s.webhookSvc.Start(ctx)
	}()

	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		s.notificationSvc.Start(ctx)
	}()

	s.updateChecker.Start(ctx)

	// Periodic health event keeps event stream clients fresh.
	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.bus.Publish(events.EventHealth, events.Payload{"status": "ok", "at": time.Now().UTC()})
			}
		}
	}()

	// Metrics are served on a separate internal listener so the public
	// API surface stays clean.
	if s.cfg.MetricsBind != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", telemetry.Handler())
		s.metricsServer = &http.Server{
			Addr:              s.cfg.MetricsBind,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			s.logger.Info().Str("addr", s.cfg.MetricsBind).Msg("metrics server listening")
			if err := s.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				s.logger.Error().Err(err).Msg("metrics server error")
			}
		}()
	}
}

func (s *Server) stopBackgroundWorkers() {
	if s.bgCancel != nil {
		s.bgCancel()
	}
	if s.updateChecker != nil {
		s.updateChecker.Stop()
	}
	s.bgWG.Wait()

	if s.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.metricsServer.Shutdown(ctx); err != nil {
			s.logger.Error().Err(err).Msg("metrics server shutdown error")
		}
	}
}

// HTTPServer exposes the configured HTTP server for the caller to run.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// DB exposes the database handle for maintenance commands.
func (s *Server) DB() *gorm.DB {
	return s.db
}

// Close shuts down background work and releases resources.
func (s *Server) Close() error {
	s.stopBackgroundWorkers()
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// DeferClose registers a cleanup hook.
func (s *Server) DeferClose(fn func() error) {
	s.closers = append(s.closers, fn)
}
