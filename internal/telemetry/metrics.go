/*
Copyright (C) 2026 Fieldworks

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// APIRequestDuration tracks HTTP request latency by route.
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fixdesk",
		Subsystem: "api",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "endpoint", "status"})

	// APIRequestsTotal counts HTTP requests by route and status.
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fixdesk",
		Subsystem: "api",
		Name:      "requests_total",
		Help:      "Total HTTP requests served.",
	}, []string{"method", "endpoint", "status"})

	// APIActiveConnections tracks in-flight HTTP requests.
	APIActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "fixdesk",
		Subsystem: "api",
		Name:      "active_connections",
		Help:      "Number of HTTP requests currently being served.",
	})

	// EventStreamClients tracks connected websocket event feed clients.
	EventStreamClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "fixdesk",
		Subsystem: "events",
		Name:      "stream_clients",
		Help:      "Number of connected event stream clients.",
	})

	// BookingDecisionsTotal counts conflict detector outcomes. The
	// reason label is empty for allowed decisions.
	BookingDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fixdesk",
		Subsystem: "scheduling",
		Name:      "booking_decisions_total",
		Help:      "Booking assessments by outcome and rejection reason.",
	}, []string{"outcome", "reason"})

	// LeadsCapturedTotal counts public lead form submissions.
	LeadsCapturedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fixdesk",
		Subsystem: "leads",
		Name:      "captured_total",
		Help:      "Total leads captured from the public form.",
	})
)

// RecordBookingDecision updates the booking decision counter.
func RecordBookingDecision(allowed bool, reason string) {
	if allowed {
		BookingDecisionsTotal.WithLabelValues("allowed", "").Inc()
		return
	}
	BookingDecisionsTotal.WithLabelValues("rejected", reason).Inc()
}

// Handler exposes the Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
