// Cuecore - Live-Show Cueing Collaboration and Library Server
// Copyright 2026 Stagelab Cooperative
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stagelab/cuecore

// Package metrics exposes the Prometheus instrumentation for the cueing
// server: session population, the editor action surface, uploads, and
// engine RPC latency.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session Metrics
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cuecore_active_sessions",
			Help: "Current number of connected editor sessions",
		},
	)

	SessionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cuecore_sessions_total",
			Help: "Total number of editor sessions accepted",
		},
	)

	// Action Metrics
	ActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cuecore_actions_total",
			Help: "Total number of dispatched editor actions",
		},
		[]string{"action"},
	)

	ActionErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cuecore_action_errors_total",
			Help: "Total number of editor actions that replied with an error frame",
		},
		[]string{"action"},
	)

	// Broadcast Metrics
	BroadcastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cuecore_broadcasts_total",
			Help: "Total number of cross-session broadcast frames",
		},
		[]string{"type"},
	)

	// Upload Metrics
	UploadBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cuecore_upload_bytes_total",
			Help: "Total number of upload payload bytes received",
		},
	)

	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cuecore_uploads_total",
			Help: "Total number of finished uploads by outcome",
		},
		[]string{"outcome"}, // "committed", "failed"
	)

	// Engine RPC Metrics
	EngineCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cuecore_engine_call_duration_seconds",
			Help:    "Round-trip duration of engine RPC calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"action"},
	)

	EngineCallErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cuecore_engine_call_errors_total",
			Help: "Total number of failed engine RPC calls",
		},
		[]string{"action"},
	)
)

// RecordAction counts a successfully dispatched action.
func RecordAction(action string) {
	ActionsTotal.WithLabelValues(action).Inc()
}

// RecordActionError counts an action that produced an error frame.
func RecordActionError(action string) {
	ActionErrors.WithLabelValues(action).Inc()
}

// RecordBroadcast counts one cross-session broadcast frame.
func RecordBroadcast(frameType string) {
	BroadcastsTotal.WithLabelValues(frameType).Inc()
}

// RecordUploadChunk counts received upload payload bytes.
func RecordUploadChunk(n int) {
	UploadBytes.Add(float64(n))
}

// RecordUpload counts one finished upload.
func RecordUpload(committed bool) {
	outcome := "failed"
	if committed {
		outcome = "committed"
	}
	UploadsTotal.WithLabelValues(outcome).Inc()
}

// RecordEngineCall records one engine RPC round trip.
func RecordEngineCall(action string, duration time.Duration, err error) {
	EngineCallDuration.WithLabelValues(action).Observe(duration.Seconds())
	if err != nil {
		EngineCallErrors.WithLabelValues(action).Inc()
	}
}
