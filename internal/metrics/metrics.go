// Stowage - Scheduled Archive Transfer Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stowage

// Package metrics defines the Prometheus collectors exported on /metrics.
//
// Collectors are registered on the default registry through promauto at
// package init. Callers use the Record* helpers rather than touching the
// collectors directly so label sets stay consistent.
//
// Metric families:
//   - stowage_pipeline_*: runs, duration, bytes archived and uploaded
//   - stowage_retention_*: archives pruned and prune failures
//   - stowage_gate_*: queue depth and running gauge
//   - stowage_scheduler_*: registered cron entries and triggers
//   - http_*: API requests
//   - websocket_*: live status feed connections
//   - circuit_breaker_*: storage backend breakers
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Pipeline Metrics
	PipelineRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stowage_pipeline_runs_total",
			Help: "Total number of finished pipeline runs",
		},
		[]string{"task", "result"}, // result: "success", "failure"
	)

	PipelineDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stowage_pipeline_duration_seconds",
			Help:    "Duration of pipeline runs in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600, 7200},
		},
		[]string{"task", "result"},
	)

	PipelineStageFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stowage_pipeline_stage_failures_total",
			Help: "Total number of pipeline failures by the stage that failed",
		},
		[]string{"task", "stage"},
	)

	BytesArchived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stowage_bytes_archived_total",
			Help: "Uncompressed bytes read into archives",
		},
		[]string{"task"},
	)

	BytesUploaded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stowage_bytes_uploaded_total",
			Help: "Archive bytes written to destination backends",
		},
		[]string{"task", "backend"},
	)

	LastSuccess = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stowage_pipeline_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run",
		},
		[]string{"task"},
	)

	// Retention Metrics
	ArchivesPruned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stowage_retention_archives_pruned_total",
			Help: "Total number of archives deleted by retention",
		},
		[]string{"task"},
	)

	PruneFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stowage_retention_prune_failures_total",
			Help: "Total number of archive deletions that failed",
		},
		[]string{"task"},
	)

	// Gate Metrics
	GateQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stowage_gate_queue_depth",
			Help: "Number of tasks waiting for the execution slot",
		},
	)

	GateRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stowage_gate_running",
			Help: "1 while a pipeline holds the execution slot, else 0",
		},
	)

	GateDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stowage_gate_decisions_total",
			Help: "Start requests by gate decision",
		},
		[]string{"decision"}, // started, queued, already_queued, already_running
	)

	// Scheduler Metrics
	SchedulerEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stowage_scheduler_entries",
			Help: "Number of registered cron entries",
		},
	)

	SchedulerTriggers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stowage_scheduler_triggers_total",
			Help: "Total number of scheduled triggers fired",
		},
		[]string{"task"},
	)

	ConfigReloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stowage_config_reloads_total",
			Help: "Configuration reload attempts",
		},
		[]string{"result"},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections_active",
			Help: "Number of active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)
)

func resultLabel(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// RecordPipelineRun records a finished run. stage names the failing stage
// and is ignored on success.
func RecordPipelineRun(task, stage string, duration time.Duration, err error) {
	result := resultLabel(err)
	PipelineRuns.WithLabelValues(task, result).Inc()
	PipelineDuration.WithLabelValues(task, result).Observe(duration.Seconds())
	if err != nil {
		PipelineStageFailures.WithLabelValues(task, stage).Inc()
		return
	}
	LastSuccess.WithLabelValues(task).Set(float64(time.Now().Unix()))
}

// RecordArchived adds uncompressed archived bytes for task.
func RecordArchived(task string, n int64) {
	BytesArchived.WithLabelValues(task).Add(float64(n))
}

// RecordUploaded adds uploaded bytes for task to backend.
func RecordUploaded(task, backend string, n int64) {
	BytesUploaded.WithLabelValues(task, backend).Add(float64(n))
}

// RecordPrune records retention deletions and failures for task.
func RecordPrune(task string, deleted, failed int) {
	if deleted > 0 {
		ArchivesPruned.WithLabelValues(task).Add(float64(deleted))
	}
	if failed > 0 {
		PruneFailures.WithLabelValues(task).Add(float64(failed))
	}
}

// UpdateGate publishes the gate's queue depth and whether a run holds the slot.
func UpdateGate(queueDepth int, running bool) {
	GateQueueDepth.Set(float64(queueDepth))
	if running {
		GateRunning.Set(1)
	} else {
		GateRunning.Set(0)
	}
}

// RecordGateDecision counts a start request outcome.
func RecordGateDecision(decision string) {
	GateDecisions.WithLabelValues(decision).Inc()
}

// RecordConfigReload counts a reload attempt.
func RecordConfigReload(err error) {
	ConfigReloads.WithLabelValues(resultLabel(err)).Inc()
}

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint string, status int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
