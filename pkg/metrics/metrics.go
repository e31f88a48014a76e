// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-biometric.
//
// go-biometric is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package metrics provides Prometheus instrumentation for biometric flow
// operations: outcome counters, duration histograms, and a failure-kind
// breakdown so dashboards can separate user declines from server rejects
// and connectivity problems.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the Prometheus namespace for all biometric metrics
	Namespace = "biometric"

	// Label names
	LabelFlow   = "flow"
	LabelStatus = "status"
	LabelKind   = "kind"

	// Status values
	StatusSuccess = "success"
	StatusError   = "error"

	// Flow names
	FlowRegister = "register"
	FlowAuth     = "authenticate"
	FlowQuery    = "has_credentials"
	FlowDelete   = "delete_credentials"
	FlowProbe    = "capability_probe"
)

var (
	// FlowsTotal tracks completed flows by name and outcome.
	FlowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "flows_total",
			Help:      "Total number of biometric flows by flow and status",
		},
		[]string{LabelFlow, LabelStatus},
	)

	// FlowDuration tracks end-to-end flow duration in seconds. Buckets
	// stretch far past typical HTTP latencies because the authenticator
	// gesture can keep a flow suspended for tens of seconds.
	FlowDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "flow_duration_seconds",
			Help:      "Duration of biometric flows in seconds",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{LabelFlow},
	)

	// FlowFailuresTotal tracks failures by flow and classified kind
	// (permission_denied, cancelled, server_rejected, network, ...).
	FlowFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "flow_failures_total",
			Help:      "Total number of biometric flow failures by flow and kind",
		},
		[]string{LabelFlow, LabelKind},
	)
)

// RecordFlow records one completed flow. kind is empty on success.
func RecordFlow(flow string, start time.Time, kind string) {
	status := StatusSuccess
	if kind != "" {
		status = StatusError
		FlowFailuresTotal.WithLabelValues(flow, kind).Inc()
	}
	FlowsTotal.WithLabelValues(flow, status).Inc()
	FlowDuration.WithLabelValues(flow).Observe(time.Since(start).Seconds())
}
