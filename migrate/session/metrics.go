// Copyright 2021-present The Atlas Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package session

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"deploydb.io/deploy/migrate"
)

// Metrics is additive observability alongside the per-database log file,
// which remains the source of truth (spec SPEC_FULL "Metrics [NEW]").
type Metrics struct {
	applied  *prometheus.CounterVec
	errors   *prometheus.CounterVec
	inFlight *prometheus.GaugeVec
}

// NewMetrics registers three collectors against reg: applied migrations
// by phase, validation/execution errors by kind, and in-flight targets by
// parallel-set index.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		applied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "deploydb",
			Subsystem: "migrate",
			Name:      "applied_total",
			Help:      "Migrations successfully applied, labeled by phase.",
		}, []string{"phase"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "deploydb",
			Subsystem: "migrate",
			Name:      "errors_total",
			Help:      "Validation and execution errors, labeled by kind.",
		}, []string{"kind"}),
		inFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "deploydb",
			Subsystem: "migrate",
			Name:      "targets_in_flight",
			Help:      "Targets currently being applied, labeled by parallel-set index.",
		}, []string{"set"}),
	}
	reg.MustRegister(m.applied, m.errors, m.inFlight)
	return m
}

// ObserveApplied implements apply.Metrics.
func (m *Metrics) ObserveApplied(phase migrate.Phase) {
	if m == nil {
		return
	}
	m.applied.WithLabelValues(phase.String()).Inc()
}

// ObserveError implements apply.Metrics.
func (m *Metrics) ObserveError(kind string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(kind).Inc()
}

func (m *Metrics) setInFlight(set, n int) {
	if m == nil {
		return
	}
	m.inFlight.WithLabelValues(strconv.Itoa(set)).Set(float64(n))
}
