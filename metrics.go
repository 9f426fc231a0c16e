// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package fhevm

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects client level counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	bootstrapLatencyMS prometheus.Histogram
	bootstraps         prometheus.Counter
	bootstrapFailures  prometheus.Counter
	encryptions        *prometheus.CounterVec
	decryptions        *prometheus.CounterVec
}

// NewMetrics creates the client metrics and registers them on registerer.
func NewMetrics(registerer prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		bootstrapLatencyMS: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "fhevm_engine_bootstrap_latency_ms",
				Help:    "Latency of engine bootstrap in milliseconds",
				Buckets: prometheus.ExponentialBucketsRange(10, 60000, 10),
			},
		),
		bootstraps: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "fhevm_engine_bootstraps",
				Help: "Number of engine bootstrap attempts",
			},
		),
		bootstrapFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "fhevm_engine_bootstrap_failures",
				Help: "Number of failed engine bootstraps",
			},
		),
		encryptions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fhevm_encryptions",
				Help: "Number of encryptions by type and outcome",
			},
			[]string{"type", "outcome"},
		),
		decryptions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fhevm_decryptions",
				Help: "Number of decryption requests by mode and outcome",
			},
			[]string{"mode", "outcome"},
		),
	}
	for _, c := range []prometheus.Collector{
		m.bootstrapLatencyMS,
		m.bootstraps,
		m.bootstrapFailures,
		m.encryptions,
		m.decryptions,
	} {
		if err := registerer.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

func (m *Metrics) observeBootstrap(ms float64, err error) {
	if m == nil {
		return
	}
	m.bootstraps.Inc()
	m.bootstrapLatencyMS.Observe(ms)
	if err != nil {
		m.bootstrapFailures.Inc()
	}
}

func (m *Metrics) observeEncrypt(typ string, err error) {
	if m == nil {
		return
	}
	m.encryptions.WithLabelValues(typ, outcome(err)).Inc()
}

func (m *Metrics) observeDecrypt(mode string, err error) {
	if m == nil {
		return
	}
	m.decryptions.WithLabelValues(mode, outcome(err)).Inc()
}
