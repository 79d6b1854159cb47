// Copyright 2015 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package fuse3

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Operation metrics. Safe for concurrent use.
type metrics struct {
	operations        *prometheus.CounterVec
	latency           *prometheus.HistogramVec
	// Shared by every session using the same Registerer; each one adds and
	// removes only its own calls.
	queueDepth        prometheus.Gauge
	doubleCompletions *prometheus.CounterVec
}

// Create metrics, registering them with reg if it is non-nil. Collectors
// that reg already holds are reused.
func newMetrics(reg prometheus.Registerer) (m *metrics, err error) {
	m = &metrics{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "fuse3",
				Name:      "operations_total",
				Help:      "Operations answered, by kind and outcome.",
			},
			[]string{"op", "outcome"}),

		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "fuse3",
				Name:      "operation_duration_seconds",
				Help:      "Time from submission to completion of an operation.",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
			},
			[]string{"op"}),

		queueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "fuse3",
				Name:      "dispatch_queue_depth",
				Help:      "Operations waiting for a handler goroutine, summed over all sessions.",
			}),

		doubleCompletions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "fuse3",
				Name:      "double_completions_total",
				Help:      "Completions ignored because the operation was already finished.",
			},
			[]string{"op"}),
	}

	if reg == nil {
		return
	}

	if err = register(reg, &m.operations); err != nil {
		return
	}

	if err = register(reg, &m.latency); err != nil {
		return
	}

	if err = register(reg, &m.queueDepth); err != nil {
		return
	}

	if err = register(reg, &m.doubleCompletions); err != nil {
		return
	}

	return
}

// Register *c with reg, replacing *c with the existing collector if an
// identical one is already registered.
func register[C prometheus.Collector](reg prometheus.Registerer, c *C) error {
	err := reg.Register(*c)

	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		existing, ok := are.ExistingCollector.(C)
		if !ok {
			return err
		}

		*c = existing
		return nil
	}

	return err
}

func (m *metrics) observe(op string, status int, d time.Duration) {
	m.operations.WithLabelValues(op, describeStatus(status)).Inc()
	m.latency.WithLabelValues(op).Observe(d.Seconds())
}
