// Copyright 2026 The Plangate Authors
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

// Package metrics exposes gate decisions recorded in the audit trail as
// Prometheus metrics.
//
// Hook invocations are short-lived processes, so nothing is counted in
// memory. The Collector reads the audit trail at collection time and emits
// constant metrics, which makes it usable both for a one-shot text dump
// and behind a long-running /metrics endpoint.
package metrics

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/peg/plangate/internal/audit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"
)

// evalBuckets are the evaluation duration histogram buckets in seconds.
var evalBuckets = []float64{
	0.000001, 0.000005, 0.00001, 0.00005,
	0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1,
}

var (
	decisionsDesc = prometheus.NewDesc(
		"plangate_decisions_total",
		"Total number of gate decisions by action, gate and request kind.",
		[]string{"action", "gate", "kind"}, nil,
	)
	evalDurationDesc = prometheus.NewDesc(
		"plangate_eval_duration_seconds",
		"Gate evaluation duration in seconds.",
		nil, nil,
	)
	sessionsDesc = prometheus.NewDesc(
		"plangate_sessions",
		"Number of distinct agent sessions seen in the window.",
		nil, nil,
	)
	lastDecisionDesc = prometheus.NewDesc(
		"plangate_last_decision_timestamp_seconds",
		"Unix time of the most recent recorded decision.",
		nil, nil,
	)
)

// DecisionKey groups decisions for plangate_decisions_total.
type DecisionKey struct {
	Action string
	Gate   string
	Kind   string
}

// Summary aggregates a slice of audit events.
type Summary struct {
	Decisions map[DecisionKey]int
	Sessions  map[string]struct{}
	Durations []time.Duration
	Last      time.Time
}

// Summarize aggregates events. An event that did not allow is counted once
// per gate that fired; an allow is counted under gate "none".
func Summarize(events []audit.Event) Summary {
	s := Summary{
		Decisions: make(map[DecisionKey]int),
		Sessions:  make(map[string]struct{}),
	}
	for _, e := range events {
		gates := e.Decision.Gates
		if len(gates) == 0 {
			gates = []string{"none"}
		}
		for _, g := range gates {
			s.Decisions[DecisionKey{Action: e.Decision.Action, Gate: g, Kind: e.Kind}]++
		}
		if e.Session != "" {
			s.Sessions[e.Session] = struct{}{}
		}
		s.Durations = append(s.Durations, time.Duration(e.Decision.EvalTimeUS)*time.Microsecond)
		if e.Timestamp.After(s.Last) {
			s.Last = e.Timestamp
		}
	}
	return s
}

// Keys returns the decision keys in a stable order.
func (s Summary) Keys() []DecisionKey {
	keys := make([]DecisionKey, 0, len(s.Decisions))
	for k := range s.Decisions {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.Action != b.Action {
			return a.Action < b.Action
		}
		if a.Gate != b.Gate {
			return a.Gate < b.Gate
		}
		return a.Kind < b.Kind
	})
	return keys
}

// Collector is a prometheus.Collector over an audit directory.
type Collector struct {
	dir    string
	window time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// NewCollector creates a collector over dir. A zero window reads the
// whole trail; otherwise only events newer than now-window count.
func NewCollector(dir string, window time.Duration, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{dir: dir, window: window, now: time.Now, logger: logger}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- decisionsDesc
	ch <- evalDurationDesc
	ch <- sessionsDesc
	ch <- lastDecisionDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	var since time.Time
	if c.window > 0 {
		since = c.now().Add(-c.window)
	}
	events, err := audit.ReadDir(c.dir, since)
	if err != nil {
		c.logger.Warn("metrics: read audit trail", "dir", c.dir, "error", err)
		ch <- prometheus.NewInvalidMetric(decisionsDesc, err)
		return
	}

	s := Summarize(events)
	for _, k := range s.Keys() {
		ch <- prometheus.MustNewConstMetric(decisionsDesc, prometheus.CounterValue,
			float64(s.Decisions[k]), k.Action, k.Gate, k.Kind)
	}

	count, sum, buckets := histogram(s.Durations)
	ch <- prometheus.MustNewConstHistogram(evalDurationDesc, count, sum, buckets)
	ch <- prometheus.MustNewConstMetric(sessionsDesc, prometheus.GaugeValue, float64(len(s.Sessions)))
	if !s.Last.IsZero() {
		ch <- prometheus.MustNewConstMetric(lastDecisionDesc, prometheus.GaugeValue,
			float64(s.Last.UnixNano())/1e9)
	}
}

// histogram computes cumulative bucket counts over evalBuckets.
func histogram(durations []time.Duration) (uint64, float64, map[float64]uint64) {
	buckets := make(map[float64]uint64, len(evalBuckets))
	var sum float64
	for _, d := range durations {
		sec := d.Seconds()
		sum += sec
		for _, b := range evalBuckets {
			if sec <= b {
				buckets[b]++
			}
		}
	}
	for _, b := range evalBuckets {
		if _, ok := buckets[b]; !ok {
			buckets[b] = 0
		}
	}
	return uint64(len(durations)), sum, buckets
}

// NewRegistry returns a registry holding the collector. withRuntime adds
// the Go runtime and process collectors, for long-running exporters.
func NewRegistry(c *Collector, withRuntime bool) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(c)
	if withRuntime {
		reg.MustRegister(
			prometheus.NewGoCollector(),
			prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		)
	}
	return reg
}

// WriteText gathers g and writes the text exposition format to w.
func WriteText(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("metrics: gather: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("metrics: encode %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
