// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package farcall

import (
	"expvar"
	"time"
)

// Metrics record call activity counters for one transport instance. Each
// instance owns its own counters, so replacing a transport implicitly starts
// them fresh.
type Metrics struct {
	Calls   expvar.Int   // number of calls attempted
	Errors  expvar.Int   // number of calls reporting an error
	Seconds expvar.Float // cumulative call time in seconds

	emap *expvar.Map
}

// NewMetrics constructs a fresh Metrics value with all counters zero.
func NewMetrics() *Metrics {
	m := &Metrics{emap: new(expvar.Map)}
	m.emap.Set("calls", &m.Calls)
	m.emap.Set("calls_failed", &m.Errors)
	m.emap.Set("call_seconds", &m.Seconds)
	return m
}

// Map returns a metrics map for m. It is safe for the caller to add
// additional metrics to the map while the transport is active.
func (m *Metrics) Map() *expvar.Map { return m.emap }

// Observe records the outcome of one completed call.
func (m *Metrics) Observe(elapsed time.Duration, err error) {
	m.Calls.Add(1)
	if err != nil {
		m.Errors.Add(1)
	}
	m.Seconds.Add(elapsed.Seconds())
}

// Snapshot folds the counters into a Health value for the given mode label
// and connection state.
func (m *Metrics) Snapshot(mode string, connected bool) Health {
	calls, errs := m.Calls.Value(), m.Errors.Value()
	h := Health{Mode: mode, Connected: connected, Calls: calls, Errors: errs}
	if calls > 0 {
		h.ErrorRate = float64(errs) / float64(calls)
		h.AvgElapsed = time.Duration(m.Seconds.Value() / float64(calls) * float64(time.Second))
	}
	return h
}
