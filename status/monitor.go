// Package status keeps track of the refresh cycles and reports on them over
// HTTP and the gRPC health service.
package status

import (
	"sync"
	"time"

	"devtracker-bot/tracker"
)

// HealthSetter receives the pipeline health after every cycle.
type HealthSetter interface {
	SetServing(serving bool)
}

// Snapshot is the state served by /status and the dt-stats command.
type Snapshot struct {
	Healthy   bool                 `json:"healthy"`
	StartedAt time.Time            `json:"started_at"`
	Cycles    int                  `json:"cycles"`
	Aborted   int                  `json:"aborted"`
	LastCycle *tracker.CycleReport `json:"last_cycle,omitempty"`
	LastError string               `json:"last_error,omitempty"`
}

// Monitor records the outcome of refresh cycles. It is safe for concurrent use.
type Monitor struct {
	setters []HealthSetter

	mu      sync.RWMutex
	started time.Time
	healthy bool
	cycles  int
	aborted int
	last    *tracker.CycleReport
	lastErr error
}

func NewMonitor(setters ...HealthSetter) *Monitor {
	return &Monitor{setters: setters, started: time.Now()}
}

// Record stores the result of a cycle. A cycle is healthy when it ran and
// fetched at least one game, or had nothing to fetch.
func (m *Monitor) Record(report *tracker.CycleReport, err error) {
	healthy := err == nil && report != nil && (report.Fetched > 0 || report.Games == 0)

	m.mu.Lock()
	m.cycles++
	if err != nil {
		m.aborted++
	}
	m.healthy = healthy
	m.last = report
	m.lastErr = err
	m.mu.Unlock()

	for _, s := range m.setters {
		s.SetServing(healthy)
	}
}

func (m *Monitor) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := Snapshot{
		Healthy:   m.healthy,
		StartedAt: m.started,
		Cycles:    m.cycles,
		Aborted:   m.aborted,
		LastCycle: m.last,
	}
	if m.lastErr != nil {
		snap.LastError = m.lastErr.Error()
	}
	return snap
}
