// Package health polls the backend on a fixed interval and drives the
// connectivity indicator.
package health

import (
	"context"
	"sync"
	"time"

	"satfusion-desktop/internal/backend"
	"satfusion-desktop/internal/logging"
	"satfusion-desktop/internal/observability"
)

// Checker probes backend health.
type Checker interface {
	Health(ctx context.Context) backend.HealthStatus
}

// Monitor runs a check on every tick without waiting for the previous one
// to finish. Checks are read-only, so overlapping runs are harmless.
type Monitor struct {
	checker  Checker
	interval time.Duration
	timeout  time.Duration
	onChange func(backend.HealthStatus)
	metrics  *observability.Collector
	log      logging.Logger

	mu     sync.RWMutex
	last   backend.HealthStatus
	known  bool
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMonitor creates a monitor. onChange is called whenever connectivity
// flips, and once for the first result.
func NewMonitor(checker Checker, interval time.Duration, onChange func(backend.HealthStatus), metrics *observability.Collector, log logging.Logger) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if log == nil {
		log = logging.Noop()
	}
	return &Monitor{
		checker:  checker,
		interval: interval,
		timeout:  5 * time.Second,
		onChange: onChange,
		metrics:  metrics,
		log:      log,
		last:     backend.HealthStatus{Status: "unknown"},
	}
}

// Start begins polling until Stop or ctx cancellation.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.cancel != nil {
		m.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		m.spawn(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.spawn(ctx)
			}
		}
	}()
}

// Stop halts polling and waits for in-flight checks.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
}

func (m *Monitor) spawn(ctx context.Context) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.CheckNow(ctx)
	}()
}

// CheckNow runs one check and records its result.
func (m *Monitor) CheckNow(ctx context.Context) backend.HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	st := m.checker.Health(ctx)

	m.mu.Lock()
	changed := !m.known || m.last.Connected != st.Connected
	m.last = st
	m.known = true
	m.mu.Unlock()

	m.metrics.SetConnected(st.Connected)
	if changed {
		m.log.Info(ctx, "health.connectivity_changed",
			logging.String("status", st.Status),
			logging.Any("connected", st.Connected))
		if m.onChange != nil {
			m.onChange(st)
		}
	}
	return st
}

// Status returns the most recent result.
func (m *Monitor) Status() backend.HealthStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}
