// Package monitor owns one capture run end to end: it is the single object
// through which all start/stop mutation flows.
package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/user/classwatch/internal/capture"
	"github.com/user/classwatch/internal/engage"
	"github.com/user/classwatch/internal/report"
	"github.com/user/classwatch/internal/session"
	"github.com/user/classwatch/internal/types"
)

// Monitor coordinates the capture scheduler, the engage client, the
// reporter, and the idle monitor under a single started flag.
type Monitor struct {
	backend  types.Backend
	sched    *capture.Scheduler
	client   *engage.Client
	reporter *report.Reporter
	idle     *report.IdleMonitor
	sessions *session.Manager
	display  types.Display

	mu      sync.Mutex
	started bool
}

// New wires a Monitor from its collaborators.
func New(backend types.Backend, sched *capture.Scheduler, client *engage.Client, reporter *report.Reporter, idle *report.IdleMonitor, sessions *session.Manager, display types.Display) *Monitor {
	return &Monitor{
		backend:  backend,
		sched:    sched,
		client:   client,
		reporter: reporter,
		idle:     idle,
		sessions: sessions,
		display:  display,
	}
}

// Started reports whether a capture run is active.
func (m *Monitor) Started() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

// Start begins a capture run. Idempotent while running. If no video source
// is obtainable the monitor stays stopped, the error is surfaced on the
// display, and no timers are left behind.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	if err := m.sched.Start(ctx); err != nil {
		m.display.Logf("Error: no video source.")
		m.display.SetRunning(false)
		slog.Error("start failed", "error", err)
		return err
	}

	m.mu.Lock()
	m.started = true
	m.mu.Unlock()

	m.client.Activate()
	m.reporter.Activate()
	m.idle.Start(ctx)
	m.display.SetRunning(true)
	m.display.Logf("Started.")

	// Warm the session so the first events don't race its creation.
	go func() {
		warmCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if _, err := m.sessions.Ensure(warmCtx); err != nil {
			m.display.Logf("Failed to create session.")
			slog.Warn("session warm-up failed", "error", err)
		} else {
			m.display.Logf("Session id: %s", m.sessions.Current())
		}
	}()

	return nil
}

// Stop ends the capture run, cancels all timers, and posts a best-effort
// stop for the session. Idempotent. In-flight backend calls are not
// cancelled; deactivation gates their completions out of any side effects.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return
	}
	m.started = false
	m.mu.Unlock()

	m.client.Deactivate()
	m.reporter.Deactivate()
	m.idle.Stop()
	m.sched.Stop()

	m.display.SetRunning(false)
	m.display.Logf("Stopped.")

	sid := m.sessions.Invalidate()
	if sid != "" {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := m.backend.StopSession(ctx, sid); err != nil {
				slog.Warn("session stop failed", "session_id", sid, "error", err)
			}
		}()
	}
}
