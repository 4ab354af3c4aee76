package report

import (
	"context"
	"sync"
	"time"

	"github.com/user/classwatch/internal/types"
)

// idleReportStep is the granularity of idle reporting: only completed
// windows of this many seconds are ever posted.
const idleReportStep = 10

// IdleMonitor counts seconds since the last user activity and reports idle
// time to the backend in exact 10-second increments. A watermark tracks how
// much has been reported so restarts and resets never double-count.
type IdleMonitor struct {
	reporter *Reporter
	display  types.Display

	mu        sync.Mutex
	running   bool
	seconds   int
	watermark int
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewIdleMonitor creates an idle monitor wired to the reporter and display.
func NewIdleMonitor(reporter *Reporter, display types.Display) *IdleMonitor {
	return &IdleMonitor{reporter: reporter, display: display}
}

// Start resets the counter and begins the 1-second idle timer. No-op if
// already running.
func (m *IdleMonitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.seconds = 0
	m.watermark = 0
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	done := m.done
	m.mu.Unlock()

	m.display.SetIdle(0)

	go func() {
		defer close(done)
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				m.tick(runCtx)
			}
		}
	}()
}

// Stop cancels the idle timer. Idempotent.
func (m *IdleMonitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	cancel()
	<-done
}

// Reset zeroes the idle counter and the report watermark. Called on any
// tracked user-activity event.
func (m *IdleMonitor) Reset() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.seconds = 0
	m.watermark = 0
	m.mu.Unlock()

	m.display.SetIdle(0)
}

// Seconds returns the current idle count.
func (m *IdleMonitor) Seconds() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seconds
}

// tick advances the counter by one second and reports a completed
// 10-second window when one has accumulated past the watermark.
func (m *IdleMonitor) tick(ctx context.Context) {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.seconds++
	seconds := m.seconds
	delta := m.seconds - m.watermark
	fire := seconds >= idleReportStep && delta >= idleReportStep
	if fire {
		m.watermark = m.seconds
	}
	m.mu.Unlock()

	m.display.SetIdle(seconds)
	if fire {
		m.reporter.ReportSignal(ctx, types.EventIdle, map[string]int{"duration_s": delta})
	}
}
