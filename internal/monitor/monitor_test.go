package monitor

import (
	"context"
	"errors"
	"image"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/user/classwatch/internal/alert"
	"github.com/user/classwatch/internal/capture"
	"github.com/user/classwatch/internal/engage"
	"github.com/user/classwatch/internal/report"
	"github.com/user/classwatch/internal/session"
	"github.com/user/classwatch/internal/types"
)

type fakeBackend struct {
	mu     sync.Mutex
	starts int
	stops  []types.SessionID
	events int
}

func (b *fakeBackend) StartSession(ctx context.Context, req *types.SessionRequest) (types.SessionID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.starts++
	return "sess-1", nil
}

func (b *fakeBackend) Identify(ctx context.Context, frame *types.Frame, camera types.CameraID, session types.SessionID) (*types.IdentifyResult, error) {
	return &types.IdentifyResult{Pending: true}, nil
}

func (b *fakeBackend) Infer(ctx context.Context, frame *types.Frame, camera types.CameraID, session types.SessionID) (*types.InferenceResult, error) {
	return &types.InferenceResult{State: "awake", Score: 0.9}, nil
}

func (b *fakeBackend) PostEvent(ctx context.Context, event *types.EngagementEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events++
	return nil
}

func (b *fakeBackend) StopSession(ctx context.Context, session types.SessionID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stops = append(b.stops, session)
	return nil
}

func (b *fakeBackend) stoppedSessions() []types.SessionID {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]types.SessionID(nil), b.stops...)
}

type fakeDisplay struct {
	mu      sync.Mutex
	running []bool
	lines   []string
}

func (d *fakeDisplay) SetIdentity(identity types.Identity)  {}
func (d *fakeDisplay) SetState(state string, score float64) {}
func (d *fakeDisplay) SetIdle(seconds int)                  {}
func (d *fakeDisplay) SetTab(status string)                 {}

func (d *fakeDisplay) SetRunning(running bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.running = append(d.running, running)
}

func (d *fakeDisplay) Logf(format string, args ...any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lines = append(d.lines, format)
}

func (d *fakeDisplay) hasLine(prefix string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, line := range d.lines {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

func (d *fakeDisplay) lastRunning() (bool, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.running) == 0 {
		return false, false
	}
	return d.running[len(d.running)-1], true
}

type fakeSource struct{}

func (s *fakeSource) Next() (image.Image, error) {
	return image.NewRGBA(image.Rect(0, 0, 320, 240)), nil
}

func (s *fakeSource) Close() error { return nil }

func newTestMonitor(b *fakeBackend, pick capture.PickFunc) (*Monitor, *fakeDisplay) {
	display := &fakeDisplay{}
	sessions := session.NewManager(b, types.SessionRequest{CourseID: "CSC4400"})
	reporter := report.New(b, sessions, "MEET_TAB", nil)
	idle := report.NewIdleMonitor(reporter, display)
	alerter := alert.New(0.70, time.Minute)
	client := engage.New(b, sessions, reporter, alerter, display, "MEET_TAB", engage.Options{
		IdentifyInterval: time.Hour,
		InferInterval:    time.Hour,
	})
	sched := capture.NewScheduler(capture.Options{
		Interval: 20 * time.Millisecond,
		CropSize: 64,
		Quality:  60,
	}, pick, client.OnFrame)
	return New(b, sched, client, reporter, idle, sessions, display), display
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
		case <-ticker.C:
			if cond() {
				return
			}
		}
	}
}

func TestStartFailureLeavesStopped(t *testing.T) {
	b := &fakeBackend{}
	pick := func(ctx context.Context) (capture.Source, error) {
		return nil, errors.New("no video source available")
	}
	mon, display := newTestMonitor(b, pick)

	if err := mon.Start(context.Background()); err == nil {
		t.Fatal("expected start failure surfaced")
	}
	if mon.Started() {
		t.Error("expected monitor stopped after failed start")
	}
	if !display.hasLine("Error: no video source.") {
		t.Error("expected error line on the display")
	}
	if running, ok := display.lastRunning(); !ok || running {
		t.Error("expected display showing not running")
	}

	b.mu.Lock()
	starts := b.starts
	b.mu.Unlock()
	if starts != 0 {
		t.Errorf("expected no session created on failed start, got %d", starts)
	}
}

func TestStartStopLifecycle(t *testing.T) {
	b := &fakeBackend{}
	pick := func(ctx context.Context) (capture.Source, error) { return &fakeSource{}, nil }
	mon, display := newTestMonitor(b, pick)

	if err := mon.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !mon.Started() {
		t.Fatal("expected monitor started")
	}
	if running, ok := display.lastRunning(); !ok || !running {
		t.Error("expected display showing running")
	}

	// The warm-up goroutine creates the session.
	waitFor(t, "session warm-up", func() bool {
		b.mu.Lock()
		defer b.mu.Unlock()
		return b.starts > 0
	})

	// Start while running is a no-op.
	if err := mon.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	mon.Stop()
	if mon.Started() {
		t.Error("expected monitor stopped")
	}
	if running, ok := display.lastRunning(); !ok || running {
		t.Error("expected display showing not running")
	}

	// The best-effort session stop lands asynchronously.
	waitFor(t, "session stop", func() bool {
		return len(b.stoppedSessions()) == 1
	})
	if stops := b.stoppedSessions(); stops[0] != "sess-1" {
		t.Errorf("expected sess-1 stopped, got %v", stops)
	}

	// Stop while stopped is a no-op.
	mon.Stop()
	waitFor(t, "no duplicate session stop", func() bool {
		return len(b.stoppedSessions()) == 1
	})
}
