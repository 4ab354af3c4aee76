package report

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/user/classwatch/internal/session"
	"github.com/user/classwatch/internal/types"
)

type fakeBackend struct {
	startErr error

	mu     sync.Mutex
	starts int
	events []*types.EngagementEvent
}

func (b *fakeBackend) StartSession(ctx context.Context, req *types.SessionRequest) (types.SessionID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.starts++
	if b.startErr != nil {
		return "", b.startErr
	}
	return "sess-1", nil
}

func (b *fakeBackend) Identify(ctx context.Context, frame *types.Frame, camera types.CameraID, session types.SessionID) (*types.IdentifyResult, error) {
	return &types.IdentifyResult{Pending: true}, nil
}

func (b *fakeBackend) Infer(ctx context.Context, frame *types.Frame, camera types.CameraID, session types.SessionID) (*types.InferenceResult, error) {
	return &types.InferenceResult{}, nil
}

func (b *fakeBackend) PostEvent(ctx context.Context, event *types.EngagementEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
	return nil
}

func (b *fakeBackend) StopSession(ctx context.Context, session types.SessionID) error {
	return nil
}

func (b *fakeBackend) posted() []*types.EngagementEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*types.EngagementEvent(nil), b.events...)
}

type recordingSink struct {
	mu     sync.Mutex
	events []*types.EngagementEvent
}

func (s *recordingSink) Emit(ctx context.Context, event *types.EngagementEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func newTestReporter(b *fakeBackend, sinks ...types.EventSink) *Reporter {
	sessions := session.NewManager(b, types.SessionRequest{CourseID: "CSC4400"})
	identity := func() types.Identity { return types.Identity{ID: "stu-1", Name: "Alice"} }
	return New(b, sessions, "MEET_TAB", identity, sinks...)
}

func TestReportDroppedWhileInactive(t *testing.T) {
	b := &fakeBackend{}
	r := newTestReporter(b)

	r.ReportInference(context.Background(), &types.InferenceResult{State: types.StateAwake, Score: 0.9})

	if n := len(b.posted()); n != 0 {
		t.Errorf("expected no events while inactive, got %d", n)
	}
}

func TestReportDroppedWithoutSession(t *testing.T) {
	b := &fakeBackend{startErr: errors.New("backend down")}
	r := newTestReporter(b)
	r.Activate()

	r.ReportSignal(context.Background(), types.EventTabAway, nil)

	if n := len(b.posted()); n != 0 {
		t.Errorf("expected silent drop when no session resolves, got %d events", n)
	}
}

func TestReportInferenceEnvelope(t *testing.T) {
	b := &fakeBackend{}
	sink := &recordingSink{}
	r := newTestReporter(b, sink)
	r.Activate()

	bbox := &types.Rect{X: 10, Y: 20, W: 100, H: 120}
	r.ReportInference(context.Background(), &types.InferenceResult{State: types.StateDrowsy, Score: 0.82, BBox: bbox})

	events := b.posted()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	e := events[0]
	if e.SessionID != "sess-1" {
		t.Errorf("expected session id attached, got %q", e.SessionID)
	}
	if e.CourseID != "CSC4400" || e.CameraID != "MEET_TAB" {
		t.Errorf("unexpected envelope course/camera: %q/%q", e.CourseID, e.CameraID)
	}
	if e.StudentID != "stu-1" || e.Name != "Alice" {
		t.Errorf("unexpected envelope identity: %q/%q", e.StudentID, e.Name)
	}
	if e.State != types.StateDrowsy || e.StateScore == nil || *e.StateScore != 0.82 {
		t.Errorf("unexpected state fields: %q %v", e.State, e.StateScore)
	}
	if e.BBox == nil || e.BBox.W != 100 {
		t.Errorf("expected bbox carried through, got %+v", e.BBox)
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.events) != 1 {
		t.Errorf("expected sink to receive the event, got %d", len(sink.events))
	}
}

func TestReportSignalValue(t *testing.T) {
	b := &fakeBackend{}
	r := newTestReporter(b)
	r.Activate()

	r.ReportSignal(context.Background(), types.EventIdle, map[string]int{"duration_s": 10})

	events := b.posted()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Type != types.EventIdle {
		t.Errorf("expected type %q, got %q", types.EventIdle, events[0].Type)
	}
	var value map[string]int
	if err := json.Unmarshal(events[0].Value, &value); err != nil {
		t.Fatalf("unmarshal value: %v", err)
	}
	if value["duration_s"] != 10 {
		t.Errorf("expected duration_s 10, got %d", value["duration_s"])
	}
}

func TestSessionReusedAcrossReports(t *testing.T) {
	b := &fakeBackend{}
	r := newTestReporter(b)
	r.Activate()

	for i := 0; i < 3; i++ {
		r.ReportSignal(context.Background(), types.EventTabBack, nil)
	}

	b.mu.Lock()
	starts := b.starts
	b.mu.Unlock()
	if starts != 1 {
		t.Errorf("expected 1 session creation across reports, got %d", starts)
	}
}
