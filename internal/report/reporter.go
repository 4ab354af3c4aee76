// Package report normalizes inference results and local signals into the
// uniform engagement event envelope posted to the backend.
package report

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/user/classwatch/internal/session"
	"github.com/user/classwatch/internal/types"
)

// Reporter posts engagement events. Every report lazily ensures a session
// exists; when no session or course can be resolved the event is dropped
// silently, with no retry and no queue.
type Reporter struct {
	backend  types.Backend
	sessions *session.Manager
	camera   types.CameraID
	identity func() types.Identity
	sinks    []types.EventSink

	active atomic.Bool
}

// New creates a Reporter. identity supplies the current resolved identity at
// report time. Sinks receive a best-effort copy of every posted event.
func New(backend types.Backend, sessions *session.Manager, camera types.CameraID, identity func() types.Identity, sinks ...types.EventSink) *Reporter {
	if identity == nil {
		identity = func() types.Identity { return types.Identity{} }
	}
	return &Reporter{
		backend:  backend,
		sessions: sessions,
		camera:   camera,
		identity: identity,
		sinks:    sinks,
	}
}

// Activate enables reporting. Events reported while inactive are dropped;
// this is what gates out late completions after a stop.
func (r *Reporter) Activate() { r.active.Store(true) }

// Deactivate disables reporting.
func (r *Reporter) Deactivate() { r.active.Store(false) }

// Active reports whether the reporter is accepting events.
func (r *Reporter) Active() bool { return r.active.Load() }

// ReportInference posts an inference-driven event (state, score, bbox).
func (r *Reporter) ReportInference(ctx context.Context, res *types.InferenceResult) {
	score := res.Score
	event := r.envelope()
	event.State = res.State
	event.StateScore = &score
	event.BBox = res.BBox
	r.post(ctx, event)
}

// ReportSignal posts a discrete signal event (idle, tab_away, tab_back,
// verified). value, when non-nil, is marshaled into the event's value field.
func (r *Reporter) ReportSignal(ctx context.Context, eventType string, value any) {
	event := r.envelope()
	event.Type = eventType
	if value != nil {
		data, err := json.Marshal(value)
		if err != nil {
			slog.Warn("signal value marshal failed", "type", eventType, "error", err)
			return
		}
		event.Value = data
	}
	r.post(ctx, event)
}

func (r *Reporter) envelope() *types.EngagementEvent {
	identity := r.identity()
	return &types.EngagementEvent{
		CourseID:  r.sessions.CourseID(),
		CameraID:  r.camera,
		StudentID: identity.ID,
		Name:      identity.Display(),
		TS:        time.Now().Unix(),
	}
}

func (r *Reporter) post(ctx context.Context, event *types.EngagementEvent) {
	if !r.active.Load() {
		return
	}

	sid, err := r.sessions.Ensure(ctx)
	if err != nil {
		slog.Debug("event dropped, no session", "type", event.Type, "error", err)
		return
	}
	event.SessionID = sid

	if err := r.backend.PostEvent(ctx, event); err != nil {
		slog.Warn("event post failed", "type", event.Type, "state", event.State, "error", err)
		return
	}

	for _, sink := range r.sinks {
		if err := sink.Emit(ctx, event); err != nil {
			slog.Warn("event sink failed", "error", err)
		}
	}
}
