// internal/types/interfaces.go
package types

import "context"

// Backend is the remote identification/inference/telemetry surface. The core
// loop issues logical requests through this interface and is agnostic to how
// they reach the network.
type Backend interface {
	StartSession(ctx context.Context, req *SessionRequest) (SessionID, error)
	Identify(ctx context.Context, frame *Frame, camera CameraID, session SessionID) (*IdentifyResult, error)
	Infer(ctx context.Context, frame *Frame, camera CameraID, session SessionID) (*InferenceResult, error)
	PostEvent(ctx context.Context, event *EngagementEvent) error
	StopSession(ctx context.Context, session SessionID) error
}

// EventSink receives a copy of every engagement event the reporter posts.
// Sinks are best-effort; a failing sink never blocks the primary post.
type EventSink interface {
	Emit(ctx context.Context, event *EngagementEvent) error
}

// Notifier delivers a drowsiness alert to the student. Delivery is
// best-effort and never retried.
type Notifier interface {
	Notify(ctx context.Context, state string, score float64) error
}

// Display is the live status view (the injected overlay widget in the
// browser deployment). A pure view: implementations must tolerate updates
// arriving out of order and always show the latest write.
type Display interface {
	SetIdentity(identity Identity)
	SetState(state string, score float64)
	SetIdle(seconds int)
	SetTab(status string)
	SetRunning(running bool)
	Logf(format string, args ...any)
}
