// Package engage runs the per-frame identify/infer loop against the backend
// and fans results out to the reporter, the alerter, and the display.
package engage

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/user/classwatch/internal/alert"
	"github.com/user/classwatch/internal/report"
	"github.com/user/classwatch/internal/session"
	"github.com/user/classwatch/internal/types"
)

// Options configures the engage client cadences.
type Options struct {
	// IdentifyInterval is the minimum spacing between identify attempts,
	// regardless of outcome.
	IdentifyInterval time.Duration
	// InferInterval is the fixed cadence of state inference.
	InferInterval time.Duration
	// ReidentifyInterval is how long a resolved identity is trusted before
	// periodic re-verification resumes.
	ReidentifyInterval time.Duration
	// ClearIdentityOnStop controls whether Deactivate forgets the resolved
	// identity or carries it into the next run.
	ClearIdentityOnStop bool
}

type verifiedKey struct {
	session types.SessionID
	student types.StudentID
}

// Client gates and dispatches the two per-frame backend calls. Identify and
// infer never overlap with themselves (weight-1 semaphores) but may overlap
// with each other; a frame arriving while a call of the same kind is in
// flight is simply not processed by that call.
type Client struct {
	backend  types.Backend
	sessions *session.Manager
	reporter *report.Reporter
	alerter  *alert.Alerter
	display  types.Display
	camera   types.CameraID
	opts     Options

	identifySem *semaphore.Weighted
	inferSem    *semaphore.Weighted
	inflight    sync.WaitGroup

	mu             sync.Mutex
	active         bool
	identity       types.Identity
	identifiedAt   time.Time
	lastIdentifyAt time.Time
	lastInferAt    time.Time
	lastStateShown string
	searchShown    bool
	verified       map[verifiedKey]bool
}

// New creates the engage client.
func New(backend types.Backend, sessions *session.Manager, reporter *report.Reporter, alerter *alert.Alerter, display types.Display, camera types.CameraID, opts Options) *Client {
	return &Client{
		backend:     backend,
		sessions:    sessions,
		reporter:    reporter,
		alerter:     alerter,
		display:     display,
		camera:      camera,
		opts:        opts,
		identifySem: semaphore.NewWeighted(1),
		inferSem:    semaphore.NewWeighted(1),
		verified:    make(map[verifiedKey]bool),
	}
}

// Activate arms the client for a fresh capture run.
func (c *Client) Activate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = true
	c.lastStateShown = ""
	c.searchShown = false
}

// Deactivate disarms the client. In-flight calls are not cancelled; their
// completions are observed but produce no side effects. Identity is cleared
// or retained per configuration.
func (c *Client) Deactivate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = false
	if c.opts.ClearIdentityOnStop {
		c.identity = types.Identity{}
		c.identifiedAt = time.Time{}
	}
}

// Identity returns the currently resolved identity.
func (c *Client) Identity() types.Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

// OnFrame considers one captured frame for identification and inference.
// Never blocks: each eligible operation is dispatched on its own goroutine
// behind its in-flight guard.
func (c *Client) OnFrame(frame *types.Frame) {
	now := time.Now()

	if c.wantIdentify(now) && c.identifySem.TryAcquire(1) {
		c.mu.Lock()
		c.lastIdentifyAt = now
		c.mu.Unlock()
		c.inflight.Add(1)
		go func() {
			defer c.inflight.Done()
			defer c.identifySem.Release(1)
			c.identify(frame)
		}()
	}

	if c.wantInfer(now) && c.inferSem.TryAcquire(1) {
		c.mu.Lock()
		c.lastInferAt = now
		c.mu.Unlock()
		c.inflight.Add(1)
		go func() {
			defer c.inflight.Done()
			defer c.inferSem.Release(1)
			c.infer(frame)
		}()
	}
}

// wantIdentify: no identity held, or the re-identify interval has elapsed;
// always subject to the minimum inter-call spacing.
func (c *Client) wantIdentify(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return false
	}
	if now.Sub(c.lastIdentifyAt) < c.opts.IdentifyInterval {
		return false
	}
	if !c.identity.Known() {
		return true
	}
	return c.opts.ReidentifyInterval > 0 && now.Sub(c.identifiedAt) >= c.opts.ReidentifyInterval
}

// wantInfer: inference runs continuously on its own cadence, identified or
// not.
func (c *Client) wantInfer(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active && now.Sub(c.lastInferAt) >= c.opts.InferInterval
}

func (c *Client) identify(frame *types.Frame) {
	ctx := context.Background()
	res, err := c.backend.Identify(ctx, frame, c.camera, c.sessions.Current())
	if err != nil {
		slog.Warn("identify failed", "error", err)
		return
	}
	if res.Pending || res.StudentID == "" {
		// Surface the unresolved search in the status log, but only once
		// per search so the identify cadence doesn't flood the log ring.
		c.mu.Lock()
		show := c.active && !c.searchShown
		if show {
			c.searchShown = true
		}
		c.mu.Unlock()
		if show {
			c.display.Logf("Looking for a face match...")
		}
		slog.Debug("identify: no match yet")
		return
	}

	identity := types.Identity{ID: res.StudentID, Name: res.Name}

	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return
	}
	c.identity = identity
	c.identifiedAt = time.Now()
	c.searchShown = false
	c.mu.Unlock()

	c.display.SetIdentity(identity)
	c.display.Logf("Identified as %s.", identity.Display())
	slog.Info("identified", "student_id", identity.ID, "name", identity.Name)

	// The verified event is emitted at most once per (session, student).
	sid, err := c.sessions.Ensure(ctx)
	if err != nil {
		slog.Debug("verified event dropped, no session", "error", err)
		return
	}
	key := verifiedKey{session: sid, student: identity.ID}
	c.mu.Lock()
	first := !c.verified[key]
	c.verified[key] = true
	active := c.active
	c.mu.Unlock()
	if first && active {
		c.reporter.ReportSignal(ctx, types.EventVerified, map[string]string{
			"student_id": string(identity.ID),
			"name":       identity.Name,
		})
	}
}

func (c *Client) infer(frame *types.Frame) {
	ctx := context.Background()
	res, err := c.backend.Infer(ctx, frame, c.camera, c.sessions.Current())
	if err != nil {
		slog.Warn("infer failed", "error", err)
		return
	}
	res.State = NormalizeLabel(res.State)

	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return
	}
	changed := res.State != c.lastStateShown
	if changed {
		c.lastStateShown = res.State
	}
	c.mu.Unlock()

	c.alerter.Observe(ctx, res.State, res.Score)

	// Update the display only on change to avoid UI churn and log spam.
	if changed {
		c.display.SetState(res.State, res.Score)
		c.display.Logf("State: %s (%.3f)", res.State, res.Score)
	}

	c.reporter.ReportInference(ctx, res)
}

// waitInflight blocks until all dispatched calls have completed. Test hook.
func (c *Client) waitInflight() {
	c.inflight.Wait()
}
