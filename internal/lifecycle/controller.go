// Package lifecycle starts and stops the capture pipeline in sync with the
// user joining and leaving a call.
package lifecycle

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Pipeline is the capture run the controller drives.
type Pipeline interface {
	Start(ctx context.Context) error
	Stop()
	Started() bool
}

// State of the lifecycle machine. Running is derived from the pipeline so
// manual starts through the overlay stay in sync.
type State int

const (
	Idle State = iota
	PendingStart
	Running
)

func (s State) String() string {
	switch s {
	case PendingStart:
		return "pending_start"
	case Running:
		return "running"
	default:
		return "idle"
	}
}

// Options configures the controller timings.
type Options struct {
	// Grace is how long after a join intent to wait before the first start
	// attempt, giving the call surface time to appear.
	Grace time.Duration
	// Poll is the period of the fallback in-call detection loop.
	Poll time.Duration
	// Debounce is the minimum spacing between accepted intents; the host
	// UI re-renders often enough to deliver the same click repeatedly.
	Debounce time.Duration
	// IntentDir is where the persisted start intent lives.
	IntentDir string
	// IntentTTL bounds how old a persisted intent may be and still count.
	IntentTTL time.Duration
}

// Controller promotes join intents into capture runs and demotes on leave
// intents or loss of the in-call signal. All detection is best-effort: a
// missed join leaves the overlay's manual buttons as the fallback, and a
// spurious join is harmless because pipeline starts are idempotent.
type Controller struct {
	pipeline Pipeline
	detector CallStateDetector
	opts     Options

	mu           sync.Mutex
	pending      bool
	lastIntentAt time.Time
	lastInCall   bool
	runCtx       context.Context
	cancel       context.CancelFunc
	done         chan struct{}
}

// NewController creates a lifecycle controller.
func NewController(pipeline Pipeline, detector CallStateDetector, opts Options) *Controller {
	if opts.Grace <= 0 {
		opts.Grace = 1500 * time.Millisecond
	}
	if opts.Poll <= 0 {
		opts.Poll = 800 * time.Millisecond
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 1200 * time.Millisecond
	}
	if opts.IntentTTL <= 0 {
		opts.IntentTTL = 15 * time.Second
	}
	return &Controller{pipeline: pipeline, detector: detector, opts: opts}
}

// Run consumes any persisted start intent and starts the fallback poll
// loop. Blocks until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) {
	c.mu.Lock()
	c.runCtx = ctx
	c.done = make(chan struct{})
	done := c.done
	c.mu.Unlock()
	defer close(done)

	if consumeIntent(c.opts.IntentDir, c.opts.IntentTTL) {
		slog.Info("resuming persisted start intent")
		c.acceptJoin(true)
	}

	ticker := time.NewTicker(c.opts.Poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.poll(ctx)
		}
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	if c.pipeline.Started() {
		return Running
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending {
		return PendingStart
	}
	return Idle
}

// HandleClick routes a relayed UI click through the join/leave heuristics.
func (c *Controller) HandleClick(label string) {
	switch {
	case MatchJoinIntent(label):
		c.JoinIntent()
	case MatchLeaveIntent(label):
		c.LeaveIntent()
	}
}

// JoinIntent registers a debounced intention to start capture. The intent
// is persisted so it survives the page rebuilding itself, and a grace timer
// attempts the start once the call surface has had time to appear.
func (c *Controller) JoinIntent() {
	if !c.debounce() {
		return
	}
	if err := persistIntent(c.opts.IntentDir); err != nil {
		slog.Debug("persist start intent failed", "error", err)
	}
	c.acceptJoin(false)
}

func (c *Controller) acceptJoin(immediate bool) {
	c.mu.Lock()
	if c.pipeline.Started() || c.pending {
		c.mu.Unlock()
		return
	}
	c.pending = true
	c.mu.Unlock()

	slog.Info("join intent accepted")
	if immediate {
		c.tryStart()
		return
	}
	time.AfterFunc(c.opts.Grace, c.tryStart)
}

// LeaveIntent registers a debounced intention to stop capture.
func (c *Controller) LeaveIntent() {
	if !c.debounce() {
		return
	}
	slog.Info("leave intent accepted")
	c.mu.Lock()
	c.pending = false
	c.mu.Unlock()
	clearIntent(c.opts.IntentDir)
	c.pipeline.Stop()
}

// Shutdown stops the pipeline on page unload or daemon exit.
func (c *Controller) Shutdown() {
	c.mu.Lock()
	c.pending = false
	done := c.done
	c.mu.Unlock()
	c.pipeline.Stop()
	if done != nil {
		<-done
	}
}

// debounce accepts an intent only if enough time has passed since the last
// accepted one.
func (c *Controller) debounce() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	if !c.lastIntentAt.IsZero() && now.Sub(c.lastIntentAt) < c.opts.Debounce {
		return false
	}
	c.lastIntentAt = now
	return true
}

// tryStart promotes a pending join once the in-call heuristic holds. When
// the heuristic is still negative the fallback poll keeps trying.
func (c *Controller) tryStart() {
	c.mu.Lock()
	ctx := c.runCtx
	pending := c.pending
	c.mu.Unlock()
	if !pending || ctx == nil {
		return
	}
	if c.detector != nil && !c.detector.InCall(ctx) {
		return
	}
	c.promote(ctx)
}

func (c *Controller) promote(ctx context.Context) {
	c.mu.Lock()
	if !c.pending {
		c.mu.Unlock()
		return
	}
	c.pending = false
	c.mu.Unlock()

	if err := c.pipeline.Start(ctx); err != nil {
		slog.Warn("auto-start failed, manual start remains available", "error", err)
	}
}

// poll is the fallback loop: it promotes pending joins once the in-call
// heuristic succeeds, and stops a running pipeline when the heuristic goes
// from true to false.
func (c *Controller) poll(ctx context.Context) {
	inCall := c.detector != nil && c.detector.InCall(ctx)

	c.mu.Lock()
	wasInCall := c.lastInCall
	c.lastInCall = inCall
	pending := c.pending
	c.mu.Unlock()

	if pending && inCall {
		c.promote(ctx)
		return
	}
	if c.pipeline.Started() && wasInCall && !inCall {
		slog.Info("call exit detected, stopping capture")
		c.pipeline.Stop()
	}
}
