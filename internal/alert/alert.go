// Package alert raises a local cue when the student is classified drowsy
// with high confidence for long enough to matter.
package alert

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/user/classwatch/internal/types"
)

// Alerter gates alert delivery: an alert fires only for a Drowsy state at or
// above the confidence threshold, and never more often than once per
// cooldown window. The cooldown is a hard floor.
type Alerter struct {
	threshold float64
	cooldown  time.Duration
	notifiers []types.Notifier
	now       func() time.Time

	mu          sync.Mutex
	lastAlertAt time.Time
}

// New creates an Alerter with the given confidence threshold and cooldown.
func New(threshold float64, cooldown time.Duration, notifiers ...types.Notifier) *Alerter {
	return &Alerter{
		threshold: threshold,
		cooldown:  cooldown,
		notifiers: notifiers,
		now:       time.Now,
	}
}

// Observe considers one classified frame and fires an alert when the gate
// passes. Returns whether an alert was delivered.
func (a *Alerter) Observe(ctx context.Context, state string, score float64) bool {
	if state != types.StateDrowsy || score < a.threshold {
		return false
	}

	a.mu.Lock()
	now := a.now()
	if !a.lastAlertAt.IsZero() && now.Sub(a.lastAlertAt) < a.cooldown {
		a.mu.Unlock()
		return false
	}
	a.lastAlertAt = now
	a.mu.Unlock()

	slog.Info("drowsy alert", "score", score)
	for _, n := range a.notifiers {
		if err := n.Notify(ctx, state, score); err != nil {
			slog.Warn("alert delivery failed", "error", err)
		}
	}
	return true
}
