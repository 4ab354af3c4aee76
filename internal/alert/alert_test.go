package alert

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/user/classwatch/internal/types"
)

type countingNotifier struct {
	calls atomic.Int32
}

func (n *countingNotifier) Notify(ctx context.Context, state string, score float64) error {
	n.calls.Add(1)
	return nil
}

func TestObserveGate(t *testing.T) {
	cases := []struct {
		name  string
		state string
		score float64
		want  bool
	}{
		{"drowsy above threshold", types.StateDrowsy, 0.85, true},
		{"drowsy at threshold", types.StateDrowsy, 0.70, true},
		{"drowsy below threshold", types.StateDrowsy, 0.69, false},
		{"awake high score", types.StateAwake, 0.99, false},
		{"unknown", types.StateUnknown, 0.99, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			n := &countingNotifier{}
			a := New(0.70, time.Minute, n)
			if got := a.Observe(context.Background(), tc.state, tc.score); got != tc.want {
				t.Errorf("Observe(%q, %v) = %v, want %v", tc.state, tc.score, got, tc.want)
			}
			wantCalls := int32(0)
			if tc.want {
				wantCalls = 1
			}
			if n.calls.Load() != wantCalls {
				t.Errorf("expected %d notifier calls, got %d", wantCalls, n.calls.Load())
			}
		})
	}
}

func TestCooldownHardFloor(t *testing.T) {
	n := &countingNotifier{}
	a := New(0.70, 30*time.Second, n)

	clock := time.Unix(1000, 0)
	a.now = func() time.Time { return clock }

	ctx := context.Background()
	if !a.Observe(ctx, types.StateDrowsy, 0.95) {
		t.Fatal("expected first alert to fire")
	}

	// Still inside the cooldown, no matter how confident the state is.
	clock = clock.Add(29 * time.Second)
	if a.Observe(ctx, types.StateDrowsy, 0.99) {
		t.Error("expected alert suppressed inside cooldown")
	}

	clock = clock.Add(2 * time.Second)
	if !a.Observe(ctx, types.StateDrowsy, 0.80) {
		t.Error("expected alert after cooldown elapsed")
	}

	if n.calls.Load() != 2 {
		t.Errorf("expected 2 notifier calls, got %d", n.calls.Load())
	}
}

func TestFailingNotifierDoesNotBlockOthers(t *testing.T) {
	failing := &failingNotifier{}
	counting := &countingNotifier{}
	a := New(0.70, time.Minute, failing, counting)

	if !a.Observe(context.Background(), types.StateDrowsy, 0.9) {
		t.Fatal("expected alert to fire")
	}
	if counting.calls.Load() != 1 {
		t.Errorf("expected second notifier called despite first failing, got %d", counting.calls.Load())
	}
}

type failingNotifier struct{}

func (n *failingNotifier) Notify(ctx context.Context, state string, score float64) error {
	return context.DeadlineExceeded
}
