package capture

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/user/classwatch/internal/types"
)

// FrameHandler receives each encoded frame. It must not block the tick loop;
// slow consumers dispatch their own work.
type FrameHandler func(frame *types.Frame)

// PickFunc obtains a video source. Injected so tests can supply fakes.
type PickFunc func(ctx context.Context) (Source, error)

// Options configures the capture scheduler.
type Options struct {
	Interval time.Duration
	CropSize int
	Quality  int
}

// Scheduler owns the single fixed-period capture timer. At most one capture
// loop exists; Start while running is a no-op, not a restart.
type Scheduler struct {
	opts    Options
	pick    PickFunc
	handler FrameHandler

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	source  Source
}

// NewScheduler creates a capture scheduler. Frames flow to handler.
func NewScheduler(opts Options, pick PickFunc, handler FrameHandler) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = 2 * time.Second
	}
	if opts.CropSize <= 0 {
		opts.CropSize = 512
	}
	if opts.Quality <= 0 {
		opts.Quality = 80
	}
	return &Scheduler{opts: opts, pick: pick, handler: handler}
}

// Start selects a video source and begins the capture timer. Idempotent: if
// a loop is already running it returns nil without touching it. If no source
// is obtainable the scheduler stays stopped and the error is returned.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	source, err := s.pick(runCtx)
	if err != nil {
		cancel()
		return err
	}

	s.source = source
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	go s.loop(runCtx, source, s.done)
	slog.Info("capture started", "interval", s.opts.Interval)
	return nil
}

// Stop cancels the capture timer and releases the source. Idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel, done, source := s.cancel, s.done, s.source
	s.cancel, s.done, s.source = nil, nil, nil
	s.mu.Unlock()

	cancel()
	if source != nil {
		source.Close()
	}
	<-done
	slog.Info("capture stopped")
}

// Running reports whether a capture loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) loop(ctx context.Context, source Source, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx, source)
		}
	}
}

// tick grabs, crops, and encodes one frame. Any failure drops the frame and
// lets the next tick try again naturally.
func (s *Scheduler) tick(ctx context.Context, source Source) {
	img, err := source.Next()
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.Debug("frame skipped", "error", err)
		return
	}

	frame, err := EncodeSquare(img, s.opts.CropSize, s.opts.Quality, time.Now())
	if err != nil {
		if !errors.Is(err, ErrUnready) {
			slog.Warn("frame encode failed", "error", err)
		}
		return
	}

	if s.handler != nil {
		s.handler(frame)
	}
}
