// internal/schedule/scheduler.go
package schedule

import (
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/user/classwatch/internal/state"
)

// Handler is invoked when a class window opens, with the window definition
// and its duration.
type Handler func(window *state.ClassWindow, duration time.Duration)

// Scheduler arms monitoring during timetabled lecture slots by evaluating
// cron expressions from the timetable store.
type Scheduler struct {
	store   *state.TimetableStore
	handler Handler
	cron    *cron.Cron
}

// cronParser accepts both standard 5-field cron expressions and 6-field
// expressions with an optional seconds field.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// New creates a Scheduler backed by the given timetable store. The handler
// is called at the start of each scheduled class window.
func New(store *state.TimetableStore, handler Handler) *Scheduler {
	return &Scheduler{
		store:   store,
		handler: handler,
		cron:    cron.New(cron.WithParser(cronParser)),
	}
}

// Start loads the timetable, registers enabled windows as cron entries, and
// starts the cron ticker.
func (s *Scheduler) Start() error {
	windows, err := s.store.List()
	if err != nil {
		return err
	}

	for _, window := range windows {
		if window.Schedule == "" || !window.Enabled {
			continue
		}

		w := window
		duration := time.Duration(w.DurationMinutes) * time.Minute
		if duration <= 0 {
			duration = time.Hour
		}

		_, err := s.cron.AddFunc(w.Schedule, func() {
			slog.Info("class window opening", "name", w.Name, "course_id", w.CourseID, "duration", duration)
			s.handler(w, duration)
		})
		if err != nil {
			slog.Error("invalid cron schedule", "name", w.Name, "schedule", w.Schedule, "error", err)
			continue
		}
		slog.Info("scheduled class window", "name", w.Name, "schedule", w.Schedule)
	}

	s.cron.Start()
	return nil
}

// Reload stops the existing cron, creates a new one, and calls Start() again.
func (s *Scheduler) Reload() error {
	s.cron.Stop()
	s.cron = cron.New(cron.WithParser(cronParser))
	return s.Start()
}

// Stop stops the cron ticker.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}
