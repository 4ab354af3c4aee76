package alert

import (
	"context"
	"fmt"
	"os"
	"os/exec"
)

// SoundNotifier plays a short audio cue. With a configured command it shells
// out (e.g. "paplay /usr/share/sounds/beep.oga"); without one it falls back
// to the terminal bell. Playback may silently fail on muted or headless
// hosts and is not retried.
type SoundNotifier struct {
	command string
}

// NewSound creates a sound notifier. command may be empty.
func NewSound(command string) *SoundNotifier {
	return &SoundNotifier{command: command}
}

// Notify plays the cue.
func (s *SoundNotifier) Notify(ctx context.Context, state string, score float64) error {
	if s.command == "" {
		_, err := fmt.Fprint(os.Stdout, "\a")
		return err
	}
	cmd := exec.CommandContext(ctx, "sh", "-c", s.command)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("alert sound: %w", err)
	}
	return nil
}
