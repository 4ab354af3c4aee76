// Package session resolves and memoizes the backend-issued session id for
// the current monitoring run.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/user/classwatch/internal/types"
)

// Manager lazily creates a backend session on first need and reuses it for
// every subsequent call until Invalidate.
type Manager struct {
	backend types.Backend
	req     types.SessionRequest

	mu        sync.Mutex
	sessionID types.SessionID
}

// NewManager creates a session manager for one course/meeting.
func NewManager(backend types.Backend, req types.SessionRequest) *Manager {
	return &Manager{backend: backend, req: req}
}

// CourseID returns the course this manager was configured with.
func (m *Manager) CourseID() types.CourseID { return m.req.CourseID }

// Current returns the memoized session id, or "" if none has been created.
func (m *Manager) Current() types.SessionID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionID
}

// Ensure returns the session id, creating one on the backend if needed.
func (m *Manager) Ensure(ctx context.Context) (types.SessionID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessionID != "" {
		return m.sessionID, nil
	}
	if m.req.CourseID == "" {
		return "", fmt.Errorf("no course id configured")
	}

	id, err := m.backend.StartSession(ctx, &m.req)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	m.sessionID = id
	slog.Info("session created", "session_id", id, "course_id", m.req.CourseID)
	return id, nil
}

// Invalidate clears the memoized session id and returns the old one so the
// caller can post a best-effort stop for it.
func (m *Manager) Invalidate() types.SessionID {
	m.mu.Lock()
	defer m.mu.Unlock()
	old := m.sessionID
	m.sessionID = ""
	return old
}
