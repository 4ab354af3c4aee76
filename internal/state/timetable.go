// internal/state/timetable.go
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ClassWindow is a recurring lecture slot during which monitoring should be
// armed automatically.
type ClassWindow struct {
	Name            string `json:"name"`
	CourseID        string `json:"course_id"`
	Schedule        string `json:"schedule"`
	DurationMinutes int    `json:"duration_minutes"`
	Enabled         bool   `json:"enabled"`
}

// TimetableStore is a JSON-file-backed store for class windows.
type TimetableStore struct {
	path string
	mu   sync.RWMutex
}

// NewTimetableStore creates a file-backed TimetableStore at the given path.
func NewTimetableStore(path string) *TimetableStore {
	return &TimetableStore{path: path}
}

// Path returns the file path used by this store.
func (s *TimetableStore) Path() string {
	return s.path
}

// List returns all class windows. Returns an empty slice if the file
// doesn't exist.
func (s *TimetableStore) List() ([]*ClassWindow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	windows, err := s.load()
	if err != nil {
		return nil, err
	}
	if windows == nil {
		return []*ClassWindow{}, nil
	}
	return windows, nil
}

// Add appends a class window. Returns an error if one with the same name
// already exists.
func (s *TimetableStore) Add(window *ClassWindow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	windows, err := s.load()
	if err != nil {
		return err
	}

	for _, existing := range windows {
		if existing.Name == window.Name {
			return fmt.Errorf("class window already exists: %s", window.Name)
		}
	}

	windows = append(windows, window)
	return s.save(windows)
}

// Remove deletes a class window by name. Returns an error if not found.
func (s *TimetableStore) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	windows, err := s.load()
	if err != nil {
		return err
	}

	for i, window := range windows {
		if window.Name == name {
			windows = append(windows[:i], windows[i+1:]...)
			return s.save(windows)
		}
	}
	return fmt.Errorf("class window not found: %s", name)
}

// SetEnabled toggles the enabled flag for a window. Returns an error if not
// found.
func (s *TimetableStore) SetEnabled(name string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	windows, err := s.load()
	if err != nil {
		return err
	}

	for _, window := range windows {
		if window.Name == name {
			window.Enabled = enabled
			return s.save(windows)
		}
	}
	return fmt.Errorf("class window not found: %s", name)
}

// load reads the JSON file. Returns nil if the file doesn't exist.
func (s *TimetableStore) load() ([]*ClassWindow, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read timetable file: %w", err)
	}

	var windows []*ClassWindow
	if err := json.Unmarshal(data, &windows); err != nil {
		return nil, fmt.Errorf("unmarshal timetable: %w", err)
	}
	return windows, nil
}

// save writes the window list to disk using atomic write (temp file + rename).
func (s *TimetableStore) save(windows []*ClassWindow) error {
	data, err := json.MarshalIndent(windows, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal timetable: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create timetable dir: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp timetable file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp timetable file: %w", err)
	}
	return nil
}
