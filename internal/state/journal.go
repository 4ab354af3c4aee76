// internal/state/journal.go
package state

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/user/classwatch/internal/types"
)

// Journal is a JSONL-backed local mirror of posted engagement events.
// Entries are stored per-session in sessions/<sessionID>/events.jsonl so a
// run can be inspected offline after the backend has aggregated it away.
type Journal struct {
	root  string
	mu    sync.Mutex
	locks map[types.SessionID]*sync.Mutex
}

// NewJournal creates a file-backed Journal rooted at the given directory.
func NewJournal(root string) *Journal {
	return &Journal{
		root:  root,
		locks: make(map[types.SessionID]*sync.Mutex),
	}
}

// getLock returns the per-session mutex, creating one if it doesn't exist.
func (j *Journal) getLock(sessionID types.SessionID) *sync.Mutex {
	j.mu.Lock()
	defer j.mu.Unlock()

	if lock, ok := j.locks[sessionID]; ok {
		return lock
	}
	lock := &sync.Mutex{}
	j.locks[sessionID] = lock
	return lock
}

func (j *Journal) entriesPath(sessionID types.SessionID) string {
	return filepath.Join(j.root, "sessions", string(sessionID), "events.jsonl")
}

// count reads the entries file and counts lines. Caller must hold the
// session lock.
func (j *Journal) count(sessionID types.SessionID) (int64, error) {
	f, err := os.Open(j.entriesPath(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("open journal file: %w", err)
	}
	defer f.Close()

	var count int64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		count++
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("scan journal file: %w", err)
	}
	return count, nil
}

// Emit appends the event to the session's journal with an auto-incremented
// sequence number. Implements types.EventSink.
func (j *Journal) Emit(_ context.Context, event *types.EngagementEvent) error {
	sessionID := event.SessionID
	if sessionID == "" {
		return fmt.Errorf("journal: event has no session id")
	}

	lock := j.getLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	dir := filepath.Dir(j.entriesPath(sessionID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	existing, err := j.count(sessionID)
	if err != nil {
		return err
	}

	entry := &types.JournalEntry{
		ID:        types.NewEventID(),
		Seq:       existing + 1,
		At:        time.Now(),
		SessionID: sessionID,
		Event:     event,
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal journal entry: %w", err)
	}

	f, err := os.OpenFile(j.entriesPath(sessionID), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open journal file: %w", err)
	}
	defer f.Close()

	data = append(data, '\n')
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write journal entry: %w", err)
	}

	return nil
}

// Tail returns the last N entries for the given session.
func (j *Journal) Tail(sessionID types.SessionID, limit int) ([]*types.JournalEntry, error) {
	lock := j.getLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	f, err := os.Open(j.entriesPath(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open journal file: %w", err)
	}
	defer f.Close()

	var entries []*types.JournalEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry types.JournalEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			return nil, fmt.Errorf("unmarshal journal entry: %w", err)
		}
		entries = append(entries, &entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan journal file: %w", err)
	}

	if len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries, nil
}

// Count returns the number of journaled entries for the given session.
func (j *Journal) Count(sessionID types.SessionID) (int64, error) {
	lock := j.getLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	return j.count(sessionID)
}

// Sessions lists the session ids present in the journal, sorted.
func (j *Journal) Sessions() ([]types.SessionID, error) {
	dirs, err := os.ReadDir(filepath.Join(j.root, "sessions"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read sessions dir: %w", err)
	}

	var ids []types.SessionID
	for _, d := range dirs {
		if d.IsDir() {
			ids = append(ids, types.SessionID(d.Name()))
		}
	}
	sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })
	return ids, nil
}
