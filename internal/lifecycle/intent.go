package lifecycle

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

const intentFile = "start_intent.json"

type startIntent struct {
	At time.Time `json:"at"`
}

// persistIntent records a timestamped start intent so it survives the host
// page tearing down and rebuilding itself mid-join.
func persistIntent(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(startIntent{At: time.Now()})
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, intentFile), data, 0o644)
}

// consumeIntent reads and deletes any persisted start intent, reporting
// whether it was still within its validity window. The file is removed even
// when stale, so an intent is consumed at most once.
func consumeIntent(dir string, ttl time.Duration) bool {
	path := filepath.Join(dir, intentFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	os.Remove(path)

	var intent startIntent
	if err := json.Unmarshal(data, &intent); err != nil {
		return false
	}
	return time.Since(intent.At) <= ttl
}

// clearIntent drops any persisted start intent.
func clearIntent(dir string) {
	os.Remove(filepath.Join(dir, intentFile))
}

// ClearStartIntent drops any persisted start intent. Called on an explicit
// stop so a freshly launched daemon doesn't resume a run the user ended.
func ClearStartIntent(dir string) {
	clearIntent(dir)
}
