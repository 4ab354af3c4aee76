// internal/types/models.go
package types

import (
	"encoding/json"
	"time"
)

// Well-known normalized engagement states. Labels the backend reports that
// don't map onto one of these pass through trimmed.
const (
	StateAwake   = "Awake"
	StateDrowsy  = "Drowsy"
	StateUnknown = "Unknown"
)

// Rect is a face bounding box in frame pixel coordinates.
type Rect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Identity is the student resolved for the current capture run. Zero value
// means not yet identified.
type Identity struct {
	ID   StudentID `json:"id"`
	Name string    `json:"name"`
}

// Known reports whether an identify call has resolved a student.
func (i Identity) Known() bool { return i.ID != "" }

// Display returns the name to show for this identity, preferring the human
// name over the raw student id.
func (i Identity) Display() string {
	if i.Name != "" {
		return i.Name
	}
	if i.ID != "" {
		return string(i.ID)
	}
	return StateUnknown
}

// Frame is one captured, JPEG-encoded video frame. Frames are ephemeral:
// produced by the capture scheduler, consumed by at most two concurrent
// backend calls, then discarded.
type Frame struct {
	JPEG       []byte
	Width      int
	Height     int
	CapturedAt time.Time
}

// SessionRequest opens a monitoring session for a course on the backend.
type SessionRequest struct {
	CourseID CourseID `json:"course_id"`
	MeetURL  string   `json:"meet_url"`
	Title    string   `json:"title"`
}

// IdentifyResult is the outcome of a face identification call. Pending means
// the backend saw a face but has not committed to a match yet.
type IdentifyResult struct {
	StudentID StudentID `json:"student_id"`
	Name      string    `json:"name"`
	Pending   bool      `json:"pending"`
	Score     float64   `json:"score"`
	BBox      *Rect     `json:"bbox"`
}

// InferenceResult is a normalized attentiveness classification for one frame.
type InferenceResult struct {
	State string  `json:"state"`
	Score float64 `json:"score"`
	BBox  *Rect   `json:"bbox"`
}

// EngagementEvent is the write-only envelope posted to the backend. Two
// shapes share it: inference events carry State/StateScore/BBox, discrete
// signals carry Type/Value.
type EngagementEvent struct {
	CourseID  CourseID  `json:"course_id"`
	CameraID  CameraID  `json:"camera_id"`
	StudentID StudentID `json:"student_id"`
	Name      string    `json:"name"`
	TS        int64     `json:"ts"`
	SessionID SessionID `json:"session_id"`

	State      string   `json:"state,omitempty"`
	StateScore *float64 `json:"state_score,omitempty"`
	BBox       *Rect    `json:"bbox,omitempty"`

	Type  string          `json:"type,omitempty"`
	Value json.RawMessage `json:"value,omitempty"`
}

// Discrete signal event types.
const (
	EventIdle     = "idle"
	EventTabAway  = "tab_away"
	EventTabBack  = "tab_back"
	EventVerified = "verified"
)

// JournalEntry is the local mirror of a posted engagement event, kept in the
// on-disk journal for offline inspection.
type JournalEntry struct {
	ID        EventID          `json:"id"`
	Seq       int64            `json:"seq"`
	At        time.Time        `json:"at"`
	SessionID SessionID        `json:"session_id"`
	Event     *EngagementEvent `json:"event"`
}
