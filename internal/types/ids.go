// internal/types/ids.go
package types

import "github.com/google/uuid"

// SessionID is issued by the backend when a monitoring session is opened.
type SessionID string

type CourseID string
type StudentID string
type CameraID string
type EventID string

func NewEventID() EventID {
	return EventID(uuid.New().String())
}
