package engage

import (
	"strings"

	"github.com/user/classwatch/internal/types"
)

// drowsySubstrings match the free-text synonyms backend model revisions have
// emitted for an inattentive face.
var drowsySubstrings = []string{"drow", "sleep", "yawn", "close", "tired"}

// NormalizeLabel maps a raw backend label onto the canonical state set.
// Labels outside the known vocabulary pass through trimmed.
func NormalizeLabel(raw string) string {
	trimmed := strings.TrimSpace(raw)
	lower := strings.ToLower(trimmed)

	switch lower {
	case "awake", "alert":
		return types.StateAwake
	case "", "unknown", "empty":
		return types.StateUnknown
	}
	for _, sub := range drowsySubstrings {
		if strings.Contains(lower, sub) {
			return types.StateDrowsy
		}
	}
	return trimmed
}
