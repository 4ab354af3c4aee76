// Package state provides filesystem-backed storage implementations.
package state

import "github.com/user/classwatch/internal/types"

// Compile-time interface compliance checks.
var _ types.EventSink = (*Journal)(nil)
