package core

import "github.com/google/uuid"

// NewID generates a new unique identifier for invocations and synthesized
// tool call IDs.
func NewID() string { return uuid.NewString() }
