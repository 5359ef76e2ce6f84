package core

import (
	"fmt"
	"sync"
)

// StepLimiter enforces a maximum number of reasoning/tool round trips per
// invocation.
type StepLimiter struct {
	max   int
	count int
	mu    sync.Mutex
}

// NewStepLimiter creates a limiter allowing max round trips.
// If max <= 0, unlimited round trips are allowed.
func NewStepLimiter(max int) *StepLimiter {
	return &StepLimiter{max: max}
}

// Increment records one round trip and returns ErrStepLimitExceeded if the
// bound was already reached. A rejected increment is not counted.
func (sl *StepLimiter) Increment() error {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	if sl.max > 0 && sl.count >= sl.max {
		return fmt.Errorf("%w: max %d round trips", ErrStepLimitExceeded, sl.max)
	}

	sl.count++

	return nil
}

// Count returns the number of round trips recorded.
func (sl *StepLimiter) Count() int {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	return sl.count
}

// Remaining returns how many round trips are left before hitting the limit.
func (sl *StepLimiter) Remaining() int {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	if sl.max <= 0 {
		return -1 // unlimited
	}

	return sl.max - sl.count
}
