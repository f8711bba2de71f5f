package core

import (
	"fmt"
	"sync/atomic"
)

// ModelLimiter caps the number of model calls one invocation may make.
// A zero max disables the cap.
type ModelLimiter struct {
	max   int64
	count atomic.Int64
}

// NewModelLimiter returns a limiter allowing up to max calls; max == 0
// means unlimited.
func NewModelLimiter(max int) *ModelLimiter {
	return &ModelLimiter{max: int64(max)}
}

// Increment records one call and errors once the cap is exceeded. The
// counter keeps advancing past the cap so Count stays accurate.
func (ml *ModelLimiter) Increment() error {
	n := ml.count.Add(1)
	if ml.max > 0 && n > ml.max {
		return fmt.Errorf("exceeded max model calls: %d", ml.max)
	}
	return nil
}

// Count reports the number of calls recorded so far.
func (ml *ModelLimiter) Count() int {
	return int(ml.count.Load())
}

// Remaining reports how many calls are left, or -1 when unlimited.
func (ml *ModelLimiter) Remaining() int {
	if ml.max == 0 {
		return -1
	}
	return int(ml.max - ml.count.Load())
}
