package matching

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/ShreyaJV11/support-chatbot/internal/apperr"
)

const DefaultThreshold = 0.7

// Threshold is the process-wide confidence cutoff. Reads and writes are single
// atomic operations.
type Threshold struct {
	bits atomic.Uint64
}

func NewThreshold(v float64) (*Threshold, error) {
	t := &Threshold{}
	if err := t.Set(v); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Threshold) Load() float64 {
	return math.Float64frombits(t.bits.Load())
}

func (t *Threshold) Set(v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return apperr.Validation("set threshold", fmt.Errorf("threshold %v outside [0,1]", v))
	}
	t.bits.Store(math.Float64bits(v))
	return nil
}
