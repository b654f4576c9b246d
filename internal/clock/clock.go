// Package clock provides the logical clocks market resolution times are
// measured against.
package clock

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"github.com/alanyoungcy/truthpool/internal/domain"
)

// Manual is a clock moved explicitly by its owner. Both Set and Advance
// only ever move it forward, so readings are monotonic. The zero value
// reads 0.
type Manual struct {
	now atomic.Uint64
}

// NewManual returns a Manual clock starting at start.
func NewManual(start uint64) *Manual {
	m := &Manual{}
	m.now.Store(start)
	return m
}

func (m *Manual) Now(context.Context) (uint64, error) {
	return m.now.Load(), nil
}

// Set moves the clock to t. A t behind the current reading is ignored.
func (m *Manual) Set(t uint64) {
	for {
		cur := m.now.Load()
		if t <= cur || m.now.CompareAndSwap(cur, t) {
			return
		}
	}
}

// Advance moves the clock forward by d ticks and returns the new reading.
// The clock saturates at math.MaxUint64 instead of wrapping.
func (m *Manual) Advance(d uint64) uint64 {
	for {
		cur := m.now.Load()
		next := cur + d
		if next < cur {
			next = math.MaxUint64
		}
		if next == cur || m.now.CompareAndSwap(cur, next) {
			return next
		}
	}
}

// Unix reads wall-clock seconds since the epoch.
type Unix struct {
	// NowFunc overrides time.Now, for tests.
	NowFunc func() time.Time
}

func (u Unix) Now(context.Context) (uint64, error) {
	f := u.NowFunc
	if f == nil {
		f = time.Now
	}
	s := f().Unix()
	if s < 0 {
		return 0, nil
	}
	return uint64(s), nil
}

var (
	_ domain.Clock = (*Manual)(nil)
	_ domain.Clock = Unix{}
)
