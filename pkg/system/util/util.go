//go:build linux

package util

import "math"

// EMA is an exponential moving average. The first value passes through
// unchanged and seeds the state.
type EMA struct {
	alpha, prev float64
	ok          bool
}

func NewEMA(alpha float64) *EMA { return &EMA{alpha: Clamp01(alpha)} }

func (e *EMA) Next(v float64) float64 {
	if !e.ok {
		e.prev, e.ok = v, true
		return v
	}
	e.prev = e.alpha*v + (1-e.alpha)*e.prev
	return e.prev
}

// Reset forgets all history.
func (e *EMA) Reset() { e.prev, e.ok = 0, false }

// CounterDelta returns now-prev for a monotonic kernel counter. ok is false
// when the counter went backwards (wraparound or reset); callers must treat
// that interval as unknown rather than as zero.
func CounterDelta(now, prev uint64) (delta uint64, ok bool) {
	if now >= prev {
		return now - prev, true
	}
	return 0, false
}

func SafeDiv(n, d float64) float64 {
	const eps = 1e-12
	if d > eps || d < -eps {
		return n / d
	}
	return 0
}

func Clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	// guard against NaN
	if math.IsNaN(x) {
		return 0
	}
	return x
}
