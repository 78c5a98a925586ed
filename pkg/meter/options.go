//go:build linux

package meter

import (
	"log/slog"
	"time"
)

// Option configures a Meter.
type Option func(*Meter)

// WithSource replaces the default /proc/self reader.
func WithSource(src Source) Option {
	return func(m *Meter) { m.src = src }
}

// WithHistorySize sets how many reports History keeps.
func WithHistorySize(n int) Option {
	return func(m *Meter) { m.historySize = n }
}

// WithClockTicks overrides the kernel clock tick rate (USER_HZ).
func WithClockTicks(hz int) Option {
	return func(m *Meter) { m.tickRate = hz }
}

// WithLogger sets the logger. A nil logger discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(m *Meter) { m.logger = l }
}

// WithSmoothing enables an exponential moving average of process CPU with
// the given weight for the newest value. 1 disables smoothing in effect.
func WithSmoothing(alpha float64) Option {
	return func(m *Meter) { m.alpha = alpha }
}

// WithClock replaces time.Now. The returned times should carry a monotonic
// reading.
func WithClock(now func() time.Time) Option {
	return func(m *Meter) { m.now = now }
}
