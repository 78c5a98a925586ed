//go:build linux

package main

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/ja7ad/selfmeter/pkg/meter"
)

// burn starts n goroutines, each pinned to its own OS thread and labelled in
// m, that spin until ctx is done. The returned func waits for them to exit.
func burn(ctx context.Context, m *meter.Meter, n int) func() {
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runtime.LockOSThread()
			defer runtime.UnlockOSThread()

			tid := m.TrackCurrentThread(fmt.Sprintf("burn-%d", i))
			defer m.UntrackThread(tid)

			x := 1.0
			for {
				for range 1 << 16 {
					x = x*1.0000001 + 1e-9
				}
				select {
				case <-ctx.Done():
					sink.Store(math.Float64bits(x))
					return
				default:
				}
			}
		}()
	}
	return wg.Wait
}

// sink keeps the spin loop from being optimized away.
var sink atomic.Uint64
