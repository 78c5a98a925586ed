// Package meter turns cumulative /proc counters of the running process into
// usage figures: memory, process and per-thread CPU, system CPU and disk
// I/O rates.
//
// The caller drives sampling:
//
//	m, err := meter.New(meter.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	for range time.Tick(time.Second) {
//		rep, err := m.Sample()
//		if err != nil {
//			continue // process counters unreadable; Latest is unchanged
//		}
//		fmt.Println(rep.CPU.Or(0), rep.Resident.Value)
//	}
//
// Any field of a Report may be unavailable: rates on the first sample, a
// counter that went backwards, or a /proc file that could not be read.
// Check Metric.Available before using a value.
package meter
