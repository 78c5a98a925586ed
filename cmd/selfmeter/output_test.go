//go:build linux

package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ja7ad/selfmeter/pkg/meter"
	"github.com/ja7ad/selfmeter/pkg/types"
)

func report(seq uint64, cpu float64) meter.Report {
	return meter.Report{
		Seq:       seq,
		Timestamp: time.Date(2024, 5, 1, 12, 0, int(seq), 0, time.UTC),
		Interval:  time.Second,
		Resident:  meter.Avail(types.Bytes(seq << 20)),
		Virtual:   meter.Avail(types.Bytes(64 << 20)),
		CPU:       meter.Avail(cpu),
		SystemCPU: meter.Avail(0.5),
		DiskRead:  meter.Avail(1024.0),
		Threads: map[int]meter.ThreadUsage{
			1: {TID: 1, Name: "main", CPU: meter.Avail(cpu)},
			2: {TID: 2, Name: "idle"},
		},
		Warnings: []string{"disk: permission denied"},
	}
}

func TestSummary(t *testing.T) {
	var s summary
	s.add(report(1, 0.2))
	s.add(report(2, 0.6))
	s.add(meter.Report{Seq: 3})

	assert.Equal(t, 3, s.Samples)
	assert.InDelta(t, 0.4, s.CPUAvg, 1e-9)
	assert.InDelta(t, 0.6, s.CPUMax, 1e-9)
	assert.InDelta(t, 0.5, s.SystemAvg, 1e-9)
	assert.Equal(t, types.Bytes(2<<20), s.RSSMax)
	assert.InDelta(t, 1024, s.ReadAvg, 1e-9)
	assert.Zero(t, s.WriteAvg)
	assert.Equal(t, 2, s.ThreadsMax)

	var buf bytes.Buffer
	s.print(&buf, time.Second)
	assert.Contains(t, buf.String(), "over 3 samples of ~1s")
	assert.Contains(t, buf.String(), "2.00 MB")
}

func TestCSVSink(t *testing.T) {
	var buf bytes.Buffer
	s, err := newCSVSink(&buf)
	require.NoError(t, err)
	require.NoError(t, s.write(report(1, 0.25)))

	recs, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, csvHeader, recs[0])
	require.Len(t, recs[1], len(csvHeader))

	col := func(name string) string {
		for i, h := range csvHeader {
			if h == name {
				return recs[1][i]
			}
		}
		t.Fatalf("no column %s", name)
		return ""
	}
	assert.Equal(t, "1", col("seq"))
	assert.Equal(t, "0.250000", col("cpu"))
	assert.Equal(t, "", col("cpu_smoothed"))
	assert.Equal(t, "1048576", col("rss_bytes"))
	assert.Equal(t, "2", col("threads"))
}

func TestJSONSink(t *testing.T) {
	var buf bytes.Buffer
	s, err := newJSONSink(&buf)
	require.NoError(t, err)
	require.NoError(t, s.write(report(1, 0.1)))
	require.NoError(t, s.write(report(2, 0.2)))
	require.NoError(t, s.close())

	var out []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	require.Len(t, out, 2)
	assert.Equal(t, 0.2, out[1]["cpu"])
	assert.Nil(t, out[1]["cpu_smoothed"])
	assert.Equal(t, float64(2<<20), out[1]["memory_resident"])
}

func TestTable(t *testing.T) {
	var buf bytes.Buffer
	tab := newTable(&buf, true)
	tab.header()
	tab.row(report(1, 0.5))

	out := buf.String()
	assert.Contains(t, out, "TIME")
	assert.Contains(t, out, "0.500")
	assert.Contains(t, out, "1.00 MB")
	assert.Contains(t, out, "main")
	assert.Contains(t, out, "! disk: permission denied")
	// unavailable smoothed CPU and thread usage
	assert.True(t, strings.Contains(out, " - "))
}

func TestWriteHTML(t *testing.T) {
	var s summary
	reps := []meter.Report{report(1, 0.1), report(2, 0.3)}
	for _, r := range reps {
		s.add(r)
	}
	var buf bytes.Buffer
	require.NoError(t, writeHTML(&buf, reps, &s, hostInfo{Name: "box", Kernel: "linux", Cgroup: "cgroup v2"}))
	out := buf.String()
	assert.Contains(t, out, "<h1>selfmeter report</h1>")
	assert.Contains(t, out, "box")
	assert.Contains(t, out, "Samples: 2")
	assert.Equal(t, 2, strings.Count(out, "<td>2024-05-01"))
}
