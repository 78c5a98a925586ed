//go:build linux

package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/ja7ad/selfmeter/pkg/meter"
	"github.com/ja7ad/selfmeter/pkg/types"
)

func fmtRatio(m meter.Metric[float64]) string {
	if !m.Available {
		return "-"
	}
	return fmt.Sprintf("%.3f", m.Value)
}

func fmtBytes(m meter.Metric[types.Bytes]) string {
	if !m.Available {
		return "-"
	}
	return m.Value.Humanized()
}

func fmtRate(m meter.Metric[float64]) string {
	if !m.Available {
		return "-"
	}
	return types.HumanizedRate(m.Value)
}

// fmtFloat renders an unavailable metric as an empty CSV cell.
func fmtFloat(m meter.Metric[float64]) string {
	if !m.Available {
		return ""
	}
	return strconv.FormatFloat(m.Value, 'f', 6, 64)
}

func fmtUint(m meter.Metric[types.Bytes]) string {
	if !m.Available {
		return ""
	}
	return strconv.FormatUint(m.Value.ToUint64(), 10)
}

type table struct {
	tw      *tabwriter.Writer
	threads bool
}

func newTable(w io.Writer, threads bool) *table {
	return &table{tw: tabwriter.NewWriter(w, 0, 0, 2, ' ', 0), threads: threads}
}

func (t *table) header() {
	fmt.Fprintln(t.tw, "TIME\tCPU\tCPU~\tCPU+CHLD\tSYS\tRSS\tVIRT\tTHR\tREAD/s\tWRITE/s\tIO R/s\tIO W/s")
	fmt.Fprintln(t.tw, "----\t---\t----\t--------\t---\t---\t----\t---\t------\t-------\t------\t------")
	t.tw.Flush()
}

func (t *table) row(r meter.Report) {
	fmt.Fprintf(t.tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
		r.Timestamp.Format("2006-01-02 15:04:05"),
		fmtRatio(r.CPU), fmtRatio(r.CPUSmoothed), fmtRatio(r.CPUWithChildren), fmtRatio(r.SystemCPU),
		fmtBytes(r.Resident), fmtBytes(r.Virtual), len(r.Threads),
		fmtRate(r.DiskRead), fmtRate(r.DiskWrite), fmtRate(r.IORead), fmtRate(r.IOWrite),
	)
	if t.threads {
		for _, tu := range r.SortedThreads() {
			fmt.Fprintf(t.tw, "  %d\t%s\t%s\tusr %s\tsys %s\t\t\t\t\t\t\t\n",
				tu.TID, tu.Name, fmtRatio(tu.CPU), fmtRatio(tu.User), fmtRatio(tu.System))
		}
	}
	for _, w := range r.Warnings {
		fmt.Fprintf(t.tw, "  ! %s\t\t\t\t\t\t\t\t\t\t\t\n", w)
	}
	t.tw.Flush()
}

// printLine writes the compact comma separated form used without --pretty.
func printLine(w io.Writer, r meter.Report) {
	fmt.Fprintf(w, "%s, %s, %s, %s, %s, %d, %s, %s\n",
		r.Timestamp.Format(time.RFC3339),
		fmtRatio(r.CPU), fmtRatio(r.SystemCPU), fmtUint(r.Resident), fmtUint(r.Virtual),
		len(r.Threads), fmtFloat(r.DiskRead), fmtFloat(r.DiskWrite))
}

var csvHeader = []string{
	"time", "seq", "interval_sec",
	"cpu", "cpu_smoothed", "cpu_with_children", "threads_cpu", "system_cpu",
	"rss_bytes", "virt_bytes", "shared_bytes", "swap_bytes", "limit_bytes", "threads",
	"disk_read_bps", "disk_write_bps", "io_read_bps", "io_write_bps", "io_read_ops", "io_write_ops",
}

func csvRecord(r meter.Report) []string {
	return []string{
		r.Timestamp.Format(time.RFC3339Nano),
		strconv.FormatUint(r.Seq, 10),
		strconv.FormatFloat(r.Interval.Seconds(), 'f', 6, 64),
		fmtFloat(r.CPU), fmtFloat(r.CPUSmoothed), fmtFloat(r.CPUWithChildren),
		fmtFloat(r.ThreadsCPU), fmtFloat(r.SystemCPU),
		fmtUint(r.Resident), fmtUint(r.Virtual), fmtUint(r.Shared), fmtUint(r.Swap), fmtUint(r.Limit),
		strconv.Itoa(len(r.Threads)),
		fmtFloat(r.DiskRead), fmtFloat(r.DiskWrite), fmtFloat(r.IORead), fmtFloat(r.IOWrite),
		fmtFloat(r.IOReadOps), fmtFloat(r.IOWriteOps),
	}
}

// csvSink streams one record per report.
type csvSink struct {
	w *csv.Writer
}

func newCSVSink(w io.Writer) (*csvSink, error) {
	s := &csvSink{w: csv.NewWriter(w)}
	if err := s.w.Write(csvHeader); err != nil {
		return nil, err
	}
	s.w.Flush()
	return s, s.w.Error()
}

func (s *csvSink) write(r meter.Report) error {
	if err := s.w.Write(csvRecord(r)); err != nil {
		return err
	}
	s.w.Flush()
	return s.w.Error()
}

// jsonSink streams reports as the elements of one JSON array.
type jsonSink struct {
	w io.Writer
	n int
}

func newJSONSink(w io.Writer) (*jsonSink, error) {
	_, err := io.WriteString(w, "[\n")
	return &jsonSink{w: w}, err
}

func (s *jsonSink) write(r meter.Report) error {
	b, err := json.MarshalIndent(r, "  ", "  ")
	if err != nil {
		return err
	}
	if s.n > 0 {
		if _, err := io.WriteString(s.w, ",\n"); err != nil {
			return err
		}
	}
	s.n++
	if _, err := io.WriteString(s.w, "  "); err != nil {
		return err
	}
	_, err = s.w.Write(b)
	return err
}

func (s *jsonSink) close() error {
	_, err := io.WriteString(s.w, "\n]\n")
	return err
}

// summary aggregates the printed reports.
type summary struct {
	Samples    int
	CPUAvg     float64
	CPUMax     float64
	SystemAvg  float64
	RSSMax     types.Bytes
	ReadAvg    float64
	WriteAvg   float64
	ThreadsMax int

	cpuN, sysN, readN, wrtN int
}

func (s *summary) add(r meter.Report) {
	s.Samples++
	if v, ok := r.CPU.Get(); ok {
		s.CPUAvg += (v - s.CPUAvg) / float64(s.cpuN+1)
		s.cpuN++
		s.CPUMax = max(s.CPUMax, v)
	}
	if v, ok := r.SystemCPU.Get(); ok {
		s.SystemAvg += (v - s.SystemAvg) / float64(s.sysN+1)
		s.sysN++
	}
	if v, ok := r.DiskRead.Get(); ok {
		s.ReadAvg += (v - s.ReadAvg) / float64(s.readN+1)
		s.readN++
	}
	if v, ok := r.DiskWrite.Get(); ok {
		s.WriteAvg += (v - s.WriteAvg) / float64(s.wrtN+1)
		s.wrtN++
	}
	if v, ok := r.Resident.Get(); ok {
		s.RSSMax = max(s.RSSMax, v)
	}
	s.ThreadsMax = max(s.ThreadsMax, len(r.Threads))
}

func (s *summary) print(w io.Writer, interval time.Duration) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "selfmeter avg (over %d samples of ~%s):\n", s.Samples, interval)
	fmt.Fprintf(w, "- cpu (avg):     %.3f cores\n", s.CPUAvg)
	fmt.Fprintf(w, "- cpu (max):     %.3f cores\n", s.CPUMax)
	fmt.Fprintf(w, "- system cpu:    %.1f%%\n", s.SystemAvg*100)
	fmt.Fprintf(w, "- rss (max):     %s\n", s.RSSMax.Humanized())
	fmt.Fprintf(w, "- disk read:     %s\n", types.HumanizedRate(s.ReadAvg))
	fmt.Fprintf(w, "- disk write:    %s\n", types.HumanizedRate(s.WriteAvg))
	fmt.Fprintf(w, "- threads (max): %d\n", s.ThreadsMax)
	fmt.Fprintln(w)
}

func writeHTML(w io.Writer, reports []meter.Report, sum *summary, host hostInfo) error {
	type view struct {
		Host    hostInfo
		Summary *summary
		Reports []meter.Report
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, view{Host: host, Summary: sum, Reports: reports}); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

var tpl = template.Must(template.New("rep").Funcs(template.FuncMap{
	"ratio": fmtRatio,
	"bytes": fmtBytes,
	"rate":  fmtRate,
	"human": types.HumanizedRate,
}).Parse(`<!doctype html>
<html lang="en"><meta charset="utf-8">
<title>selfmeter report</title>
<style>
body{font-family:system-ui,Segoe UI,Roboto,Helvetica,Arial,sans-serif;margin:20px}
h1,h2{margin:0 0 8px}
table{border-collapse:collapse;width:100%;font-size:14px}
th,td{border:1px solid #ddd;padding:6px 8px;text-align:right}
th:first-child,td:first-child{text-align:left}
ul{margin:6px 0 14px;padding-left:20px}
.small{color:#555}
</style>

<h1>selfmeter report</h1>

<p class="small">
Host: {{.Host.Name}} &nbsp;|&nbsp; Kernel: {{.Host.Kernel}} &nbsp;|&nbsp;
CPUs: {{.Host.CPUs}} &nbsp;|&nbsp; Mem: {{.Host.Memory}} &nbsp;|&nbsp; {{.Host.Cgroup}}
</p>

<h2>Summary</h2>
<ul>
<li>Samples: {{.Summary.Samples}}</li>
<li>Avg CPU: {{printf "%.3f" .Summary.CPUAvg}} cores (max {{printf "%.3f" .Summary.CPUMax}})</li>
<li>Avg system CPU: {{printf "%.3f" .Summary.SystemAvg}}</li>
<li>Max RSS: {{.Summary.RSSMax.Humanized}}</li>
<li>Avg disk read: {{human .Summary.ReadAvg}}, write: {{human .Summary.WriteAvg}}</li>
<li>Max threads: {{.Summary.ThreadsMax}}</li>
</ul>

<h2>Per-sample</h2>
<table>
<thead>
<tr>
<th>time</th><th>cpu</th><th>cpu~</th><th>sys</th><th>rss</th><th>virt</th>
<th>threads</th><th>read/s</th><th>write/s</th>
</tr>
</thead>
<tbody>
{{range .Reports}}
<tr>
<td>{{.Timestamp.Format "2006-01-02 15:04:05"}}</td>
<td>{{ratio .CPU}}</td>
<td>{{ratio .CPUSmoothed}}</td>
<td>{{ratio .SystemCPU}}</td>
<td>{{bytes .Resident}}</td>
<td>{{bytes .Virtual}}</td>
<td>{{len .Threads}}</td>
<td>{{rate .DiskRead}}</td>
<td>{{rate .DiskWrite}}</td>
</tr>
{{end}}
</tbody>
</table>
</html>`))
