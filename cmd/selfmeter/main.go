//go:build linux

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ja7ad/selfmeter/pkg/config"
	"github.com/ja7ad/selfmeter/pkg/exporter"
	"github.com/ja7ad/selfmeter/pkg/meter"
	"github.com/ja7ad/selfmeter/pkg/system/proc"
	"github.com/ja7ad/selfmeter/pkg/system/util"
)

type opts struct {
	configPath string

	// overrides, applied only when the flag is set
	samples    int
	warmup     int
	interval   time.Duration
	history    int
	ema        float64
	clockTicks int
	procRoot   string
	cgroupRoot string
	listen     string
	namespace  string
	logLevel   string
	logFormat  string
	burn       int

	// outputs
	pretty   bool
	threads  bool
	csvPath  string
	jsonPath string
	htmlPath string
}

type hostInfo struct {
	Name, Kernel, CPUs, Memory, Cgroup string
}

func main() {
	var o opts

	root := &cobra.Command{
		Use:   "selfmeter",
		Short: "Self-monitoring process metrics",
		Long: `selfmeter samples its own /proc counters and reports memory, process and
per-thread CPU usage, system CPU and disk I/O rates.

It is a demo host for the meter package: the same engine can be embedded in
any long-running Go service and exported to Prometheus.

Examples:
  selfmeter -s 10 -i 500ms --threads --burn 2
  selfmeter -s 0 --listen :9100 --log-format json
  selfmeter --csv out.csv --json out.json --html out.html`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, o)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, o)
		},
	}

	f := root.PersistentFlags()
	f.StringVarP(&o.configPath, "config", "c", "", "path to a YAML config file")
	f.IntVarP(&o.samples, "samples", "s", 5, "number of samples to print (0 = run until Ctrl-C)")
	f.IntVar(&o.warmup, "warmup", 1, "number of initial samples to skip from display and averages")
	f.DurationVarP(&o.interval, "interval", "i", time.Second, "sampling interval (e.g. 1s, 500ms)")
	f.IntVar(&o.history, "history", meter.DefaultHistorySize, "number of reports kept in memory")
	f.Float64Var(&o.ema, "ema", 0.5, "EMA alpha for process CPU smoothing (0 = off, 1 = raw)")
	f.IntVar(&o.clockTicks, "clock-ticks", 0, "kernel USER_HZ (0 = CLK_TCK env or 100)")
	f.StringVar(&o.procRoot, "proc-root", "/proc", "proc filesystem mount point")
	f.StringVar(&o.cgroupRoot, "cgroup-root", "/sys/fs/cgroup", "cgroup filesystem mount point")
	f.StringVar(&o.listen, "listen", "", "serve Prometheus metrics on this address (e.g. :9100)")
	f.StringVar(&o.namespace, "namespace", exporter.DefaultNamespace, "Prometheus metric namespace")
	f.StringVar(&o.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	f.StringVar(&o.logFormat, "log-format", "text", "log format: text or json")
	f.IntVar(&o.burn, "burn", 0, "spin this many OS threads to generate load")

	root.Flags().BoolVar(&o.pretty, "pretty", true, "format output as a table instead of CSV-like lines")
	root.Flags().BoolVar(&o.threads, "threads", false, "print per-thread usage under each row")
	root.Flags().StringVar(&o.csvPath, "csv", "", "write per-sample rows to CSV file")
	root.Flags().StringVar(&o.jsonPath, "json", "", "write per-sample reports to JSON file")
	root.Flags().StringVar(&o.htmlPath, "html", "", "write per-sample rows and summary to HTML file")

	root.AddCommand(configCmd(&o))

	if err := root.Execute(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func configCmd(o *opts) *cobra.Command {
	var write string
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, *o)
			if err != nil {
				return err
			}
			if write != "" {
				if err := config.SaveConfig(cfg, write); err != nil {
					return fmt.Errorf("save config: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "# wrote %s\n", write)
				return nil
			}
			b, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(b)
			return err
		},
	}
	cmd.Flags().StringVarP(&write, "write", "w", "", "write the configuration to this file instead")
	return cmd
}

// loadConfig reads the config file and applies the flags the user set.
func loadConfig(cmd *cobra.Command, o opts) (*config.Config, error) {
	cfg, err := config.LoadConfig(o.configPath)
	if err != nil {
		return nil, err
	}
	set := cmd.Flags().Changed
	if set("samples") {
		cfg.Samples = o.samples
	}
	if set("warmup") {
		cfg.Warmup = o.warmup
	}
	if set("interval") {
		cfg.Interval = o.interval.String()
	}
	if set("history") {
		cfg.History = o.history
	}
	if set("ema") {
		cfg.Smoothing = o.ema
	}
	if set("clock-ticks") {
		cfg.ClockTicks = o.clockTicks
	}
	if set("proc-root") {
		cfg.ProcRoot = o.procRoot
	}
	if set("cgroup-root") {
		cfg.CgroupRoot = o.cgroupRoot
	}
	if set("listen") {
		cfg.Metrics.Listen = o.listen
	}
	if set("namespace") {
		cfg.Metrics.Namespace = o.namespace
	}
	if set("log-level") {
		cfg.Log.Level = o.logLevel
	}
	if set("log-format") {
		cfg.Log.Format = o.logFormat
	}
	if set("burn") {
		cfg.Burn.Threads = o.burn
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	lvl, _ := cfg.LogLevel()
	hopts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(cfg.Log.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, hopts))
	}
	return slog.New(slog.NewTextHandler(w, hopts))
}

func create(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.Create(path)
}

func run(ctx context.Context, cfg *config.Config, o opts) error {
	logger := newLogger(cfg, os.Stderr)
	slog.SetDefault(logger)

	reader, err := proc.NewReaderFS(cfg.ProcRoot, os.Getpid(), proc.WithCgroupRoot(cfg.CgroupRoot))
	if err != nil {
		return fmt.Errorf("proc reader: %w", err)
	}

	m, err := meter.New(
		meter.WithSource(reader),
		meter.WithHistorySize(cfg.History),
		meter.WithClockTicks(cfg.ClockTicks),
		meter.WithSmoothing(cfg.Smoothing),
		meter.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("meter: %w", err)
	}

	var h hostInfo
	h.Name, h.Kernel, h.CPUs, h.Memory = util.SystemSummary()
	if ver, detail, err := reader.CgroupMode(); err == nil {
		h.Cgroup = fmt.Sprintf("%s (%s)", ver, detail)
	} else {
		h.Cgroup = "unknown"
		logger.Debug("cgroup mode", "err", err)
	}
	fmt.Printf(_console, h.Name, h.Kernel, h.CPUs, h.Memory, h.Cgroup, reader.PID(),
		time.Now().Format("2006-01-02 15:04:05"))

	// Ctrl-C handling
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Listen != "" {
		reg, err := exporter.NewRegistry(m, cfg.Metrics.Namespace)
		if err != nil {
			return fmt.Errorf("metrics registry: %w", err)
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", exporter.Handler(reg))
		srv := &http.Server{Addr: cfg.Metrics.Listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			logger.Info("serving metrics", "addr", cfg.Metrics.Listen)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server", "err", err)
				stop()
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
	}

	if cfg.Burn.Threads > 0 {
		bctx, cancel := context.WithCancel(ctx)
		wait := burn(bctx, m, cfg.Burn.Threads)
		defer wait()
		defer cancel()
		logger.Info("burning", "threads", cfg.Burn.Threads)
	}

	var tab *table
	if o.pretty {
		tab = newTable(os.Stdout, o.threads)
		tab.header()
	} else {
		fmt.Println("# time, cpu, system_cpu, rss_bytes, virt_bytes, threads, disk_read_bps, disk_write_bps")
	}

	// file outputs
	var (
		csvOut  *csvSink
		jsonOut *jsonSink
		htmlF   *os.File
	)
	if o.csvPath != "" {
		f, err := create(o.csvPath)
		if err != nil {
			return fmt.Errorf("csv: %w", err)
		}
		defer f.Close()
		if csvOut, err = newCSVSink(f); err != nil {
			return fmt.Errorf("csv: %w", err)
		}
	}
	if o.jsonPath != "" {
		f, err := create(o.jsonPath)
		if err != nil {
			return fmt.Errorf("json: %w", err)
		}
		defer f.Close()
		if jsonOut, err = newJSONSink(f); err != nil {
			return fmt.Errorf("json: %w", err)
		}
	}
	if o.htmlPath != "" {
		if htmlF, err = create(o.htmlPath); err != nil {
			return fmt.Errorf("html: %w", err)
		}
		defer htmlF.Close()
	}

	var (
		sum     summary
		reports []meter.Report
	)

	// baseline for the first interval
	if _, err := m.Sample(); err != nil {
		return fmt.Errorf("initial sample: %w", err)
	}

	interval := cfg.IntervalDuration()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sampleN := 0
loop:
	for {
		select {
		case <-ctx.Done():
			logger.Info("interrupted")
			break loop

		case <-ticker.C:
			rep, err := m.Sample()
			if err != nil {
				if errors.Is(err, meter.ErrProcessUnreadable) {
					logger.Warn("sample skipped", "err", err)
					continue
				}
				return err
			}

			sampleN++
			if cfg.Warmup > 0 && sampleN <= cfg.Warmup {
				continue
			}

			if tab != nil {
				tab.row(rep)
			} else {
				printLine(os.Stdout, rep)
			}
			sum.add(rep)
			if htmlF != nil {
				reports = append(reports, rep)
			}
			if csvOut != nil {
				if err := csvOut.write(rep); err != nil {
					logger.Error("write csv", "err", err)
					csvOut = nil
				}
			}
			if jsonOut != nil {
				if err := jsonOut.write(rep); err != nil {
					logger.Error("write json", "err", err)
					jsonOut = nil
				}
			}

			// stop condition counts only post-warmup samples
			if cfg.Samples > 0 && sampleN-cfg.Warmup >= cfg.Samples {
				break loop
			}
		}
	}

	if jsonOut != nil {
		if err := jsonOut.close(); err != nil {
			logger.Error("write json", "err", err)
		}
	}
	if htmlF != nil {
		if err := writeHTML(htmlF, reports, &sum, h); err != nil {
			logger.Error("write html", "err", err)
		}
	}

	sum.print(os.Stdout, interval)
	st := m.Stats()
	logger.Debug("meter stats", "samples", st.Samples, "failures", st.Failures,
		"known_threads", st.KnownThreads, "history", st.HistoryLen)
	return nil
}

const _console = `selfmeter - process self-monitoring

       Host: %s
       Kernel: %s
       CPUs: %s
       Mem: %s
       Cgroup: %s
       PID: %d

selfmeter report as of %s:

`
