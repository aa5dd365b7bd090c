// Package cli implements the acre command line tool.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sskdinesh2-blip/smart-sql-agent-sub000/internal/config"
	"github.com/sskdinesh2-blip/smart-sql-agent-sub000/pkg/acre"
)

const (
	CmdConfig    = "config"
	CmdAutoscale = "autoscale"
	CmdHealth    = "health"

	FlagConfig      = "config"
	FlagVerbose     = "verbose"
	FlagFormat      = "format"
	FlagDuration    = "duration"
	FlagOnce        = "once"
	FlagAutoApply   = "auto-apply"
	FlagMetricsAddr = "metrics-addr"
	FlagProbes      = "probes"
	FlagFailEvery   = "fail-every"
	FlagStrict      = "strict"

	selfCheckOperation = "self_check"
)

// ErrUnhealthy is returned by health --strict when recovery is not healthy.
var ErrUnhealthy = errors.New("acre: engine not healthy")

//nolint:govet // Flag holder - grouped by command
type options struct {
	configPath string
	verbose    bool

	format string

	duration    time.Duration
	once        bool
	autoApply   bool
	metricsAddr string

	probes    int
	failEvery int
	strict    bool

	sampler acre.Sampler
}

// Execute runs the root command against os.Args.
func Execute() error {
	return NewRootCmd(os.Stdout, os.Stderr).Execute()
}

// NewRootCmd builds the command tree. Reports go to out, logs to errOut.
func NewRootCmd(out, errOut io.Writer) *cobra.Command {
	return newRootCmd(out, errOut, &options{})
}

func newRootCmd(out, errOut io.Writer, opts *options) *cobra.Command {
	root := &cobra.Command{
		Use:   "acre",
		Short: "Adaptive caching and resilience engine",
		Long: `acre runs the adaptive caching and resilience engine tooling.

AVAILABLE COMMANDS:
  acre config                  # Print the effective configuration
  acre autoscale               # Sample the host and evaluate the scaling rule
  acre health                  # Run a self-check through the recovery executor

Configuration is read from --config (JSON or YAML) with ACRE_* environment
overrides applied on top.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(errOut)
	root.PersistentFlags().StringVarP(&opts.configPath, FlagConfig, "c", "", "path to a JSON or YAML config file")
	root.PersistentFlags().BoolVarP(&opts.verbose, FlagVerbose, "v", false, "log at debug level")

	configCmd := &cobra.Command{
		Use:   CmdConfig,
		Short: "Print the effective configuration",
		Long: `Print the configuration after defaults, the config file and environment
overrides are applied. Secrets are redacted.

Examples:
  acre config
  acre config --config acre.yaml --format yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfig(cmd, opts)
		},
	}
	configCmd.Flags().StringVarP(&opts.format, FlagFormat, "f", "json", "output format: json or yaml")

	autoscaleCmd := &cobra.Command{
		Use:   CmdAutoscale,
		Short: "Sample the host and evaluate the scaling rule",
		Long: `Run the scaling reporter against the host: CPU and memory come from the
operating system, response time and queue length from the engine. Every
decision is printed as one JSON line.

Examples:
  acre autoscale --once
  acre autoscale --duration 10m --auto-apply
  acre autoscale --metrics-addr :9090`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAutoscale(cmd, opts)
		},
	}
	autoscaleCmd.Flags().DurationVar(&opts.duration, FlagDuration, 0, "stop after this long (0 runs until interrupted)")
	autoscaleCmd.Flags().BoolVar(&opts.once, FlagOnce, false, "evaluate once and exit")
	autoscaleCmd.Flags().BoolVar(&opts.autoApply, FlagAutoApply, false, "apply every proposed action")
	autoscaleCmd.Flags().StringVar(&opts.metricsAddr, FlagMetricsAddr, "", "serve Prometheus metrics on this address")

	healthCmd := &cobra.Command{
		Use:   CmdHealth,
		Short: "Run a self-check through the recovery executor",
		Long: `Run a batch of probe operations through the recovery executor, failing
some of them on purpose, and print the resulting health report as JSON.

Examples:
  acre health
  acre health --probes 50 --fail-every 3 --strict`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHealth(cmd, opts)
		},
	}
	healthCmd.Flags().IntVar(&opts.probes, FlagProbes, 20, "number of probe operations")
	healthCmd.Flags().IntVar(&opts.failEvery, FlagFailEvery, 0, "fail every n-th probe to exercise recovery (0 never fails)")
	healthCmd.Flags().BoolVar(&opts.strict, FlagStrict, false, "exit non-zero unless the report is healthy")

	root.AddCommand(configCmd, autoscaleCmd, healthCmd)
	return root
}

func loadConfig(opts *options) (*config.Config, error) {
	cfg, err := config.LoadWithEnv(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newLogger(cmd *cobra.Command, opts *options) *slog.Logger {
	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

func newEngine(cmd *cobra.Command, opts *options, cfg *config.Config, extra ...acre.Option) (*acre.Engine, error) {
	engineOpts := []acre.Option{acre.WithSlogLogger(newLogger(cmd, opts))}
	if opts.sampler != nil {
		engineOpts = append(engineOpts, acre.WithSampler(opts.sampler))
	}
	return acre.New(cfg, append(engineOpts, extra...)...)
}

func runConfig(cmd *cobra.Command, opts *options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch opts.format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	case "yaml", "yml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q: use json or yaml", opts.format)
	}
}

func runAutoscale(cmd *cobra.Command, opts *options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	if opts.autoApply {
		cfg.Scaling.AutoApply = true
	}
	if opts.metricsAddr != "" {
		cfg.Metrics.Prometheus.Enabled = true
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	hook := func(d acre.Decision, applied bool) {
		_ = enc.Encode(decisionLine{Time: time.Now().UTC(), Decision: d, Applied: applied})
	}

	engine, err := newEngine(cmd, opts, cfg, acre.WithDecisionHook(hook))
	if err != nil {
		return err
	}
	defer engine.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.once {
		_, _, err := engine.Reporter().EvaluateNow(ctx)
		return err
	}

	if opts.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.duration)
		defer cancel()
	}

	if opts.metricsAddr != "" {
		srv, err := serveMetrics(engine, opts.metricsAddr)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if err := engine.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}

// decisionLine is one line of autoscale output.
//
//nolint:govet // Output struct - field order matches the JSON output
type decisionLine struct {
	Time     time.Time     `json:"time"`
	Decision acre.Decision `json:"decision"`
	Applied  bool          `json:"applied"`
}

func serveMetrics(engine *acre.Engine, addr string) (*http.Server, error) {
	handler, err := engine.MetricsHandler()
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server failed", "addr", addr, "error", err)
		}
	}()
	return srv, nil
}

// healthOutput is what the health command prints.
type healthOutput struct {
	Health   *acre.HealthReport   `json:"health"`
	Snapshot *acre.EngineSnapshot `json:"snapshot"`
	Degraded int                  `json:"degradedResults"`
}

func runHealth(cmd *cobra.Command, opts *options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	if opts.probes < 0 || opts.failEvery < 0 {
		return fmt.Errorf("--%s and --%s must not be negative", FlagProbes, FlagFailEvery)
	}

	engine, err := newEngine(cmd, opts, cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	// Only the fallback decides the outcome, so a probe never waits on retry backoff.
	exec := engine.Executor()
	if err := exec.RegisterFallback(selfCheckOperation, func(context.Context, ...any) (any, error) {
		return "fallback", nil
	}); err != nil {
		return err
	}

	ctx := cmd.Context()
	chain := []acre.Strategy{acre.StrategyFallback, acre.StrategyGracefulDegradation}
	degraded := 0
	for i := 1; i <= opts.probes; i++ {
		fail := opts.failEvery > 0 && i%opts.failEvery == 0
		result, err := engine.Execute(ctx, selfCheckOperation, chain, probe(fail), i)
		if err != nil {
			return fmt.Errorf("probe %d: %w", i, err)
		}
		if acre.IsDegraded(result) {
			degraded++
		}
	}

	report := engine.HealthReport()
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(healthOutput{Health: report, Snapshot: engine.Snapshot(), Degraded: degraded}); err != nil {
		return err
	}

	if opts.strict && report.OverallHealth != acre.HealthStatusHealthy {
		return fmt.Errorf("%w: %s", ErrUnhealthy, report.OverallHealth)
	}
	return nil
}

func probe(fail bool) acre.Operation {
	return func(_ context.Context, args ...any) (any, error) {
		if fail {
			return nil, fmt.Errorf("probe %v failed", args[0])
		}
		return "ok", nil
	}
}
