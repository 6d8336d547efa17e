package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/covered/adapter"
	"github.com/pithecene-io/covered/adapter/redis"
	"github.com/pithecene-io/covered/adapter/webhook"
	coveredconfig "github.com/pithecene-io/covered/cli/config"
	"github.com/pithecene-io/covered/coverage"
	"github.com/pithecene-io/covered/iox"
	"github.com/pithecene-io/covered/lode"
	"github.com/pithecene-io/covered/log"
	"github.com/pithecene-io/covered/metrics"
	"github.com/pithecene-io/covered/runtime"
	"github.com/pithecene-io/covered/session"
	"github.com/pithecene-io/covered/types"
)

// RunArgsUsage documents the four positional run arguments.
const RunArgsUsage = "<port> <entrypoint-uri> <target-script-uri> <verbosity>"

// publishTimeout bounds the best-effort adapter notification.
const publishTimeout = 15 * time.Second

// newDialer builds the session dialer. Replaced in tests.
var newDialer = func(logger *log.Logger) session.Dialer {
	sugar := logger.Sugar().With("component", "cdp")
	return session.NewDialer(
		session.WithLogf(sugar.Debugf),
		session.WithErrorf(sugar.Warnf),
	)
}

// RunCommand returns the run command. The root app runs the same action,
// so "covered run 9222 ..." and "covered 9222 ..." are equivalent.
func RunCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Run a browser test page and collect coverage for one script",
		ArgsUsage: RunArgsUsage,
		Flags:     RunFlags(),
		Action:    RunAction,
	}
}

// RunFlags returns the run flags. Every flag can also be set from the
// config file; flags win.
func RunFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Usage:   "Path to covered.yaml config file",
			EnvVars: []string{"COVERED_CONFIG"},
		},
		&cli.StringFlag{
			Name:  "host",
			Usage: "DevTools host",
			Value: "127.0.0.1",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Maximum wait for a test result sentinel",
			Value: types.DefaultTimeout,
		},
		&cli.StringFlag{
			Name:  "diagnostics",
			Usage: "When page errors are disclosed: verbose or always",
			Value: string(types.DiagnosticsVerbose),
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Operational log level: debug, info, warn, or error",
			Value: "warn",
		},
		// Report flags
		&cli.StringFlag{
			Name:  "report-mode",
			Usage: "Coverage report: raw, summary, or none",
			Value: string(coverage.ModeRaw),
		},
		&cli.StringFlag{
			Name:  "report-path",
			Usage: "Report path relative to the storage root",
			Value: lode.DefaultReportPath,
		},
		// Storage flags
		&cli.StringFlag{
			Name:  "storage-backend",
			Usage: "Report storage backend: fs or s3",
			Value: "fs",
		},
		&cli.StringFlag{
			Name:  "storage-path",
			Usage: "Storage root (fs: directory, s3: bucket/prefix)",
			Value: ".",
		},
		&cli.StringFlag{
			Name:  "s3-region",
			Usage: "AWS region for the s3 backend (optional, uses default chain)",
		},
		&cli.StringFlag{
			Name:  "s3-endpoint",
			Usage: "Custom S3 endpoint (R2, MinIO)",
		},
		&cli.BoolFlag{
			Name:  "s3-path-style",
			Usage: "Use path-style S3 addressing",
		},
		// Adapter flags
		&cli.StringFlag{
			Name:  "adapter",
			Usage: "Run completion notification: webhook or redis",
		},
		&cli.StringFlag{
			Name:  "adapter-url",
			Usage: "Webhook URL or Redis URL",
		},
		&cli.StringFlag{
			Name:  "adapter-channel",
			Usage: "Redis pub/sub channel",
		},
		&cli.StringSliceFlag{
			Name:  "adapter-header",
			Usage: "Webhook header as key=value (repeatable)",
		},
		&cli.DurationFlag{
			Name:  "adapter-timeout",
			Usage: "Adapter request timeout",
			Value: webhook.DefaultTimeout,
		},
		&cli.IntFlag{
			Name:  "adapter-retries",
			Usage: "Adapter retry attempts",
			Value: webhook.DefaultRetries,
		},
	}
}

// storageChoice holds resolved report storage configuration.
type storageChoice struct {
	backend   string // "fs" or "s3"
	path      string // fs: directory, s3: bucket/prefix
	region    string
	endpoint  string
	pathStyle bool
}

// adapterChoice holds resolved adapter configuration.
type adapterChoice struct {
	adapterType string
	url         string
	channel     string
	headers     map[string]string
	timeout     time.Duration
	retries     int
}

// runChoice holds everything resolved before the run starts.
type runChoice struct {
	rc         types.RunConfig
	logLevel   string
	reportMode coverage.Mode
	reportPath string
	storage    storageChoice
	adapter    *adapterChoice // nil when no adapter is configured
}

// RunAction runs the browser test and exits with the outcome's code.
// Every path, including configuration errors and panics, goes through
// runtime.Finalize so the diagnostic frame and session release happen once.
func RunAction(c *cli.Context) (err error) {
	stderr := c.App.ErrWriter
	if stderr == nil {
		stderr = os.Stderr
	}

	var ctrl *runtime.Controller
	defer func() {
		if r := recover(); r != nil {
			var sess session.Session
			if ctrl != nil {
				sess = ctrl.Session()
			}
			outcome := types.UnhandledError(fmt.Sprintf("panic: %v", r))
			err = cli.Exit("", runtime.Finalize(outcome, sess, stderr))
		}
	}()

	fail := func(err error) error {
		return cli.Exit("", runtime.Finalize(runtime.ClassifyError(err), nil, stderr))
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return fail(&runtime.ConfigError{Err: err})
	}
	choice, err := resolveRunChoice(c, cfg)
	if err != nil {
		return fail(&runtime.ConfigError{Err: err})
	}
	level, err := log.ParseLevel(choice.logLevel)
	if err != nil {
		return fail(&runtime.ConfigError{Err: err})
	}

	runID := fmt.Sprintf("%d-%d", time.Now().UnixNano(), choice.rc.Port)
	logger := log.NewLoggerWithWriter(log.RunContext{
		RunID:        runID,
		Port:         choice.rc.Port,
		Entrypoint:   choice.rc.EntrypointURI,
		TargetScript: choice.rc.TargetScriptURI,
	}, level, stderr)
	defer logger.Sync()

	collector := metrics.NewCollector(runID, string(choice.rc.Verbosity), choice.storage.backend)

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var writer lode.FileWriter
	if choice.reportMode != coverage.ModeNone {
		// Storage is set up before the browser is contacted, so a failure
		// here is a setup problem rather than a failed report write.
		store, err := buildStore(ctx, choice.storage)
		if err != nil {
			logger.Error("report storage unavailable", map[string]any{"error": err.Error()})
			return fail(&runtime.ConfigError{Err: err})
		}
		writer = store
	}

	var notifier adapter.Adapter
	if choice.adapter != nil {
		notifier, err = buildAdapter(choice.adapter)
		if err != nil {
			return fail(&runtime.ConfigError{Err: err})
		}
		defer iox.DiscardClose(notifier)
	}

	ctrl, err = runtime.NewController(runtime.ControllerConfig{
		Run:        choice.rc,
		Dialer:     newDialer(logger),
		ReportMode: choice.reportMode,
		ReportPath: choice.reportPath,
		Writer:     writer,
		Stdout:     c.App.Writer,
		Logger:     logger,
		Collector:  collector,
	})
	if err != nil {
		return fail(err)
	}

	logger.Info("run started", map[string]any{
		"verbosity":   string(choice.rc.Verbosity),
		"report_mode": string(choice.reportMode),
		"timeout":     choice.rc.Timeout.String(),
	})
	start := time.Now()
	outcome := ctrl.Run(ctx)
	duration := time.Since(start)

	snap := collector.Snapshot()
	fields := snap.Fields()
	fields["duration_ms"] = duration.Milliseconds()
	logger.Info("run finished", fields)

	if notifier != nil {
		ev := adapter.NewRunCompletedEvent(runID, choice.rc, outcome, snap, duration, time.Now())
		if choice.reportMode != coverage.ModeNone && outcome.Status == types.OutcomeSuccess {
			ev.ReportPath = choice.reportPath
		}
		publishEvent(notifier, ev, logger)
	}

	return cli.Exit("", runtime.Finalize(outcome, ctrl.Session(), stderr))
}

// loadConfig loads the --config file, or returns nil when none is given.
func loadConfig(c *cli.Context) (*coveredconfig.Config, error) {
	path := c.String("config")
	if path == "" {
		return nil, nil
	}
	return coveredconfig.Load(path)
}

// parseRunArgs parses the four positional arguments.
func parseRunArgs(args cli.Args) (types.RunConfig, error) {
	if args.Len() != 4 {
		return types.RunConfig{}, fmt.Errorf("expected 4 arguments %s, got %d", RunArgsUsage, args.Len())
	}
	port, err := strconv.Atoi(args.Get(0))
	if err != nil {
		return types.RunConfig{}, fmt.Errorf("invalid port %q: must be an integer", args.Get(0))
	}
	verbosity, err := types.ParseVerbosity(args.Get(3))
	if err != nil {
		return types.RunConfig{}, err
	}
	return types.RunConfig{
		Port:            port,
		EntrypointURI:   args.Get(1),
		TargetScriptURI: args.Get(2),
		Verbosity:       verbosity,
	}, nil
}

// resolveRunChoice merges positional arguments, flags and the config file.
// Precedence: CLI flag > config file > flag default.
func resolveRunChoice(c *cli.Context, cfg *coveredconfig.Config) (runChoice, error) {
	rc, err := parseRunArgs(c.Args())
	if err != nil {
		return runChoice{}, err
	}

	rc.Host = resolveString(c, "host", configVal(cfg, func(c *coveredconfig.Config) string { return c.Host }))
	rc.Timeout = resolveDuration(c, "timeout", configVal(cfg, func(c *coveredconfig.Config) time.Duration { return c.Timeout.Duration }))

	diag, err := types.ParseDiagnosticsPolicy(resolveString(c, "diagnostics", configVal(cfg, func(c *coveredconfig.Config) string { return c.Diagnostics })))
	if err != nil {
		return runChoice{}, err
	}
	rc.Diagnostics = diag

	mode, err := coverage.ParseMode(resolveString(c, "report-mode", configVal(cfg, func(c *coveredconfig.Config) string { return c.Report.Mode })))
	if err != nil {
		return runChoice{}, err
	}

	reportPath := resolveString(c, "report-path", configVal(cfg, func(c *coveredconfig.Config) string { return c.Report.Path }))
	if err := lode.ValidatePath(reportPath); err != nil {
		return runChoice{}, fmt.Errorf("invalid --report-path: %w", err)
	}

	storage := storageChoice{
		backend:   resolveString(c, "storage-backend", configVal(cfg, func(c *coveredconfig.Config) string { return c.Storage.Backend })),
		path:      resolveString(c, "storage-path", configVal(cfg, func(c *coveredconfig.Config) string { return c.Storage.Path })),
		region:    resolveString(c, "s3-region", configVal(cfg, func(c *coveredconfig.Config) string { return c.Storage.Region })),
		endpoint:  resolveString(c, "s3-endpoint", configVal(cfg, func(c *coveredconfig.Config) string { return c.Storage.Endpoint })),
		pathStyle: resolveBool(c, "s3-path-style", configVal(cfg, func(c *coveredconfig.Config) bool { return c.Storage.S3PathStyle })),
	}
	if err := validateStorageConfig(storage); err != nil {
		return runChoice{}, err
	}

	var ac *adapterChoice
	if adapterType := resolveString(c, "adapter", configVal(cfg, func(c *coveredconfig.Config) string { return c.Adapter.Type })); adapterType != "" {
		ac, err = parseAdapterConfigWithPrecedence(c, cfg, adapterType)
		if err != nil {
			return runChoice{}, err
		}
	}

	return runChoice{
		rc:         rc,
		logLevel:   resolveString(c, "log-level", configVal(cfg, func(c *coveredconfig.Config) string { return c.LogLevel })),
		reportMode: mode,
		reportPath: reportPath,
		storage:    storage,
		adapter:    ac,
	}, nil
}

// validateStorageConfig validates report storage configuration.
func validateStorageConfig(s storageChoice) error {
	switch s.backend {
	case "fs":
		if s.path == "" {
			return errors.New("--storage-path is required for the fs backend")
		}
	case "s3":
		if bucket, _ := lode.ParseS3Path(s.path); bucket == "" || bucket == "." {
			return fmt.Errorf("--storage-path must be bucket[/prefix] for the s3 backend, got %q", s.path)
		}
	default:
		return fmt.Errorf("invalid --storage-backend %q (must be fs or s3)", s.backend)
	}
	return nil
}

// buildStore creates the report store for the storage backend.
func buildStore(ctx context.Context, s storageChoice) (*lode.StoreWriter, error) {
	switch s.backend {
	case "fs":
		return lode.NewFSWriter(s.path), nil
	case "s3":
		bucket, prefix := lode.ParseS3Path(s.path)
		return lode.NewS3Writer(ctx, lode.S3Config{
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       s.region,
			Endpoint:     s.endpoint,
			UsePathStyle: s.pathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", s.backend)
	}
}

// parseAdapterConfigWithPrecedence resolves adapter settings.
// Config headers are the base; --adapter-header entries override them.
func parseAdapterConfigWithPrecedence(c *cli.Context, cfg *coveredconfig.Config, adapterType string) (*adapterChoice, error) {
	ac := &adapterChoice{
		adapterType: adapterType,
		url:         resolveString(c, "adapter-url", configVal(cfg, func(c *coveredconfig.Config) string { return c.Adapter.URL })),
		channel:     resolveString(c, "adapter-channel", configVal(cfg, func(c *coveredconfig.Config) string { return c.Adapter.Channel })),
		timeout:     resolveDuration(c, "adapter-timeout", configVal(cfg, func(c *coveredconfig.Config) time.Duration { return c.Adapter.Timeout.Duration })),
		headers:     make(map[string]string),
	}

	retries := c.Int("adapter-retries")
	if !c.IsSet("adapter-retries") && cfg != nil && cfg.Adapter.Retries != nil {
		retries = *cfg.Adapter.Retries
	}
	ac.retries = retries

	if cfg != nil {
		for k, v := range cfg.Adapter.Headers {
			ac.headers[k] = v
		}
	}
	for _, h := range c.StringSlice("adapter-header") {
		k, v, ok := strings.Cut(h, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --adapter-header %q: expected key=value", h)
		}
		ac.headers[k] = v
	}

	switch adapterType {
	case "webhook", "redis":
		if ac.url == "" {
			return nil, fmt.Errorf("--adapter-url is required for the %s adapter", adapterType)
		}
	default:
		return nil, fmt.Errorf("unknown adapter type %q (must be webhook or redis)", adapterType)
	}
	return ac, nil
}

// buildAdapter creates the adapter for a resolved configuration.
func buildAdapter(ac *adapterChoice) (adapter.Adapter, error) {
	switch ac.adapterType {
	case "webhook":
		return webhook.New(webhook.Config{
			URL:     ac.url,
			Headers: ac.headers,
			Timeout: ac.timeout,
			Retries: ac.retries,
		})
	case "redis":
		return redis.New(redis.Config{
			URL:     ac.url,
			Channel: ac.channel,
			Timeout: ac.timeout,
			Retries: ac.retries,
		})
	default:
		return nil, fmt.Errorf("unknown adapter type %q", ac.adapterType)
	}
}

// publishEvent notifies the adapter. Failures are logged and never change
// the exit code.
func publishEvent(a adapter.Adapter, ev *adapter.RunCompletedEvent, logger *log.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := a.Publish(ctx, ev); err != nil {
		logger.Warn("adapter publish failed", map[string]any{"error": err.Error(), "outcome": ev.Outcome})
		return
	}
	logger.Debug("adapter event published", map[string]any{"outcome": ev.Outcome})
}

// configVal extracts a value from the config, or the zero value when no
// config file was loaded.
func configVal[T any](cfg *coveredconfig.Config, get func(*coveredconfig.Config) T) T {
	var zero T
	if cfg == nil {
		return zero
	}
	return get(cfg)
}

// resolveString returns the CLI value if set, else the config value if
// non-empty, else the flag default.
func resolveString(c *cli.Context, name, cfgVal string) string {
	if c.IsSet(name) || cfgVal == "" {
		return c.String(name)
	}
	return cfgVal
}

// resolveBool returns the CLI value if set, else the config value.
func resolveBool(c *cli.Context, name string, cfgVal bool) bool {
	if c.IsSet(name) {
		return c.Bool(name)
	}
	return cfgVal || c.Bool(name)
}

// resolveDuration returns the CLI value if set, else the config value if
// non-zero, else the flag default.
func resolveDuration(c *cli.Context, name string, cfgVal time.Duration) time.Duration {
	if c.IsSet(name) || cfgVal == 0 {
		return c.Duration(name)
	}
	return cfgVal
}
