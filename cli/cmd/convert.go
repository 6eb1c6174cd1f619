package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/pyrite-io/smelt/cli/config"
	"github.com/pyrite-io/smelt/cli/render"
	"github.com/pyrite-io/smelt/cli/tui"
	"github.com/pyrite-io/smelt/convert"
	"github.com/pyrite-io/smelt/family"
	"github.com/pyrite-io/smelt/journal"
	"github.com/pyrite-io/smelt/log"
	"github.com/pyrite-io/smelt/metrics"
	"github.com/pyrite-io/smelt/notify"
	notifyredis "github.com/pyrite-io/smelt/notify/redis"
	notifywebhook "github.com/pyrite-io/smelt/notify/webhook"
	"github.com/pyrite-io/smelt/script"
	"github.com/pyrite-io/smelt/store"
	"github.com/pyrite-io/smelt/types"
)

// Exit codes for the convert command.
const (
	exitSuccess           = 0
	exitUsageError        = 1
	exitValidationFailure = 2
	exitCanceled          = 130
)

// ConvertCommand returns the convert command. This is the only command
// that executes work; everything else is read-only.
//
// defaultThreads is resolved once at startup and applies when neither
// the --threads flag nor the config file sets a thread count.
func ConvertCommand(defaultThreads int) *cli.Command {
	return &cli.Command{
		Name:  "convert",
		Usage: "Validate a model checkpoint and run its conversion pipeline",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "family",
				Usage:    "Model family: llama, gpt4all, ggml",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "model",
				Usage:    "Path to the model checkpoint (directory for llama, file otherwise)",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "tokenizer",
				Usage: "Path to the tokenizer file (gpt4all only)",
			},
			&cli.StringFlag{
				Name:  "conversion-id",
				Usage: "Conversion ID (generated when omitted)",
			},
			ConfigFlag,
			// Toolchain flags
			&cli.StringFlag{
				Name:  "python",
				Usage: "Python interpreter for converter scripts",
			},
			&cli.StringFlag{
				Name:  "pth-script",
				Usage: "Override for the bundled checkpoint converter script",
			},
			&cli.StringFlag{
				Name:  "gpt4all-script",
				Usage: "Override for the bundled gpt4all converter script",
			},
			&cli.StringFlag{
				Name:  "quantize-bin",
				Usage: "Path to the quantize binary",
			},
			&cli.StringFlag{
				Name:  "migrate-bin",
				Usage: "Path to the container migration binary",
			},
			&cli.IntFlag{
				Name:  "threads",
				Usage: "Worker threads for quantization (default: CPU count)",
			},
			&cli.DurationFlag{
				Name:  "step-timeout",
				Usage: "Per-step deadline (0 disables)",
			},
			// Observability flags
			&cli.StringFlag{
				Name:  "journal",
				Usage: "Append step events to a journal file",
			},
			&cli.BoolFlag{
				Name:  "tui",
				Usage: "Show interactive progress view",
			},
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "Suppress the result summary",
			},
			FormatFlag,
			// Store flags
			&cli.StringFlag{
				Name:  "store-backend",
				Usage: "Artifact store backend: fs or s3",
			},
			&cli.StringFlag{
				Name:  "store-path",
				Usage: "Store path (fs: directory, s3: bucket/prefix)",
			},
			&cli.StringFlag{
				Name:  "store-region",
				Usage: "AWS region for the s3 backend",
			},
			&cli.StringFlag{
				Name:  "store-endpoint",
				Usage: "Custom S3 endpoint for S3-compatible providers",
			},
			// Notify flags
			&cli.StringFlag{
				Name:  "notify-type",
				Usage: "Completion notifier: webhook or redis",
			},
			&cli.StringFlag{
				Name:  "notify-url",
				Usage: "Notifier endpoint (webhook URL or redis URL)",
			},
			&cli.StringFlag{
				Name:  "notify-channel",
				Usage: "Redis pub/sub channel override",
			},
		},
		Action: convertAction(defaultThreads),
	}
}

// ConvertResponse is the rendered result of a conversion run.
type ConvertResponse struct {
	ConversionID string   `json:"conversion_id"`
	Family       string   `json:"family"`
	Outcome      string   `json:"outcome"`
	ModelPath    string   `json:"model_path,omitempty"`
	Artifacts    []string `json:"artifacts,omitempty"`
	StoredAt     []string `json:"stored_at,omitempty"`
	FailedStep   string   `json:"failed_step,omitempty"`
	ExitCode     int      `json:"exit_code"`
	Message      string   `json:"message,omitempty"`
	Duration     string   `json:"duration"`
}

func convertAction(defaultThreads int) cli.ActionFunc {
	return func(c *cli.Context) error {
		r, err := render.NewRenderer(c)
		if err != nil {
			return cli.Exit(err.Error(), exitUsageError)
		}

		cfg, err := loadConfig(c)
		if err != nil {
			return cli.Exit(err.Error(), exitUsageError)
		}

		fam := types.Family(c.String("family"))
		conversionID := c.String("conversion-id")
		if conversionID == "" {
			conversionID = uuid.NewString()
		}

		logger := log.NewLogger(conversionID, fam)
		collector := metrics.NewCollector(string(fam), conversionID)

		desc, v, probes, verr := validateModel(fam, c.String("model"), c.String("tokenizer"))
		if verr != nil {
			collector.IncValidationFailed()
			logger.Error("validation failed", map[string]any{"error": verr.Error()})
			if !c.Bool("quiet") {
				_ = r.Render(probeRows(probes))
			}
			return cli.Exit(fmt.Sprintf("validation failed: %v", verr), exitValidationFailure)
		}
		collector.IncValidationPassed()

		env, err := resolveEnv(c, cfg, fam, defaultThreads)
		if err != nil {
			return cli.Exit(err.Error(), exitUsageError)
		}

		stepTimeout := c.Duration("step-timeout")
		if stepTimeout == 0 {
			stepTimeout = cfg.StepTimeout.Duration
		}

		pipeCfg := convert.PipelineConfig{
			Env:         env,
			Logger:      logger,
			Collector:   collector,
			Runner:      &convert.ProcessRunner{Stdout: os.Stderr, Stderr: os.Stderr},
			StepTimeout: stepTimeout,
		}

		// Journal step events when a journal path is configured.
		var jw *journal.Writer
		if path := firstNonEmpty(c.String("journal"), cfg.Journal); path != "" {
			jw, err = journal.Open(path)
			if err != nil {
				return cli.Exit(fmt.Sprintf("cannot open journal: %v", err), exitUsageError)
			}
			defer func() { _ = jw.Close() }()
			pipeCfg.OnEvent = journalObserver(jw, conversionID, fam)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)
		go func() {
			<-sigCh
			cancel()
		}()

		start := time.Now()
		var st types.Status
		if c.Bool("tui") {
			st, err = runWithProgressView(ctx, cancel, desc, v, pipeCfg, fam, conversionID)
		} else {
			var p *convert.Pipeline
			p, err = convert.NewPipeline(desc, v, pipeCfg)
			if err == nil {
				st, err = p.Run(ctx)
			}
		}
		if err != nil {
			return cli.Exit(fmt.Sprintf("conversion failed to run: %v", err), exitUsageError)
		}
		duration := time.Since(start)

		if jw != nil {
			_ = jw.Append(&journal.Record{
				ConversionID: conversionID,
				Family:       string(fam),
				Kind:         "conversion_completed",
				ExitCode:     st.ExitCode,
				Timestamp:    time.Now().UTC(),
			})
		}

		// Publish artifacts only for successful conversions.
		var storedAt []string
		if st.Success() && st.Result != nil {
			storedAt, err = publishArtifacts(ctx, c, cfg, st.Result)
			if err != nil {
				logger.Error("artifact publication failed", map[string]any{"error": err.Error()})
				return cli.Exit(fmt.Sprintf("artifact publication failed: %v", err), exitUsageError)
			}
		}

		notifyCompletion(c, cfg, logger, conversionID, fam, st, duration, storedAt)

		if !c.Bool("quiet") {
			resp := ConvertResponse{
				ConversionID: conversionID,
				Family:       string(fam),
				Outcome:      string(st.Outcome),
				FailedStep:   string(st.FailedStep),
				ExitCode:     st.ExitCode,
				Message:      st.Message,
				StoredAt:     storedAt,
				Duration:     duration.Round(time.Millisecond).String(),
			}
			if st.Result != nil {
				resp.ModelPath = st.Result.ModelPath
				resp.Artifacts = st.Result.Artifacts
			}
			if err := r.Render(resp); err != nil {
				return cli.Exit(err.Error(), exitUsageError)
			}
		}

		return cli.Exit("", statusExitCode(st))
	}
}

// runWithProgressView executes the pipeline under the Bubble Tea progress
// view. Step events flow through a buffered channel so the pipeline never
// blocks on rendering.
func runWithProgressView(ctx context.Context, cancel context.CancelFunc, desc convert.Descriptor, v convert.Validated, pipeCfg convert.PipelineConfig, fam types.Family, conversionID string) (types.Status, error) {
	events := make(chan convert.StepEvent, 16)
	done := make(chan types.Status, 1)

	base := pipeCfg.OnEvent
	pipeCfg.OnEvent = func(ev convert.StepEvent) {
		if base != nil {
			base(ev)
		}
		select {
		case events <- ev:
		default:
		}
	}

	p, err := convert.NewPipeline(desc, v, pipeCfg)
	if err != nil {
		return types.Status{}, err
	}

	go func() {
		st, runErr := p.Run(ctx)
		if runErr != nil {
			st = types.CanceledStatus(runErr.Error())
		}
		done <- st
	}()

	m := tui.NewProgressModel(fam, conversionID, desc.Steps(), events, done, cancel)
	return tui.RunProgress(m)
}

// journalObserver appends one record per step event.
func journalObserver(jw *journal.Writer, conversionID string, fam types.Family) func(convert.StepEvent) {
	return func(ev convert.StepEvent) {
		_ = jw.Append(&journal.Record{
			ConversionID: conversionID,
			Family:       string(fam),
			Kind:         string(ev.Kind),
			Step:         string(ev.Step),
			Ordinal:      ev.Ordinal,
			Total:        ev.Total,
			ExitCode:     ev.ExitCode,
			Timestamp:    time.Now().UTC(),
		})
	}
}

// publishArtifacts copies the converted model and its intermediates to the
// configured store backend. Flags override config values.
func publishArtifacts(ctx context.Context, c *cli.Context, cfg *config.Config, result *types.Result) ([]string, error) {
	backend := firstNonEmpty(c.String("store-backend"), cfg.Store.Backend)
	path := firstNonEmpty(c.String("store-path"), cfg.Store.Path)
	if backend == "" && path == "" {
		return nil, nil
	}

	var (
		st  store.Store
		err error
	)
	switch backend {
	case "fs", "":
		st, err = store.NewFSStore(path)
	case "s3":
		bucket, prefix := store.ParseS3Path(path)
		st, err = store.NewS3Store(ctx, store.S3Config{
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       firstNonEmpty(c.String("store-region"), cfg.Store.Region),
			Endpoint:     firstNonEmpty(c.String("store-endpoint"), cfg.Store.Endpoint),
			UsePathStyle: cfg.Store.S3PathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown store backend: %s (must be fs or s3)", backend)
	}
	if err != nil {
		return nil, err
	}

	paths := append([]string{result.ModelPath}, result.Artifacts...)
	locations := make([]string, 0, len(paths))
	for _, p := range paths {
		loc, err := st.Put(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("storing %s: %w", p, err)
		}
		locations = append(locations, loc)
	}
	return locations, nil
}

// notifyCompletion publishes the completion event to the configured
// notifier. Notification failures are logged, never fatal.
func notifyCompletion(c *cli.Context, cfg *config.Config, logger *log.Logger, conversionID string, fam types.Family, st types.Status, duration time.Duration, storedAt []string) {
	notifierType := firstNonEmpty(c.String("notify-type"), cfg.Notify.Type)
	if notifierType == "" {
		return
	}

	n, err := buildNotifier(c, cfg, notifierType)
	if err != nil {
		logger.Warn("notifier unavailable", map[string]any{"error": err.Error()})
		return
	}
	defer func() { _ = n.Close() }()

	ev := notify.NewEvent(conversionID, fam, st, duration)
	if len(storedAt) > 0 {
		ev.StorePath = storedAt[0]
	}

	// Publication gets its own deadline so a canceled run still notifies.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := n.Publish(ctx, ev); err != nil {
		logger.Warn("completion notification failed", map[string]any{"error": err.Error()})
	}
}

func buildNotifier(c *cli.Context, cfg *config.Config, notifierType string) (notify.Notifier, error) {
	url := firstNonEmpty(c.String("notify-url"), cfg.Notify.URL)
	retries := notifywebhook.DefaultRetries
	if cfg.Notify.Retries != nil {
		retries = *cfg.Notify.Retries
	}

	switch notifierType {
	case "webhook":
		return notifywebhook.New(notifywebhook.Config{
			URL:     url,
			Headers: cfg.Notify.Headers,
			Timeout: cfg.Notify.Timeout.Duration,
			Retries: retries,
		})
	case "redis":
		return notifyredis.New(notifyredis.Config{
			URL:     url,
			Channel: firstNonEmpty(c.String("notify-channel"), cfg.Notify.Channel),
			Timeout: cfg.Notify.Timeout.Duration,
			Retries: retries,
		})
	default:
		return nil, fmt.Errorf("unknown notifier type: %s (must be webhook or redis)", notifierType)
	}
}

// validateModel resolves the family descriptor and runs the validation gate.
// The probe list is returned even on failure so callers can render it.
func validateModel(fam types.Family, modelPath, tokenizerPath string) (convert.Descriptor, convert.Validated, []types.FileProbe, error) {
	desc, ok := family.For(fam)
	if !ok {
		return nil, convert.Validated{}, nil, fmt.Errorf("unknown family: %s", fam)
	}

	data, err := family.DataFor(fam, modelPath, tokenizerPath)
	if err != nil {
		return nil, convert.Validated{}, nil, err
	}

	var probes []types.FileProbe
	v, err := convert.Validate(desc, data, &probes)
	if err != nil {
		return nil, convert.Validated{}, probes, err
	}
	return desc, v, probes, nil
}

// resolveEnv builds the toolchain environment from flags, config file,
// and built-in defaults, in that order of precedence. The bundled
// converter scripts are extracted on demand when no override is given.
func resolveEnv(c *cli.Context, cfg *config.Config, fam types.Family, defaultThreads int) (convert.Env, error) {
	env := convert.Env{
		PythonPath:  firstNonEmpty(c.String("python"), cfg.Python, "python3"),
		QuantizeBin: firstNonEmpty(c.String("quantize-bin"), cfg.Tools.Quantize, "quantize"),
		MigrateBin:  firstNonEmpty(c.String("migrate-bin"), cfg.Tools.Migrate, "migrate-ggml"),
	}

	env.Threads = c.Int("threads")
	if env.Threads <= 0 {
		env.Threads = cfg.Threads
	}
	if env.Threads <= 0 {
		env.Threads = defaultThreads
	}

	env.PthScript = firstNonEmpty(c.String("pth-script"), cfg.Tools.PthScript)
	env.GPT4AllScript = firstNonEmpty(c.String("gpt4all-script"), cfg.Tools.GPT4AllScript)

	// Only extract the bundle when the family actually needs the script.
	var err error
	if env.PthScript == "" && fam == types.FamilyLlama {
		env.PthScript, err = script.PthScriptPath()
		if err != nil {
			return convert.Env{}, fmt.Errorf("extracting bundled converter: %w", err)
		}
	}
	if env.GPT4AllScript == "" && fam == types.FamilyGPT4All {
		env.GPT4AllScript, err = script.GPT4AllScriptPath()
		if err != nil {
			return convert.Env{}, fmt.Errorf("extracting bundled converter: %w", err)
		}
	}

	return env, nil
}

// loadConfig reads the config file named by --config, or returns an
// empty config when the flag is unset.
func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String("config")
	if path == "" {
		return &config.Config{}, nil
	}
	return config.Load(path)
}

// statusExitCode maps a terminal status to the process exit code.
// Step failure exit codes pass through unmodified; a step that could
// not spawn reports 1.
func statusExitCode(st types.Status) int {
	switch st.Outcome {
	case types.OutcomeSuccess:
		return exitSuccess
	case types.OutcomeCanceled:
		return exitCanceled
	case types.OutcomeStepFailure:
		if st.ExitCode > 0 {
			return st.ExitCode
		}
		return exitUsageError
	default:
		return exitUsageError
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// ProbeRow is one required-file probe in rendered output.
type ProbeRow struct {
	Path  string `json:"path"`
	Found bool   `json:"found"`
}

func probeRows(probes []types.FileProbe) []ProbeRow {
	rows := make([]ProbeRow, 0, len(probes))
	for _, p := range probes {
		rows = append(rows, ProbeRow{Path: p.Path, Found: p.Found})
	}
	return rows
}
