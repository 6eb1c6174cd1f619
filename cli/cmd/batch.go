package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/pyrite-io/smelt/cli/config"
	"github.com/pyrite-io/smelt/cli/render"
	"github.com/pyrite-io/smelt/convert"
	"github.com/pyrite-io/smelt/log"
	"github.com/pyrite-io/smelt/metrics"
	"github.com/pyrite-io/smelt/types"
)

// BatchManifest is the YAML document accepted by the batch command.
type BatchManifest struct {
	Conversions []BatchEntry `yaml:"conversions"`
}

// BatchEntry is one requested conversion in a manifest.
type BatchEntry struct {
	Family    string `yaml:"family"`
	Model     string `yaml:"model"`
	Tokenizer string `yaml:"tokenizer,omitempty"`
}

// BatchRow is one conversion outcome in rendered output.
type BatchRow struct {
	ConversionID string `json:"conversion_id"`
	Family       string `json:"family"`
	Model        string `json:"model"`
	Outcome      string `json:"outcome"`
	FailedStep   string `json:"failed_step,omitempty"`
	ExitCode     int    `json:"exit_code"`
	Message      string `json:"message,omitempty"`
}

// BatchCommand returns the batch command: multiple conversions from a
// manifest file, run with bounded concurrency. Each conversion is
// validated up front; entries that fail the gate never start.
func BatchCommand(defaultThreads int) *cli.Command {
	return &cli.Command{
		Name:      "batch",
		Usage:     "Run multiple conversions from a manifest file",
		ArgsUsage: "<manifest.yaml>",
		Flags: []cli.Flag{
			ConfigFlag,
			FormatFlag,
			&cli.IntFlag{
				Name:  "concurrency",
				Usage: "Max conversions running at once",
				Value: 1,
			},
			&cli.StringFlag{
				Name:  "python",
				Usage: "Python interpreter for converter scripts",
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
		},
		Action: batchAction(defaultThreads),
	}
}

func batchAction(defaultThreads int) cli.ActionFunc {
	return func(c *cli.Context) error {
		if c.NArg() != 1 {
			return cli.Exit("usage: smelt batch <manifest.yaml>", exitUsageError)
		}

		r, err := render.NewRenderer(c)
		if err != nil {
			return cli.Exit(err.Error(), exitUsageError)
		}

		cfg, err := loadConfig(c)
		if err != nil {
			return cli.Exit(err.Error(), exitUsageError)
		}

		manifest, err := loadManifest(c.Args().First())
		if err != nil {
			return cli.Exit(err.Error(), exitUsageError)
		}
		if len(manifest.Conversions) == 0 {
			return cli.Exit("manifest contains no conversions", exitUsageError)
		}

		stepTimeout := c.Duration("step-timeout")
		if stepTimeout == 0 {
			stepTimeout = cfg.StepTimeout.Duration
		}

		// Validate every entry before any pipeline starts.
		rows := make([]BatchRow, len(manifest.Conversions))
		var items []convert.BatchItem
		itemRows := make([]int, 0, len(manifest.Conversions))
		anyFailed := false

		for i, entry := range manifest.Conversions {
			fam := types.Family(entry.Family)
			conversionID := uuid.NewString()
			rows[i] = BatchRow{
				ConversionID: conversionID,
				Family:       entry.Family,
				Model:        entry.Model,
			}

			desc, v, _, verr := validateModel(fam, entry.Model, entry.Tokenizer)
			if verr != nil {
				rows[i].Outcome = "validation_failure"
				rows[i].Message = verr.Error()
				anyFailed = true
				continue
			}

			env, err := resolveEnv(c, cfg, fam, defaultThreads)
			if err != nil {
				return cli.Exit(err.Error(), exitUsageError)
			}

			items = append(items, convert.BatchItem{
				Desc: desc,
				V:    v,
				Config: convert.PipelineConfig{
					Env:         env,
					Logger:      log.NewLogger(conversionID, fam),
					Collector:   metrics.NewCollector(string(fam), conversionID),
					Runner:      &convert.ProcessRunner{Stdout: os.Stderr, Stderr: os.Stderr},
					StepTimeout: stepTimeout,
				},
			})
			itemRows = append(itemRows, i)
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

		results := convert.RunBatch(ctx, items, c.Int("concurrency"))

		for _, res := range results {
			row := &rows[itemRows[res.Index]]
			if res.Err != nil {
				row.Outcome = "error"
				row.Message = res.Err.Error()
				anyFailed = true
				continue
			}
			row.Outcome = string(res.Status.Outcome)
			row.FailedStep = string(res.Status.FailedStep)
			row.ExitCode = res.Status.ExitCode
			row.Message = res.Status.Message
			if !res.Status.Success() {
				anyFailed = true
			}
		}

		if err := r.Render(rows); err != nil {
			return cli.Exit(err.Error(), exitUsageError)
		}

		if ctx.Err() != nil {
			return cli.Exit("", exitCanceled)
		}
		if anyFailed {
			return cli.Exit("", exitUsageError)
		}
		return nil
	}
}

func loadManifest(path string) (*BatchManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read manifest %q: %w", path, err)
	}

	expanded := config.ExpandEnv(string(data))

	var manifest BatchManifest
	if err := yaml.Unmarshal([]byte(expanded), &manifest); err != nil {
		return nil, fmt.Errorf("invalid manifest YAML in %s: %w", path, err)
	}
	return &manifest, nil
}
