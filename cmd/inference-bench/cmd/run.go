package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/inference-bench/inference-bench/internal/client"
	"github.com/inference-bench/inference-bench/internal/config"
	"github.com/inference-bench/inference-bench/internal/engine"
	"github.com/inference-bench/inference-bench/internal/logging"
	"github.com/inference-bench/inference-bench/internal/report"
	"github.com/inference-bench/inference-bench/internal/request"
	"github.com/inference-bench/inference-bench/internal/storage"
	"github.com/inference-bench/inference-bench/pkg/models"
)

var (
	runInputFile    string
	runOutputFile   string
	runMarkdownFile string
	runModel        string
	runEndpoint     string
	runAPIKey       string
	runConcurrency  int
	runRate         float64
	runTimeout      time.Duration
	runNoStore      bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a benchmark against a completions endpoint",
	Long: `Run sends every request in the input JSONL file to the configured
completions endpoint using a fixed-size worker pool, then writes a JSON
report with per-request timings and aggregate statistics.

Examples:
  inference-bench run --input requests.jsonl
  inference-bench run --input requests.jsonl --concurrency 32 --output out.json
  inference-bench run --input requests.jsonl --rate 5 --markdown report.md`,
	RunE: runBenchmark,
}

func init() {
	runCmd.Flags().StringVarP(&runInputFile, "input", "i", "", "Input JSONL file with one request per line")
	runCmd.Flags().StringVarP(&runOutputFile, "output", "o", "", "Output report path (\"-\" for stdout)")
	runCmd.Flags().StringVar(&runMarkdownFile, "markdown", "", "Also write a markdown summary to this path")
	runCmd.Flags().StringVarP(&runModel, "model", "m", "", "Model to benchmark")
	runCmd.Flags().StringVar(&runEndpoint, "endpoint", "", "Completions API base URL")
	runCmd.Flags().StringVar(&runAPIKey, "api-key", "", "API key (or INFERENCE_API_KEY)")
	runCmd.Flags().IntVarP(&runConcurrency, "concurrency", "c", 0, "Number of concurrent workers")
	runCmd.Flags().Float64Var(&runRate, "rate", 0, "Max request dispatch rate per second (0 = unlimited)")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "Per-request HTTP timeout")
	runCmd.Flags().BoolVar(&runNoStore, "no-store", false, "Skip recording the run in the local database")

	rootCmd.AddCommand(runCmd)
}

func runBenchmark(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyRunFlags(cmd, cfg)

	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := logging.Setup(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	requests, err := request.LoadFile(cfg.Run.InputFile, logger)
	if err != nil {
		return err
	}
	if len(requests) == 0 {
		return fmt.Errorf("no valid requests in %s", cfg.Run.InputFile)
	}

	runID := uuid.New().String()
	ctx = logging.WithRunID(ctx, runID)

	logger.InfoContext(ctx, "starting benchmark",
		slog.String("model", cfg.API.Model),
		slog.String("endpoint", cfg.API.Endpoint),
		slog.Int("requests", len(requests)),
		slog.Int("concurrency", cfg.Run.ConcurrentRequests))

	c := client.New(cfg.API.Endpoint, cfg.API.Key, client.WithTimeout(cfg.API.Timeout))

	opts := []engine.Option{
		engine.WithWorkers(cfg.Run.ConcurrentRequests),
		engine.WithLogger(logger),
	}
	if cfg.Run.RatePerSecond > 0 {
		opts = append(opts, engine.WithRateLimit(cfg.Run.RatePerSecond))
	}

	runner := engine.New(c, cfg.API.Model, opts...)
	stats, err := runner.Run(ctx, requests)
	if err != nil {
		return err
	}

	logger.InfoContext(ctx, "benchmark finished",
		slog.Int("requests", stats.Overall.TotalRequests),
		slog.Int("failures", stats.Overall.TotalFailures),
		slog.Int("total_tokens", stats.Overall.TotalTokens),
		slog.Float64("requests_per_second", stats.Overall.RequestsPerSecond()))

	rep := report.Build(stats)
	if err := report.WriteJSON(rep, cfg.Run.OutputFile); err != nil {
		return err
	}

	if runMarkdownFile != "" {
		f, err := os.Create(runMarkdownFile)
		if err != nil {
			return fmt.Errorf("failed to create markdown summary: %w", err)
		}
		defer f.Close()
		if err := report.WriteMarkdown(rep, f); err != nil {
			return err
		}
	}

	if !runNoStore {
		// Recording the run is best-effort; the report on disk is the
		// primary artifact.
		if err := storeRun(ctx, cfg, runID, stats, rep); err != nil {
			logger.WarnContext(ctx, "failed to record run", slog.Any("error", err))
		}
	}

	return nil
}

// applyRunFlags overlays explicitly set command-line flags on the config
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("input") {
		cfg.Run.InputFile = runInputFile
	}
	if cmd.Flags().Changed("output") {
		cfg.Run.OutputFile = runOutputFile
	}
	if cmd.Flags().Changed("model") {
		cfg.API.Model = runModel
	}
	if cmd.Flags().Changed("endpoint") {
		cfg.API.Endpoint = runEndpoint
	}
	if cmd.Flags().Changed("api-key") {
		cfg.API.Key = runAPIKey
	}
	if cmd.Flags().Changed("concurrency") {
		cfg.Run.ConcurrentRequests = runConcurrency
	}
	if cmd.Flags().Changed("rate") {
		cfg.Run.RatePerSecond = runRate
	}
	if cmd.Flags().Changed("timeout") {
		cfg.API.Timeout = runTimeout
	}
}

func storeRun(ctx context.Context, cfg *config.Config, runID string, stats *engine.RunStats, rep *report.Report) error {
	aborted := ctx.Err() != nil
	// Record the run even when the benchmark was interrupted.
	ctx = context.WithoutCancel(ctx)

	db, err := storage.New(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return err
	}

	doc, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	run := &models.Run{
		ID:                runID,
		Model:             cfg.API.Model,
		Endpoint:          cfg.API.Endpoint,
		Status:            models.StatusCompleted,
		TotalRequests:     stats.Overall.TotalRequests,
		TotalFailures:     stats.Overall.TotalFailures,
		PromptTokens:      stats.Overall.TotalPromptTokens,
		CompletionTokens:  stats.Overall.TotalCompletionTokens,
		TotalTokens:       stats.Overall.TotalTokens,
		RequestsPerSecond: stats.Overall.RequestsPerSecond(),
		StartedAt:         stats.Overall.Start,
		FinishedAt:        stats.Overall.End,
		CreatedAt:         time.Now().UTC(),
	}
	if aborted {
		run.Status = models.StatusAborted
	}
	if d, ok := stats.Overall.Duration(); ok {
		run.DurationSeconds = d.Seconds()
	}

	return storage.NewRunStore(db).Create(ctx, run, doc)
}
