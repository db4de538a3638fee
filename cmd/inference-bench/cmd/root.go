package cmd

import (
	"github.com/spf13/cobra"

	"github.com/inference-bench/inference-bench/internal/config"
)

var (
	cfgFile   string
	logLevel  string
	logFormat string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "inference-bench",
	Short: "Benchmark LLM completion endpoints",
	Long: `inference-bench drives an OpenAI-compatible completions endpoint
with a fixed set of requests and measures per-request latency, time to
first token, and token throughput.

Subcommands:
- run      execute a benchmark against an endpoint
- analyze  compute percentile statistics from a saved report
- convert  prepare a raw dataset for benchmarking
- serve    expose stored run results over HTTP
- models   list models available at the endpoint`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format (text, json)")
}

// loadConfig loads configuration and applies the global logging flags
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}

	return cfg, nil
}
