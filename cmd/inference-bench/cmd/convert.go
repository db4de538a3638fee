package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/inference-bench/inference-bench/internal/logging"
	"github.com/inference-bench/inference-bench/internal/request"
)

var (
	convertInputFile  string
	convertOutputFile string
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Prepare a raw dataset for benchmarking",
	Long: `Convert rewrites a raw JSONL dataset into benchmark request form:
"text" becomes "prompt", "token_length" becomes "max_tokens", and a
sampling temperature is injected when the record has none.

Example:
  inference-bench convert --input dataset.jsonl --output requests.jsonl`,
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().StringVarP(&convertInputFile, "input", "i", "", "Input JSONL dataset")
	convertCmd.Flags().StringVarP(&convertOutputFile, "output", "o", "", "Output JSONL request file")
	convertCmd.MarkFlagRequired("input")
	convertCmd.MarkFlagRequired("output")

	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := logging.Setup(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	n, err := request.ConvertFile(convertInputFile, convertOutputFile, logger)
	if err != nil {
		return err
	}

	logger.Info("converted dataset",
		slog.String("input", convertInputFile),
		slog.String("output", convertOutputFile),
		slog.Int("requests", n))

	return nil
}
