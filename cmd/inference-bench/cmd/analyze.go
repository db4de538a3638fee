package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/inference-bench/inference-bench/internal/report"
)

var analyzeCSVFile string

var analyzeCmd = &cobra.Command{
	Use:   "analyze <report.json>",
	Short: "Compute percentile statistics from a saved report",
	Long: `Analyze reads a report written by the run command and prints
percentile breakdowns of the API-reported timings, token counts, and
measured client-side durations.

Examples:
  inference-bench analyze benchmark_results.json
  inference-bench analyze benchmark_results.json --csv stats.csv`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeCSVFile, "csv", "", "Also write the percentile table to this CSV file")

	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	rep, err := report.LoadJSON(args[0])
	if err != nil {
		return err
	}

	analysis := report.Analyze(rep)

	fmt.Printf("Completions: %d\n\n", analysis.Completions)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprint(w, "METRIC")
	for _, level := range report.PercentileLevels {
		fmt.Fprintf(w, "\tP%d", level)
	}
	fmt.Fprintln(w)

	for _, m := range analysis.Metrics {
		fmt.Fprint(w, m.Name)
		for _, p := range m.Percentiles {
			fmt.Fprintf(w, "\t%.4f", p.Value)
		}
		fmt.Fprintln(w)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if analyzeCSVFile != "" {
		f, err := os.Create(analyzeCSVFile)
		if err != nil {
			return fmt.Errorf("failed to create CSV file: %w", err)
		}
		defer f.Close()
		if err := report.WriteCSV(analysis, f); err != nil {
			return err
		}
	}

	return nil
}
