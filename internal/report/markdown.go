package report

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// WriteMarkdown renders a human-readable summary of the report.
func WriteMarkdown(r *Report, w io.Writer) error {
	var sb strings.Builder

	sb.WriteString("# Inference Benchmark Report\n\n")
	sb.WriteString(fmt.Sprintf("**Generated**: %s\n\n", time.Now().Format("2006-01-02 15:04:05 MST")))

	overall := r.OverallStats
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Total Requests | %d |\n", overall.TotalNumberRequests))
	sb.WriteString(fmt.Sprintf("| Failures | %d |\n", overall.TotalNumberFailures))
	sb.WriteString(fmt.Sprintf("| Duration | %.2f s |\n", overall.TotalDurationSeconds))
	sb.WriteString(fmt.Sprintf("| Requests/s | %.2f |\n", overall.RequestsPerSecond))
	sb.WriteString(fmt.Sprintf("| Prompt Tokens | %d |\n", overall.TotalPromptTokens))
	sb.WriteString(fmt.Sprintf("| Completion Tokens | %d |\n", overall.TotalCompletionTokens))
	sb.WriteString(fmt.Sprintf("| Total Tokens | %d |\n", overall.TotalTokens))
	if overall.TotalDurationSeconds > 0 {
		sb.WriteString(fmt.Sprintf("| Output Tokens/s | %.2f |\n",
			float64(overall.TotalCompletionTokens)/overall.TotalDurationSeconds))
	}
	sb.WriteString("\n")

	if failures := failedCompletions(r); len(failures) > 0 {
		sb.WriteString("## Failures\n\n")
		sb.WriteString("| # | Error |\n")
		sb.WriteString("|---|-------|\n")
		for _, f := range failures {
			sb.WriteString(fmt.Sprintf("| %d | %s |\n", f.index, sanitizeCell(f.message)))
		}
		sb.WriteString("\n")
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

type failure struct {
	index   int
	message string
}

func failedCompletions(r *Report) []failure {
	var failures []failure
	for i, c := range r.Completions {
		if !c.Success {
			failures = append(failures, failure{index: i, message: c.ErrorMessage})
		}
	}
	return failures
}

// sanitizeCell keeps error messages from breaking the table layout.
func sanitizeCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) > 120 {
		s = s[:117] + "..."
	}
	return s
}
