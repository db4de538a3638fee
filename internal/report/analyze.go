package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"sort"
)

// PercentileLevels are the levels the analyzer reports, in output order.
var PercentileLevels = []int{50, 90, 95, 99, 100}

// Percentile is one percentile value of a metric.
type Percentile struct {
	Level int     `json:"level"`
	Value float64 `json:"value"`
}

// Metric is the percentile breakdown of one per-completion series.
type Metric struct {
	Name        string       `json:"name"`
	Samples     int          `json:"samples"`
	Percentiles []Percentile `json:"percentiles"`
}

// Analysis is the percentile view over a report's completions.
type Analysis struct {
	Completions int      `json:"completions"`
	Metrics     []Metric `json:"metrics"`
}

// Analyze computes percentiles for the server-timing, token-usage, and
// client-side latency series of a report.
func Analyze(r *Report) *Analysis {
	series := []struct {
		name    string
		extract func(c *Completion) (float64, bool)
	}{
		{"queue_time", func(c *Completion) (float64, bool) { return c.APITimeInfo.QueueTime, true }},
		{"prompt_time", func(c *Completion) (float64, bool) { return c.APITimeInfo.PromptTime, true }},
		{"completion_time", func(c *Completion) (float64, bool) { return c.APITimeInfo.CompletionTime, true }},
		{"total_time", func(c *Completion) (float64, bool) { return c.APITimeInfo.TotalTime, true }},
		{"queue_plus_prompt_time", func(c *Completion) (float64, bool) {
			return c.APITimeInfo.QueueTime + c.APITimeInfo.PromptTime, true
		}},
		{"prompt_tokens", func(c *Completion) (float64, bool) { return float64(c.APIUsage.PromptTokens), true }},
		{"completion_tokens", func(c *Completion) (float64, bool) { return float64(c.APIUsage.CompletionTokens), true }},
		{"total_tokens", func(c *Completion) (float64, bool) { return float64(c.APIUsage.TotalTokens), true }},
		{"ttft_duration_seconds", func(c *Completion) (float64, bool) {
			if c.TTFTDurationSeconds == nil {
				return 0, false
			}
			return *c.TTFTDurationSeconds, true
		}},
		{"total_duration_seconds", func(c *Completion) (float64, bool) {
			if c.TotalDurationSeconds == nil {
				return 0, false
			}
			return *c.TotalDurationSeconds, true
		}},
	}

	analysis := &Analysis{Completions: len(r.Completions)}
	for _, s := range series {
		var values []float64
		for i := range r.Completions {
			if v, ok := s.extract(&r.Completions[i]); ok {
				values = append(values, v)
			}
		}
		analysis.Metrics = append(analysis.Metrics, Metric{
			Name:        s.name,
			Samples:     len(values),
			Percentiles: percentiles(values),
		})
	}
	return analysis
}

// percentiles computes every reported level over values. An empty
// series yields all zeros.
func percentiles(values []float64) []Percentile {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	out := make([]Percentile, 0, len(PercentileLevels))
	for _, level := range PercentileLevels {
		out = append(out, Percentile{Level: level, Value: percentile(sorted, level)})
	}
	return out
}

// percentile returns the p-th percentile of a sorted series using
// linear interpolation between closest ranks.
func percentile(sorted []float64, p int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := float64(p) / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// WriteCSV writes the analysis as one row per metric with a column per
// percentile level.
func WriteCSV(a *Analysis, w io.Writer) error {
	cw := csv.NewWriter(w)

	header := []string{"Metric"}
	for _, level := range PercentileLevels {
		header = append(header, fmt.Sprintf("P%d", level))
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, m := range a.Metrics {
		row := []string{m.Name}
		for _, p := range m.Percentiles {
			row = append(row, fmt.Sprintf("%.6f", p.Value))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
