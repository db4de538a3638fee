// Package report turns engine run statistics into the serializable
// benchmark report: the overall summary plus one entry per completion,
// index-aligned with the input request list.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/inference-bench/inference-bench/internal/engine"
	"github.com/inference-bench/inference-bench/internal/request"
	"github.com/inference-bench/inference-bench/internal/sse"
)

// Report is the externally visible artifact of a benchmark run.
type Report struct {
	OverallStats Overall      `json:"overall_stats"`
	Completions  []Completion `json:"completions"`
}

// Overall is the serialized run-level summary. Optional timestamps are
// omitted, never zero-filled.
type Overall struct {
	TotalDurationSeconds  float64  `json:"total_duration_seconds"`
	TotalPromptTokens     int      `json:"total_prompt_tokens"`
	TotalCompletionTokens int      `json:"total_completion_tokens"`
	TotalTokens           int      `json:"total_tokens"`
	TotalNumberRequests   int      `json:"total_number_requests"`
	TotalNumberFailures   int      `json:"total_number_failures"`
	RequestsPerSecond     float64  `json:"requests_per_second"`
	StartTime             *float64 `json:"start_time,omitempty"`
	EndTime               *float64 `json:"end_time,omitempty"`
}

// Completion is one serialized request outcome. Derived duration fields
// and timestamps are present only when their source instants were
// observed; api_usage and api_time_info always serialize and may be
// zero-valued.
type Completion struct {
	Input                request.Request `json:"input"`
	OutputText           string          `json:"output_text"`
	Success              bool            `json:"success"`
	ErrorMessage         string          `json:"error_message"`
	TotalDurationSeconds *float64        `json:"total_duration_seconds,omitempty"`
	TTFTDurationSeconds  *float64        `json:"ttft_duration_seconds,omitempty"`
	NumberOfChunks       int             `json:"number_of_chunks"`
	StartTime            *float64        `json:"start_time,omitempty"`
	TTFTTime             *float64        `json:"ttft_time,omitempty"`
	EndTime              *float64        `json:"end_time,omitempty"`
	APIUsage             sse.Usage       `json:"api_usage"`
	APITimeInfo          sse.TimeInfo    `json:"api_time_info"`
}

// Build assembles the report from run statistics. All derived fields
// are computed here, once.
func Build(stats *engine.RunStats) *Report {
	overall := Overall{
		TotalPromptTokens:     stats.Overall.TotalPromptTokens,
		TotalCompletionTokens: stats.Overall.TotalCompletionTokens,
		TotalTokens:           stats.Overall.TotalTokens,
		TotalNumberRequests:   stats.Overall.TotalRequests,
		TotalNumberFailures:   stats.Overall.TotalFailures,
		RequestsPerSecond:     stats.Overall.RequestsPerSecond(),
		StartTime:             epochSeconds(stats.Overall.Start),
		EndTime:               epochSeconds(stats.Overall.End),
	}
	if d, ok := stats.Overall.Duration(); ok {
		overall.TotalDurationSeconds = d.Seconds()
	}

	completions := make([]Completion, len(stats.Completions))
	for i := range stats.Completions {
		completions[i] = buildCompletion(&stats.Completions[i])
	}

	return &Report{OverallStats: overall, Completions: completions}
}

func buildCompletion(res *engine.CompletionResult) Completion {
	c := Completion{
		Input:          res.Input,
		OutputText:     res.OutputText,
		Success:        res.Success,
		ErrorMessage:   res.ErrorMessage,
		NumberOfChunks: res.Chunks,
		StartTime:      epochSeconds(res.Start),
		TTFTTime:       epochSeconds(res.FirstToken),
		EndTime:        epochSeconds(res.End),
		APIUsage:       res.Usage,
		APITimeInfo:    res.TimeInfo,
	}
	if d, ok := res.TotalDuration(); ok {
		c.TotalDurationSeconds = float64Ptr(d.Seconds())
	}
	if d, ok := res.TTFT(); ok {
		c.TTFTDurationSeconds = float64Ptr(d.Seconds())
	}
	return c
}

// epochSeconds converts an instant to fractional seconds since epoch,
// nil when the instant was never observed.
func epochSeconds(t time.Time) *float64 {
	if t.IsZero() {
		return nil
	}
	return float64Ptr(float64(t.UnixNano()) / float64(time.Second))
}

func float64Ptr(v float64) *float64 { return &v }

// WriteJSON writes the report to path as indented JSON. Path "-" writes
// to stdout.
func WriteJSON(r *Report, path string) error {
	data, err := json.MarshalIndent(r, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	if path == "" || path == "-" {
		_, err = os.Stdout.Write(append(data, '\n'))
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	return nil
}

// LoadJSON reads a previously written report from path.
func LoadJSON(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse report %s: %w", path, err)
	}
	return &r, nil
}
