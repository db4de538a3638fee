package report

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-bench/inference-bench/internal/engine"
	"github.com/inference-bench/inference-bench/internal/request"
	"github.com/inference-bench/inference-bench/internal/sse"
)

func sampleStats(t *testing.T) *engine.RunStats {
	t.Helper()
	start := time.Unix(1700000000, 0)

	return &engine.RunStats{
		Overall: engine.OverallStats{
			Start:                 start,
			End:                   start.Add(4 * time.Second),
			TotalPromptTokens:     10,
			TotalCompletionTokens: 30,
			TotalTokens:           40,
			TotalRequests:         2,
			TotalFailures:         1,
		},
		Completions: []engine.CompletionResult{
			{
				Input:      request.Request{"prompt": "hi"},
				Start:      start,
				FirstToken: start.Add(200 * time.Millisecond),
				End:        start.Add(time.Second),
				Chunks:     5,
				OutputText: "hello",
				Success:    true,
				Usage:      sse.Usage{PromptTokens: 10, CompletionTokens: 30, TotalTokens: 40},
				TimeInfo:   sse.TimeInfo{QueueTime: 0.05, PromptTime: 0.1, CompletionTime: 0.7, TotalTime: 0.85, Created: 1700000001},
			},
			{
				Input:        request.Request{"prompt": "bye"},
				Start:        start.Add(time.Second),
				End:          start.Add(2 * time.Second),
				Success:      false,
				ErrorMessage: "status 500: internal error",
			},
		},
	}
}

func TestBuild_DerivedFields(t *testing.T) {
	r := Build(sampleStats(t))

	overall := r.OverallStats
	assert.Equal(t, 4.0, overall.TotalDurationSeconds)
	assert.InDelta(t, 0.5, overall.RequestsPerSecond, 1e-9)
	require.NotNil(t, overall.StartTime)
	require.NotNil(t, overall.EndTime)
	assert.InDelta(t, 1.7e9, *overall.StartTime, 1)

	require.Len(t, r.Completions, 2)

	ok := r.Completions[0]
	require.NotNil(t, ok.TotalDurationSeconds)
	assert.InDelta(t, 1.0, *ok.TotalDurationSeconds, 1e-9)
	require.NotNil(t, ok.TTFTDurationSeconds)
	assert.InDelta(t, 0.2, *ok.TTFTDurationSeconds, 1e-9)
	assert.Equal(t, 5, ok.NumberOfChunks)
	assert.Equal(t, 40, ok.APIUsage.TotalTokens)

	failed := r.Completions[1]
	assert.False(t, failed.Success)
	assert.Nil(t, failed.TTFTDurationSeconds, "no TTFT without output")
	assert.Nil(t, failed.TTFTTime)
	require.NotNil(t, failed.TotalDurationSeconds)
}

func TestBuild_OmitsUnsetTimestamps(t *testing.T) {
	r := Build(sampleStats(t))
	data, err := json.Marshal(r)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))

	completions := doc["completions"].([]any)
	failed := completions[1].(map[string]any)

	_, hasTTFT := failed["ttft_time"]
	assert.False(t, hasTTFT, "unset timestamps are omitted, not null or zero")
	_, hasTTFTDur := failed["ttft_duration_seconds"]
	assert.False(t, hasTTFTDur)

	// Zero-valued usage/time_info blocks still serialize.
	assert.Contains(t, failed, "api_usage")
	assert.Contains(t, failed, "api_time_info")
	assert.Contains(t, failed, "error_message")
}

func TestWriteAndLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	built := Build(sampleStats(t))

	require.NoError(t, WriteJSON(built, path))

	loaded, err := LoadJSON(path)
	require.NoError(t, err)
	assert.Equal(t, built.OverallStats.TotalNumberRequests, loaded.OverallStats.TotalNumberRequests)
	require.Len(t, loaded.Completions, 2)
	assert.Equal(t, "hello", loaded.Completions[0].OutputText)
	assert.Equal(t, "hi", loaded.Completions[0].Input["prompt"])
}

func TestWriteMarkdown(t *testing.T) {
	var sb strings.Builder
	require.NoError(t, WriteMarkdown(Build(sampleStats(t)), &sb))

	out := sb.String()
	assert.Contains(t, out, "# Inference Benchmark Report")
	assert.Contains(t, out, "| Total Requests | 2 |")
	assert.Contains(t, out, "## Failures")
	assert.Contains(t, out, "status 500: internal error")
}

func TestAnalyze_Percentiles(t *testing.T) {
	r := &Report{}
	for i := 1; i <= 100; i++ {
		dur := float64(i)
		r.Completions = append(r.Completions, Completion{
			APIUsage:             sse.Usage{TotalTokens: i},
			APITimeInfo:          sse.TimeInfo{QueueTime: 0.5, PromptTime: 0.25},
			TotalDurationSeconds: &dur,
		})
	}

	a := Analyze(r)
	assert.Equal(t, 100, a.Completions)

	byName := map[string]Metric{}
	for _, m := range a.Metrics {
		byName[m.Name] = m
	}

	total := byName["total_tokens"]
	require.Len(t, total.Percentiles, len(PercentileLevels))
	assert.Equal(t, 100, total.Samples)
	assert.InDelta(t, 50.5, total.Percentiles[0].Value, 1e-9) // P50
	assert.InDelta(t, 100.0, total.Percentiles[4].Value, 1e-9) // P100

	qpp := byName["queue_plus_prompt_time"]
	assert.InDelta(t, 0.75, qpp.Percentiles[0].Value, 1e-9)

	dur := byName["total_duration_seconds"]
	assert.Equal(t, 100, dur.Samples)
	assert.InDelta(t, 100.0, dur.Percentiles[4].Value, 1e-9)
}

func TestAnalyze_EmptySeries(t *testing.T) {
	a := Analyze(&Report{})
	for _, m := range a.Metrics {
		assert.Equal(t, 0, m.Samples)
		for _, p := range m.Percentiles {
			assert.Equal(t, 0.0, p.Value, "empty series yields zeros, not NaN")
		}
	}
}

func TestWriteCSV(t *testing.T) {
	dur := 2.0
	r := &Report{Completions: []Completion{{TotalDurationSeconds: &dur}}}

	var sb strings.Builder
	require.NoError(t, WriteCSV(Analyze(r), &sb))

	lines := strings.Split(strings.TrimSpace(sb.String()), "\n")
	assert.Equal(t, "Metric,P50,P90,P95,P99,P100", lines[0])
	assert.Len(t, lines, 11, "header plus one row per metric")
	assert.Contains(t, sb.String(), "total_duration_seconds,2.000000")
}
