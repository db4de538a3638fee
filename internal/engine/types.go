package engine

import (
	"time"

	"github.com/inference-bench/inference-bench/internal/request"
	"github.com/inference-bench/inference-bench/internal/sse"
)

// CompletionResult is the terminal outcome of exactly one request.
// It is written only by the worker that executed the request and is
// read-only once the dispatch barrier completes.
//
// A zero time value means the corresponding instant was never observed;
// FirstToken in particular stays zero when the request produced no
// output. End is always set, even on failure.
type CompletionResult struct {
	Input request.Request

	Start      time.Time
	FirstToken time.Time
	End        time.Time

	Chunks     int
	OutputText string

	Success      bool
	ErrorMessage string

	Usage    sse.Usage
	TimeInfo sse.TimeInfo
}

// TotalDuration returns the request's wall-clock duration, false if
// either bound is missing.
func (r *CompletionResult) TotalDuration() (time.Duration, bool) {
	if r.Start.IsZero() || r.End.IsZero() {
		return 0, false
	}
	return r.End.Sub(r.Start), true
}

// TTFT returns the time to first token, false if no token was observed.
func (r *CompletionResult) TTFT() (time.Duration, bool) {
	if r.Start.IsZero() || r.FirstToken.IsZero() {
		return 0, false
	}
	return r.FirstToken.Sub(r.Start), true
}

// OverallStats summarizes one dispatch across all requests.
type OverallStats struct {
	Start time.Time
	End   time.Time

	TotalPromptTokens     int
	TotalCompletionTokens int
	TotalTokens           int

	TotalRequests int
	TotalFailures int
}

// Duration returns the dispatch wall-clock duration, false if either
// bound is missing.
func (s *OverallStats) Duration() (time.Duration, bool) {
	if s.Start.IsZero() || s.End.IsZero() {
		return 0, false
	}
	return s.End.Sub(s.Start), true
}

// RequestsPerSecond derives throughput from the dispatch wall clock,
// not the sum of per-request durations. Zero duration yields zero, not
// an infinity.
func (s *OverallStats) RequestsPerSecond() float64 {
	d, ok := s.Duration()
	if !ok || d <= 0 {
		return 0
	}
	return float64(s.TotalRequests) / d.Seconds()
}

// RunStats is the full outcome of one benchmark run: the overall
// summary plus one result per input request, index-aligned with the
// input list.
type RunStats struct {
	Overall     OverallStats
	Completions []CompletionResult
}
