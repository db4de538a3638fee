// Package engine dispatches a list of completion requests against an
// endpoint with a fixed-size worker pool and aggregates per-request and
// overall statistics. This is the benchmark core: everything around it
// is plumbing.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/inference-bench/inference-bench/internal/client"
	"github.com/inference-bench/inference-bench/internal/metrics"
	"github.com/inference-bench/inference-bench/internal/request"
	"github.com/inference-bench/inference-bench/internal/sse"
)

// ErrInvalidWorkerCount is returned when Run is configured with a
// non-positive worker count. It is a configuration error: no dispatch
// work happens.
var ErrInvalidWorkerCount = errors.New("worker count must be positive")

// DefaultWorkers is the dispatch concurrency used when none is set.
const DefaultWorkers = 10

// Caller is the transport capability the engine measures: one
// completion call, optionally streaming through a chunk callback.
// *client.Client satisfies it; tests substitute fakes.
type Caller interface {
	Complete(ctx context.Context, model string, req request.Request, onChunk client.ChunkFunc) (*client.CompletionResponse, error)
}

// Runner executes benchmark runs against one model on one endpoint.
type Runner struct {
	caller  Caller
	model   string
	workers int
	limiter *rate.Limiter
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures the runner.
type Option func(*Runner)

// WithWorkers sets the worker pool size.
func WithWorkers(n int) Option {
	return func(r *Runner) {
		r.workers = n
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithRateLimit paces request claims at rps requests per second.
// A non-positive rps leaves dispatch unpaced.
func WithRateLimit(rps float64) Option {
	return func(r *Runner) {
		if rps > 0 {
			r.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// New creates a runner bound to a caller and model.
func New(caller Caller, model string, opts ...Option) *Runner {
	r := &Runner{
		caller:  caller,
		model:   model,
		workers: DefaultWorkers,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run dispatches every request across the worker pool and blocks until
// all workers drain the shared cursor. The returned completions are
// index-aligned with requests regardless of worker count or completion
// order. Individual request failures do not fail the run; they are
// captured in their records.
func (r *Runner) Run(ctx context.Context, requests []request.Request) (*RunStats, error) {
	if r.workers <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWorkerCount, r.workers)
	}

	stats := &RunStats{
		Completions: make([]CompletionResult, len(requests)),
	}
	stats.Overall.Start = r.now()

	// The cursor is the only coordination between workers. Each
	// fetch-add claims one index exactly once; a worker exits when its
	// claim falls past the end of the list.
	var cursor atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for {
				index := int(cursor.Add(1)) - 1
				if index >= len(requests) {
					return
				}
				if r.limiter != nil {
					if err := r.limiter.Wait(ctx); err != nil {
						stats.Completions[index] = r.abortedResult(requests[index], err)
						continue
					}
				}
				r.logger.Debug("dispatching request",
					slog.Int("index", index),
					slog.Int("worker", worker))
				stats.Completions[index] = r.complete(ctx, requests[index])
			}
		}(i)
	}
	wg.Wait()

	stats.Overall.End = r.now()
	r.aggregate(stats)
	metrics.RunsTotal.Inc()

	return stats, nil
}

// complete executes one request end to end and produces its result.
// The record is always timestamp-complete: End is stamped even when the
// call fails.
func (r *Runner) complete(ctx context.Context, req request.Request) CompletionResult {
	metrics.CompletionsInFlight.Inc()
	defer metrics.CompletionsInFlight.Dec()

	res := CompletionResult{
		Input:   req,
		Success: true,
		Start:   r.now(),
	}

	if req.Stream() {
		r.completeStreaming(ctx, req, &res)
	} else {
		r.completeBlocking(ctx, req, &res)
	}

	r.observe(&res)
	return res
}

// completeStreaming issues the call with a per-chunk callback feeding a
// decoder owned by this invocation. The [DONE] instant, not the call
// return, is the preferred end timestamp: the transport may lag the
// terminal event slightly.
func (r *Runner) completeStreaming(ctx context.Context, req request.Request, res *CompletionResult) {
	dec := sse.NewDecoder()
	_, callErr := r.caller.Complete(ctx, r.model, req, func(chunk string) bool {
		return dec.Feed(chunk) == nil
	})
	returned := r.now()

	res.OutputText = dec.Output()
	res.Chunks = dec.Chunks()
	res.Usage = dec.Usage()
	res.TimeInfo = dec.TimeInfo()
	if first, ok := dec.FirstTokenAt(); ok {
		res.FirstToken = first
	}
	if doneAt, ok := dec.DoneAt(); ok {
		res.End = doneAt
	} else {
		res.End = returned
	}

	switch {
	case dec.Err() != nil:
		res.Success = false
		res.ErrorMessage = dec.Err().Error()
	case callErr != nil:
		res.Success = false
		res.ErrorMessage = callErr.Error()
	}
}

// completeBlocking issues a non-streaming call and extracts the output
// with the same choices/text precedence the decoder applies. There is
// no first-token instant to observe, so TTFT equals the end timestamp
// whenever output was produced.
func (r *Runner) completeBlocking(ctx context.Context, req request.Request, res *CompletionResult) {
	resp, err := r.caller.Complete(ctx, r.model, req, nil)
	res.End = r.now()
	if err != nil {
		res.Success = false
		res.ErrorMessage = err.Error()
		return
	}

	if resp != nil {
		if len(resp.Choices) > 0 {
			res.OutputText = resp.Choices[0].Text
		}
		if resp.Usage != nil {
			res.Usage = *resp.Usage
		}
		if resp.TimeInfo != nil {
			res.TimeInfo = *resp.TimeInfo
		}
	}
	if res.OutputText != "" {
		res.FirstToken = res.End
	}
}

// abortedResult records a request that never reached the transport,
// e.g. because the pacing limiter's context ended.
func (r *Runner) abortedResult(req request.Request, err error) CompletionResult {
	now := r.now()
	res := CompletionResult{
		Input:        req,
		Start:        now,
		End:          now,
		Success:      false,
		ErrorMessage: err.Error(),
	}
	r.observe(&res)
	return res
}

func (r *Runner) observe(res *CompletionResult) {
	if res.Success {
		metrics.CompletionsTotal.WithLabelValues("success").Inc()
	} else {
		metrics.CompletionsTotal.WithLabelValues("failure").Inc()
		r.logger.Warn("completion failed", slog.String("error", res.ErrorMessage))
	}
	if d, ok := res.TotalDuration(); ok {
		metrics.CompletionDuration.Observe(d.Seconds())
	}
	if d, ok := res.TTFT(); ok {
		metrics.TimeToFirstToken.Observe(d.Seconds())
	}
	metrics.TokensTotal.WithLabelValues("prompt").Add(float64(res.Usage.PromptTokens))
	metrics.TokensTotal.WithLabelValues("completion").Add(float64(res.Usage.CompletionTokens))
}

// aggregate reduces the completed results into the overall summary.
// Records without usage contribute zero; failed records still count
// toward the request total.
func (r *Runner) aggregate(stats *RunStats) {
	overall := &stats.Overall
	overall.TotalRequests = len(stats.Completions)
	for i := range stats.Completions {
		res := &stats.Completions[i]
		overall.TotalPromptTokens += res.Usage.PromptTokens
		overall.TotalCompletionTokens += res.Usage.CompletionTokens
		overall.TotalTokens += res.Usage.TotalTokens
		if !res.Success {
			overall.TotalFailures++
		}
	}
}
