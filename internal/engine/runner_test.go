package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-bench/inference-bench/internal/client"
	"github.com/inference-bench/inference-bench/internal/request"
	"github.com/inference-bench/inference-bench/internal/sse"
)

// fakeCaller routes Complete calls to a test-provided function.
type fakeCaller struct {
	fn func(req request.Request, onChunk client.ChunkFunc) (*client.CompletionResponse, error)
}

func (f *fakeCaller) Complete(ctx context.Context, model string, req request.Request, onChunk client.ChunkFunc) (*client.CompletionResponse, error) {
	return f.fn(req, onChunk)
}

// echoCaller streams each request's prompt back as two delta events,
// then usage, then [DONE].
func echoCaller() *fakeCaller {
	return &fakeCaller{fn: func(req request.Request, onChunk client.ChunkFunc) (*client.CompletionResponse, error) {
		prompt, _ := req.Prompt()
		half := len(prompt) / 2
		events := []string{
			fmt.Sprintf("data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", prompt[:half]),
			fmt.Sprintf("data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", prompt[half:]),
			"data: {\"usage\":{\"prompt_tokens\":2,\"completion_tokens\":3,\"total_tokens\":5}}\n\n",
			"data: [DONE]\n\n",
		}
		for _, ev := range events {
			if !onChunk(ev) {
				return nil, nil
			}
		}
		return nil, nil
	}}
}

func makeRequests(n int) []request.Request {
	requests := make([]request.Request, n)
	for i := range requests {
		requests[i] = request.Request{"prompt": fmt.Sprintf("prompt-%03d", i)}
	}
	return requests
}

func TestRun_ResultsIndexAligned(t *testing.T) {
	for _, workers := range []int{1, 3, 10, 64} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			requests := makeRequests(25)
			r := New(echoCaller(), "m", WithWorkers(workers))

			stats, err := r.Run(context.Background(), requests)
			require.NoError(t, err)
			require.Len(t, stats.Completions, len(requests))

			for i, res := range stats.Completions {
				assert.True(t, res.Success)
				assert.Equal(t, fmt.Sprintf("prompt-%03d", i), res.OutputText)
				assert.Equal(t, requests[i], res.Input)
			}
		})
	}
}

func TestRun_ConcurrencyDoesNotChangeOutcome(t *testing.T) {
	// Every third request fails at the transport.
	faulty := func() *fakeCaller {
		var n atomic.Int64
		echo := echoCaller()
		return &fakeCaller{fn: func(req request.Request, onChunk client.ChunkFunc) (*client.CompletionResponse, error) {
			prompt, _ := req.Prompt()
			if len(prompt) > 0 && (prompt[len(prompt)-1]-'0')%3 == 0 {
				n.Add(1)
				return nil, errors.New("connection refused")
			}
			return echo.fn(req, onChunk)
		}}
	}

	requests := makeRequests(9)

	serial, err := New(faulty(), "m", WithWorkers(1)).Run(context.Background(), requests)
	require.NoError(t, err)
	parallel, err := New(faulty(), "m", WithWorkers(3)).Run(context.Background(), requests)
	require.NoError(t, err)

	require.Len(t, parallel.Completions, len(serial.Completions))
	for i := range serial.Completions {
		assert.Equal(t, serial.Completions[i].Success, parallel.Completions[i].Success, "index %d", i)
		assert.Equal(t, serial.Completions[i].OutputText, parallel.Completions[i].OutputText, "index %d", i)
	}
	assert.Equal(t, serial.Overall.TotalFailures, parallel.Overall.TotalFailures)
}

func TestRun_FailureCapturedInRecord(t *testing.T) {
	caller := &fakeCaller{fn: func(req request.Request, onChunk client.ChunkFunc) (*client.CompletionResponse, error) {
		return nil, errors.New("dial tcp: connection refused")
	}}

	stats, err := New(caller, "m", WithWorkers(2)).Run(context.Background(), makeRequests(3))
	require.NoError(t, err, "request failures never fail the run")

	for _, res := range stats.Completions {
		assert.False(t, res.Success)
		assert.Contains(t, res.ErrorMessage, "connection refused")
		assert.False(t, res.Start.IsZero())
		assert.False(t, res.End.IsZero(), "records are timestamp-complete on failure")
		assert.True(t, res.FirstToken.IsZero())
	}
	assert.Equal(t, 3, stats.Overall.TotalFailures)
	assert.Equal(t, 3, stats.Overall.TotalRequests)
}

func TestRun_MalformedStreamStopsThatStreamOnly(t *testing.T) {
	caller := &fakeCaller{fn: func(req request.Request, onChunk client.ChunkFunc) (*client.CompletionResponse, error) {
		prompt, _ := req.Prompt()
		if prompt == "bad" {
			if onChunk("data: {\"choices\":[{\"delta\":{\"content\":\"par\"}}]}\n") {
				if onChunk("data: not-json\n") {
					// Must not be reached: the decoder declined.
					onChunk("data: {\"choices\":[{\"delta\":{\"content\":\"tial\"}}]}\n")
				}
			}
			return nil, nil
		}
		if onChunk("data: {\"choices\":[{\"delta\":{\"content\":\"ok\"}}]}\n\ndata: [DONE]\n\n") {
			return nil, nil
		}
		return nil, nil
	}}

	stats, err := New(caller, "m", WithWorkers(2)).Run(context.Background(),
		[]request.Request{{"prompt": "bad"}, {"prompt": "good"}})
	require.NoError(t, err)

	bad, good := stats.Completions[0], stats.Completions[1]
	assert.False(t, bad.Success)
	assert.NotEmpty(t, bad.ErrorMessage)
	assert.Equal(t, "par", bad.OutputText, "partial output retained, nothing after the bad event")

	assert.True(t, good.Success, "a malformed stream does not affect other streams")
	assert.Equal(t, "ok", good.OutputText)
}

func TestRun_StreamingRecordFields(t *testing.T) {
	stats, err := New(echoCaller(), "m", WithWorkers(1)).Run(context.Background(), makeRequests(1))
	require.NoError(t, err)

	res := stats.Completions[0]
	assert.Equal(t, 3, res.Chunks, "two deltas plus the usage event; [DONE] does not count")
	assert.Equal(t, sse.Usage{PromptTokens: 2, CompletionTokens: 3, TotalTokens: 5}, res.Usage)

	require.False(t, res.FirstToken.IsZero())
	assert.False(t, res.FirstToken.Before(res.Start))
	assert.False(t, res.End.Before(res.FirstToken))
}

func TestRun_NonStreaming(t *testing.T) {
	caller := &fakeCaller{fn: func(req request.Request, onChunk client.ChunkFunc) (*client.CompletionResponse, error) {
		require.Nil(t, onChunk, "stream=false must issue a blocking call")
		return &client.CompletionResponse{
			Choices:  []client.Choice{{Text: "blocking output"}},
			Usage:    &sse.Usage{PromptTokens: 1, CompletionTokens: 4, TotalTokens: 5},
			TimeInfo: &sse.TimeInfo{TotalTime: 0.7},
		}, nil
	}}

	stats, err := New(caller, "m", WithWorkers(1)).Run(context.Background(),
		[]request.Request{{"prompt": "x", "stream": false}})
	require.NoError(t, err)

	res := stats.Completions[0]
	assert.True(t, res.Success)
	assert.Equal(t, "blocking output", res.OutputText)
	assert.Equal(t, res.End, res.FirstToken, "non-streaming TTFT equals the end instant")
	assert.Equal(t, 0.7, res.TimeInfo.TotalTime)
	assert.Equal(t, 0, res.Chunks)
}

func TestRun_InvalidWorkerCount(t *testing.T) {
	for _, workers := range []int{0, -1} {
		_, err := New(echoCaller(), "m", WithWorkers(workers)).Run(context.Background(), makeRequests(1))
		assert.ErrorIs(t, err, ErrInvalidWorkerCount)
	}
}

func TestRun_AggregatesTokens(t *testing.T) {
	stats, err := New(echoCaller(), "m", WithWorkers(4)).Run(context.Background(), makeRequests(10))
	require.NoError(t, err)

	overall := stats.Overall
	assert.Equal(t, 10, overall.TotalRequests)
	assert.Equal(t, 0, overall.TotalFailures)
	assert.Equal(t, 20, overall.TotalPromptTokens)
	assert.Equal(t, 30, overall.TotalCompletionTokens)
	assert.Equal(t, 50, overall.TotalTokens)
	assert.Equal(t, overall.TotalPromptTokens+overall.TotalCompletionTokens, overall.TotalTokens)
	assert.Greater(t, overall.RequestsPerSecond(), 0.0)
}

func TestOverallStats_RequestsPerSecondGuards(t *testing.T) {
	now := time.Now()

	zero := OverallStats{Start: now, End: now, TotalRequests: 5}
	assert.Equal(t, 0.0, zero.RequestsPerSecond(), "zero duration yields zero, not Inf")

	unset := OverallStats{TotalRequests: 5}
	assert.Equal(t, 0.0, unset.RequestsPerSecond())

	one := OverallStats{Start: now, End: now.Add(2 * time.Second), TotalRequests: 5}
	assert.InDelta(t, 2.5, one.RequestsPerSecond(), 1e-9)
}

func TestRun_RateLimiterStillCoversAllRequests(t *testing.T) {
	stats, err := New(echoCaller(), "m", WithWorkers(4), WithRateLimit(1000)).
		Run(context.Background(), makeRequests(8))
	require.NoError(t, err)

	require.Len(t, stats.Completions, 8)
	for i, res := range stats.Completions {
		assert.True(t, res.Success, "index %d", i)
	}
}
