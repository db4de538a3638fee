package sse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecoder_SingleDeltaThenDone(t *testing.T) {
	d := NewDecoder()

	require.NoError(t, d.Feed("data: {\"choices\":[{\"delta\":{\"content\":\"Hi\"}}]}\n\n"))
	require.NoError(t, d.Feed("data: [DONE]\n\n"))

	assert.Equal(t, "Hi", d.Output())
	assert.Equal(t, 1, d.Chunks())
	assert.True(t, d.Done())

	first, ok := d.FirstTokenAt()
	require.True(t, ok)
	doneAt, ok := d.DoneAt()
	require.True(t, ok)
	assert.False(t, first.After(doneAt), "first token must not be after DONE")
}

func TestDecoder_ChunkBoundaryIndependence(t *testing.T) {
	stream := "data: {\"choices\":[{\"delta\":{\"content\":\"Hello\"}}]}\n\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\", world\"}}]}\n\n" +
		"data: {\"usage\":{\"prompt_tokens\":3,\"completion_tokens\":7,\"total_tokens\":10},\"time_info\":{\"queue_time\":0.01,\"prompt_time\":0.02,\"completion_time\":0.5,\"total_time\":0.53,\"created\":1700000000}}\n\n" +
		"data: [DONE]\n\n"

	splits := []struct {
		name  string
		sizes int // chunk size to feed at a time
	}{
		{"one byte at a time", 1},
		{"three bytes", 3},
		{"seventeen bytes", 17},
		{"whole stream", len(stream)},
	}

	for _, tc := range splits {
		t.Run(tc.name, func(t *testing.T) {
			d := NewDecoder()
			for i := 0; i < len(stream); i += tc.sizes {
				end := i + tc.sizes
				if end > len(stream) {
					end = len(stream)
				}
				require.NoError(t, d.Feed(stream[i:end]))
			}

			assert.Equal(t, "Hello, world", d.Output())
			assert.Equal(t, 3, d.Chunks())
			assert.True(t, d.Done())
			assert.Equal(t, Usage{PromptTokens: 3, CompletionTokens: 7, TotalTokens: 10}, d.Usage())
			assert.Equal(t, TimeInfo{
				QueueTime:      0.01,
				PromptTime:     0.02,
				CompletionTime: 0.5,
				TotalTime:      0.53,
				Created:        1700000000,
			}, d.TimeInfo())
		})
	}
}

func TestDecoder_MalformedPayloadLatchesError(t *testing.T) {
	d := NewDecoder()

	require.NoError(t, d.Feed("data: {\"choices\":[{\"delta\":{\"content\":\"partial\"}}]}\n"))

	err := d.Feed("data: not-json\n")
	require.Error(t, err)
	assert.ErrorIs(t, d.Err(), err)

	// Subsequent input is rejected and never reaches the output.
	err2 := d.Feed("data: {\"choices\":[{\"delta\":{\"content\":\"more\"}}]}\n")
	require.Error(t, err2)
	assert.Equal(t, "partial", d.Output())
}

func TestDecoder_MalformedPayloadSkipsRestOfBuffer(t *testing.T) {
	d := NewDecoder()

	// Both lines arrive in one chunk; the bad first line must stop the
	// second from being decoded.
	err := d.Feed("data: {broken\ndata: {\"choices\":[{\"delta\":{\"content\":\"x\"}}]}\n")
	require.Error(t, err)
	assert.Empty(t, d.Output())
	assert.Equal(t, 0, d.Chunks())
}

func TestDecoder_TextShape(t *testing.T) {
	d := NewDecoder()
	require.NoError(t, d.Feed("data: {\"choices\":[{\"text\":\"legacy\"}]}\n"))
	assert.Equal(t, "legacy", d.Output())
	assert.Equal(t, 1, d.Chunks())
}

func TestDecoder_NullContentIsAbsent(t *testing.T) {
	d := NewDecoder()
	require.NoError(t, d.Feed("data: {\"choices\":[{\"delta\":{\"content\":null}}]}\n"))
	assert.Empty(t, d.Output())
	assert.Equal(t, 1, d.Chunks())

	_, ok := d.FirstTokenAt()
	assert.False(t, ok, "no TTFT without content")
}

func TestDecoder_FirstTokenMarkedOnTransition(t *testing.T) {
	var ticks int
	d := NewDecoder()
	d.now = func() time.Time {
		ticks++
		return time.Unix(int64(ticks), 0)
	}

	// First event carries no content, second does: TTFT belongs to the
	// second event.
	require.NoError(t, d.Feed("data: {\"choices\":[{\"delta\":{}}]}\n"))
	_, ok := d.FirstTokenAt()
	require.False(t, ok)

	require.NoError(t, d.Feed("data: {\"choices\":[{\"delta\":{\"content\":\"a\"}}]}\n"))
	first, ok := d.FirstTokenAt()
	require.True(t, ok)

	require.NoError(t, d.Feed("data: {\"choices\":[{\"delta\":{\"content\":\"b\"}}]}\n"))
	again, _ := d.FirstTokenAt()
	assert.Equal(t, first, again, "TTFT is recorded exactly once")
	assert.Equal(t, 3, d.Chunks())
}

func TestDecoder_IgnoresNonDataFields(t *testing.T) {
	d := NewDecoder()
	require.NoError(t, d.Feed("event: completion\nid: 42\nretry: 1000\n\ndata: {\"choices\":[{\"delta\":{\"content\":\"ok\"}}]}\n"))
	assert.Equal(t, "ok", d.Output())
	assert.Equal(t, 1, d.Chunks())
}

func TestDecoder_UsageLastWriterWins(t *testing.T) {
	d := NewDecoder()
	require.NoError(t, d.Feed("data: {\"usage\":{\"prompt_tokens\":1,\"completion_tokens\":2,\"total_tokens\":3}}\n"))
	require.NoError(t, d.Feed("data: {\"usage\":{\"prompt_tokens\":10}}\n"))

	// The later usage block replaces the earlier one entirely; omitted
	// subfields read as zero.
	assert.Equal(t, Usage{PromptTokens: 10}, d.Usage())
}

func TestDecoder_CarriageReturnLines(t *testing.T) {
	d := NewDecoder()
	require.NoError(t, d.Feed("data: {\"choices\":[{\"delta\":{\"content\":\"crlf\"}}]}\r\n\r\ndata: [DONE]\r\n"))
	assert.Equal(t, "crlf", d.Output())
	assert.True(t, d.Done())
}
