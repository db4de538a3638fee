// Package sse decodes the server-sent-event stream produced by
// OpenAI-compatible completion endpoints. A Decoder is fed raw body
// chunks as they arrive and accumulates output text, token usage, and
// server timing without waiting for the full response.
package sse

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// doneMarker is the literal payload that terminates a completion stream.
const doneMarker = "[DONE]"

// Usage is the token accounting block reported by the API.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// TimeInfo is the server-side timing breakdown reported by the API.
type TimeInfo struct {
	QueueTime      float64 `json:"queue_time"`
	PromptTime     float64 `json:"prompt_time"`
	CompletionTime float64 `json:"completion_time"`
	TotalTime      float64 `json:"total_time"`
	Created        int64   `json:"created"`
}

// event is the subset of a completion chunk the decoder interprets.
// Pointers distinguish "absent" from "present but empty".
type event struct {
	Choices []struct {
		Delta *struct {
			Content *string `json:"content"`
		} `json:"delta"`
		Text *string `json:"text"`
	} `json:"choices"`
	Usage    *Usage    `json:"usage"`
	TimeInfo *TimeInfo `json:"time_info"`
}

// Decoder is a stateful incremental SSE decoder. One instance decodes
// exactly one stream; instances are not safe for concurrent use.
//
// Chunk boundaries carry no meaning: feeding a stream one byte at a
// time produces the same result as feeding it whole. A partial line is
// buffered until its terminating newline arrives.
type Decoder struct {
	buf    strings.Builder
	out    strings.Builder
	chunks int

	usage    Usage
	timeInfo TimeInfo

	firstToken time.Time
	doneAt     time.Time
	err        error

	now func() time.Time
}

// NewDecoder returns a Decoder ready to receive stream chunks.
func NewDecoder() *Decoder {
	return &Decoder{now: time.Now}
}

// Feed appends chunk to the decode buffer and consumes every complete
// line it now contains. Once Feed returns an error the decoder is dead:
// the error is latched and all further input is rejected.
func (d *Decoder) Feed(chunk string) error {
	if d.err != nil {
		return d.err
	}
	d.buf.WriteString(chunk)

	pending := d.buf.String()
	for {
		idx := strings.IndexByte(pending, '\n')
		if idx < 0 {
			break
		}
		line := pending[:idx]
		pending = pending[idx+1:]

		if err := d.decodeLine(line); err != nil {
			d.err = err
			d.buf.Reset()
			return err
		}
	}

	// Keep the trailing partial line for the next feed.
	d.buf.Reset()
	d.buf.WriteString(pending)
	return nil
}

// decodeLine classifies and interprets a single complete line.
func (d *Decoder) decodeLine(line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	// Only data fields are interpreted; event:, id:, retry: and friends
	// are ignored.
	payload, ok := strings.CutPrefix(line, "data:")
	if !ok {
		return nil
	}
	payload = strings.TrimSpace(payload)

	if payload == doneMarker {
		d.doneAt = d.now()
		return nil
	}
	if payload == "" {
		return nil
	}

	var ev event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return fmt.Errorf("malformed event payload %q: %w", payload, err)
	}
	d.apply(&ev)
	return nil
}

// apply folds one parsed event into the accumulated stream state.
func (d *Decoder) apply(ev *event) {
	if len(ev.Choices) > 0 {
		choice := ev.Choices[0]
		switch {
		case choice.Delta != nil:
			if choice.Delta.Content != nil {
				d.out.WriteString(*choice.Delta.Content)
			}
		case choice.Text != nil:
			d.out.WriteString(*choice.Text)
		}
	}

	// TTFT is the instant output first becomes non-empty.
	if d.firstToken.IsZero() && d.out.Len() > 0 {
		d.firstToken = d.now()
	}
	d.chunks++

	// Later usage/time_info blocks supersede earlier ones wholesale;
	// subfields the server omitted read as zero.
	if ev.Usage != nil {
		d.usage = *ev.Usage
	}
	if ev.TimeInfo != nil {
		d.timeInfo = *ev.TimeInfo
	}
}

// Output returns the accumulated completion text in arrival order.
func (d *Decoder) Output() string { return d.out.String() }

// Chunks returns the number of data events decoded so far.
func (d *Decoder) Chunks() int { return d.chunks }

// Usage returns the most recent usage block, zero-valued if the stream
// never carried one.
func (d *Decoder) Usage() Usage { return d.usage }

// TimeInfo returns the most recent server timing block, zero-valued if
// the stream never carried one.
func (d *Decoder) TimeInfo() TimeInfo { return d.timeInfo }

// FirstTokenAt returns the instant output first became non-empty.
func (d *Decoder) FirstTokenAt() (time.Time, bool) {
	return d.firstToken, !d.firstToken.IsZero()
}

// DoneAt returns the instant the [DONE] marker was decoded.
func (d *Decoder) DoneAt() (time.Time, bool) {
	return d.doneAt, !d.doneAt.IsZero()
}

// Done reports whether the stream's [DONE] marker has been seen.
func (d *Decoder) Done() bool { return !d.doneAt.IsZero() }

// Err returns the latched decode error, if any.
func (d *Decoder) Err() error { return d.err }
