// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jeranaias/eyeq-tui/internal/model"
)

// STREAMING: line-framed event parsing with per-line error tolerance

// =============================================================================
// STREAMING CONSTANTS
// =============================================================================

const (
	// dataPrefix marks an event line. Other lines are ignored.
	dataPrefix = "data: "

	// readBufferSize is the size of each body read.
	readBufferSize = 4 * 1024

	// MaxLineSize caps a single buffered line (1MB). A longer line is
	// dropped so a misbehaving server cannot grow the buffer without bound.
	MaxLineSize = 1024 * 1024
)

// =============================================================================
// STREAMING TYPES
// =============================================================================

// AnalyzeRequest is the body of the analysis request.
type AnalyzeRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
	Streaming bool   `json:"streaming"`
}

// ReviewRequest is the body of a comprehensive review. MaterialText is a
// whole document; the backend runs every compliance check over it.
type ReviewRequest struct {
	MaterialText string `json:"material_text"`
	ProductName  string `json:"product_name,omitempty"`
	SessionID    string `json:"session_id"`
	Streaming    bool   `json:"streaming"`
}

// EventKind identifies a stream event.
type EventKind int

const (
	// EventChunk carries incremental content.
	EventChunk EventKind = iota
	// EventDone ends the stream successfully.
	EventDone
	// EventError ends the stream with a backend-reported failure.
	EventError
)

// String returns the event kind name.
func (k EventKind) String() string {
	switch k {
	case EventChunk:
		return "chunk"
	case EventDone:
		return "done"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is one decoded stream event.
type Event struct {
	Kind EventKind

	// Chunk is the appended text of an EventChunk.
	Chunk string

	// FullResponse is authoritative over accumulated chunks when
	// HasFullResponse is set on an EventDone.
	FullResponse    string
	HasFullResponse bool
	Analysis        *model.AnalysisResult
	Citations       []model.Citation

	// Synthetic marks an EventDone produced at end of stream because the
	// backend closed the connection after sending content but no done event.
	Synthetic bool

	// Message is the error text of an EventError.
	Message string
}

// Callback receives events in arrival order on the reading goroutine.
type Callback func(Event)

// StreamError is a failure after the request was accepted, preserving any
// content received before it.
type StreamError struct {
	Partial string
	Err     error
}

// Error implements the error interface.
func (e *StreamError) Error() string {
	if e.Partial != "" {
		return fmt.Sprintf("stream error (partial content received: %d chars): %v", len(e.Partial), e.Err)
	}
	return fmt.Sprintf("stream error: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *StreamError) Unwrap() error {
	return e.Err
}

// RemoteError is an {"error": "..."} event sent by the backend.
type RemoteError struct {
	Message string
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	return "backend reported: " + e.Message
}

// wireEvent is the JSON shape of a data line.
type wireEvent struct {
	Chunk        *string         `json:"chunk"`
	Done         bool            `json:"done"`
	FullResponse *string         `json:"full_response"`
	Analysis     json.RawMessage `json:"analysis"`
	Citations    json.RawMessage `json:"citations"`
	Error        *string         `json:"error"`
}

// =============================================================================
// DECODER
// =============================================================================

// Decoder turns raw body bytes into events. Bytes are appended to a rolling
// buffer, every complete line is processed and a trailing partial line is
// kept for the next Feed.
type Decoder struct {
	buf      []byte
	log      *slog.Logger
	skipping bool // discarding the rest of an oversized line
}

// NewDecoder creates a Decoder. Skipped lines are logged to logger.
func NewDecoder(logger *slog.Logger) *Decoder {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Decoder{log: logger}
}

// Feed consumes p and returns the events completed by it, in order.
func (d *Decoder) Feed(p []byte) []Event {
	var events []Event
	for len(p) > 0 {
		i := bytes.IndexByte(p, '\n')
		if i < 0 {
			if !d.skipping {
				d.buf = append(d.buf, p...)
				if len(d.buf) > MaxLineSize {
					d.log.Warn("dropping oversized stream line", "bytes", len(d.buf))
					d.buf = d.buf[:0]
					d.skipping = true
				}
			}
			break
		}

		if d.skipping {
			d.skipping = false
		} else {
			d.buf = append(d.buf, p[:i]...)
			if ev, ok := d.parseLine(d.buf); ok {
				events = append(events, ev)
			}
		}
		d.buf = d.buf[:0]
		p = p[i+1:]
	}
	return events
}

// Flush processes a final line that ended without a newline.
func (d *Decoder) Flush() []Event {
	if d.skipping || len(d.buf) == 0 {
		d.buf = d.buf[:0]
		d.skipping = false
		return nil
	}
	ev, ok := d.parseLine(d.buf)
	d.buf = d.buf[:0]
	if !ok {
		return nil
	}
	return []Event{ev}
}

// Pending reports how many bytes of an incomplete line are buffered.
func (d *Decoder) Pending() int {
	return len(d.buf)
}

func (d *Decoder) parseLine(raw []byte) (Event, bool) {
	line := strings.TrimSuffix(string(raw), "\r")
	if !strings.HasPrefix(line, dataPrefix) {
		return Event{}, false
	}
	payload := line[len(dataPrefix):]

	var w wireEvent
	if err := json.Unmarshal([]byte(payload), &w); err != nil {
		d.log.Warn("skipping malformed stream line", "error", err, "line", truncateForLog(payload))
		return Event{}, false
	}

	switch {
	case w.Error != nil:
		return Event{Kind: EventError, Message: *w.Error}, true

	case w.Done:
		ev := Event{Kind: EventDone}
		if w.FullResponse != nil {
			ev.FullResponse = *w.FullResponse
			ev.HasFullResponse = true
		}
		ev.Analysis = d.parseAnalysis(w.Analysis)
		ev.Citations = d.parseCitations(w.Citations)
		return ev, true

	case w.Chunk != nil:
		return Event{Kind: EventChunk, Chunk: *w.Chunk}, true
	}

	d.log.Debug("ignoring stream line with no known field", "line", truncateForLog(payload))
	return Event{}, false
}

func (d *Decoder) parseAnalysis(raw json.RawMessage) *model.AnalysisResult {
	if isNull(raw) {
		return nil
	}
	var a model.AnalysisResult
	if err := json.Unmarshal(raw, &a); err != nil {
		d.log.Warn("ignoring malformed analysis", "error", err)
		return nil
	}
	return &a
}

// parseCitations accepts the backend's {"1": {...}} map or a plain array.
func (d *Decoder) parseCitations(raw json.RawMessage) []model.Citation {
	if isNull(raw) {
		return nil
	}

	var out []model.Citation
	var byNumber map[string]model.Citation
	if err := json.Unmarshal(raw, &byNumber); err == nil {
		keys := make([]string, 0, len(byNumber))
		for k := range byNumber {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			c := byNumber[k]
			if c.Number == 0 {
				c.Number, _ = strconv.Atoi(k)
			}
			out = append(out, c)
		}
	} else if err := json.Unmarshal(raw, &out); err != nil {
		d.log.Warn("ignoring malformed citations", "error", err)
		return nil
	}

	if len(out) == 0 {
		return nil
	}
	model.SortCitations(out)
	return out
}

func isNull(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}

func truncateForLog(s string) string {
	const max = 200
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

// =============================================================================
// STREAMING ANALYSIS
// =============================================================================

// Analyze sends one analysis request and reports stream events to cb in
// arrival order. It returns nil after a done event (real or synthetic).
//
// Reading stops at the first done or error event. An error event is passed
// to cb and also returned as a *StreamError wrapping a *RemoteError. If the
// body ends after content but without a done event, a synthetic done is
// delivered. If it ends with neither, ErrEmptyStream is returned.
//
// Streaming requests are never retried: the backend keeps per-session
// state and a replay would duplicate the turn.
func (c *Client) Analyze(ctx context.Context, areq AnalyzeRequest, cb Callback) error {
	areq.Streaming = true
	return c.streamPost(ctx, c.opts.AnalyzePath, areq.SessionID, areq, cb)
}

// ComprehensiveReview streams a full review of a document. The framing and
// settlement rules are the same as Analyze.
func (c *Client) ComprehensiveReview(ctx context.Context, rreq ReviewRequest, cb Callback) error {
	if strings.TrimSpace(rreq.MaterialText) == "" {
		return ErrEmptyMaterial
	}
	rreq.Streaming = true
	return c.streamPost(ctx, c.opts.ReviewPath, rreq.SessionID, rreq, cb)
}

// streamPost posts payload to path and decodes the event stream.
func (c *Client) streamPost(ctx context.Context, path, sessionID string, payload any, cb Callback) error {
	if c.opts.BaseURL == "" {
		return ErrNotConfigured
	}
	if cb == nil {
		cb = func(Event) {}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	if err := c.wait(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var idle *time.Timer
	if c.opts.IdleTimeout > 0 {
		idle = time.AfterFunc(c.opts.IdleTimeout, func() { cancel(ErrIdleTimeout) })
		defer idle.Stop()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(path), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := c.stream.Do(req)
	if err != nil {
		if errors.Is(context.Cause(ctx), ErrIdleTimeout) {
			return ErrIdleTimeout
		}
		if ctx.Err() != nil {
			return context.Cause(ctx)
		}
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return readStatusError(resp)
	}

	c.log.Debug("stream opened", "path", path, "session", sessionID, "latency", time.Since(start))
	return c.processStream(ctx, resp.Body, idle, cb)
}

// processStream reads body until a terminal event or end of stream.
func (c *Client) processStream(ctx context.Context, body io.Reader, idle *time.Timer, cb Callback) error {
	dec := NewDecoder(c.log)
	var acc strings.Builder
	buf := make([]byte, readBufferSize)

	// deliver hands events to cb and reports whether the stream is settled.
	deliver := func(events []Event) (bool, error) {
		for _, ev := range events {
			switch ev.Kind {
			case EventChunk:
				acc.WriteString(ev.Chunk)
				cb(ev)
			case EventDone:
				cb(ev)
				return true, nil
			case EventError:
				cb(ev)
				c.log.Warn("backend reported stream error", "message", ev.Message)
				return true, &StreamError{Partial: acc.String(), Err: &RemoteError{Message: ev.Message}}
			}
		}
		return false, nil
	}

	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if idle != nil {
				idle.Reset(c.opts.IdleTimeout)
			}
			if settled, err := deliver(dec.Feed(buf[:n])); settled {
				return err
			}
		}

		if readErr == nil {
			continue
		}
		if !errors.Is(readErr, io.EOF) {
			cause := readErr
			if ctx.Err() != nil {
				cause = context.Cause(ctx)
			}
			return &StreamError{Partial: acc.String(), Err: cause}
		}

		if settled, err := deliver(dec.Flush()); settled {
			return err
		}
		if acc.Len() == 0 {
			return ErrEmptyStream
		}
		c.log.Info("stream ended without done event, completing with accumulated content", "chars", acc.Len())
		cb(Event{Kind: EventDone, Synthetic: true})
		return nil
	}
}
