// Package stream writes the line-delimited event protocol the chat
// client consumes: one "data: <JSON>" line per event, blank-line
// terminated, closed by a literal "data: [DONE]".
package stream

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/itsneelabh/insights-agent/internal/logging"
)

// Protocol headers for one streaming response. Buffering anywhere
// between the engine and the client breaks incremental rendering, so
// proxies are told to pass bytes through untouched.
func SetHeaders(h http.Header) {
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache, no-transform")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	h.Set("x-vercel-ai-ui-message-stream", "v1")
}

// Event is one protocol frame. Fields are populated per Type; see the
// wire format: start/finish carry messageId, text events carry textId
// and delta, data-* events carry their payload under Data.
type Event struct {
	Type         string      `json:"type"`
	MessageID    string      `json:"messageId,omitempty"`
	TextID       string      `json:"textId,omitempty"`
	Delta        string      `json:"delta,omitempty"`
	Data         interface{} `json:"data,omitempty"`
	FinishReason string      `json:"finishReason,omitempty"`
}

// Finish reasons.
const (
	FinishComplete  = "complete"
	FinishError     = "error"
	FinishCancelled = "cancelled"
)

// Writer emits events onto one HTTP response. It serializes
// concurrent emitters and flushes after every event so frames reach
// the client immediately. After Close or a write failure the writer
// silently discards further events.
type Writer struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	logger  logging.Logger
	closed  bool
}

// NewWriter wraps the response. The ResponseWriter must support
// flushing; handlers check this before switching to streaming mode.
func NewWriter(w http.ResponseWriter, logger logging.Logger) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support streaming")
	}
	if logger == nil {
		logger = &logging.NoOpLogger{}
	}
	return &Writer{w: w, flusher: flusher, logger: logger}, nil
}

// Emit writes one event frame.
func (s *Writer) Emit(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		s.logger.Error("Failed to marshal stream event", map[string]interface{}{
			"type":  ev.Type,
			"error": err.Error(),
		})
		return
	}
	s.writeFrame(string(payload))
}

// Start opens the response with the message id.
func (s *Writer) Start(messageID string) {
	s.Emit(Event{Type: "start", MessageID: messageID})
}

// TextBlock writes a complete well-nested text block: start, one
// delta with the whole text, end.
func (s *Writer) TextBlock(textID, text string) {
	s.Emit(Event{Type: "text-start", TextID: textID})
	s.Emit(Event{Type: "text-delta", TextID: textID, Delta: text})
	s.Emit(Event{Type: "text-end", TextID: textID})
}

// Data writes a data-<name> event.
func (s *Writer) Data(name string, data interface{}) {
	s.Emit(Event{Type: "data-" + name, Data: data})
}

// Finish writes the finish event and the [DONE] terminator, then
// closes the writer. Subsequent emissions are discarded.
func (s *Writer) Finish(messageID, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	payload, err := json.Marshal(Event{Type: "finish", MessageID: messageID, FinishReason: reason})
	if err == nil {
		s.writeFrame(string(payload))
	}
	s.writeFrame("[DONE]")
	s.closed = true
}

// Discard drops all future events without writing a terminator; used
// when the client has already disconnected.
func (s *Writer) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *Writer) writeFrame(payload string) {
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		// The client is gone; stop writing.
		s.closed = true
		return
	}
	s.flusher.Flush()
}
