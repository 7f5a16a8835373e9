package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsneelabh/insights-agent/internal/memory"
)

type wireEvent struct {
	Type         string                 `json:"type"`
	MessageID    string                 `json:"messageId"`
	TextID       string                 `json:"textId"`
	Delta        string                 `json:"delta"`
	Data         map[string]interface{} `json:"data"`
	FinishReason string                 `json:"finishReason"`
}

// parseStream decodes every "data: <JSON>" frame and reports whether
// the body ends with the [DONE] terminator.
func parseStream(t *testing.T, body string) ([]wireEvent, bool) {
	t.Helper()
	var events []wireEvent
	done := false
	for _, line := range strings.Split(body, "\n") {
		payload, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		if payload == "[DONE]" {
			done = true
			continue
		}
		var ev wireEvent
		require.NoError(t, json.Unmarshal([]byte(payload), &ev), "frame: %s", payload)
		events = append(events, ev)
	}
	return events, done
}

func eventTypes(events []wireEvent) []string {
	types := make([]string, len(events))
	for i, ev := range events {
		types[i] = ev.Type
	}
	return types
}

func indexOf(types []string, want string) int {
	for i, typ := range types {
		if typ == want {
			return i
		}
	}
	return -1
}

func TestChatStreamSetsProtocolHeaders(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, "POST", "/v1/chat/stream", `{"question": "hola"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache, no-transform", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "keep-alive", rec.Header().Get("Connection"))
	assert.Equal(t, "no", rec.Header().Get("X-Accel-Buffering"))
	assert.Equal(t, "v1", rec.Header().Get("x-vercel-ai-ui-message-stream"))
}

func TestChatStreamGreeting(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, "POST", "/v1/chat/stream", `{"question": "hola"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	events, done := parseStream(t, rec.Body.String())
	require.True(t, done, "stream must end with [DONE]")

	types := eventTypes(events)
	require.Equal(t, "start", types[0])
	assert.Equal(t, "data-trace", types[1])
	assert.NotEmpty(t, events[1].Data["trace_id"])

	assert.Equal(t, -1, indexOf(types, "data-dashboard"))
	assert.Equal(t, -1, indexOf(types, "data-payload"))

	deltaIdx := indexOf(types, "text-delta")
	require.NotEqual(t, -1, deltaIdx)
	assert.Contains(t, events[deltaIdx].Delta, "Hola")

	last := events[len(events)-1]
	assert.Equal(t, "finish", last.Type)
	assert.Equal(t, "complete", last.FinishReason)
	assert.Equal(t, events[0].MessageID, last.MessageID)
}

func TestChatStreamDashboardEventOrder(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, "POST", "/v1/chat/stream",
		`{"question": "como van las ventas este mes"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	events, done := parseStream(t, rec.Body.String())
	require.True(t, done)
	types := eventTypes(events)

	require.Equal(t, "start", types[0])
	assert.Equal(t, "finish", types[len(types)-1])

	stepIdx := indexOf(types, "data-agent_step")
	dashIdx := indexOf(types, "data-dashboard")
	payloadIdx := indexOf(types, "data-payload")
	require.NotEqual(t, -1, stepIdx)
	require.NotEqual(t, -1, dashIdx)
	require.NotEqual(t, -1, payloadIdx)

	assert.Less(t, stepIdx, dashIdx, "agent steps precede the dashboard")
	assert.Less(t, dashIdx, payloadIdx, "dashboard must arrive before the payload")

	// Text blocks are well nested.
	startIdx := indexOf(types, "text-start")
	endIdx := indexOf(types, "text-end")
	require.NotEqual(t, -1, startIdx)
	assert.Less(t, startIdx, endIdx)
	assert.Less(t, payloadIdx, startIdx, "conclusion text follows the payload")

	dashboard := events[dashIdx].Data
	assert.Equal(t, "Ventas", dashboard["title"])
	assert.NotEmpty(t, dashboard["conclusion"])

	payload := events[payloadIdx].Data
	assert.NotEmpty(t, payload["available_refs"])
}

func TestChatStreamInventoryDashboard(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, "POST", "/v1/chat/stream",
		`{"question": "como esta el inventario?"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	events, done := parseStream(t, rec.Body.String())
	require.True(t, done)

	dashIdx := indexOf(eventTypes(events), "data-dashboard")
	require.NotEqual(t, -1, dashIdx)
	assert.Equal(t, "Inventario", events[dashIdx].Data["title"])
}

func TestChatStreamRejectsInvalidBodyBeforeStreaming(t *testing.T) {
	s := newTestServer(t)

	for _, body := range []string{``, `{}`, `{"question": ""}`, `not json`} {
		rec := doRequest(t, s, "POST", "/v1/chat/stream", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body: %q", body)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.NotContains(t, rec.Body.String(), "[DONE]")
	}
}

func TestChatStreamRecordsConversation(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, "POST", "/v1/chat/stream",
		`{"question": "como van las ventas este mes", "conversation_id": "conv-9"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	s.memoryWrites.Wait()

	history := doRequest(t, s, "GET", "/api/threads/conv-9/history", "")
	body := decodeBody(t, history)
	messages, ok := body["messages"].([]interface{})
	require.True(t, ok)
	require.Len(t, messages, 2)

	answer := messages[1].(map[string]interface{})
	assert.Equal(t, "assistant", answer["role"])
	meta, ok := answer["metadata"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "dashboard", meta["kind"])
}

// stallingStore holds every append until released, simulating a hung
// memory backend.
type stallingStore struct {
	release chan struct{}
	mu      sync.Mutex
	msgs    []memory.Message
}

func (s *stallingStore) Append(ctx context.Context, threadID string, msg memory.Message) {
	select {
	case <-s.release:
	case <-ctx.Done():
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
}

func (s *stallingStore) Read(ctx context.Context, threadID string, maxMessages int) ([]memory.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]memory.Message, len(s.msgs))
	copy(out, s.msgs)
	return out, nil
}

func TestChatStreamDoesNotBlockOnSlowMemory(t *testing.T) {
	s := newTestServer(t)
	store := &stallingStore{release: make(chan struct{})}
	s.agent.memory = store
	t.Cleanup(func() {
		close(store.release)
		s.memoryWrites.Wait()
	})

	started := time.Now()
	rec := doRequest(t, s, "POST", "/v1/chat/stream",
		`{"question": "hola", "conversation_id": "t-slow"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	_, done := parseStream(t, rec.Body.String())
	assert.True(t, done)
	// The sync path would wait out the store's deadline; the response
	// must come back well before that.
	assert.Less(t, time.Since(started), 2*time.Second)
}

func TestChatStreamSingleStartAndFinish(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, "POST", "/v1/chat/stream",
		`{"question": "dame las ventas de noviembre"}`)
	events, done := parseStream(t, rec.Body.String())
	require.True(t, done)

	starts, finishes := 0, 0
	for _, ev := range events {
		switch ev.Type {
		case "start":
			starts++
		case "finish":
			finishes++
		}
	}
	assert.Equal(t, 1, starts)
	assert.Equal(t, 1, finishes)
}
