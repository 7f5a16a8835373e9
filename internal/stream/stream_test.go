package stream

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsneelabh/insights-agent/internal/logging"
)

func newTestWriter(t *testing.T) (*Writer, *httptest.ResponseRecorder) {
	t.Helper()
	rec := httptest.NewRecorder()
	w, err := NewWriter(rec, &logging.NoOpLogger{})
	require.NoError(t, err)
	return w, rec
}

// frames splits the recorded body into the JSON payloads of each
// "data:" line.
func frames(t *testing.T, body string) []string {
	t.Helper()
	var out []string
	for _, block := range strings.Split(body, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		require.True(t, strings.HasPrefix(block, "data: "), "frame %q", block)
		out = append(out, strings.TrimPrefix(block, "data: "))
	}
	return out
}

func TestWriterEventOrdering(t *testing.T) {
	w, rec := newTestWriter(t)

	w.Start("msg-1")
	w.Data("trace", map[string]string{"trace_id": "t-1"})
	w.TextBlock("text-1", "hola")
	w.Finish("msg-1", FinishComplete)

	got := frames(t, rec.Body.String())
	require.Len(t, got, 7)

	types := make([]string, 0, 6)
	for _, f := range got[:6] {
		var ev map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(f), &ev))
		types = append(types, ev["type"].(string))
	}
	assert.Equal(t, []string{"start", "data-trace", "text-start", "text-delta", "text-end", "finish"}, types)
	assert.Equal(t, "[DONE]", got[6])
}

func TestWriterTextBlockFields(t *testing.T) {
	w, rec := newTestWriter(t)
	w.TextBlock("text-1", "hola mundo")

	got := frames(t, rec.Body.String())
	require.Len(t, got, 3)

	var delta Event
	require.NoError(t, json.Unmarshal([]byte(got[1]), &delta))
	assert.Equal(t, "text-delta", delta.Type)
	assert.Equal(t, "text-1", delta.TextID)
	assert.Equal(t, "hola mundo", delta.Delta)
}

func TestWriterDiscardsAfterFinish(t *testing.T) {
	w, rec := newTestWriter(t)

	w.Start("msg-1")
	w.Finish("msg-1", FinishComplete)
	w.Data("dashboard", map[string]string{"late": "event"})
	w.Finish("msg-1", FinishError)

	body := rec.Body.String()
	assert.NotContains(t, body, "late")
	assert.Equal(t, 1, strings.Count(body, `"finish"`))
	assert.Equal(t, 1, strings.Count(body, "[DONE]"))
}

func TestWriterDiscard(t *testing.T) {
	w, rec := newTestWriter(t)

	w.Start("msg-1")
	w.Discard()
	w.Data("payload", map[string]string{"x": "y"})
	w.Finish("msg-1", FinishCancelled)

	body := rec.Body.String()
	assert.NotContains(t, body, "payload")
	assert.NotContains(t, body, "[DONE]")
}

func TestWriterFinishReason(t *testing.T) {
	w, rec := newTestWriter(t)
	w.Finish("msg-1", FinishError)

	got := frames(t, rec.Body.String())
	var ev Event
	require.NoError(t, json.Unmarshal([]byte(got[0]), &ev))
	assert.Equal(t, FinishError, ev.FinishReason)
	assert.Equal(t, "msg-1", ev.MessageID)
}

func TestSetHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	SetHeaders(rec.Header())

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache, no-transform", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "keep-alive", rec.Header().Get("Connection"))
	assert.Equal(t, "no", rec.Header().Get("X-Accel-Buffering"))
	assert.Equal(t, "v1", rec.Header().Get("x-vercel-ai-ui-message-stream"))
}
