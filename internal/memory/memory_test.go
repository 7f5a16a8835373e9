package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsneelabh/insights-agent/internal/logging"
)

func TestInMemoryStoreRoundtrip(t *testing.T) {
	s := NewInMemoryStore(20)
	ctx := context.Background()

	s.Append(ctx, "t1", NewMessage(RoleUser, "como van las ventas", nil))
	s.Append(ctx, "t1", NewMessage(RoleAssistant, "Las ventas de noviembre...", nil))
	s.Append(ctx, "t2", NewMessage(RoleUser, "otra cosa", nil))

	messages, err := s.Read(ctx, "t1", 10)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, RoleUser, messages[0].Role)
	assert.Equal(t, "como van las ventas", messages[0].Content)
	assert.Equal(t, RoleAssistant, messages[1].Role)
}

func TestInMemoryStoreTrims(t *testing.T) {
	s := NewInMemoryStore(3)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		s.Append(ctx, "t1", NewMessage(RoleUser, fmt.Sprintf("mensaje %d", i), nil))
	}

	messages, err := s.Read(ctx, "t1", 10)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, "mensaje 7", messages[0].Content)
	assert.Equal(t, "mensaje 9", messages[2].Content)
}

func TestInMemoryStoreReadLimit(t *testing.T) {
	s := NewInMemoryStore(20)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		s.Append(ctx, "t1", NewMessage(RoleUser, fmt.Sprintf("m%d", i), nil))
	}

	messages, err := s.Read(ctx, "t1", 2)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "m3", messages[0].Content)
}

func TestInMemoryStoreEmptyThreadID(t *testing.T) {
	s := NewInMemoryStore(20)
	s.Append(context.Background(), "", NewMessage(RoleUser, "ignored", nil))

	messages, err := s.Read(context.Background(), "", 10)
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestRenderContext(t *testing.T) {
	s := NewInMemoryStore(20)
	ctx := context.Background()
	s.Append(ctx, "t1", NewMessage(RoleUser, "hola", nil))
	s.Append(ctx, "t1", NewMessage(RoleAssistant, "Hola! Soy tu asistente.", nil))

	transcript := RenderContext(ctx, s, "t1", 10)
	assert.Equal(t, "user: hola\nassistant: Hola! Soy tu asistente.", transcript)

	assert.Empty(t, RenderContext(ctx, s, "missing", 10))
	assert.Empty(t, RenderContext(ctx, nil, "t1", 10))
	assert.Empty(t, RenderContext(ctx, s, "", 10))
}

func TestLastAssistantAskedClarification(t *testing.T) {
	s := NewInMemoryStore(20)
	ctx := context.Background()

	assert.False(t, LastAssistantAskedClarification(ctx, s, "t1", 10))

	s.Append(ctx, "t1", NewMessage(RoleUser, "y eso?", nil))
	s.Append(ctx, "t1", NewMessage(RoleAssistant, "Que area te interesa?", map[string]interface{}{"kind": "clarification"}))
	assert.True(t, LastAssistantAskedClarification(ctx, s, "t1", 10))

	s.Append(ctx, "t1", NewMessage(RoleAssistant, "Las ventas...", map[string]interface{}{"kind": "dashboard"}))
	assert.False(t, LastAssistantAskedClarification(ctx, s, "t1", 10))
}

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := NewRedisStore("redis://"+mr.Addr(), 5, time.Hour, &logging.NoOpLogger{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestRedisStoreRoundtrip(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()

	store.Append(ctx, "t1", NewMessage(RoleUser, "como van las ventas", nil))
	store.Append(ctx, "t1", NewMessage(RoleAssistant, "Bien!", map[string]interface{}{"kind": "dashboard"}))

	messages, err := store.Read(ctx, "t1", 10)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "como van las ventas", messages[0].Content)
	assert.Equal(t, "dashboard", messages[1].Metadata["kind"])
}

func TestRedisStoreTrimsToMaxTurns(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		store.Append(ctx, "t1", NewMessage(RoleUser, fmt.Sprintf("m%d", i), nil))
	}

	messages, err := store.Read(ctx, "t1", 20)
	require.NoError(t, err)
	require.Len(t, messages, 5)
	assert.Equal(t, "m7", messages[0].Content)
}

func TestRedisStoreSetsTTL(t *testing.T) {
	store, mr := newRedisStore(t)
	store.Append(context.Background(), "t1", NewMessage(RoleUser, "hola", nil))

	ttl := mr.TTL("chat:thread:t1")
	assert.Equal(t, time.Hour, ttl)
}

func TestRedisStoreUnavailableAppendDoesNotPanic(t *testing.T) {
	store, mr := newRedisStore(t)
	mr.Close()

	store.Append(context.Background(), "t1", NewMessage(RoleUser, "hola", nil))
	_, err := store.Read(context.Background(), "t1", 10)
	assert.Error(t, err)
}

func TestNewRedisStoreInvalidURL(t *testing.T) {
	_, err := NewRedisStore("not-a-url", 5, time.Hour, nil)
	assert.Error(t, err)
}
