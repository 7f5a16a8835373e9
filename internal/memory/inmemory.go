package memory

import (
	"context"
	"sync"
)

// InMemoryStore keeps threads in process memory. It is the default
// backend for development and the fallback when Redis is not
// configured.
type InMemoryStore struct {
	mu       sync.RWMutex
	threads  map[string][]Message
	maxTurns int
}

// NewInMemoryStore builds a store trimming each thread to maxTurns.
func NewInMemoryStore(maxTurns int) *InMemoryStore {
	if maxTurns < 1 {
		maxTurns = 20
	}
	return &InMemoryStore{threads: make(map[string][]Message), maxTurns: maxTurns}
}

func (s *InMemoryStore) Append(ctx context.Context, threadID string, msg Message) {
	if threadID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	turns := append(s.threads[threadID], msg)
	if len(turns) > s.maxTurns {
		turns = turns[len(turns)-s.maxTurns:]
	}
	s.threads[threadID] = turns
}

func (s *InMemoryStore) Read(ctx context.Context, threadID string, maxMessages int) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	turns := s.threads[threadID]
	if maxMessages > 0 && len(turns) > maxMessages {
		turns = turns[len(turns)-maxMessages:]
	}
	out := make([]Message, len(turns))
	copy(out, turns)
	return out, nil
}
