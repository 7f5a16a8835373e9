package ai

import (
	"context"
	"sync"
)

// MockClient is a scripted client for tests. Responses are returned in
// order; when the script runs out the last entry repeats.
type MockClient struct {
	mu        sync.Mutex
	Responses []string
	Err       error
	Calls     []string
}

func (m *MockClient) Provider() string { return "mock" }

func (m *MockClient) GenerateResponse(ctx context.Context, prompt string, options *Options) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, prompt)
	if m.Err != nil {
		return nil, m.Err
	}
	if len(m.Responses) == 0 {
		return &Response{Content: "", Model: "mock"}, nil
	}
	idx := len(m.Calls) - 1
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	}
	return &Response{Content: m.Responses[idx], Model: "mock"}, nil
}

// CallCount returns how many times GenerateResponse has run.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
