package llm

import (
	"context"
	"sync"
)

// MockTextGenerator is a configurable TextGenerator for tests. Safe for concurrent use.
type MockTextGenerator struct {
	// GenerateFunc is called when Generate is invoked.
	// If nil, returns Content "mock response" with 10/20 tokens.
	GenerateFunc func(ctx context.Context, req *Request) (*Response, error)

	ProviderName string

	mu       sync.Mutex
	requests []Request
}

// NewMockTextGenerator creates a mock with sensible defaults.
func NewMockTextGenerator() *MockTextGenerator {
	return &MockTextGenerator{ProviderName: "mock"}
}

// Generate implements TextGenerator.
func (m *MockTextGenerator) Generate(ctx context.Context, req *Request) (*Response, error) {
	m.mu.Lock()
	m.requests = append(m.requests, *req)
	m.mu.Unlock()

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, req)
	}
	return &Response{Content: "mock response", Model: req.Model, InputTokens: 10, OutputTokens: 20}, nil
}

// Provider implements TextGenerator.
func (m *MockTextGenerator) Provider() string {
	if m.ProviderName == "" {
		return "mock"
	}
	return m.ProviderName
}

// Requests returns a copy of every request received, in call order.
func (m *MockTextGenerator) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// Calls returns the number of Generate calls.
func (m *MockTextGenerator) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

var _ TextGenerator = (*MockTextGenerator)(nil)
