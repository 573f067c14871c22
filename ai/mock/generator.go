package mock

import (
	"context"
	"sync"
)

// MockGenerator is a test double for ai.Generator.
// Responses can be scripted in order, or behavior replaced via GenerateFunc.
type MockGenerator struct {
	// GenerateFunc is called by Generate if set.
	// If nil, responses are popped from the scripted queue.
	GenerateFunc func(ctx context.Context, system, user string) (string, error)

	// Model is the value returned by ModelName. Defaults to "mock-model".
	Model string

	mu        sync.Mutex
	responses []string
	prompts   []string
	callCount int
}

// NewMockGenerator creates a mock generator that replays the given responses
// in order. Once exhausted, Generate returns an empty string.
// Note: Returns concrete type to allow test assertions.
func NewMockGenerator(responses ...string) *MockGenerator {
	return &MockGenerator{responses: responses}
}

// Generate returns the next scripted response, recording the user prompt.
func (m *MockGenerator) Generate(ctx context.Context, system, user string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.callCount++
	m.prompts = append(m.prompts, user)

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, system, user)
	}

	if len(m.responses) == 0 {
		return "", nil
	}
	next := m.responses[0]
	m.responses = m.responses[1:]
	return next, nil
}

// ModelName returns the configured mock model identifier.
func (m *MockGenerator) ModelName() string {
	if m.Model != "" {
		return m.Model
	}
	return "mock-model"
}

// Enqueue appends responses to the scripted queue.
func (m *MockGenerator) Enqueue(responses ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, responses...)
}

// CallCount returns the number of times Generate was called.
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Prompts returns the user prompts seen so far, in call order.
func (m *MockGenerator) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.prompts))
	copy(out, m.prompts)
	return out
}

// Reset clears scripted responses, recorded prompts, and the call count.
func (m *MockGenerator) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.responses = nil
	m.prompts = nil
	m.GenerateFunc = nil
}
