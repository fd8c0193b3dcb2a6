package mocks

import (
	"context"
	"sync"

	"github.com/phrazzld/stylebatch/internal/generation"
)

// MockImageGenerator implements generation.ImageGenerator for testing
type MockImageGenerator struct {
	// GenerateFn allows test cases to mock the Generate behavior
	GenerateFn func(ctx context.Context, req generation.Request) (*generation.Image, error)

	// Default response values
	Image *generation.Image
	Err   error

	mu       sync.Mutex
	requests []generation.Request
}

// Generate implements the generation.ImageGenerator interface
func (m *MockImageGenerator) Generate(ctx context.Context, req generation.Request) (*generation.Image, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.GenerateFn != nil {
		return m.GenerateFn(ctx, req)
	}
	return m.Image, m.Err
}

// Calls returns how many times Generate was called.
func (m *MockImageGenerator) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Requests returns a copy of every request received.
func (m *MockImageGenerator) Requests() []generation.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]generation.Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// CallsFor counts the requests whose metadata key equals value.
func (m *MockImageGenerator) CallsFor(key, value string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.requests {
		if r.Metadata[key] == value {
			n++
		}
	}
	return n
}

// Reset clears the call tracking state
func (m *MockImageGenerator) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
}

// NewMockImageGenerator creates a MockImageGenerator that returns data as a PNG
func NewMockImageGenerator(data []byte) *MockImageGenerator {
	return &MockImageGenerator{Image: &generation.Image{Data: data, MIMEType: "image/png"}}
}

// NewMockImageGeneratorWithError creates a MockImageGenerator that returns err
func NewMockImageGeneratorWithError(err error) *MockImageGenerator {
	return &MockImageGenerator{Err: err}
}

// MockImageGeneratorWithContentBlocked simulates a safety block
func MockImageGeneratorWithContentBlocked() *MockImageGenerator {
	return &MockImageGenerator{Err: generation.ErrContentBlocked}
}

// MockImageGeneratorWithTransientFailure simulates a failure worth retrying
func MockImageGeneratorWithTransientFailure() *MockImageGenerator {
	return &MockImageGenerator{Err: generation.ErrTransientFailure}
}
