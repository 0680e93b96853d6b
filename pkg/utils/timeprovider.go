// Package utils holds small shared helpers.
package utils

import (
	"sync"
	"time"
)

// TimeProvider abstracts the clock so cache expiry and snapshot retention
// can be driven deterministically in tests.
type TimeProvider interface {
	// Now returns the current time
	Now() time.Time

	// Since returns the time elapsed since t
	Since(t time.Time) time.Duration
}

// SystemTimeProvider is the default implementation using real system time.
type SystemTimeProvider struct{}

// NewSystemTimeProvider creates a new SystemTimeProvider
func NewSystemTimeProvider() *SystemTimeProvider {
	return &SystemTimeProvider{}
}

// Now returns the current system time
func (p *SystemTimeProvider) Now() time.Time {
	return time.Now()
}

// Since returns the time elapsed since t
func (p *SystemTimeProvider) Since(t time.Time) time.Duration {
	return time.Since(t)
}

// MockTimeProvider is a movable clock for tests.
type MockTimeProvider struct {
	mu      sync.Mutex
	current time.Time
}

// NewMockTimeProvider creates a mock clock starting at the given time.
func NewMockTimeProvider(start time.Time) *MockTimeProvider {
	return &MockTimeProvider{current: start}
}

// Now returns the mock current time
func (p *MockTimeProvider) Now() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Since returns the duration since t
func (p *MockTimeProvider) Since(t time.Time) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current.Sub(t)
}

// Advance moves the mock time forward by d
func (p *MockTimeProvider) Advance(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = p.current.Add(d)
}

// SetTime sets the mock current time
func (p *MockTimeProvider) SetTime(t time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = t
}
