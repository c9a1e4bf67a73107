package hardware

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"
)

// MockPin implements Pin for testing. It records every level it drives.
type MockPin struct {
	name   string
	level  gpio.Level
	output bool
	input  func() gpio.Level
	fail   error
	writes []gpio.Level
	mu     sync.RWMutex
}

// NewMockPin creates a new mock line
func NewMockPin(name string) *MockPin {
	return &MockPin{name: name}
}

// Name returns the line name
func (p *MockPin) Name() string {
	return p.name
}

// Out drives the mock line
func (p *MockPin) Out(l gpio.Level) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.fail != nil {
		return p.fail
	}
	p.output = true
	p.level = l
	p.writes = append(p.writes, l)
	return nil
}

// In releases the mock line
func (p *MockPin) In(pull gpio.Pull, edge gpio.Edge) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.fail != nil {
		return p.fail
	}
	p.output = false
	return nil
}

// Read returns the driven level, or the input source while released
func (p *MockPin) Read() gpio.Level {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.output && p.input != nil {
		return p.input()
	}
	return p.level
}

// SetInput sets what the line reads while it is an input
func (p *MockPin) SetInput(fn func() gpio.Level) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.input = fn
}

// Fail makes every following Out and In return err
func (p *MockPin) Fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fail = err
}

// IsOutput reports whether the line is driven
func (p *MockPin) IsOutput() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.output
}

// Writes returns every level driven so far
func (p *MockPin) Writes() []gpio.Level {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]gpio.Level(nil), p.writes...)
}

// String returns a short description of the line state
func (p *MockPin) String() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	dir := "in"
	if p.output {
		dir = "out"
	}
	return fmt.Sprintf("%s(%s,%s)", p.name, dir, p.level)
}
