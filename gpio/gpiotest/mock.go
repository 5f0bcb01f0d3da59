// Package gpiotest provides a recording gpio.Hardware for tests.
package gpiotest

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"gregoryjjb/gpiocount/gpio"
)

var (
	ErrMapFailed      = errors.New("mock: interrupt mapping failed")
	ErrRegisterFailed = errors.New("mock: handler registration failed")
	ErrNoDebounce     = errors.New("mock: debounce failed")
)

// Mock records every hardware call and lets tests inject failures.
type Mock struct {
	mu sync.Mutex

	Invalid        map[uint]bool
	FailMap        bool
	FailRegister   bool
	FailDebounce   bool
	Calls          []string
	Levels         map[uint]bool
	Outputs        map[uint]bool
	Inputs         map[uint]bool
	Handlers       map[gpio.Handle]gpio.EdgeHandler
	DebounceWindow time.Duration
	Closed         bool
}

func New(invalid ...uint) *Mock {
	m := &Mock{
		Invalid:  make(map[uint]bool),
		Levels:   make(map[uint]bool),
		Outputs:  make(map[uint]bool),
		Inputs:   make(map[uint]bool),
		Handlers: make(map[gpio.Handle]gpio.EdgeHandler),
	}
	for _, id := range invalid {
		m.Invalid[id] = true
	}
	return m
}

func (m *Mock) record(format string, args ...any) {
	m.Calls = append(m.Calls, fmt.Sprintf(format, args...))
}

func (m *Mock) ValidPin(id uint) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.record("valid %d", id)
	return !m.Invalid[id]
}

func (m *Mock) ConfigureOutput(id uint, level bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.record("output %d %t", id, level)
	if m.Invalid[id] {
		return fmt.Errorf("%w: %d", gpio.ErrInvalidPin, id)
	}
	m.Outputs[id] = true
	m.Levels[id] = level
	return nil
}

func (m *Mock) SetLevel(id uint, level bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.record("set %d %t", id, level)
	if !m.Outputs[id] {
		return fmt.Errorf("%w: %d is not an output", gpio.ErrInvalidPin, id)
	}
	m.Levels[id] = level
	return nil
}

func (m *Mock) ConfigureInput(id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.record("input %d", id)
	if m.Invalid[id] {
		return fmt.Errorf("%w: %d", gpio.ErrInvalidPin, id)
	}
	m.Inputs[id] = true
	return nil
}

func (m *Mock) SetDebounce(id uint, window time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.record("debounce %d %s", id, window)
	if m.FailDebounce {
		return ErrNoDebounce
	}
	m.DebounceWindow = window
	return nil
}

func (m *Mock) MapInterrupt(id uint) (gpio.Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.record("map %d", id)
	if m.FailMap {
		return 0, ErrMapFailed
	}
	return gpio.Handle(id + 100), nil
}

func (m *Mock) OnRisingEdge(h gpio.Handle, fn gpio.EdgeHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.record("register %d", h)
	if m.FailRegister {
		return ErrRegisterFailed
	}
	m.Handlers[h] = fn
	return nil
}

func (m *Mock) Unregister(h gpio.Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.record("unregister %d", h)
	if _, ok := m.Handlers[h]; !ok {
		return fmt.Errorf("%w: %d", gpio.ErrUnknownHandle, h)
	}
	delete(m.Handlers, h)
	return nil
}

func (m *Mock) Release(id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.record("release %d", id)
	delete(m.Outputs, id)
	delete(m.Levels, id)
	delete(m.Inputs, id)
	return nil
}

func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.record("close")
	m.Closed = true
	return nil
}

// Fire simulates a rising edge on the interrupt mapped from pin. It reports
// whether a handler was registered.
func (m *Mock) Fire(pin uint) bool {
	m.mu.Lock()
	fn, ok := m.Handlers[gpio.Handle(pin+100)]
	m.mu.Unlock()

	if ok {
		fn()
	}
	return ok
}

// Reset clears the call log.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = nil
}

// CallLog returns a copy of the recorded calls.
func (m *Mock) CallLog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]string(nil), m.Calls...)
}

// Level reports the last level written to an output and whether it is
// currently configured.
func (m *Mock) Level(id uint) (bool, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.Outputs[id] {
		return false, false
	}
	return m.Levels[id], true
}

// OutputCount is the number of currently configured outputs.
func (m *Mock) OutputCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.Outputs)
}

// HandlerCount is the number of live edge handlers.
func (m *Mock) HandlerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.Handlers)
}
