//go:build linux

package gpio

import (
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

const consumer = "gpiocount"

type cdevInput struct {
	line     *gpiocdev.Line
	debounce time.Duration
	watching bool
}

// Cdev drives pins through the GPIO character device (/dev/gpiochipN).
// Pin ids are line offsets on the chip.
type Cdev struct {
	chip *gpiocdev.Chip

	mu      sync.Mutex
	outputs map[uint]*gpiocdev.Line
	inputs  map[uint]*cdevInput
}

func OpenCdev(chipName string) (*Cdev, error) {
	if chipName == "" {
		chipName = "gpiochip0"
	}

	chip, err := gpiocdev.NewChip(chipName, gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", chipName, err)
	}

	return &Cdev{
		chip:    chip,
		outputs: make(map[uint]*gpiocdev.Line),
		inputs:  make(map[uint]*cdevInput),
	}, nil
}

func (c *Cdev) ValidPin(id uint) bool {
	return id < uint(c.chip.Lines())
}

func (c *Cdev) ConfigureOutput(id uint, lvl bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.ValidPin(id) {
		return fmt.Errorf("%w: %d", ErrInvalidPin, id)
	}
	if _, ok := c.outputs[id]; ok {
		return fmt.Errorf("%w: %d already requested", ErrInvalidPin, id)
	}

	line, err := c.chip.RequestLine(int(id), gpiocdev.AsOutput(level(lvl)))
	if err != nil {
		return fmt.Errorf("request output %d: %w", id, err)
	}
	c.outputs[id] = line
	return nil
}

func (c *Cdev) SetLevel(id uint, lvl bool) error {
	c.mu.Lock()
	line, ok := c.outputs[id]
	c.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %d is not an output", ErrInvalidPin, id)
	}
	return line.SetValue(level(lvl))
}

func (c *Cdev) ConfigureInput(id uint) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.ValidPin(id) {
		return fmt.Errorf("%w: %d", ErrInvalidPin, id)
	}
	if _, ok := c.inputs[id]; ok {
		return fmt.Errorf("%w: %d already requested", ErrInvalidPin, id)
	}

	line, err := c.chip.RequestLine(int(id), gpiocdev.AsInput, gpiocdev.WithPullDown)
	if err != nil {
		return fmt.Errorf("request input %d: %w", id, err)
	}
	c.inputs[id] = &cdevInput{line: line}
	return nil
}

// SetDebounce records the period; it is applied by the kernel when the edge
// handler is registered.
func (c *Cdev) SetDebounce(id uint, window time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	in, ok := c.inputs[id]
	if !ok {
		return fmt.Errorf("%w: %d is not an input", ErrInvalidPin, id)
	}
	in.debounce = window
	return nil
}

func (c *Cdev) MapInterrupt(id uint) (Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.inputs[id]; !ok {
		return 0, fmt.Errorf("%w: %d is not an input", ErrInvalidPin, id)
	}
	return Handle(id), nil
}

// OnRisingEdge re-requests the input line with edge detection enabled, since
// the event handler can only be attached at request time.
func (c *Cdev) OnRisingEdge(h Handle, fn EdgeHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	in, ok := c.inputs[uint(h)]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}
	if in.watching {
		return fmt.Errorf("%w: %d", ErrHandlerAlreadyExists, h)
	}

	opts := []gpiocdev.LineReqOption{
		gpiocdev.AsInput,
		gpiocdev.WithPullDown,
		gpiocdev.WithRisingEdge,
		gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
			if evt.Type == gpiocdev.LineEventRisingEdge {
				fn()
			}
		}),
	}
	if in.debounce > 0 {
		opts = append(opts, gpiocdev.WithDebounce(in.debounce))
	}

	if err := in.line.Close(); err != nil {
		return fmt.Errorf("close input %d: %w", h, err)
	}
	line, err := c.chip.RequestLine(int(h), opts...)
	if err != nil {
		delete(c.inputs, uint(h))
		return fmt.Errorf("request edge events on %d: %w", h, err)
	}
	in.line = line
	in.watching = true
	return nil
}

func (c *Cdev) Unregister(h Handle) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	in, ok := c.inputs[uint(h)]
	if !ok || !in.watching {
		return fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}

	if err := in.line.Close(); err != nil {
		return fmt.Errorf("close input %d: %w", h, err)
	}
	line, err := c.chip.RequestLine(int(h), gpiocdev.AsInput, gpiocdev.WithPullDown)
	if err != nil {
		delete(c.inputs, uint(h))
		return fmt.Errorf("request input %d: %w", h, err)
	}
	in.line = line
	in.watching = false
	return nil
}

func (c *Cdev) Release(id uint) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if line, ok := c.outputs[id]; ok {
		delete(c.outputs, id)
		return line.Close()
	}
	if in, ok := c.inputs[id]; ok {
		delete(c.inputs, id)
		return in.line.Close()
	}
	return fmt.Errorf("%w: %d is not requested", ErrInvalidPin, id)
}

func (c *Cdev) Close() error {
	c.mu.Lock()
	for id, line := range c.outputs {
		line.Close()
		delete(c.outputs, id)
	}
	for id, in := range c.inputs {
		in.line.Close()
		delete(c.inputs, id)
	}
	c.mu.Unlock()

	return c.chip.Close()
}
