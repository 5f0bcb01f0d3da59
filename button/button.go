// Package button owns the single increment button and its edge interrupt.
package button

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"gregoryjjb/gpiocount/debounce"
	"gregoryjjb/gpiocount/gpio"
)

var blog zerolog.Logger

func init() {
	blog = log.With().Str("component", "button").Logger()
}

var ErrInterruptRegistration = errors.New("interrupt registration failed")

type State string

const (
	StateUnassigned State = "unassigned"
	StateAssigning  State = "assigning"
	StateAssigned   State = "assigned"
)

// Controller tracks the lifecycle of the button pin. It is not safe for
// concurrent use; its owner serializes calls.
type Controller struct {
	hw     gpio.Hardware
	state  State
	pin    uint
	handle gpio.Handle
}

func New(hw gpio.Hardware) *Controller {
	return &Controller{
		hw:    hw,
		state: StateUnassigned,
	}
}

// Assign releases any current button and sets up pin to call onEdge on each
// rising edge. On error the controller is left unassigned with no handler
// registered.
func (c *Controller) Assign(pin uint, onEdge gpio.EdgeHandler) error {
	if err := c.Release(); err != nil {
		blog.Err(err).Msg("Releasing previous button")
	}

	c.state = StateAssigning
	c.pin = pin

	if err := c.assign(pin, onEdge); err != nil {
		c.state = StateUnassigned
		return err
	}

	c.state = StateAssigned
	blog.Info().Uint("gpio", pin).Int("irq", int(c.handle)).Msg("Button assigned")
	return nil
}

func (c *Controller) assign(pin uint, onEdge gpio.EdgeHandler) error {
	if !c.hw.ValidPin(pin) {
		return fmt.Errorf("%w: button GPIO %d", gpio.ErrInvalidPin, pin)
	}
	if err := c.hw.ConfigureInput(pin); err != nil {
		return fmt.Errorf("%w: button GPIO %d: %s", gpio.ErrInvalidPin, pin, err)
	}

	if err := c.hw.SetDebounce(pin, debounce.Window); err != nil {
		blog.Warn().Err(err).Uint("gpio", pin).Msg("Hardware debounce unavailable")
	} else {
		blog.Debug().Uint("gpio", pin).Msg("Hardware debounce ok")
	}

	handle, err := c.hw.MapInterrupt(pin)
	if err != nil {
		c.releasePin(pin)
		return fmt.Errorf("%w: map GPIO %d: %s", ErrInterruptRegistration, pin, err)
	}

	if err := c.hw.OnRisingEdge(handle, onEdge); err != nil {
		c.releasePin(pin)
		return fmt.Errorf("%w: GPIO %d: %s", ErrInterruptRegistration, pin, err)
	}

	c.handle = handle
	return nil
}

func (c *Controller) releasePin(pin uint) {
	if err := c.hw.Release(pin); err != nil {
		blog.Err(err).Uint("gpio", pin).Msg("Releasing button GPIO")
	}
}

// Release unregisters the handler and frees the pin. It does nothing when
// no button is assigned.
func (c *Controller) Release() error {
	if c.state != StateAssigned {
		c.state = StateUnassigned
		return nil
	}

	blog.Info().Uint("gpio", c.pin).Msg("Releasing increment button")

	var errs []error
	if err := c.hw.Unregister(c.handle); err != nil {
		errs = append(errs, fmt.Errorf("unregister: %w", err))
	}
	if err := c.hw.Release(c.pin); err != nil {
		errs = append(errs, fmt.Errorf("release GPIO %d: %w", c.pin, err))
	}

	c.state = StateUnassigned
	return errors.Join(errs...)
}

func (c *Controller) State() State {
	return c.state
}

// Pin returns the assigned pin, if any.
func (c *Controller) Pin() (uint, bool) {
	if c.state != StateAssigned {
		return 0, false
	}
	return c.pin, true
}
