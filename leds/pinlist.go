// Package leds manages the bank of output pins that displays the counter.
package leds

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"gregoryjjb/gpiocount/gpio"
)

var llog zerolog.Logger

func init() {
	llog = log.With().Str("component", "leds").Logger()
}

const (
	// Capacity is the most LEDs that can be assigned. Extra fields in a
	// descriptor are ignored.
	Capacity = 8
	// MaxDigits bounds each pin id in a descriptor.
	MaxDigits = 3
)

var (
	ErrAlreadyAssigned = errors.New("LEDs already assigned")
	ErrEmptyField      = errors.New("empty LED GPIO field")
	ErrDigitOverflow   = errors.New("LED GPIO has too many digits")
	ErrNotNumeric      = errors.New("LED GPIO is not a decimal number")
)

// Parse reads a comma separated list of pin ids. Only the first Capacity
// fields are looked at.
func Parse(descriptor string) ([]uint, error) {
	fields := strings.Split(strings.TrimSpace(descriptor), ",")
	if len(fields) > Capacity {
		llog.Warn().
			Int("fields", len(fields)).
			Int("capacity", Capacity).
			Msg("Too many LED GPIOs, skipping the rest")
		fields = fields[:Capacity]
	}

	ids := make([]uint, 0, len(fields))
	for i, field := range fields {
		field = strings.TrimSpace(field)

		if field == "" {
			return nil, fmt.Errorf("%w at position %d", ErrEmptyField, i)
		}
		if len(field) > MaxDigits {
			return nil, fmt.Errorf("%w: %q", ErrDigitOverflow, field)
		}
		for _, r := range field {
			if r < '0' || r > '9' {
				return nil, fmt.Errorf("%w: %q", ErrNotNumeric, field)
			}
		}

		id, err := strconv.ParseUint(field, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrNotNumeric, field)
		}
		ids = append(ids, uint(id))
	}

	return ids, nil
}

// Pin is one acquired output and the level last written to it.
type Pin struct {
	ID uint `json:"gpio"`
	On bool `json:"on"`
}

// Assignment is an ordered set of acquired output pins, low bit first.
type Assignment []Pin

// Acquire configures every pin as an output driven off. It is all or
// nothing: if any pin is rejected, the pins already configured by this call
// are released before the error is returned.
func Acquire(hw gpio.Hardware, ids []uint) (Assignment, error) {
	acquired := make(Assignment, 0, len(ids))

	for _, id := range ids {
		llog.Info().Uint("gpio", id).Msg("Initializing LED")

		var err error
		if !hw.ValidPin(id) {
			err = fmt.Errorf("%w: LED GPIO %d", gpio.ErrInvalidPin, id)
		} else if cerr := hw.ConfigureOutput(id, false); cerr != nil {
			err = fmt.Errorf("%w: LED GPIO %d: %s", gpio.ErrInvalidPin, id, cerr)
		}

		if err != nil {
			llog.Warn().Err(err).Int("rollback", len(acquired)).Msg("LED acquisition failed, releasing")
			if rerr := Release(hw, acquired); rerr != nil {
				llog.Err(rerr).Msg("Rollback incomplete")
			}
			return nil, err
		}

		acquired = append(acquired, Pin{ID: id})
	}

	return acquired, nil
}

// Release drives every pin off and then frees them, in order.
func Release(hw gpio.Hardware, a Assignment) error {
	var errs []error
	for _, p := range a {
		if err := hw.SetLevel(p.ID, false); err != nil {
			errs = append(errs, fmt.Errorf("turn off GPIO %d: %w", p.ID, err))
		}
	}
	for _, p := range a {
		llog.Info().Uint("gpio", p.ID).Msg("Releasing LED")
		if err := hw.Release(p.ID); err != nil {
			errs = append(errs, fmt.Errorf("release GPIO %d: %w", p.ID, err))
		}
	}
	return errors.Join(errs...)
}

// PinList owns the currently assigned LEDs.
type PinList struct {
	hw   gpio.Hardware
	pins Assignment
}

func NewPinList(hw gpio.Hardware) *PinList {
	return &PinList{hw: hw}
}

// Assign parses descriptor and acquires the pins it names. It must only be
// called while nothing is assigned; on failure nothing is assigned.
func (l *PinList) Assign(descriptor string) error {
	if len(l.pins) > 0 {
		return ErrAlreadyAssigned
	}

	ids, err := Parse(descriptor)
	if err != nil {
		return err
	}

	pins, err := Acquire(l.hw, ids)
	if err != nil {
		return err
	}
	l.pins = pins
	return nil
}

// Unassign releases every assigned pin. Safe to call when empty.
func (l *PinList) Unassign() error {
	pins := l.pins
	l.pins = nil
	return Release(l.hw, pins)
}

// Apply shows value on the assigned pins.
func (l *PinList) Apply(value uint) error {
	levels := Encode(value, len(l.pins))

	var errs []error
	for i, on := range levels {
		l.pins[i].On = on
		if err := l.hw.SetLevel(l.pins[i].ID, on); err != nil {
			errs = append(errs, fmt.Errorf("set GPIO %d: %w", l.pins[i].ID, err))
		}
	}

	llog.Debug().Uint("value", value).Str("bits", bitString(levels)).Msg("Representing value")
	return errors.Join(errs...)
}

func (l *PinList) Len() int {
	return len(l.pins)
}

func (l *PinList) Pins() []uint {
	ids := make([]uint, len(l.pins))
	for i, p := range l.pins {
		ids[i] = p.ID
	}
	return ids
}

func (l *PinList) Levels() []bool {
	levels := make([]bool, len(l.pins))
	for i, p := range l.pins {
		levels[i] = p.On
	}
	return levels
}

// String renders the pin ids the way Assign accepts them.
func (l *PinList) String() string {
	parts := make([]string, len(l.pins))
	for i, p := range l.pins {
		parts[i] = strconv.FormatUint(uint64(p.ID), 10)
	}
	return strings.Join(parts, ",")
}

// bitString renders levels most significant first, as the value would be written.
func bitString(levels []bool) string {
	var b strings.Builder
	for i := len(levels) - 1; i >= 0; i-- {
		if levels[i] {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}
