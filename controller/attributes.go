package controller

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Attribute names of the control surface.
const (
	AttrValue     = "value"
	AttrMaxValue  = "max_value"
	AttrLEDs      = "gpio_leds"
	AttrIncrement = "increment"
	AttrButton    = "gpio_button_increment"
)

// Attributes lists every control surface attribute.
var Attributes = []string{AttrValue, AttrMaxValue, AttrLEDs, AttrIncrement, AttrButton}

var (
	ErrUnknownAttribute = errors.New("unknown attribute")
	ErrWriteOnly        = errors.New("attribute is write-only")
	ErrNotNumeric       = errors.New("not an unsigned decimal number")
)

// Get renders an attribute as text.
func (c *Controller) Get(name string) (string, error) {
	s := c.State()

	switch name {
	case AttrValue:
		return strconv.FormatUint(uint64(s.Value), 10), nil
	case AttrMaxValue:
		return strconv.FormatUint(uint64(s.MaxValue), 10), nil
	case AttrLEDs:
		parts := make([]string, len(s.LEDs))
		for i, id := range s.LEDs {
			parts[i] = strconv.FormatUint(uint64(id), 10)
		}
		return strings.Join(parts, ","), nil
	case AttrButton:
		if s.Button == nil {
			return "", nil
		}
		return strconv.FormatUint(uint64(*s.Button), 10), nil
	case AttrIncrement:
		return "", fmt.Errorf("%w: %s", ErrWriteOnly, name)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAttribute, name)
	}
}

// Set writes an attribute from text.
func (c *Controller) Set(name string, text string) error {
	switch name {
	case AttrValue:
		v, err := parseUnsigned(text)
		if err != nil {
			return err
		}
		return c.SetValue(v)

	case AttrMaxValue:
		v, err := parseUnsigned(text)
		if err != nil {
			return err
		}
		return c.SetMaxValue(v)

	case AttrLEDs:
		return c.AssignLEDs(text)

	case AttrIncrement:
		_, err := c.Increment()
		return err

	case AttrButton:
		pin, err := parseUnsigned(text)
		if err != nil {
			return err
		}
		return c.AssignButton(pin)

	default:
		return fmt.Errorf("%w: %q", ErrUnknownAttribute, name)
	}
}

func parseUnsigned(text string) (uint, error) {
	s := strings.TrimSpace(text)
	v, err := strconv.ParseUint(s, 10, strconv.IntSize)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrNotNumeric, s)
	}
	return uint(v), nil
}
