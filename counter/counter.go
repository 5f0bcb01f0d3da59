// Package counter holds the bounded counter shown on the LEDs.
package counter

// State is a snapshot of the counter.
type State struct {
	Value       uint `json:"value"`
	MaxValue    uint `json:"max_value"`
	MaxPossible uint `json:"max_possible"`
}

// Counter is not safe for concurrent use; its owner serializes access.
type Counter struct {
	value       uint
	maxValue    uint
	maxPossible uint
}

// Increment advances the value, wrapping to zero once it reaches the
// ceiling. It reports whether a wrap happened. The historical maximum only
// follows increments, never wraps.
func (c *Counter) Increment() bool {
	if c.value < c.maxPossible {
		c.value++
		if c.value > c.maxValue {
			c.maxValue = c.value
		}
		return false
	}

	c.value = 0
	return true
}

// RecomputeCeiling sets the ceiling for pinCount output bits. A value that no
// longer fits is reset to zero.
func (c *Counter) RecomputeCeiling(pinCount int) {
	c.maxPossible = Ceiling(pinCount)
	if c.value > c.maxPossible {
		c.value = 0
	}
}

// Reset zeroes the value and the ceiling; the historical maximum survives.
func (c *Counter) Reset() {
	c.value = 0
	c.maxPossible = 0
}

// SetValue overrides the value without checking it against the ceiling.
func (c *Counter) SetValue(v uint) {
	c.value = v
}

// SetMaxValue overrides the historical maximum.
func (c *Counter) SetMaxValue(v uint) {
	c.maxValue = v
}

func (c *Counter) Value() uint       { return c.value }
func (c *Counter) MaxValue() uint    { return c.maxValue }
func (c *Counter) MaxPossible() uint { return c.maxPossible }

func (c *Counter) State() State {
	return State{
		Value:       c.value,
		MaxValue:    c.maxValue,
		MaxPossible: c.maxPossible,
	}
}

// Ceiling is the largest value representable on n bits.
func Ceiling(n int) uint {
	if n <= 0 {
		return 0
	}
	return (1 << uint(n)) - 1
}
