package counter_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"gregoryjjb/gpiocount/counter"
)

func TestCeiling(t *testing.T) {
	tests := []struct {
		pins int
		want uint
	}{
		{0, 0},
		{1, 1},
		{2, 3},
		{3, 7},
		{8, 255},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, counter.Ceiling(tt.pins), "pins=%d", tt.pins)
	}
}

func TestIncrementWrapsOnceAtCeiling(t *testing.T) {
	for pins := 0; pins <= 8; pins++ {
		var c counter.Counter
		c.RecomputeCeiling(pins)

		calls := int(c.MaxPossible()) + 1
		wraps := 0
		for i := 1; i <= calls; i++ {
			if c.Increment() {
				wraps++
				assert.Equal(t, calls, i, "pins=%d wrapped early", pins)
			}
		}

		assert.Equal(t, 1, wraps, "pins=%d", pins)
		assert.Equal(t, uint(0), c.Value(), "pins=%d", pins)
	}
}

func TestMaxValueNonDecreasing(t *testing.T) {
	var c counter.Counter
	c.RecomputeCeiling(3)

	var last uint
	for i := 0; i < 50; i++ {
		c.Increment()
		assert.GreaterOrEqual(t, c.MaxValue(), last)
		assert.GreaterOrEqual(t, c.MaxValue(), c.Value())
		last = c.MaxValue()
	}
	assert.Equal(t, uint(7), c.MaxValue())
}

func TestWrapDoesNotTouchMaxValue(t *testing.T) {
	var c counter.Counter
	c.RecomputeCeiling(1)

	assert.False(t, c.Increment())
	assert.Equal(t, uint(1), c.MaxValue())
	assert.True(t, c.Increment())
	assert.Equal(t, uint(0), c.Value())
	assert.Equal(t, uint(1), c.MaxValue())
}

func TestRecomputeCeiling(t *testing.T) {
	t.Run("GrowingKeepsValue", func(t *testing.T) {
		var c counter.Counter
		c.RecomputeCeiling(2)
		c.Increment()
		c.Increment()
		c.Increment()

		c.RecomputeCeiling(5)
		assert.Equal(t, uint(3), c.Value())
		assert.Equal(t, uint(31), c.MaxPossible())
	})

	t.Run("ShrinkingResetsValueKeepsMax", func(t *testing.T) {
		var c counter.Counter
		c.RecomputeCeiling(4)
		for i := 0; i < 9; i++ {
			c.Increment()
		}

		c.RecomputeCeiling(3)
		assert.Equal(t, uint(0), c.Value())
		assert.Equal(t, uint(9), c.MaxValue())
		assert.Equal(t, uint(7), c.MaxPossible())
	})

	t.Run("ShrinkingKeepsFittingValue", func(t *testing.T) {
		var c counter.Counter
		c.RecomputeCeiling(4)
		c.Increment()
		c.Increment()

		c.RecomputeCeiling(2)
		assert.Equal(t, uint(2), c.Value())
	})
}

func TestOverrides(t *testing.T) {
	var c counter.Counter
	c.RecomputeCeiling(2)

	c.SetValue(200)
	assert.Equal(t, uint(200), c.Value())

	// an out-of-range value wraps on the next increment
	assert.True(t, c.Increment())
	assert.Equal(t, uint(0), c.Value())

	c.SetMaxValue(1)
	c.Increment()
	c.Increment()
	assert.Equal(t, uint(2), c.MaxValue())

	c.SetMaxValue(0)
	assert.Equal(t, counter.State{Value: 2, MaxValue: 0, MaxPossible: 3}, c.State())
}

func TestReset(t *testing.T) {
	var c counter.Counter
	c.RecomputeCeiling(3)
	c.Increment()
	c.Increment()

	c.Reset()
	assert.Equal(t, counter.State{Value: 0, MaxValue: 2, MaxPossible: 0}, c.State())
}
