package leds_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gregoryjjb/gpiocount/gpio"
	"gregoryjjb/gpiocount/gpio/gpiotest"
	"gregoryjjb/gpiocount/leds"
)

func TestEncode(t *testing.T) {
	for n := 0; n <= leds.Capacity; n++ {
		max := uint(1)<<uint(n) - 1
		for v := uint(0); v <= max; v++ {
			got := leds.Encode(v, n)
			require.Len(t, got, n)

			var back uint
			for i, on := range got {
				if on {
					back |= 1 << uint(i)
				}
			}
			assert.Equal(t, v, back, "n=%d", n)
		}
	}
}

func TestEncodeLowBitFirst(t *testing.T) {
	assert.Equal(t, []bool{true, false, true, false}, leds.Encode(5, 4))
	assert.Equal(t, []bool{false, true}, leds.Encode(6, 2))
	assert.Equal(t, []bool{}, leds.Encode(3, 0))
}

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []uint
		err  error
	}{
		{name: "three pins", in: "5,12,200", want: []uint{5, 12, 200}},
		{name: "single", in: "7", want: []uint{7}},
		{name: "trailing newline", in: "5,6\n", want: []uint{5, 6}},
		{name: "zero padded", in: "007", want: []uint{7}},
		{name: "nine fields truncated", in: "1,2,3,4,5,6,7,8,9", want: []uint{1, 2, 3, 4, 5, 6, 7, 8}},
		{name: "garbage after capacity ignored", in: "1,2,3,4,5,6,7,8,,abcd", want: []uint{1, 2, 3, 4, 5, 6, 7, 8}},
		{name: "empty", in: "", err: leds.ErrEmptyField},
		{name: "double comma", in: "5,,12", err: leds.ErrEmptyField},
		{name: "leading comma", in: ",5", err: leds.ErrEmptyField},
		{name: "trailing comma", in: "5,", err: leds.ErrEmptyField},
		{name: "four digits", in: "1234", err: leds.ErrDigitOverflow},
		{name: "letters", in: "5,a1", err: leds.ErrNotNumeric},
		{name: "sign", in: "-1", err: leds.ErrNotNumeric},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := leds.Parse(tt.in)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAcquireAllOff(t *testing.T) {
	hw := gpiotest.New()

	a, err := leds.Acquire(hw, []uint{4, 17, 27})
	require.NoError(t, err)
	assert.Equal(t, leds.Assignment{{ID: 4}, {ID: 17}, {ID: 27}}, a)
	assert.Equal(t, []string{
		"valid 4", "output 4 false",
		"valid 17", "output 17 false",
		"valid 27", "output 27 false",
	}, hw.CallLog())
}

func TestAcquireRollsBack(t *testing.T) {
	hw := gpiotest.New(7)

	a, err := leds.Acquire(hw, []uint{5, 6, 7, 8})
	assert.ErrorIs(t, err, gpio.ErrInvalidPin)
	assert.Nil(t, a)
	assert.Equal(t, 0, hw.OutputCount())
	assert.Equal(t, []string{
		"valid 5", "output 5 false",
		"valid 6", "output 6 false",
		"valid 7",
		"set 5 false", "set 6 false",
		"release 5", "release 6",
	}, hw.CallLog())
}

func TestAcquireFirstPinInvalid(t *testing.T) {
	hw := gpiotest.New(5)

	_, err := leds.Acquire(hw, []uint{5, 6})
	assert.ErrorIs(t, err, gpio.ErrInvalidPin)
	assert.Equal(t, []string{"valid 5"}, hw.CallLog())
}

func TestPinList(t *testing.T) {
	t.Run("AssignApplyUnassign", func(t *testing.T) {
		hw := gpiotest.New()
		l := leds.NewPinList(hw)

		require.NoError(t, l.Assign("5,12,200"))
		assert.Equal(t, 3, l.Len())
		assert.Equal(t, "5,12,200", l.String())
		assert.Equal(t, []uint{5, 12, 200}, l.Pins())

		require.NoError(t, l.Apply(5))
		assert.Equal(t, []bool{true, false, true}, l.Levels())
		on, ok := hw.Level(200)
		assert.True(t, ok)
		assert.True(t, on)

		require.NoError(t, l.Unassign())
		assert.Equal(t, 0, l.Len())
		assert.Equal(t, "", l.String())
		assert.Equal(t, 0, hw.OutputCount())
	})

	t.Run("AssignWhileAssigned", func(t *testing.T) {
		hw := gpiotest.New()
		l := leds.NewPinList(hw)

		require.NoError(t, l.Assign("1,2"))
		assert.ErrorIs(t, l.Assign("3"), leds.ErrAlreadyAssigned)
		assert.Equal(t, "1,2", l.String())
	})

	t.Run("ParseErrorLeavesEmpty", func(t *testing.T) {
		hw := gpiotest.New()
		l := leds.NewPinList(hw)

		assert.ErrorIs(t, l.Assign("5,,12"), leds.ErrEmptyField)
		assert.Equal(t, 0, l.Len())
		assert.Empty(t, hw.CallLog())
	})

	t.Run("UnassignEmpty", func(t *testing.T) {
		hw := gpiotest.New()
		l := leds.NewPinList(hw)

		assert.NoError(t, l.Unassign())
		assert.Empty(t, hw.CallLog())
	})
}
