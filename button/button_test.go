package button_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gregoryjjb/gpiocount/button"
	"gregoryjjb/gpiocount/debounce"
	"gregoryjjb/gpiocount/gpio"
	"gregoryjjb/gpiocount/gpio/gpiotest"
)

func TestAssign(t *testing.T) {
	hw := gpiotest.New()
	b := button.New(hw)
	assert.Equal(t, button.StateUnassigned, b.State())

	presses := 0
	require.NoError(t, b.Assign(26, func() { presses++ }))
	assert.Equal(t, button.StateAssigned, b.State())

	pin, ok := b.Pin()
	assert.True(t, ok)
	assert.Equal(t, uint(26), pin)
	assert.Equal(t, debounce.Window, hw.DebounceWindow)
	assert.Equal(t, []string{"valid 26", "input 26", "debounce 26 200ms", "map 26", "register 126"}, hw.CallLog())

	assert.True(t, hw.Fire(26))
	assert.Equal(t, 1, presses)
}

func TestDebounceFailureTolerated(t *testing.T) {
	hw := gpiotest.New()
	hw.FailDebounce = true
	b := button.New(hw)

	require.NoError(t, b.Assign(26, func() {}))
	assert.Equal(t, button.StateAssigned, b.State())
}

func TestAssignFailures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*gpiotest.Mock)
		err   error
	}{
		{name: "invalid pin", setup: func(m *gpiotest.Mock) { m.Invalid[26] = true }, err: gpio.ErrInvalidPin},
		{name: "map fails", setup: func(m *gpiotest.Mock) { m.FailMap = true }, err: button.ErrInterruptRegistration},
		{name: "register fails", setup: func(m *gpiotest.Mock) { m.FailRegister = true }, err: button.ErrInterruptRegistration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hw := gpiotest.New()
			tt.setup(hw)
			b := button.New(hw)

			err := b.Assign(26, func() {})
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, button.StateUnassigned, b.State())
			assert.Equal(t, 0, hw.HandlerCount())
			assert.False(t, hw.Inputs[26], "pin must not stay claimed")

			_, ok := b.Pin()
			assert.False(t, ok)
		})
	}
}

func TestReassignReleasesFirst(t *testing.T) {
	hw := gpiotest.New()
	b := button.New(hw)

	require.NoError(t, b.Assign(26, func() {}))
	hw.Reset()

	require.NoError(t, b.Assign(19, func() {}))
	calls := hw.CallLog()
	require.GreaterOrEqual(t, len(calls), 2)
	assert.Equal(t, []string{"unregister 126", "release 26"}, calls[:2])
	assert.False(t, hw.Fire(26))
	assert.True(t, hw.Fire(19))
}

func TestFailedReassignEndsUnassigned(t *testing.T) {
	hw := gpiotest.New(40)
	b := button.New(hw)

	require.NoError(t, b.Assign(26, func() {}))
	assert.ErrorIs(t, b.Assign(40, func() {}), gpio.ErrInvalidPin)
	assert.Equal(t, button.StateUnassigned, b.State())
	assert.Equal(t, 0, hw.HandlerCount())
}

func TestReleaseUnassignedIsNoop(t *testing.T) {
	hw := gpiotest.New()
	b := button.New(hw)

	assert.NoError(t, b.Release())
	assert.NoError(t, b.Release())
	assert.Empty(t, hw.CallLog())
}
