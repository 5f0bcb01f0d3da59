package debounce_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"gregoryjjb/gpiocount/debounce"
)

func TestAdmit(t *testing.T) {
	g := debounce.New(debounce.Window)
	g.Init(0)

	assert.True(t, g.Admit(500))
	assert.False(t, g.Admit(501))
	assert.False(t, g.Admit(699))
	assert.True(t, g.Admit(700), "exactly one window later")
	assert.False(t, g.Admit(899))
	assert.True(t, g.Admit(1500))
}

func TestInitRejectsFirstWindow(t *testing.T) {
	g := debounce.New(debounce.Window)
	g.Init(1000)

	assert.False(t, g.Admit(1000))
	assert.False(t, g.Admit(1100), "100ms after startup")
	assert.False(t, g.Admit(1199))
	assert.True(t, g.Admit(1200))
}

func TestRejectedTriggerDoesNotExtendWindow(t *testing.T) {
	g := debounce.New(debounce.Window)
	g.Init(0)

	assert.True(t, g.Admit(250))
	assert.False(t, g.Admit(350))
	assert.True(t, g.Admit(450))
}

func TestAdmitAcrossClockWrap(t *testing.T) {
	g := debounce.New(debounce.Window)
	g.Init(math.MaxUint32 - 300)

	assert.True(t, g.Admit(math.MaxUint32-100))
	assert.False(t, g.Admit(50), "151ms later across the wrap")
	assert.True(t, g.Admit(99), "200ms later across the wrap")
}

func TestClock(t *testing.T) {
	epoch := time.Date(2024, 12, 24, 18, 0, 0, 0, time.UTC)
	c := debounce.NewClock(epoch)

	assert.Equal(t, uint32(0), c.Millis(epoch))
	assert.Equal(t, uint32(1500), c.Millis(epoch.Add(1500*time.Millisecond+300*time.Microsecond)))
}
