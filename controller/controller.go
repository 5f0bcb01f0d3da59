// Package controller ties the counter, the LEDs and the button together
// behind a single lock.
package controller

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"gregoryjjb/gpiocount/button"
	"gregoryjjb/gpiocount/counter"
	"gregoryjjb/gpiocount/debounce"
	"gregoryjjb/gpiocount/gpio"
	"gregoryjjb/gpiocount/history"
	"gregoryjjb/gpiocount/leds"
	"gregoryjjb/gpiocount/pubsub"
)

var clog zerolog.Logger

func init() {
	clog = log.With().Str("component", "controller").Logger()
}

var ErrClosed = errors.New("controller closed")

const (
	DefaultHistorySize = 64
	edgeBuffer         = 16
)

// Snapshot is the externally visible state.
type Snapshot struct {
	counter.State
	LEDs        []uint       `json:"gpio_leds"`
	Levels      []bool       `json:"levels"`
	Button      *uint        `json:"gpio_button_increment"`
	ButtonState button.State `json:"button_state"`
}

// Event is published after every change to the state.
type Event struct {
	Snapshot
	Source  string    `json:"source"`
	Wrapped bool      `json:"wrapped"`
	Time    time.Time `json:"time"`
}

type Options struct {
	// Now defaults to time.Now.
	Now         func() time.Time
	HistorySize int
}

type edgeEvent struct {
	at         time.Time
	generation uint64
}

// Controller owns all mutable state. Control surface calls take the lock
// directly; button edges are queued and applied by Run.
type Controller struct {
	mu sync.Mutex

	hw      gpio.Hardware
	counter counter.Counter
	leds    *leds.PinList
	button  *button.Controller
	gate    *debounce.Gate
	clock   debounce.Clock
	closed  bool

	// generation changes on every button assignment so edges queued by a
	// previous handler are dropped.
	generation uint64

	now     func() time.Time
	edges   chan edgeEvent
	ps      *pubsub.Pubsub[Event]
	history *history.Ring[Event]
}

func New(hw gpio.Hardware, opts Options) *Controller {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.HistorySize <= 0 {
		opts.HistorySize = DefaultHistorySize
	}

	epoch := opts.Now()
	c := &Controller{
		hw:      hw,
		leds:    leds.NewPinList(hw),
		button:  button.New(hw),
		gate:    debounce.New(debounce.Window),
		clock:   debounce.NewClock(epoch),
		now:     opts.Now,
		edges:   make(chan edgeEvent, edgeBuffer),
		ps:      pubsub.New[Event](),
		history: history.New[Event](opts.HistorySize),
	}
	c.gate.Init(c.clock.Millis(epoch))

	clog.Info().Uint("value", c.counter.Value()).Uint("max_value", c.counter.MaxValue()).Msg("Initialized")
	return c
}

// Run applies queued button edges until ctx is done.
func (c *Controller) Run(ctx context.Context) {
	clog.Info().Msg("Running button loop")

	for {
		select {
		case <-ctx.Done():
			clog.Info().Msg("Stopping button loop")
			return
		case e := <-c.edges:
			c.handleEdge(e)
		}
	}
}

func (c *Controller) edgeHandler(generation uint64) gpio.EdgeHandler {
	return func() {
		select {
		case c.edges <- edgeEvent{at: c.now(), generation: generation}:
		default:
			clog.Warn().Msg("Button edge dropped, queue full")
		}
	}
}

func (c *Controller) handleEdge(e edgeEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e.generation != c.generation || c.button.State() != button.StateAssigned {
		clog.Debug().Msg("Ignoring edge from a released button")
		return
	}
	c.pressLocked(e.at, "button")
}

// Press is a button press at the given time, subject to debouncing. It
// reports whether the press was accepted.
func (c *Controller) Press(at time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	return c.pressLocked(at, "button")
}

func (c *Controller) pressLocked(at time.Time, source string) bool {
	ms := c.clock.Millis(at)
	if !c.gate.Admit(ms) {
		clog.Debug().Uint32("ms", ms).Msg("Ignored bounce")
		return false
	}

	wrapped := c.counter.Increment()
	c.applyLocked()
	c.publishLocked(source, wrapped)
	return true
}

// Increment is a manual press that bypasses debouncing.
func (c *Controller) Increment() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false, ErrClosed
	}

	clog.Info().Msg("Incrementing counter")
	wrapped := c.counter.Increment()
	c.applyLocked()
	c.publishLocked(AttrIncrement, wrapped)
	return wrapped, nil
}

// SetValue overwrites the counter value and shows it. The ceiling is not
// enforced.
func (c *Controller) SetValue(v uint) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	c.counter.SetValue(v)
	clog.Info().Uint("value", v).Msg("'value' set via control surface")
	c.applyLocked()
	c.publishLocked(AttrValue, false)
	return nil
}

// SetMaxValue overwrites the historical maximum.
func (c *Controller) SetMaxValue(v uint) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	c.counter.SetMaxValue(v)
	clog.Info().Uint("max_value", v).Msg("'max_value' set via control surface")
	c.publishLocked(AttrMaxValue, false)
	return nil
}

// AssignLEDs replaces the LED pins. The old pins are released before the
// new descriptor is tried, so on error no LEDs are assigned and the counter
// is zeroed.
func (c *Controller) AssignLEDs(descriptor string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	clog.Info().Str("descriptor", descriptor).Msg("Reloading LED GPIOs")
	if err := c.leds.Unassign(); err != nil {
		clog.Err(err).Msg("Releasing LEDs")
	}

	err := c.leds.Assign(descriptor)
	if err != nil {
		clog.Err(err).Msg("Assigning LEDs")
		c.counter.Reset()
	} else {
		c.counter.RecomputeCeiling(c.leds.Len())
	}
	clog.Info().
		Uint("max_possible", c.counter.MaxPossible()).
		Uint("value", c.counter.Value()).
		Msg("Ceiling recomputed")

	c.applyLocked()
	c.publishLocked(AttrLEDs, false)
	return err
}

// AssignButton releases the current button, if any, and assigns pin. On
// error no button is assigned.
func (c *Controller) AssignButton(pin uint) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	c.generation++
	err := c.button.Assign(pin, c.edgeHandler(c.generation))
	if err != nil {
		clog.Err(err).Uint("gpio", pin).Msg("Assigning button")
	}
	c.publishLocked(AttrButton, false)
	return err
}

// ReleaseButton frees the button pin.
func (c *Controller) ReleaseButton() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	err := c.button.Release()
	c.publishLocked(AttrButton, false)
	return err
}

func (c *Controller) applyLocked() {
	if err := c.leds.Apply(c.counter.Value()); err != nil {
		clog.Err(err).Msg("Writing LEDs")
	}
}

func (c *Controller) snapshotLocked() Snapshot {
	s := Snapshot{
		State:       c.counter.State(),
		LEDs:        c.leds.Pins(),
		Levels:      c.leds.Levels(),
		ButtonState: c.button.State(),
	}
	if pin, ok := c.button.Pin(); ok {
		s.Button = &pin
	}
	return s
}

func (c *Controller) publishLocked(source string, wrapped bool) {
	e := Event{
		Snapshot: c.snapshotLocked(),
		Source:   source,
		Wrapped:  wrapped,
		Time:     c.now(),
	}
	c.history.Push(e)
	c.ps.Publish(e)
}

func (c *Controller) State() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.snapshotLocked()
}

// Subscribe returns a channel of events and a function to stop receiving them.
func (c *Controller) Subscribe() (func(), <-chan Event) {
	id, ch := c.ps.Subscribe()
	return func() {
		c.ps.Unsubscribe(id)
	}, ch
}

// History returns the most recent events, oldest first.
func (c *Controller) History() []Event {
	return c.history.Items()
}

// Close releases the LEDs and the button, then the hardware.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	clog.Info().Msg("Exiting")

	var errs []error
	if err := c.leds.Unassign(); err != nil {
		errs = append(errs, err)
	}
	c.generation++
	if err := c.button.Release(); err != nil {
		errs = append(errs, err)
	}
	if err := c.hw.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
