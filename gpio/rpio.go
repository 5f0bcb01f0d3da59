package gpio

import (
	"fmt"
	"sync"
	"time"

	"github.com/stianeikeland/go-rpio/v4"
)

// rpioMaxPin is the highest BCM GPIO number on the BCM283x family.
const rpioMaxPin = 53

const rpioPollInterval = time.Millisecond

type rpioWatch struct {
	pin  rpio.Pin
	fn   EdgeHandler
	stop chan struct{}
	done chan struct{}
}

// Rpio drives pins through /dev/gpiomem using go-rpio. The BCM edge detect
// register is latched, so rising edges are picked up by polling it.
type Rpio struct {
	mu      sync.Mutex
	watches map[Handle]*rpioWatch
}

func OpenRpio() (*Rpio, error) {
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("open rpio: %w", err)
	}

	return &Rpio{
		watches: make(map[Handle]*rpioWatch),
	}, nil
}

func (r *Rpio) ValidPin(id uint) bool {
	return id <= rpioMaxPin
}

func (r *Rpio) ConfigureOutput(id uint, level bool) error {
	if !r.ValidPin(id) {
		return fmt.Errorf("%w: %d", ErrInvalidPin, id)
	}
	pin := rpio.Pin(id)
	pin.Output()
	r.write(pin, level)
	return nil
}

func (r *Rpio) SetLevel(id uint, level bool) error {
	if !r.ValidPin(id) {
		return fmt.Errorf("%w: %d", ErrInvalidPin, id)
	}
	r.write(rpio.Pin(id), level)
	return nil
}

func (r *Rpio) write(pin rpio.Pin, level bool) {
	if level {
		pin.High()
	} else {
		pin.Low()
	}
}

func (r *Rpio) ConfigureInput(id uint) error {
	if !r.ValidPin(id) {
		return fmt.Errorf("%w: %d", ErrInvalidPin, id)
	}
	pin := rpio.Pin(id)
	pin.Input()
	pin.PullDown()
	return nil
}

func (r *Rpio) SetDebounce(id uint, window time.Duration) error {
	return ErrDebounceUnsupported
}

func (r *Rpio) MapInterrupt(id uint) (Handle, error) {
	if !r.ValidPin(id) {
		return 0, fmt.Errorf("%w: %d", ErrInvalidPin, id)
	}
	return Handle(id), nil
}

func (r *Rpio) OnRisingEdge(h Handle, fn EdgeHandler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.watches[h]; ok {
		return fmt.Errorf("%w: %d", ErrHandlerAlreadyExists, h)
	}

	w := &rpioWatch{
		pin:  rpio.Pin(h),
		fn:   fn,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	w.pin.Detect(rpio.RiseEdge)
	r.watches[h] = w

	go w.poll()
	return nil
}

func (w *rpioWatch) poll() {
	defer close(w.done)

	ticker := time.NewTicker(rpioPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			if w.pin.EdgeDetected() {
				w.fn()
			}
		}
	}
}

func (r *Rpio) Unregister(h Handle) error {
	r.mu.Lock()
	w, ok := r.watches[h]
	delete(r.watches, h)
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}

	close(w.stop)
	<-w.done
	w.pin.Detect(rpio.NoEdge)
	return nil
}

func (r *Rpio) Release(id uint) error {
	if !r.ValidPin(id) {
		return fmt.Errorf("%w: %d", ErrInvalidPin, id)
	}
	pin := rpio.Pin(id)
	pin.Low()
	pin.Input()
	return nil
}

func (r *Rpio) Close() error {
	r.mu.Lock()
	handles := make([]Handle, 0, len(r.watches))
	for h := range r.watches {
		handles = append(handles, h)
	}
	r.mu.Unlock()

	for _, h := range handles {
		r.Unregister(h)
	}

	return rpio.Close()
}
