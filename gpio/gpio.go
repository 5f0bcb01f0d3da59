package gpio

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidPin           = errors.New("invalid pin")
	ErrUnknownHandle        = errors.New("unknown interrupt handle")
	ErrDebounceUnsupported  = errors.New("debounce not supported")
	ErrUnsupported          = errors.New("backend not supported on this platform")
	ErrUnknownBackend       = errors.New("unknown gpio backend")
	ErrHandlerAlreadyExists = errors.New("handler already registered")
)

// Handle identifies an input pin mapped to an interrupt source.
type Handle int

// EdgeHandler is called from the backend's event context. It must not block.
type EdgeHandler func()

// Hardware is everything the counter needs from a GPIO driver. Pins are
// addressed by their numeric id as the backend understands it (BCM number for
// rpio, line offset for gpiocdev).
type Hardware interface {
	ValidPin(id uint) bool
	ConfigureOutput(id uint, level bool) error
	SetLevel(id uint, level bool) error
	ConfigureInput(id uint) error
	// SetDebounce is best effort; callers may ignore its error.
	SetDebounce(id uint, window time.Duration) error
	MapInterrupt(id uint) (Handle, error)
	OnRisingEdge(h Handle, fn EdgeHandler) error
	Unregister(h Handle) error
	Release(id uint) error
	Close() error
}

const (
	BackendRpio     = "rpio"
	BackendGpiocdev = "gpiocdev"
)

// Options selects and configures a backend.
type Options struct {
	Enabled bool
	Backend string
	Chip    string
}

// Open returns the backend described by opts. When hardware is disabled
// every call is simulated and succeeds.
func Open(opts Options) (Hardware, error) {
	if !opts.Enabled {
		return NewSimulated(), nil
	}

	switch opts.Backend {
	case BackendRpio, "":
		hw, err := OpenRpio()
		if err != nil {
			return nil, err
		}
		return hw, nil
	case BackendGpiocdev:
		hw, err := OpenCdev(opts.Chip)
		if err != nil {
			return nil, err
		}
		return hw, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
}

func level(b bool) int {
	if b {
		return 1
	}
	return 0
}
