package gpio

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var slog zerolog.Logger

func init() {
	slog = log.With().Str("component", "gpio").Logger()
}

// Simulated is used when GPIO is disabled. Nothing touches real pins; every
// call succeeds and output levels are logged.
type Simulated struct {
	mu      sync.Mutex
	outputs map[uint]bool
}

func NewSimulated() *Simulated {
	slog.Debug().Msg("GPIO will be simulated")
	return &Simulated{
		outputs: make(map[uint]bool),
	}
}

func (s *Simulated) printStates() {
	ids := make([]uint, 0, len(s.outputs))
	for id := range s.outputs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var str string
	for _, id := range ids {
		if s.outputs[id] {
			str += "#"
		} else {
			str += " "
		}
	}
	slog.Debug().Str("pins", str).Msg("GPIO")
}

func (s *Simulated) ValidPin(id uint) bool {
	return true
}

func (s *Simulated) ConfigureOutput(id uint, level bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.outputs[id] = level
	return nil
}

func (s *Simulated) SetLevel(id uint, level bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.outputs[id] = level
	s.printStates()
	return nil
}

func (s *Simulated) ConfigureInput(id uint) error {
	return nil
}

func (s *Simulated) SetDebounce(id uint, window time.Duration) error {
	return nil
}

func (s *Simulated) MapInterrupt(id uint) (Handle, error) {
	return Handle(id), nil
}

func (s *Simulated) OnRisingEdge(h Handle, fn EdgeHandler) error {
	return nil
}

func (s *Simulated) Unregister(h Handle) error {
	return nil
}

func (s *Simulated) Release(id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.outputs, id)
	return nil
}

func (s *Simulated) Close() error {
	slog.Debug().Msg("Simulated GPIO closing")
	return nil
}
