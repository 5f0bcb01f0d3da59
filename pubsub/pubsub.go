package pubsub

import (
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var plog zerolog.Logger

func init() {
	plog = log.With().Str("component", "pubsub").Logger()
}

// DefaultBuffer is how many messages a subscriber may fall behind before
// messages to it are dropped.
const DefaultBuffer = 16

type SubscriptionID int64

// Pubsub fans messages out to subscribers without ever blocking the
// publisher.
type Pubsub[T any] struct {
	nextID      SubscriptionID
	subscribers map[SubscriptionID]chan T
	buffer      int
	mu          sync.RWMutex
}

func New[T any]() *Pubsub[T] {
	return NewBuffered[T](DefaultBuffer)
}

func NewBuffered[T any](buffer int) *Pubsub[T] {
	return &Pubsub[T]{
		subscribers: make(map[SubscriptionID]chan T),
		buffer:      buffer,
	}
}

func (ps *Pubsub[T]) Subscribe() (SubscriptionID, <-chan T) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	ch := make(chan T, ps.buffer)
	id := ps.nextID
	ps.subscribers[id] = ch
	ps.nextID += 1

	return id, ch
}

func (ps *Pubsub[T]) Unsubscribe(id SubscriptionID) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	ch, ok := ps.subscribers[id]
	if !ok {
		return
	}

	delete(ps.subscribers, id)
	close(ch)
}

func (ps *Pubsub[T]) Publish(msg T) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	for id, ch := range ps.subscribers {
		select {
		case ch <- msg:
		default:
			plog.Warn().
				Int64("subscription_id", int64(id)).
				Interface("message", msg).
				Msg("Message dropped, channel full")
		}
	}
}

// Len is the number of live subscriptions.
func (ps *Pubsub[T]) Len() int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	return len(ps.subscribers)
}
