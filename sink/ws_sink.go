package sink

import (
	"context"
	"sync"

	"syncx/domain/event"
	"syncx/errors"

	"github.com/google/uuid"
)

// WebSocketSink is the connection handle the router writes to. Events wait
// in a FIFO buffer drained by the socket writer goroutine, so one connection
// sees events in emission order.
type WebSocketSink struct {
	id     string
	events chan event.Event
	done   chan struct{}
	once   sync.Once
}

func NewWebSocketSink(bufferSize int) *WebSocketSink {
	return &WebSocketSink{
		id:     uuid.NewString(),
		events: make(chan event.Event, bufferSize),
		done:   make(chan struct{}),
	}
}

func (s *WebSocketSink) ID() string { return s.id }

// Consume is called by the router. It never blocks: a full buffer drops
// the event with ErrSinkFull.
func (s *WebSocketSink) Consume(ctx context.Context, e event.Event) error {
	select {
	case <-s.done:
		return errors.ErrSinkClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	select {
	case s.events <- e:
		return nil
	default:
		return errors.ErrSinkFull
	}
}

// Events is read by the writer goroutine.
func (s *WebSocketSink) Events() <-chan event.Event { return s.events }

// Done is closed once the sink is closed.
func (s *WebSocketSink) Done() <-chan struct{} { return s.done }

// Close stops accepting events. Safe to call more than once.
func (s *WebSocketSink) Close() {
	s.once.Do(func() { close(s.done) })
}
