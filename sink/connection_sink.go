package sink

import (
	"context"
	"fmt"
	"sync"

	"wallet-chat/domain/event"
	"wallet-chat/errors"
)

// ConnectionSink buffers the encoded frames of one realtime connection until
// its write pump sends them. Consume waits at most until ctx is done, so a
// slow peer only loses its own events.
type ConnectionSink struct {
	frames    chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func NewConnectionSink(bufferSize int) *ConnectionSink {
	return &ConnectionSink{
		frames: make(chan []byte, bufferSize),
		done:   make(chan struct{}),
	}
}

func (s *ConnectionSink) Consume(ctx context.Context, e event.DomainEvent) error {
	frame, err := event.Encode(e)
	if err != nil {
		return fmt.Errorf("encode %s: %w", e.Type(), err)
	}
	select {
	case <-s.done:
		return nil
	default:
	}
	select {
	case s.frames <- frame:
		return nil
	case <-s.done:
		return nil
	case <-ctx.Done():
		return errors.ErrSinkFull
	}
}

// Frames is drained by the connection's write pump.
func (s *ConnectionSink) Frames() <-chan []byte { return s.frames }

// Done is closed once the connection is gone.
func (s *ConnectionSink) Done() <-chan struct{} { return s.done }

// Close stops accepting frames. It is safe to call more than once.
func (s *ConnectionSink) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}
