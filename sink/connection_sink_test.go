package sink

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"wallet-chat/domain/event"
	"wallet-chat/errors"

	"github.com/stretchr/testify/require"
)

func TestConnectionSink_Encodes_Frames(t *testing.T) {
	req := require.New(t)
	sink := NewConnectionSink(1)

	// When an event is consumed
	err := sink.Consume(context.Background(), event.RoomJoined{Room: "room-1"})
	req.NoError(err)

	// Then its frame is waiting with the type and payload
	frame := <-sink.Frames()
	var envelope event.Envelope
	req.NoError(json.Unmarshal(frame, &envelope))
	req.Equal(event.RoomJoinedType, envelope.Type)
	req.JSONEq(`{"room_id":"room-1"}`, string(envelope.Payload))
}

func TestConnectionSink_Full_Buffer_Drops(t *testing.T) {
	req := require.New(t)
	sink := NewConnectionSink(1)
	req.NoError(sink.Consume(context.Background(), event.RoomJoined{Room: "a"}))

	// Given the buffer is full and nobody drains it
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	// When another event arrives
	err := sink.Consume(ctx, event.RoomJoined{Room: "b"})

	// Then it is dropped once the deadline passes
	req.ErrorIs(err, errors.ErrSinkFull)
	req.Len(sink.Frames(), 1)
}

func TestConnectionSink_Closed_Ignores_Events(t *testing.T) {
	req := require.New(t)
	sink := NewConnectionSink(0)

	// When the connection is gone
	sink.Close()
	sink.Close()

	// Then consuming neither blocks nor fails
	req.NoError(sink.Consume(context.Background(), event.RoomLeft{Room: "a"}))
	select {
	case <-sink.Done():
	default:
		req.Fail("Done should be closed")
	}
}
