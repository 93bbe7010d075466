package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageBuilder(t *testing.T) {
	msg, err := NewMessage().
		WithKey("room-1").
		WithValue(map[string]string{"event": "lock_event"}).
		WithEventType("room").
		WithSource("instance-a").
		Build()
	require.NoError(t, err)

	assert.Equal(t, "room-1", msg.Key)
	assert.NotEmpty(t, msg.GetEventID())
	assert.Equal(t, "room", msg.GetEventType())
	assert.Equal(t, "instance-a", msg.GetSource())

	var decoded map[string]string
	require.NoError(t, msg.DecodeValue(&decoded))
	assert.Equal(t, "lock_event", decoded["event"])
}

func TestMessageBuilder_EncodingError(t *testing.T) {
	_, err := NewMessage().WithKey("k").WithValue(make(chan int)).Build()
	assert.Error(t, err)
}

func TestFromKafka_CopiesHeaders(t *testing.T) {
	built, err := NewMessage().WithKey("u1").WithValue("x").WithEventType("user").Build()
	require.NoError(t, err)

	round := fromKafka(toKafka(built))
	assert.Equal(t, built.Key, round.Key)
	assert.Equal(t, built.GetEventID(), round.GetEventID())
	assert.Equal(t, "user", round.GetEventType())
}
