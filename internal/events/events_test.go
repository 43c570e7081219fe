package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvent_Topic(t *testing.T) {
	t.Parallel()

	e := New(MessageCreated, ScopeChannel, "c1", nil)
	assert.Equal(t, "channel:c1", e.Topic())
	assert.False(t, e.At.IsZero())
}

func TestEvent_EncodeDecode(t *testing.T) {
	t.Parallel()

	e := New(MemberJoined, ScopeServer, "s1", map[string]string{"user_id": "u1"})
	payload, err := e.Encode()
	require.NoError(t, err)

	got, err := Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, MemberJoined, got.Type)
	assert.Equal(t, "server:s1", got.Topic())
	assert.Equal(t, map[string]interface{}{"user_id": "u1"}, got.Data)
}

func TestDecode_Invalid(t *testing.T) {
	t.Parallel()

	_, err := Decode([]byte("not json"))
	assert.Error(t, err)
}

func TestHub_PublishByTopic(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	hub := NewHub()
	defer hub.Close()

	chanSub := hub.Subscribe("channel:c1", "a")
	otherSub := hub.Subscribe("channel:c2", "b")

	require.NoError(t, hub.Publish(ctx, New(MessageCreated, ScopeChannel, "c1", nil)))

	select {
	case e := <-chanSub.Events:
		assert.Equal(t, MessageCreated, e.Type)
	default:
		t.Fatal("expected an event for channel:c1")
	}
	assert.Empty(t, otherSub.Events)
}

func TestHub_FullBufferDropsEvents(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	hub := NewHub()
	sub := hub.Subscribe("user:u1", "a")
	for i := 0; i < subscriberBuffer+10; i++ {
		require.NoError(t, hub.Publish(ctx, New(UnreadAcknowledged, ScopeUser, "u1", nil)))
	}
	assert.Len(t, sub.Events, subscriberBuffer)
}

func TestHub_Unsubscribe(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	sub := hub.Subscribe("server:s1", "a")
	assert.Equal(t, 1, hub.SubscriberCount("server:s1"))

	hub.Unsubscribe("server:s1", "a")
	assert.Equal(t, 0, hub.SubscriberCount("server:s1"))

	_, open := <-sub.Events
	assert.False(t, open)
	hub.Unsubscribe("server:s1", "a")
}

func TestHub_Close(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	sub := hub.Subscribe("server:s1", "a")
	hub.Close()

	<-sub.Done
	late := hub.Subscribe("server:s1", "b")
	<-late.Done
	assert.Equal(t, 0, hub.SubscriberCount("server:s1"))
}

func TestNop(t *testing.T) {
	t.Parallel()

	var p Publisher = Nop{}
	assert.NoError(t, p.Publish(context.Background(), New(ServerDeleted, ScopeServer, "s", nil)))
}
