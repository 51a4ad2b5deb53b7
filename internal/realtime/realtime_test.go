package realtime

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/developia-II/feedback-board-backend/internal/models"
)

const eventID = "123e4567-e89b-12d3-a456-426614174000"

func sampleEvent(id string) Event {
	return FeedbackCreated(models.FeedbackItem{
		ID:        id,
		EventID:   eventID,
		EventName: "Tech Conference",
		Rating:    5,
		Text:      "great",
		CreatedAt: "2024-05-01T12:00:00.000Z",
	})
}

func receive(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case evt, ok := <-sub.Events():
		require.True(t, ok, "subscription closed")
		return evt
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func assertNoEvent(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case evt := <-sub.Events():
		t.Fatalf("unexpected event %+v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestIsValidRoom(t *testing.T) {
	assert.True(t, IsValidRoom("feedbacks"))
	assert.True(t, IsValidRoom("event:"+eventID))
	assert.True(t, IsValidRoom("event:123E4567-E89B-12D3-A456-426614174000"))
	assert.Equal(t, Room("event:"+eventID), RoomForEvent(eventID))

	assert.False(t, IsValidRoom(""))
	assert.False(t, IsValidRoom("feedback"))
	assert.False(t, IsValidRoom("event:"))
	assert.False(t, IsValidRoom("event:not-a-uuid"))
	assert.False(t, IsValidRoom("event:{"+eventID+"}"))
	assert.False(t, IsValidRoom("event:urn:uuid:"+eventID))
	// version 0 and non-RFC variant
	assert.False(t, IsValidRoom("event:123e4567-e89b-02d3-a456-426614174000"))
	assert.False(t, IsValidRoom("event:123e4567-e89b-12d3-c456-426614174000"))
}

func TestHubRoutesByRoom(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub()

	global, err := hub.Subscribe(ctx)
	require.NoError(t, err)
	require.NoError(t, global.Join("feedbacks"))

	scoped, err := hub.Subscribe(ctx)
	require.NoError(t, err)
	require.NoError(t, scoped.Join("event:"+eventID))
	require.ErrorIs(t, scoped.Join("event:nope"), ErrInvalidRoom)

	hub.Broadcast(RoomFeedbacks, sampleEvent("a"))
	assert.Equal(t, "a", receive(t, global).Payload.ID)
	assertNoEvent(t, scoped)

	hub.Broadcast(RoomForEvent(eventID), sampleEvent("b"))
	evt := receive(t, scoped)
	assert.Equal(t, EventFeedbackCreated, evt.Type)
	assert.Equal(t, "b", evt.Payload.ID)
	assertNoEvent(t, global)

	scoped.Leave("event:" + eventID)
	hub.Broadcast(RoomForEvent(eventID), sampleEvent("c"))
	assertNoEvent(t, scoped)
}

func TestHubClosesSubscriptionOnCancel(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	sub, err := hub.Subscribe(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, hub.Subscribers())

	cancel()
	select {
	case _, ok := <-sub.Events():
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("subscription not closed")
	}
	assert.Equal(t, 0, hub.Subscribers())
}

func TestHubShutdown(t *testing.T) {
	hub := NewHub()
	sub, err := hub.Subscribe(context.Background())
	require.NoError(t, err)

	hub.Shutdown()
	_, ok := <-sub.Events()
	assert.False(t, ok)

	_, err = hub.Subscribe(context.Background())
	require.ErrorIs(t, err, ErrHubClosed)
	hub.Broadcast(RoomFeedbacks, sampleEvent("late"))
}

func TestHubDropsWhenSubscriberLags(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub()
	sub, err := hub.Subscribe(ctx)
	require.NoError(t, err)
	require.NoError(t, sub.Join("feedbacks"))

	for i := 0; i < subscriberBuffer+10; i++ {
		hub.Broadcast(RoomFeedbacks, sampleEvent("x"))
	}
	assert.Len(t, sub.Events(), subscriberBuffer)
}

func TestRegistry(t *testing.T) {
	r := &Registry{}
	assert.Nil(t, r.Get())

	hub := r.GetOrInit()
	require.NotNil(t, hub)
	assert.Same(t, hub, r.GetOrInit())
	assert.Same(t, hub, r.Get())

	other := NewHub()
	r.Set(other)
	assert.Same(t, other, r.Get())
}

func TestHubPublisher(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := &Registry{}
	p := NewHubPublisher(r)
	require.NoError(t, p.Publish(ctx, RoomFeedbacks, sampleEvent("before")))

	var nilPublisher *HubPublisher
	require.NoError(t, nilPublisher.Publish(ctx, RoomFeedbacks, sampleEvent("nil")))

	sub, err := r.GetOrInit().Subscribe(ctx)
	require.NoError(t, err)
	require.NoError(t, sub.Join("feedbacks"))

	require.NoError(t, p.Publish(ctx, RoomFeedbacks, sampleEvent("after")))
	assert.Equal(t, "after", receive(t, sub).Payload.ID)
}

func TestRedisRelay(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := &Registry{}
	sub, err := registry.GetOrInit().Subscribe(ctx)
	require.NoError(t, err)
	require.NoError(t, sub.Join("event:"+eventID))

	ready := make(chan struct{})
	done := make(chan error, 1)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	go func() { done <- RelayFromRedis(ctx, client, "", registry, logger, ready) }()

	select {
	case <-ready:
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not subscribe")
	}

	p := NewRedisPublisher(client, "")
	require.NoError(t, p.Publish(ctx, RoomForEvent(eventID), sampleEvent("via-redis")))
	require.NoError(t, client.Publish(ctx, DefaultRedisChannel, "not json").Err())
	require.NoError(t, p.Publish(ctx, Room("event:bogus"), sampleEvent("bogus")))

	evt := receive(t, sub)
	assert.Equal(t, "via-redis", evt.Payload.ID)
	assert.Equal(t, "Tech Conference", evt.Payload.EventName)
	assertNoEvent(t, sub)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop")
	}
}
