package fanout

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"skedit/internal/presence"
	"skedit/pkg/auth"
	"skedit/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bus is an in-process broker shared by several transports.
type bus struct {
	mu          sync.Mutex
	subscribers []func(Envelope)
	published   []Envelope
}

type busTransport struct {
	bus *bus
}

func (t *busTransport) Name() string { return "bus" }

func (t *busTransport) Publish(ctx context.Context, env Envelope) error {
	t.bus.mu.Lock()
	subs := append([]func(Envelope){}, t.bus.subscribers...)
	t.bus.published = append(t.bus.published, env)
	t.bus.mu.Unlock()
	for _, deliver := range subs {
		deliver(env)
	}
	return nil
}

func (t *busTransport) Start(ctx context.Context, deliver func(Envelope)) error {
	t.bus.mu.Lock()
	defer t.bus.mu.Unlock()
	t.bus.subscribers = append(t.bus.subscribers, deliver)
	return nil
}

func (t *busTransport) Close() error { return nil }

func connect(hub *presence.Hub, userID, room string) *presence.Conn {
	c := presence.NewConn(&auth.Principal{UserID: userID}, 8)
	hub.Register(c)
	if room != "" {
		hub.Join(c, room)
	}
	return c
}

func next(t *testing.T, c *presence.Conn) presence.Frame {
	t.Helper()
	select {
	case payload := <-c.Send():
		var f presence.Frame
		require.NoError(t, json.Unmarshal(payload, &f))
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("no frame delivered")
		return presence.Frame{}
	}
}

func empty(t *testing.T, c *presence.Conn) {
	t.Helper()
	select {
	case payload := <-c.Send():
		t.Fatalf("unexpected frame %s", payload)
	case <-time.After(50 * time.Millisecond):
	}
}

func newPair(t *testing.T, transport func() Transport) (*Backplane, *presence.Hub, *Backplane, *presence.Hub) {
	t.Helper()
	log := logger.Discard()
	hubA := presence.NewHub(log, nil)
	hubB := presence.NewHub(log, nil)
	a := NewBackplane(hubA, transport(), log, nil)
	b := NewBackplane(hubB, transport(), log, nil)
	require.NoError(t, a.Start(context.Background()))
	require.NoError(t, b.Start(context.Background()))
	t.Cleanup(func() {
		a.Stop()
		b.Stop()
	})
	return a, hubA, b, hubB
}

func TestBackplane_RoomPushReachesEveryInstanceOnce(t *testing.T) {
	shared := &bus{}
	a, hubA, _, hubB := newPair(t, func() Transport { return &busTransport{bus: shared} })

	sender := connect(hubA, "alice", "r1")
	localPeer := connect(hubA, "bob", "r1")
	remotePeer := connect(hubB, "carol", "r1")

	a.BroadcastToRoom("r1", presence.Frame{Event: presence.EventPointerUpdate}, sender.ID())

	assert.Equal(t, presence.EventPointerUpdate, next(t, localPeer).Event)
	assert.Equal(t, presence.EventPointerUpdate, next(t, remotePeer).Event)
	empty(t, sender)
	empty(t, localPeer)
}

func TestBackplane_UserPushAndDisconnect(t *testing.T) {
	shared := &bus{}
	a, hubA, _, hubB := newPair(t, func() Transport { return &busTransport{bus: shared} })

	local := connect(hubA, "alice", "")
	remote := connect(hubB, "alice", "")

	a.BroadcastToUser("alice", presence.NewLockEvent(presence.LockForceTaken, "r1", "root", nil))
	assert.Equal(t, presence.EventLockEvent, next(t, local).Event)
	assert.Equal(t, presence.EventLockEvent, next(t, remote).Event)

	assert.Equal(t, 1, a.DisconnectUser("alice"))
	select {
	case <-remote.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("remote connection not closed")
	}
}

func TestBackplane_IgnoresUnknownTargets(t *testing.T) {
	hub := presence.NewHub(logger.Discard(), nil)
	assert.ErrorIs(t, deliver(hub, Envelope{Target: "everyone"}), ErrUnknownTarget)
}

func TestRedisBackplane_RoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	newClient := func() *redis.Client {
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		return client
	}
	log := logger.Discard()

	a, hubA, _, hubB := newPair(t, func() Transport {
		return NewRedisTransport(newClient(), "skedit:presence", log)
	})

	sender := connect(hubA, "alice", "r1")
	remote := connect(hubB, "bob", "r1")

	a.BroadcastToRoom("r1", presence.NewLockEvent(presence.LockAcquired, "r1", "alice", nil), "")

	frame := next(t, remote)
	assert.Equal(t, presence.EventLockEvent, frame.Event)
	data, ok := frame.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, presence.LockAcquired, data["type"])

	assert.Equal(t, presence.EventLockEvent, next(t, sender).Event)
	empty(t, sender)
}
