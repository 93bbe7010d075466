// Package fanout spreads presence pushes across server instances. Every
// push is delivered to the local hub at once and published to a shared
// broker; each instance replays what other instances published.
package fanout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"skedit/internal/presence"
	"skedit/pkg/logger"
	"skedit/pkg/metrics"

	"github.com/google/uuid"
)

const (
	TargetRoom       = "room"
	TargetUser       = "user"
	TargetDisconnect = "disconnect"

	publishTimeout = 2 * time.Second
)

var ErrUnknownTarget = errors.New("unknown envelope target")

// Envelope is the broker message for one push.
type Envelope struct {
	Target       string          `json:"target"`
	Key          string          `json:"key"`
	ExceptConnID string          `json:"except_conn_id,omitempty"`
	Origin       string          `json:"origin"`
	Event        string          `json:"event,omitempty"`
	Payload      json.RawMessage `json:"payload,omitempty"`
}

// Transport is a broker binding. Start blocks until the subscription is
// live, then delivers in the background until Close.
type Transport interface {
	Name() string
	Publish(ctx context.Context, env Envelope) error
	Start(ctx context.Context, deliver func(Envelope)) error
	Close() error
}

// Backplane implements presence.Pusher on top of a Transport.
type Backplane struct {
	hub       *presence.Hub
	transport Transport
	origin    string
	log       *logger.Logger
	metrics   *metrics.Metrics
}

var _ presence.Pusher = (*Backplane)(nil)

func NewBackplane(hub *presence.Hub, transport Transport, log *logger.Logger, m *metrics.Metrics) *Backplane {
	return &Backplane{
		hub:       hub,
		transport: transport,
		origin:    uuid.NewString(),
		log:       &logger.Logger{Logger: log.Component("fanout").With("driver", transport.Name())},
		metrics:   m,
	}
}

func (b *Backplane) Origin() string {
	return b.origin
}

func (b *Backplane) Start(ctx context.Context) error {
	if err := b.transport.Start(ctx, b.receive); err != nil {
		return fmt.Errorf("failed to start %s backplane: %w", b.transport.Name(), err)
	}
	b.log.Info("Presence backplane started", "origin", b.origin)
	return nil
}

func (b *Backplane) Stop() {
	if err := b.transport.Close(); err != nil {
		b.log.Warn("Failed to close presence backplane", "error", err)
		return
	}
	b.log.Info("Presence backplane stopped")
}

func (b *Backplane) BroadcastToRoom(room string, frame presence.Frame, exceptConnID string) {
	payload, ok := b.encode(frame)
	if !ok {
		return
	}
	b.hub.DeliverToRoom(room, frame.Event, payload, exceptConnID)
	b.publish(Envelope{
		Target:       TargetRoom,
		Key:          room,
		ExceptConnID: exceptConnID,
		Event:        frame.Event,
		Payload:      payload,
	})
}

func (b *Backplane) BroadcastToUser(userID string, frame presence.Frame) {
	payload, ok := b.encode(frame)
	if !ok {
		return
	}
	b.hub.DeliverToUser(userID, frame.Event, payload)
	b.publish(Envelope{
		Target:  TargetUser,
		Key:     userID,
		Event:   frame.Event,
		Payload: payload,
	})
}

// DisconnectUser closes the user's connections everywhere and returns the
// number closed on this instance.
func (b *Backplane) DisconnectUser(userID string) int {
	n := b.hub.DisconnectUser(userID)
	b.publish(Envelope{Target: TargetDisconnect, Key: userID})
	return n
}

func (b *Backplane) encode(frame presence.Frame) ([]byte, bool) {
	payload, err := json.Marshal(frame)
	if err != nil {
		b.metrics.FanoutError(b.transport.Name(), "encode")
		b.log.Error("Failed to encode frame", "event", frame.Event, "error", err)
		return nil, false
	}
	return payload, true
}

func (b *Backplane) publish(env Envelope) {
	env.Origin = b.origin
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := b.transport.Publish(ctx, env); err != nil {
		b.metrics.FanoutError(b.transport.Name(), "publish")
		b.log.Warn("Failed to publish presence event",
			"target", env.Target,
			"key", env.Key,
			"event", env.Event,
			"error", err,
		)
	}
}

// receive replays a remote push on the local hub. Own messages were
// already delivered when they were published.
func (b *Backplane) receive(env Envelope) {
	if env.Origin == b.origin {
		return
	}
	if err := deliver(b.hub, env); err != nil {
		b.metrics.FanoutError(b.transport.Name(), "deliver")
		b.log.Warn("Dropped presence envelope", "target", env.Target, "origin", env.Origin, "error", err)
	}
}

func deliver(hub *presence.Hub, env Envelope) error {
	switch env.Target {
	case TargetRoom:
		hub.DeliverToRoom(env.Key, env.Event, env.Payload, env.ExceptConnID)
	case TargetUser:
		hub.DeliverToUser(env.Key, env.Event, env.Payload)
	case TargetDisconnect:
		hub.DisconnectUser(env.Key)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownTarget, env.Target)
	}
	return nil
}
