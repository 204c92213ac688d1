package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// bridgeChannel is the Redis pub/sub channel all gateway instances share.
const bridgeChannel = "chat.realtime"

// bridgeFrame is the envelope relayed between gateway instances. The origin
// ID lets each instance skip frames it published itself, since local delivery
// already happened.
type bridgeFrame struct {
	Origin string          `json:"origin"`
	Room   string          `json:"room"`
	Frame  json.RawMessage `json:"frame"`
}

// RedisBridge relays room broadcasts between gateway instances over Redis
// pub/sub, so a message sent through one instance reaches room members
// connected to another.
type RedisBridge struct {
	client     *redis.Client
	hub        *Hub
	instanceID string
	logger     *slog.Logger
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewRedisBridge creates a bridge over the given Redis client.
func NewRedisBridge(client *redis.Client, logger *slog.Logger) *RedisBridge {
	return &RedisBridge{
		client:     client,
		instanceID: uuid.New().String(),
		logger:     logger,
		done:       make(chan struct{}),
	}
}

// Publish relays a room frame to the other instances.
func (b *RedisBridge) Publish(ctx context.Context, room string, frame []byte) error {
	payload, err := json.Marshal(bridgeFrame{
		Origin: b.instanceID,
		Room:   room,
		Frame:  frame,
	})
	if err != nil {
		return fmt.Errorf("marshal bridge frame: %w", err)
	}

	if err := b.client.Publish(ctx, bridgeChannel, payload).Err(); err != nil {
		return fmt.Errorf("publish bridge frame: %w", err)
	}

	return nil
}

// Start subscribes to the bridge channel and fans received frames out to the
// hub's local rooms. It returns once the subscription is established.
func (b *RedisBridge) Start(ctx context.Context, hub *Hub) error {
	b.hub = hub

	subCtx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel

	sub := b.client.Subscribe(subCtx, bridgeChannel)
	// Receive forces the SUBSCRIBE round-trip so a broken Redis fails fast.
	if _, err := sub.Receive(ctx); err != nil {
		cancel()
		return fmt.Errorf("subscribe bridge channel: %w", err)
	}

	go func() {
		defer close(b.done)
		defer func() { _ = sub.Close() }()

		ch := sub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				b.handle(msg.Payload)
			}
		}
	}()

	return nil
}

// Close stops the subscriber goroutine.
func (b *RedisBridge) Close() {
	if b.cancel != nil {
		b.cancel()
		<-b.done
	}
}

func (b *RedisBridge) handle(payload string) {
	var frame bridgeFrame
	if err := json.Unmarshal([]byte(payload), &frame); err != nil {
		b.logger.Warn("malformed bridge frame", slog.String("error", err.Error()))
		return
	}

	// Frames we published were already delivered locally.
	if frame.Origin == b.instanceID {
		return
	}

	b.hub.DeliverLocal(frame.Room, frame.Frame)
}
