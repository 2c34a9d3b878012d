package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sharetube/watchparty/internal/protocol"
)

const channelPrefix = "watchparty:room:"

// Envelope is what travels between instances. Origin lets an instance skip
// the broadcasts it already delivered locally.
type Envelope struct {
	Origin  string          `json:"origin"`
	RoomId  string          `json:"roomId"`
	Type    protocol.Type   `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type Handler interface {
	DeliverRemote(ctx context.Context, roomId string, out *protocol.Output)
}

// Relay fans committed room broadcasts out to the other server instances over
// redis pub/sub.
type Relay struct {
	rc         *redis.Client
	instanceId string
	logger     *slog.Logger
	ready      chan struct{}
}

func New(rc *redis.Client, logger *slog.Logger) *Relay {
	return &Relay{
		rc:         rc,
		instanceId: uuid.NewString(),
		logger:     logger,
		ready:      make(chan struct{}),
	}
}

func (r *Relay) InstanceId() string {
	return r.instanceId
}

func (r *Relay) getRoomChannel(roomId string) string {
	return channelPrefix + roomId
}

func (r *Relay) Publish(ctx context.Context, roomId string, out *protocol.Output) error {
	payload, err := json.Marshal(out.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	data, err := json.Marshal(Envelope{
		Origin:  r.instanceId,
		RoomId:  roomId,
		Type:    out.Type,
		Payload: payload,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	if err := r.rc.Publish(ctx, r.getRoomChannel(roomId), data).Err(); err != nil {
		return fmt.Errorf("failed to publish: %w", err)
	}

	return nil
}

// Ready is closed once the subscription is live.
func (r *Relay) Ready() <-chan struct{} {
	return r.ready
}

// Run delivers envelopes published by other instances to h until ctx is done.
func (r *Relay) Run(ctx context.Context, h Handler) error {
	pubsub := r.rc.PSubscribe(ctx, channelPrefix+"*")
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	close(r.ready)
	r.logger.InfoContext(ctx, "relay subscribed", "instance_id", r.instanceId)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.handleMessage(ctx, h, msg)
		}
	}
}

func (r *Relay) handleMessage(ctx context.Context, h Handler, msg *redis.Message) {
	var env Envelope
	if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
		r.logger.WarnContext(ctx, "failed to decode relay envelope", "channel", msg.Channel, "error", err)
		return
	}

	if env.Origin == r.instanceId {
		return
	}

	if env.RoomId == "" {
		env.RoomId = strings.TrimPrefix(msg.Channel, channelPrefix)
	}

	h.DeliverRemote(ctx, env.RoomId, &protocol.Output{
		Type:    env.Type,
		Payload: env.Payload,
	})
}
