package store

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"
)

// Bridge replicates hub events between instances over a Redis pub/sub
// channel. Locally-born events are republished with this instance's origin;
// inbound events from other origins are injected into the local hub so
// subscribers on every instance converge. Delivery is best-effort and
// eventual; the store itself stays the single source of truth.
type Bridge struct {
	client   *redis.Client
	channel  string
	hub      *Hub
	instance string
}

func NewBridge(client *redis.Client, channel, instanceID string, hub *Hub) *Bridge {
	return &Bridge{client: client, channel: channel, hub: hub, instance: instanceID}
}

// Start runs the outbound and inbound pumps until ctx ends.
func (b *Bridge) Start(ctx context.Context) {
	go b.publishLoop(ctx)
	go b.subscribeLoop(ctx)
}

func (b *Bridge) publishLoop(ctx context.Context) {
	events := b.hub.Subscribe(ctx)
	for evt := range events {
		if evt.Origin != "" {
			// Already traveled once; republishing would loop.
			continue
		}
		evt.Origin = b.instance
		payload, err := json.Marshal(evt)
		if err != nil {
			continue
		}
		if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
			log.Printf("event bridge publish error: %v", err)
		}
	}
}

func (b *Bridge) subscribeLoop(ctx context.Context) {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.Channel():
			if !ok {
				return
			}
			var evt Event
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
				log.Printf("event bridge decode error: %v", err)
				continue
			}
			if evt.Origin == b.instance {
				continue
			}
			b.hub.Publish(evt)
		}
	}
}
