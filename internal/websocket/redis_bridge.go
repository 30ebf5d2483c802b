package websocket

import (
	"context"
	"strings"

	"cinecritic/internal/events"

	"go.uber.org/zap"
)

// RedisBridge fans broadcasts out across instances. Broadcast publishes to
// the group's channel; Run relays everything received on group channels into
// the local hub, including this instance's own publications.
type RedisBridge struct {
	publisher  events.Publisher
	subscriber events.Subscriber
	hub        *Hub
	logger     *zap.Logger
}

func NewRedisBridge(publisher events.Publisher, subscriber events.Subscriber, hub *Hub, logger *zap.Logger) *RedisBridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBridge{publisher: publisher, subscriber: subscriber, hub: hub, logger: logger}
}

// Broadcast publishes payload for group. If the publish fails the frame is
// still delivered to this instance's sessions.
func (b *RedisBridge) Broadcast(ctx context.Context, group string, payload []byte) error {
	if err := b.publisher.Publish(ctx, events.GroupChannel(group), payload); err != nil {
		b.logger.Warn("redis publish failed, delivering locally",
			zap.String("group", group),
			zap.Error(err))
		return b.hub.Broadcast(ctx, group, payload)
	}
	return nil
}

// Run blocks relaying group channels until ctx is done or the subscription fails.
func (b *RedisBridge) Run(ctx context.Context, groups []string) error {
	channels := make([]string, 0, len(groups))
	for _, g := range groups {
		channels = append(channels, events.GroupChannel(g))
	}
	return b.subscriber.Subscribe(ctx, channels, func(channel string, payload []byte) {
		group := strings.TrimPrefix(channel, events.ChannelPrefixGroup)
		if err := b.hub.Broadcast(ctx, group, payload); err != nil {
			b.logger.Debug("relay interrupted", zap.String("group", group), zap.Error(err))
		}
	})
}
