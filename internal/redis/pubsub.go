package redis

import (
	"context"
	"fmt"
	"strings"

	cinecritic_errors "cinecritic/pkg/errors"

	goredis "github.com/redis/go-redis/v9"
)

// Hub fan-out key pattern:
// - channel:group:{name} - one hub frame per message, no persistence

// Publisher sends hub frames to every API instance subscribed to a group
// channel.
type Publisher struct {
	client *goredis.Client
}

func NewPublisher(client *goredis.Client) *Publisher {
	return &Publisher{client: client}
}

func (p *Publisher) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := p.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("%w: publish on %s: %v", cinecritic_errors.ErrTransport, channel, err)
	}
	return nil
}

type Subscriber struct {
	client *goredis.Client
}

func NewSubscriber(client *goredis.Client) *Subscriber {
	return &Subscriber{client: client}
}

// Subscribe hands every message received on channels to handler until ctx is
// done. Channels containing glob characters are subscribed as patterns.
func (s *Subscriber) Subscribe(ctx context.Context, channels []string, handler func(channel string, payload []byte)) error {
	var exact, patterns []string
	for _, ch := range channels {
		if strings.ContainsAny(ch, "*?[") {
			patterns = append(patterns, ch)
		} else {
			exact = append(exact, ch)
		}
	}

	sub := s.client.Subscribe(ctx, exact...)
	defer sub.Close()
	if len(patterns) > 0 {
		if err := sub.PSubscribe(ctx, patterns...); err != nil {
			return fmt.Errorf("%w: psubscribe: %v", cinecritic_errors.ErrTransport, err)
		}
	}

	for {
		msg, err := sub.ReceiveMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: redis subscription: %v", cinecritic_errors.ErrTransport, err)
		}
		handler(msg.Channel, []byte(msg.Payload))
	}
}
