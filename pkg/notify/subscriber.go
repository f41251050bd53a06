package notify

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// PushChannel is the Redis pub/sub channel push events arrive on.
const PushChannel = "offline:push"

// Subscriber delivers push events from Redis pub/sub to a Responder.
type Subscriber struct {
	redis     *redis.Client
	responder *Responder
	logger    zerolog.Logger
}

// NewSubscriber creates a push event subscriber.
func NewSubscriber(redisClient *redis.Client, responder *Responder, logger zerolog.Logger) (*Subscriber, error) {
	if redisClient == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if responder == nil {
		return nil, fmt.Errorf("responder is required")
	}
	return &Subscriber{
		redis:     redisClient,
		responder: responder,
		logger:    logger,
	}, nil
}

// Run subscribes to the push channel and dispatches each message until
// the context is cancelled. A failed push never stops the loop.
func (s *Subscriber) Run(ctx context.Context) error {
	sub := s.redis.Subscribe(ctx, PushChannel)
	defer sub.Close()

	// Force the subscription before consuming
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe to %s: %w", PushChannel, err)
	}

	s.logger.Info().Str("channel", PushChannel).Msg("Push subscriber running")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if err := s.responder.HandlePush(ctx, []byte(msg.Payload)); err != nil {
				s.logger.Warn().Err(err).Msg("Push event handling failed")
			}
		}
	}
}
