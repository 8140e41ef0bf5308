package pubsub

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Redis is a Channel backed by Redis PUBLISH/SUBSCRIBE.
type Redis struct {
	rdb *redis.Client
	log zerolog.Logger
}

func NewRedis(rdb *redis.Client, log zerolog.Logger) *Redis {
	return &Redis{rdb: rdb, log: log}
}

var _ Channel = (*Redis)(nil)

func (r *Redis) Broadcast(ctx context.Context, topic string, payload []byte) error {
	if err := r.rdb.Publish(ctx, topic, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

func (r *Redis) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	ps := r.rdb.Subscribe(ctx, topic)
	// Wait for the subscribe confirmation so no broadcast after return is missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe to %s: %w", topic, err)
	}

	sub := &redisSub{ps: ps, out: make(chan []byte, memoryBuffer), done: make(chan struct{})}
	go sub.pump()
	r.log.Debug().Str("topic", topic).Msg("subscribed")
	return sub, nil
}

type redisSub struct {
	ps   *redis.PubSub
	out  chan []byte
	done chan struct{}
	once sync.Once
	err  error
}

func (s *redisSub) pump() {
	defer close(s.out)
	for msg := range s.ps.Channel() {
		select {
		case s.out <- []byte(msg.Payload):
		case <-s.done:
			return
		}
	}
}

func (s *redisSub) Messages() <-chan []byte { return s.out }

func (s *redisSub) Unsubscribe() error {
	s.once.Do(func() {
		close(s.done)
		s.err = s.ps.Close()
	})
	return s.err
}
