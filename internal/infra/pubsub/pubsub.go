// Package pubsub provides named-topic broadcast with ordered per-topic
// delivery. Subscribers receive raw payloads on a channel that is closed
// once the subscription ends.
package pubsub

import (
	"context"
	"errors"
)

var ErrClosed = errors.New("pubsub: channel closed")

type Subscription interface {
	Messages() <-chan []byte
	// Unsubscribe is safe to call more than once.
	Unsubscribe() error
}

type Channel interface {
	Broadcast(ctx context.Context, topic string, payload []byte) error
	Subscribe(ctx context.Context, topic string) (Subscription, error)
}
