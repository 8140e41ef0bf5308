package rabbitmq

import "context"

type PublisherInterface interface {
	Publish(ctx context.Context, routingKey string, priority uint8, data any) error
}

var _ PublisherInterface = (*Publisher)(nil)
