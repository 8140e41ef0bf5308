package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"tablesync/internal/domain"
	"tablesync/internal/infra/pubsub"
	"tablesync/internal/infra/rabbitmq"

	"github.com/rs/zerolog"
)

// Sink delivers one event to a downstream audience.
type Sink interface {
	Deliver(ctx context.Context, event domain.OrderEvent) error
}

// Notifier hands every event to every sink. A failing sink does not stop the others.
type Notifier struct {
	sinks []Sink
	delay time.Duration
	log   zerolog.Logger
}

func NewNotifier(delay time.Duration, log zerolog.Logger, sinks ...Sink) *Notifier {
	return &Notifier{sinks: sinks, delay: delay, log: log}
}

var _ Dispatcher = (*Notifier)(nil)

func (n *Notifier) Dispatch(ctx context.Context, events []domain.OrderEvent) {
	for _, ev := range events {
		for _, sink := range n.sinks {
			if err := sink.Deliver(ctx, ev); err != nil {
				n.log.Error().Err(err).
					Str("kind", string(ev.Kind)).
					Str("scope", string(ev.Scope)).
					Str("order_id", ev.OrderID).
					Msg("notification delivery failed")
			}
		}
	}
}

// DispatchLater sends the event after the configured delay.
func (n *Notifier) DispatchLater(event domain.OrderEvent) {
	time.AfterFunc(n.delay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		n.Dispatch(ctx, []domain.OrderEvent{event})
	})
}

// AMQPSink publishes events with routing key "<scope>.<kind>".
type AMQPSink struct {
	pub rabbitmq.PublisherInterface
}

func NewAMQPSink(pub rabbitmq.PublisherInterface) *AMQPSink {
	return &AMQPSink{pub: pub}
}

func (s *AMQPSink) Deliver(ctx context.Context, ev domain.OrderEvent) error {
	var priority uint8
	if ev.Priority == domain.PriorityHigh {
		priority = 9
	}
	return s.pub.Publish(ctx, string(ev.Scope)+"."+string(ev.Kind), priority, ev)
}

// ChannelSink broadcasts events on the per-scope notification topic.
type ChannelSink struct {
	ch pubsub.Channel
}

func NewChannelSink(ch pubsub.Channel) *ChannelSink {
	return &ChannelSink{ch: ch}
}

func (s *ChannelSink) Deliver(ctx context.Context, ev domain.OrderEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return s.ch.Broadcast(ctx, domain.NotificationTopic(ev.Scope), payload)
}

// Notices renders the events of a single change for one scope as display
// lines. The payment notice is dropped when a refund for the same order is
// already among them.
func Notices(events []domain.OrderEvent, scope domain.Scope) []string {
	refunded := map[string]bool{}
	for _, ev := range events {
		if ev.Scope == scope && ev.Kind == domain.EventRefund {
			refunded[ev.OrderID] = true
		}
	}

	var out []string
	for _, ev := range events {
		if ev.Scope != scope {
			continue
		}
		if ev.Kind == domain.EventPayment && refunded[ev.OrderID] {
			continue
		}
		out = append(out, notice(ev))
	}
	return out
}

func notice(ev domain.OrderEvent) string {
	switch ev.Kind {
	case domain.EventNewOrder:
		return fmt.Sprintf("New order %s at table %s", ev.OrderID, ev.TableID)
	case domain.EventDiscount:
		return fmt.Sprintf("Discount of %s applied to order %s", formatMinor(ev.Amount), ev.OrderID)
	case domain.EventRefund:
		return fmt.Sprintf("Refund of %s issued for order %s", formatMinor(ev.Amount), ev.OrderID)
	case domain.EventPayment:
		return fmt.Sprintf("Payment for order %s changed from %s to %s", ev.OrderID, ev.FromStatus, ev.ToStatus)
	case domain.EventCancellation:
		return fmt.Sprintf("Order %s at table %s was cancelled", ev.OrderID, ev.TableID)
	case domain.EventCancellationReason:
		return fmt.Sprintf("Cancellation reason for order %s: %s", ev.OrderID, ev.Reason)
	case domain.EventSplitPayment:
		return fmt.Sprintf("Order %s settled with a split payment", ev.OrderID)
	case domain.EventStatus:
		return fmt.Sprintf("Order %s is now %s", ev.OrderID, ev.ToStatus)
	default:
		return fmt.Sprintf("Order %s updated", ev.OrderID)
	}
}

func formatMinor(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%d.%02d", sign, amount/100, amount%100)
}
