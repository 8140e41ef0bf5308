package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"tablesync/internal/domain"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

type ChangeHandler func(ctx context.Context, change domain.OrderChange) error

// OrderFeed consumes the orders row-change topic. Offsets are committed after
// the handler returns, so a crash before commit replays the event.
type OrderFeed struct {
	reader *kafka.Reader
	log    zerolog.Logger
}

func NewOrderFeed(brokers []string, topic, groupID string, log zerolog.Logger) *OrderFeed {
	return &OrderFeed{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 1,
			MaxBytes: 10e6,
		}),
		log: log,
	}
}

// Run blocks until ctx is cancelled or the reader fails.
func (f *OrderFeed) Run(ctx context.Context, handle ChangeHandler) error {
	for {
		msg, err := f.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return fmt.Errorf("fetch order change: %w", err)
		}

		change, err := DecodeChange(msg.Value)
		if err != nil {
			f.log.Error().Err(err).Int("partition", msg.Partition).Int64("offset", msg.Offset).Msg("dropping undecodable order change")
		} else if err := handle(ctx, change); err != nil {
			f.log.Error().Err(err).Str("type", string(change.Type)).Int64("offset", msg.Offset).Msg("order change handler failed")
		}

		if err := f.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("commit order change: %w", err)
		}
	}
}

func (f *OrderFeed) Close() error {
	return f.reader.Close()
}

// DecodeChange parses one feed message and checks it carries the rows its type needs.
func DecodeChange(value []byte) (domain.OrderChange, error) {
	var change domain.OrderChange
	if err := json.Unmarshal(value, &change); err != nil {
		return change, fmt.Errorf("decode order change: %w", err)
	}

	switch change.Type {
	case domain.ChangeInsert:
		if change.New == nil {
			return change, errors.New("insert change without new row")
		}
	case domain.ChangeUpdate:
		if change.New == nil || change.Old == nil {
			return change, errors.New("update change without old and new rows")
		}
	case domain.ChangeDelete:
	default:
		return change, fmt.Errorf("unknown change type %q", change.Type)
	}

	if change.RestaurantID == "" && change.New != nil {
		change.RestaurantID = change.New.RestaurantID
	}
	return change, nil
}
