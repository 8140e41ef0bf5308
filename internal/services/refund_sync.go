package services

import (
	"context"
	"time"

	"tablesync/internal/domain"
	"tablesync/internal/repository"

	"github.com/rs/zerolog"
)

const refundSyncBuffer = 256

// RefundSyncQueue brings payment rows back in line with their order's
// refund_amount after a failed secondary write. Each attempt re-reads the
// order, so a replay never applies an older total over a newer one.
type RefundSyncQueue struct {
	orders      repository.OrderRepository
	payments    repository.PaymentRepository
	jobs        chan string
	maxAttempts int
	baseDelay   time.Duration
	log         zerolog.Logger
}

func NewRefundSyncQueue(o repository.OrderRepository, p repository.PaymentRepository, maxAttempts int, baseDelay time.Duration, log zerolog.Logger) *RefundSyncQueue {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &RefundSyncQueue{
		orders:      o,
		payments:    p,
		jobs:        make(chan string, refundSyncBuffer),
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		log:         log,
	}
}

var _ RefundSyncer = (*RefundSyncQueue)(nil)

func (q *RefundSyncQueue) Enqueue(orderID string) bool {
	select {
	case q.jobs <- orderID:
		return true
	default:
		q.log.Error().Str("order_id", orderID).Msg("refund sync queue full")
		return false
	}
}

// Run processes jobs one at a time until ctx is cancelled.
func (q *RefundSyncQueue) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case orderID := <-q.jobs:
			q.process(ctx, orderID)
		}
	}
}

func (q *RefundSyncQueue) process(ctx context.Context, orderID string) {
	delay := q.baseDelay
	for attempt := 1; attempt <= q.maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		err := q.syncOnce(ctx, orderID)
		if err == nil {
			q.log.Info().Str("order_id", orderID).Int("attempt", attempt).Msg("payment refunds replayed")
			return
		}
		q.log.Warn().Err(err).Str("order_id", orderID).Int("attempt", attempt).Msg("payment refund replay failed")
		delay *= 2
	}
	q.log.Error().Str("order_id", orderID).Int("attempts", q.maxAttempts).Msg("payment refund replay exhausted")
}

func (q *RefundSyncQueue) syncOnce(ctx context.Context, orderID string) error {
	order, err := q.orders.FindWithPayments(ctx, orderID)
	if err != nil {
		return err
	}
	if order == nil || len(order.Payments) == 0 {
		return nil
	}
	return q.payments.ApplyRefundAllocation(ctx, domain.AllocateRefund(order.Payments, order.RefundAmount))
}
