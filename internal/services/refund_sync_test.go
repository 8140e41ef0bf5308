package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"tablesync/internal/domain"
	"tablesync/internal/mocks"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestRefundSyncQueue_ReplaysUntilSuccess(t *testing.T) {
	orders := new(mocks.MockOrderRepository)
	payments := new(mocks.MockPaymentRepository)

	order := CreateMockOrder(TestOrderID, TestOrderTotal, domain.PaymentPartiallyRefunded,
		CreateMockPayment("a", TestOrderID, 200, 0), CreateMockPayment("b", TestOrderID, 220, 0))
	order.RefundAmount = 300
	expected := []domain.RefundAllocation{
		{PaymentID: "a", RefundAmount: 200, Status: domain.PaymentRecordRefunded},
		{PaymentID: "b", RefundAmount: 100, Status: domain.PaymentRecordPartiallyRefunded},
	}

	done := make(chan struct{})
	orders.On("FindWithPayments", mock.Anything, TestOrderID).Return(order, nil)
	payments.On("ApplyRefundAllocation", mock.Anything, expected).Return(errors.New("deadlock")).Once()
	payments.On("ApplyRefundAllocation", mock.Anything, expected).Return(nil).Once().
		Run(func(mock.Arguments) { close(done) })

	q := NewRefundSyncQueue(orders, payments, 5, time.Millisecond, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)

	assert.True(t, q.Enqueue(TestOrderID))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("refund replay did not succeed")
	}
	cancel()
}

func TestRefundSyncQueue_GivesUpAfterMaxAttempts(t *testing.T) {
	orders := new(mocks.MockOrderRepository)
	payments := new(mocks.MockPaymentRepository)

	order := CreateMockOrder(TestOrderID, TestOrderTotal, domain.PaymentRefunded,
		CreateMockPayment(TestPaymentID, TestOrderID, 420, 0))
	order.RefundAmount = 420

	var attempts atomic.Int32
	orders.On("FindWithPayments", mock.Anything, TestOrderID).Return(order, nil)
	payments.On("ApplyRefundAllocation", mock.Anything, mock.Anything).Return(errors.New("down")).
		Run(func(mock.Arguments) { attempts.Add(1) })

	q := NewRefundSyncQueue(orders, payments, 3, time.Millisecond, zerolog.Nop())
	q.process(context.Background(), TestOrderID)

	assert.Equal(t, int32(3), attempts.Load())
}

func TestRefundSyncQueue_MissingOrderIsDone(t *testing.T) {
	orders := new(mocks.MockOrderRepository)
	payments := new(mocks.MockPaymentRepository)
	orders.On("FindWithPayments", mock.Anything, TestOrderID).Return(nil, nil).Once()

	q := NewRefundSyncQueue(orders, payments, 3, time.Millisecond, zerolog.Nop())
	q.process(context.Background(), TestOrderID)

	orders.AssertExpectations(t)
	payments.AssertNotCalled(t, "ApplyRefundAllocation", mock.Anything, mock.Anything)
}
