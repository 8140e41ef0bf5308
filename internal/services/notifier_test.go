package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"tablesync/internal/domain"
	"tablesync/internal/infra/pubsub"
	"tablesync/internal/mocks"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu     sync.Mutex
	events []domain.OrderEvent
	err    error
}

func (s *recordingSink) Deliver(_ context.Context, ev domain.OrderEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return s.err
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestNotifier_Dispatch(t *testing.T) {
	failing := &recordingSink{err: errors.New("broker down")}
	healthy := &recordingSink{}
	n := NewNotifier(time.Millisecond, zerolog.Nop(), failing, healthy)

	n.Dispatch(context.Background(), []domain.OrderEvent{
		{Kind: domain.EventDiscount, Scope: domain.ScopeManagement, OrderID: TestOrderID},
		{Kind: domain.EventStatus, Scope: domain.ScopeKitchen, OrderID: TestOrderID},
	})

	assert.Equal(t, 2, failing.count())
	assert.Equal(t, 2, healthy.count())
}

func TestNotifier_DispatchLater(t *testing.T) {
	sink := &recordingSink{}
	n := NewNotifier(20*time.Millisecond, zerolog.Nop(), sink)

	n.DispatchLater(domain.OrderEvent{Kind: domain.EventCancellationReason, Scope: domain.ScopeKitchen, OrderID: TestOrderID})

	assert.Equal(t, 0, sink.count())
	assert.Eventually(t, func() bool { return sink.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestAMQPSink_Deliver(t *testing.T) {
	tests := []struct {
		name             string
		event            domain.OrderEvent
		expectedKey      string
		expectedPriority uint8
	}{
		{
			name:             "high priority kitchen cancellation",
			event:            domain.OrderEvent{Kind: domain.EventCancellation, Scope: domain.ScopeKitchen, Priority: domain.PriorityHigh},
			expectedKey:      "kitchen.cancellation",
			expectedPriority: 9,
		},
		{
			name:             "normal management refund",
			event:            domain.OrderEvent{Kind: domain.EventRefund, Scope: domain.ScopeManagement, Priority: domain.PriorityNormal},
			expectedKey:      "management.refund",
			expectedPriority: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := new(mocks.MockPublisher)
			pub.On("Publish", mock.Anything, tt.expectedKey, tt.expectedPriority, tt.event).Return(nil)

			err := NewAMQPSink(pub).Deliver(context.Background(), tt.event)

			assert.NoError(t, err)
			pub.AssertExpectations(t)
		})
	}
}

func TestChannelSink_Deliver(t *testing.T) {
	hub := pubsub.NewMemory()
	defer hub.Close()

	sub, err := hub.Subscribe(context.Background(), domain.NotificationTopic(domain.ScopeKitchen))
	require.NoError(t, err)
	defer sub.Unsubscribe()

	ev := domain.OrderEvent{Kind: domain.EventNewOrder, Scope: domain.ScopeKitchen, OrderID: TestOrderID, TableID: TestTableID}
	require.NoError(t, NewChannelSink(hub).Deliver(context.Background(), ev))

	select {
	case payload := <-sub.Messages():
		var got domain.OrderEvent
		require.NoError(t, json.Unmarshal(payload, &got))
		assert.Equal(t, ev.Kind, got.Kind)
		assert.Equal(t, TestTableID, got.TableID)
	case <-time.After(time.Second):
		t.Fatal("no notification received")
	}
}

func TestNotices(t *testing.T) {
	events := []domain.OrderEvent{
		{Kind: domain.EventRefund, Scope: domain.ScopeManagement, OrderID: TestOrderID, Amount: 1250},
		{Kind: domain.EventPayment, Scope: domain.ScopeManagement, OrderID: TestOrderID, FromStatus: "paid", ToStatus: "partially_refunded"},
		{Kind: domain.EventStatus, Scope: domain.ScopeKitchen, OrderID: TestOrderID, ToStatus: "ready"},
	}

	t.Run("payment notice suppressed alongside refund", func(t *testing.T) {
		got := Notices(events, domain.ScopeManagement)
		assert.Equal(t, []string{"Refund of 12.50 issued for order order-1"}, got)
	})

	t.Run("scope filter", func(t *testing.T) {
		got := Notices(events, domain.ScopeKitchen)
		assert.Equal(t, []string{"Order order-1 is now ready"}, got)
	})

	t.Run("payment alone is reported", func(t *testing.T) {
		got := Notices(events[1:2], domain.ScopeManagement)
		assert.Equal(t, []string{"Payment for order order-1 changed from paid to partially_refunded"}, got)
	})
}

func TestFormatMinor(t *testing.T) {
	assert.Equal(t, "0.05", formatMinor(5))
	assert.Equal(t, "420.00", formatMinor(42000))
	assert.Equal(t, "-1.10", formatMinor(-110))
}
