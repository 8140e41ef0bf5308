package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tablesync/internal/domain"
	"tablesync/internal/infra/dedupe"
	"tablesync/internal/mocks"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type recordingDispatcher struct {
	mu      sync.Mutex
	now     []domain.OrderEvent
	delayed []domain.OrderEvent
}

func (r *recordingDispatcher) Dispatch(_ context.Context, events []domain.OrderEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = append(r.now, events...)
}

func (r *recordingDispatcher) DispatchLater(event domain.OrderEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delayed = append(r.delayed, event)
}

func (r *recordingDispatcher) kinds() []domain.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.EventKind
	for _, ev := range r.now {
		out = append(out, ev.Kind)
	}
	return out
}

func baseOrder() *domain.Order {
	o := CreateMockOrder(TestOrderID, TestOrderTotal, domain.PaymentPending)
	o.OrderStatus = domain.OrderPreparing
	return o
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*domain.Order)
		expected Classification
	}{
		{
			name:     "nothing relevant changed",
			mutate:   func(o *domain.Order) { o.UpdatedAt = time.Now() },
			expected: Classification{},
		},
		{
			name:     "discount grows",
			mutate:   func(o *domain.Order) { o.DiscountAmount = 50 },
			expected: Classification{Discount: true},
		},
		{
			name: "refund with payment status change",
			mutate: func(o *domain.Order) {
				o.RefundAmount = 100
				o.PaymentStatus = domain.PaymentPartiallyRefunded
			},
			expected: Classification{Refund: true, Payment: true},
		},
		{
			name:     "cancellation is not a status change",
			mutate:   func(o *domain.Order) { o.OrderStatus = domain.OrderCancelled },
			expected: Classification{Cancellation: true},
		},
		{
			name: "split payment settles the order",
			mutate: func(o *domain.Order) {
				o.SplitDetails = &domain.SplitDetails{CashAmount: 200, OnlineAmount: 220}
				o.PaymentStatus = domain.PaymentPaid
			},
			expected: Classification{Payment: true, SplitPayment: true},
		},
		{
			name:     "kitchen progress",
			mutate:   func(o *domain.Order) { o.OrderStatus = domain.OrderReady },
			expected: Classification{Status: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prev := baseOrder()
			next := baseOrder()
			tt.mutate(next)

			got := Classify(prev, next)

			assert.Equal(t, tt.expected, got)
			assert.Equal(t, tt.expected != Classification{}, got.Any())
		})
	}

	t.Run("already cancelled stays quiet", func(t *testing.T) {
		prev := baseOrder()
		prev.OrderStatus = domain.OrderCancelled
		next := baseOrder()
		next.OrderStatus = domain.OrderCancelled
		assert.False(t, Classify(prev, next).Any())
	})
}

func TestChangeDetector_Detect(t *testing.T) {
	d := NewChangeDetector(new(mocks.MockOrderRepository), dedupe.NewMemory(time.Hour), &recordingDispatcher{}, TestRestaurantID, zerolog.Nop())

	t.Run("refund reaches management only", func(t *testing.T) {
		prev := baseOrder()
		next := baseOrder()
		next.RefundAmount = 120
		next.RefundReason = "wrong dish"

		events, followUps := d.Detect(context.Background(), prev, next)

		require.Len(t, events, 1)
		assert.Empty(t, followUps)
		assert.Equal(t, domain.EventRefund, events[0].Kind)
		assert.Equal(t, domain.ScopeManagement, events[0].Scope)
		assert.Equal(t, int64(120), events[0].Amount)
		assert.Equal(t, "wrong dish", events[0].Reason)
	})

	t.Run("status change reaches both scopes", func(t *testing.T) {
		prev := baseOrder()
		next := baseOrder()
		next.OrderStatus = domain.OrderServed

		events, _ := d.Detect(context.Background(), prev, next)

		require.Len(t, events, 2)
		assert.Equal(t, domain.ScopeKitchen, events[0].Scope)
		assert.Equal(t, domain.ScopeManagement, events[1].Scope)
		assert.Equal(t, "preparing", events[0].FromStatus)
		assert.Equal(t, "served", events[0].ToStatus)
	})

	t.Run("cancellation fires once with a reason follow-up", func(t *testing.T) {
		prev := baseOrder()
		prev.ID = "order-cancel"
		next := baseOrder()
		next.ID = "order-cancel"
		next.OrderStatus = domain.OrderCancelled
		next.CancellationReason = "customer left"

		events, followUps := d.Detect(context.Background(), prev, next)

		require.Len(t, events, 2)
		assert.Equal(t, domain.EventCancellation, events[0].Kind)
		assert.Equal(t, domain.ScopeKitchen, events[0].Scope)
		assert.Equal(t, domain.PriorityHigh, events[0].Priority)
		require.Len(t, followUps, 2)
		assert.Equal(t, domain.EventCancellationReason, followUps[0].Kind)
		assert.Equal(t, "customer left", followUps[0].Reason)

		again, againFollowUps := d.Detect(context.Background(), prev, next)
		assert.Empty(t, again)
		assert.Empty(t, againFollowUps)
	})

	t.Run("cancellation without a reason has no follow-up", func(t *testing.T) {
		prev := baseOrder()
		prev.ID = "order-quiet"
		next := baseOrder()
		next.ID = "order-quiet"
		next.OrderStatus = domain.OrderCancelled

		events, followUps := d.Detect(context.Background(), prev, next)

		assert.Len(t, events, 2)
		assert.Empty(t, followUps)
	})
}

func TestChangeDetector_GuardFailsOpen(t *testing.T) {
	guard := new(mocks.MockGuard)
	guard.On("Once", mock.Anything, "cancelled:"+TestOrderID).Return(false, errors.New("redis unavailable"))

	d := NewChangeDetector(new(mocks.MockOrderRepository), guard, &recordingDispatcher{}, "", zerolog.Nop())
	prev := baseOrder()
	next := baseOrder()
	next.OrderStatus = domain.OrderCancelled

	events, _ := d.Detect(context.Background(), prev, next)

	assert.Len(t, events, 2)
	guard.AssertExpectations(t)
}

func TestChangeDetector_Handle(t *testing.T) {
	t.Run("insert reads the full order and announces it", func(t *testing.T) {
		orders := new(mocks.MockOrderRepository)
		full := baseOrder()
		full.TableID = "table-12"
		orders.On("FindByID", mock.Anything, TestOrderID).Return(full, nil)

		rec := &recordingDispatcher{}
		d := NewChangeDetector(orders, nil, rec, TestRestaurantID, zerolog.Nop())

		err := d.Handle(context.Background(), domain.OrderChange{
			Type:         domain.ChangeInsert,
			RestaurantID: TestRestaurantID,
			New:          &domain.Order{ID: TestOrderID, RestaurantID: TestRestaurantID},
		})

		require.NoError(t, err)
		assert.Equal(t, []domain.EventKind{domain.EventNewOrder, domain.EventNewOrder}, rec.kinds())
		assert.Equal(t, "table-12", rec.now[0].TableID)
		orders.AssertExpectations(t)
	})

	t.Run("insert read failure is returned", func(t *testing.T) {
		orders := new(mocks.MockOrderRepository)
		orders.On("FindByID", mock.Anything, TestOrderID).Return(nil, domain.ErrTransientIO)

		rec := &recordingDispatcher{}
		d := NewChangeDetector(orders, nil, rec, "", zerolog.Nop())

		err := d.Handle(context.Background(), domain.OrderChange{
			Type: domain.ChangeInsert,
			New:  &domain.Order{ID: TestOrderID},
		})

		assert.ErrorIs(t, err, domain.ErrTransientIO)
		assert.Empty(t, rec.kinds())
	})

	t.Run("other tenants are ignored", func(t *testing.T) {
		rec := &recordingDispatcher{}
		d := NewChangeDetector(new(mocks.MockOrderRepository), nil, rec, TestRestaurantID, zerolog.Nop())
		next := baseOrder()
		next.DiscountAmount = 10

		err := d.Handle(context.Background(), domain.OrderChange{
			Type:         domain.ChangeUpdate,
			RestaurantID: "rest-other",
			Old:          baseOrder(),
			New:          next,
		})

		require.NoError(t, err)
		assert.Empty(t, rec.kinds())
	})

	t.Run("update schedules the cancellation reason", func(t *testing.T) {
		rec := &recordingDispatcher{}
		d := NewChangeDetector(new(mocks.MockOrderRepository), dedupe.NewMemory(time.Hour), rec, TestRestaurantID, zerolog.Nop())
		next := baseOrder()
		next.OrderStatus = domain.OrderCancelled
		next.CancellationReason = "kitchen closed"

		err := d.Handle(context.Background(), domain.OrderChange{
			Type:         domain.ChangeUpdate,
			RestaurantID: TestRestaurantID,
			Old:          baseOrder(),
			New:          next,
		})

		require.NoError(t, err)
		assert.Len(t, rec.now, 2)
		require.Len(t, rec.delayed, 2)
		assert.Equal(t, "kitchen closed", rec.delayed[0].Reason)
	})

	t.Run("deletes and partial rows are skipped", func(t *testing.T) {
		rec := &recordingDispatcher{}
		d := NewChangeDetector(new(mocks.MockOrderRepository), nil, rec, "", zerolog.Nop())

		assert.NoError(t, d.Handle(context.Background(), domain.OrderChange{Type: domain.ChangeDelete, Old: baseOrder()}))
		assert.NoError(t, d.Handle(context.Background(), domain.OrderChange{Type: domain.ChangeUpdate, New: baseOrder()}))
		assert.Empty(t, rec.kinds())
	})
}
