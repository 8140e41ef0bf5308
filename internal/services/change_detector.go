package services

import (
	"context"
	"time"

	"tablesync/internal/domain"
	"tablesync/internal/repository"

	"github.com/rs/zerolog"
)

// OnceGuard reports true the first time a key is presented.
type OnceGuard interface {
	Once(ctx context.Context, key string) (bool, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, events []domain.OrderEvent)
	DispatchLater(event domain.OrderEvent)
}

// Classification flags are independent; several can be set for one change.
type Classification struct {
	Discount     bool
	Refund       bool
	Payment      bool
	Cancellation bool
	SplitPayment bool
	Status       bool
}

func (c Classification) Any() bool {
	return c.Discount || c.Refund || c.Payment || c.Cancellation || c.SplitPayment || c.Status
}

func Classify(prev, next *domain.Order) Classification {
	c := Classification{
		Discount:     next.DiscountAmount > prev.DiscountAmount,
		Refund:       next.RefundAmount > prev.RefundAmount,
		Payment:      next.PaymentStatus != prev.PaymentStatus,
		Cancellation: prev.OrderStatus != domain.OrderCancelled && next.OrderStatus == domain.OrderCancelled,
		SplitPayment: prev.SplitDetails == nil && next.SplitDetails != nil,
	}
	// A move into cancelled is reported as a cancellation only.
	c.Status = next.OrderStatus != prev.OrderStatus && !c.Cancellation
	return c
}

type route struct {
	scope    domain.Scope
	priority domain.Priority
}

var (
	kitchenHigh    = route{domain.ScopeKitchen, domain.PriorityHigh}
	kitchenInfo    = route{domain.ScopeKitchen, domain.PriorityNormal}
	managementInfo = route{domain.ScopeManagement, domain.PriorityNormal}
)

var routes = map[domain.EventKind][]route{
	domain.EventNewOrder:           {kitchenInfo, managementInfo},
	domain.EventDiscount:           {managementInfo},
	domain.EventRefund:             {managementInfo},
	domain.EventPayment:            {managementInfo},
	domain.EventCancellation:       {kitchenHigh, managementInfo},
	domain.EventCancellationReason: {kitchenHigh, managementInfo},
	domain.EventSplitPayment:       {managementInfo},
	domain.EventStatus:             {kitchenInfo, managementInfo},
}

// ChangeDetector turns order change-feed events into role-scoped notifications.
type ChangeDetector struct {
	orders       repository.OrderRepository
	guard        OnceGuard
	dispatcher   Dispatcher
	restaurantID string
	log          zerolog.Logger
	now          func() time.Time
}

func NewChangeDetector(o repository.OrderRepository, g OnceGuard, d Dispatcher, restaurantID string, log zerolog.Logger) *ChangeDetector {
	return &ChangeDetector{
		orders:       o,
		guard:        g,
		dispatcher:   d,
		restaurantID: restaurantID,
		log:          log,
		now:          time.Now,
	}
}

// Handle processes one feed event. Events for other tenants and deletes are ignored.
func (d *ChangeDetector) Handle(ctx context.Context, change domain.OrderChange) error {
	if d.restaurantID != "" && change.RestaurantID != d.restaurantID {
		return nil
	}

	switch change.Type {
	case domain.ChangeInsert:
		if change.New == nil {
			return nil
		}
		// The feed row lacks joined fields, so read the full record.
		order := change.New
		full, err := d.orders.FindByID(ctx, change.New.ID)
		if err != nil {
			return err
		}
		if full != nil {
			order = full
		}
		d.dispatcher.Dispatch(ctx, d.events(domain.EventNewOrder, order, nil))
	case domain.ChangeUpdate:
		if change.Old == nil || change.New == nil {
			return nil
		}
		events, reason := d.Detect(ctx, change.Old, change.New)
		if len(events) > 0 {
			d.dispatcher.Dispatch(ctx, events)
		}
		for _, ev := range reason {
			d.dispatcher.DispatchLater(ev)
		}
	}
	return nil
}

// Detect classifies an update. The second result holds the cancellation
// reason follow-ups, which are meant to be sent after a short delay.
func (d *ChangeDetector) Detect(ctx context.Context, prev, next *domain.Order) ([]domain.OrderEvent, []domain.OrderEvent) {
	c := Classify(prev, next)
	if !c.Any() {
		return nil, nil
	}

	var out, followUps []domain.OrderEvent
	if c.Discount {
		out = append(out, d.events(domain.EventDiscount, next, func(e *domain.OrderEvent) {
			e.Amount = next.DiscountAmount - prev.DiscountAmount
		})...)
	}
	if c.Refund {
		out = append(out, d.events(domain.EventRefund, next, func(e *domain.OrderEvent) {
			e.Amount = next.RefundAmount - prev.RefundAmount
			e.Reason = next.RefundReason
		})...)
	}
	if c.Payment {
		out = append(out, d.events(domain.EventPayment, next, func(e *domain.OrderEvent) {
			e.FromStatus = string(prev.PaymentStatus)
			e.ToStatus = string(next.PaymentStatus)
		})...)
	}
	if c.SplitPayment {
		out = append(out, d.events(domain.EventSplitPayment, next, func(e *domain.OrderEvent) {
			e.Amount = next.Total
		})...)
	}
	if c.Status {
		out = append(out, d.events(domain.EventStatus, next, func(e *domain.OrderEvent) {
			e.FromStatus = string(prev.OrderStatus)
			e.ToStatus = string(next.OrderStatus)
		})...)
	}
	if c.Cancellation && d.firstCancellation(ctx, next.ID) {
		out = append(out, d.events(domain.EventCancellation, next, func(e *domain.OrderEvent) {
			e.FromStatus = string(prev.OrderStatus)
			e.ToStatus = string(next.OrderStatus)
		})...)
		if next.CancellationReason != "" {
			followUps = d.events(domain.EventCancellationReason, next, func(e *domain.OrderEvent) {
				e.Reason = next.CancellationReason
			})
		}
	}
	return out, followUps
}

// firstCancellation fails open: when the guard is unavailable the
// cancellation is still reported.
func (d *ChangeDetector) firstCancellation(ctx context.Context, orderID string) bool {
	if d.guard == nil {
		return true
	}
	first, err := d.guard.Once(ctx, "cancelled:"+orderID)
	if err != nil {
		d.log.Warn().Err(err).Str("order_id", orderID).Msg("cancellation dedupe unavailable")
		return true
	}
	if !first {
		d.log.Debug().Str("order_id", orderID).Msg("duplicate cancellation suppressed")
	}
	return first
}

func (d *ChangeDetector) events(kind domain.EventKind, o *domain.Order, fill func(*domain.OrderEvent)) []domain.OrderEvent {
	now := d.now().UTC()
	out := make([]domain.OrderEvent, 0, len(routes[kind]))
	for _, r := range routes[kind] {
		ev := domain.OrderEvent{
			Kind:         kind,
			Scope:        r.scope,
			Priority:     r.priority,
			OrderID:      o.ID,
			TableID:      o.TableID,
			RestaurantID: o.RestaurantID,
			OccurredAt:   now,
		}
		if fill != nil {
			fill(&ev)
		}
		out = append(out, ev)
	}
	return out
}
