package repository

import (
	"context"

	"tablesync/internal/domain"
)

// Conditional is the outcome of a write guarded by a predicate. Matched is
// false when no row satisfied the predicate, either because the id does not
// resolve or because the row is no longer eligible.
type Conditional[T any] struct {
	Record  *T
	Matched bool
}

func Ok[T any](rec *T) Conditional[T] {
	return Conditional[T]{Record: rec, Matched: true}
}

func ConflictOrNotFound[T any]() Conditional[T] {
	return Conditional[T]{}
}

// RefundUpdate is the authoritative order write of a refund. ExpectedRefunded
// is the refund_amount the row must still hold for the write to apply.
type RefundUpdate struct {
	Status           domain.PaymentStatus
	RefundAmount     int64
	ExpectedRefunded int64
	Reason           string
}

type OrderRepository interface {
	FindByID(ctx context.Context, id string) (*domain.Order, error)
	FindWithPayments(ctx context.Context, id string) (*domain.Order, error)
	UpdatePaymentStatus(ctx context.Context, id string, status domain.PaymentStatus) (Conditional[domain.Order], error)
	ApplyRefund(ctx context.Context, id string, upd RefundUpdate) (Conditional[domain.Order], error)
	ApplySplitPayment(ctx context.Context, id string, total int64, details domain.SplitDetails, payments []domain.Payment) (Conditional[domain.Order], error)
}

type PaymentRepository interface {
	Create(ctx context.Context, payment *domain.Payment) error
	FindByOrderID(ctx context.Context, orderID string) ([]domain.Payment, error)
	ApplyRefundAllocation(ctx context.Context, allocs []domain.RefundAllocation) error
}

type SessionRepository interface {
	FindByID(ctx context.Context, id string) (*domain.TableSession, error)
	FindWithOrders(ctx context.Context, id string) (*domain.TableSession, error)
	Open(ctx context.Context, session *domain.TableSession) (Conditional[domain.TableSession], error)
	UpdateCart(ctx context.Context, id string, items []domain.CartItem) (Conditional[domain.TableSession], error)
	End(ctx context.Context, id string) (Conditional[domain.TableSession], error)
}
