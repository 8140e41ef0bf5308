package mysql

import (
	"context"
	"errors"
	"fmt"

	"tablesync/internal/domain"
	"tablesync/internal/repository"

	"gorm.io/gorm"
)

type orderRepo struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) repository.OrderRepository {
	return &orderRepo{db: db}
}

func (r *orderRepo) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	var o domain.Order
	if err := r.db.WithContext(ctx).First(&o, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: find order %s: %v", domain.ErrTransientIO, id, err)
	}
	return &o, nil
}

func (r *orderRepo) FindWithPayments(ctx context.Context, id string) (*domain.Order, error) {
	var o domain.Order
	err := r.db.WithContext(ctx).
		Preload("Payments", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, id ASC")
		}).
		First(&o, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: find order %s with payments: %v", domain.ErrTransientIO, id, err)
	}
	return &o, nil
}

// UpdatePaymentStatus only applies when the current status is one the target
// may follow, so payment_status never moves backwards.
func (r *orderRepo) UpdatePaymentStatus(ctx context.Context, id string, status domain.PaymentStatus) (repository.Conditional[domain.Order], error) {
	res := r.db.WithContext(ctx).Model(&domain.Order{}).
		Where("id = ? AND payment_status IN ?", id, status.Predecessors()).
		Update("payment_status", status)
	return r.afterWrite(ctx, id, res)
}

func (r *orderRepo) ApplyRefund(ctx context.Context, id string, upd repository.RefundUpdate) (repository.Conditional[domain.Order], error) {
	res := r.db.WithContext(ctx).Model(&domain.Order{}).
		Where("id = ? AND payment_status IN ? AND refund_amount = ?",
			id, []domain.PaymentStatus{domain.PaymentPaid, domain.PaymentPartiallyRefunded}, upd.ExpectedRefunded).
		Updates(map[string]any{
			"payment_status": upd.Status,
			"refund_amount":  upd.RefundAmount,
			"refund_reason":  upd.Reason,
		})
	return r.afterWrite(ctx, id, res)
}

// ApplySplitPayment settles a pending order and records one payment per
// instrument in a single transaction.
func (r *orderRepo) ApplySplitPayment(ctx context.Context, id string, total int64, details domain.SplitDetails, payments []domain.Payment) (repository.Conditional[domain.Order], error) {
	var res *gorm.DB
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res = tx.Model(&domain.Order{}).
			Where("id = ? AND payment_status = ? AND total = ?", id, domain.PaymentPending, total).
			Select("payment_method", "payment_status", "split_details").
			Updates(&domain.Order{
				PaymentMethod: domain.MethodSplit,
				PaymentStatus: domain.PaymentPaid,
				SplitDetails:  &details,
			})
		if res.Error != nil || res.RowsAffected == 0 {
			return res.Error
		}
		if len(payments) == 0 {
			return nil
		}
		return tx.Create(&payments).Error
	})
	if err != nil {
		return repository.ConflictOrNotFound[domain.Order](), fmt.Errorf("%w: split payment for order %s: %v", domain.ErrTransientIO, id, err)
	}
	return r.afterWrite(ctx, id, res)
}

func (r *orderRepo) afterWrite(ctx context.Context, id string, res *gorm.DB) (repository.Conditional[domain.Order], error) {
	if res.Error != nil {
		return repository.ConflictOrNotFound[domain.Order](), fmt.Errorf("%w: update order %s: %v", domain.ErrTransientIO, id, res.Error)
	}
	if res.RowsAffected == 0 {
		return repository.ConflictOrNotFound[domain.Order](), nil
	}
	o, err := r.FindByID(ctx, id)
	if err != nil {
		return repository.ConflictOrNotFound[domain.Order](), err
	}
	if o == nil {
		return repository.ConflictOrNotFound[domain.Order](), nil
	}
	return repository.Ok(o), nil
}
