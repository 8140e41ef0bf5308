package mysql

import (
	"context"
	"fmt"

	"tablesync/internal/domain"
	"tablesync/internal/repository"

	"gorm.io/gorm"
)

type paymentRepo struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) repository.PaymentRepository {
	return &paymentRepo{db: db}
}

func (r *paymentRepo) Create(ctx context.Context, payment *domain.Payment) error {
	if err := r.db.WithContext(ctx).Create(payment).Error; err != nil {
		return fmt.Errorf("%w: create payment for order %s: %v", domain.ErrTransientIO, payment.OrderID, err)
	}
	return nil
}

func (r *paymentRepo) FindByOrderID(ctx context.Context, orderID string) ([]domain.Payment, error) {
	var out []domain.Payment
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("%w: find payments for order %s: %v", domain.ErrTransientIO, orderID, err)
	}
	return out, nil
}

// ApplyRefundAllocation writes absolute refund amounts, so replaying it is harmless.
func (r *paymentRepo) ApplyRefundAllocation(ctx context.Context, allocs []domain.RefundAllocation) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, a := range allocs {
			err := tx.Model(&domain.Payment{}).
				Where("id = ?", a.PaymentID).
				Updates(map[string]any{
					"refund_amount": a.RefundAmount,
					"status":        a.Status,
				}).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: apply refund allocation: %v", domain.ErrTransientIO, err)
	}
	return nil
}
