package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tablesync/internal/domain"
	"tablesync/internal/repository"

	"gorm.io/gorm"
)

var errNotMatched = errors.New("no row matched predicate")

type sessionRepo struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) repository.SessionRepository {
	return &sessionRepo{db: db}
}

func (r *sessionRepo) FindByID(ctx context.Context, id string) (*domain.TableSession, error) {
	var s domain.TableSession
	if err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: find session %s: %v", domain.ErrTransientIO, id, err)
	}
	return &s, nil
}

func (r *sessionRepo) FindWithOrders(ctx context.Context, id string) (*domain.TableSession, error) {
	var s domain.TableSession
	err := r.db.WithContext(ctx).
		Preload("Orders", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, id ASC")
		}).
		First(&s, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: find session %s with orders: %v", domain.ErrTransientIO, id, err)
	}
	return &s, nil
}

// Open attaches the session to a table that has none and inserts it, in one transaction.
func (r *sessionRepo) Open(ctx context.Context, session *domain.TableSession) (repository.Conditional[domain.TableSession], error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Table{}).
			Where("id = ? AND current_session_id IS NULL", session.TableID).
			Updates(map[string]any{
				"current_session_id": session.ID,
				"status":             domain.TableOccupied,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errNotMatched
		}
		return tx.Create(session).Error
	})
	return r.conditional(session, err, "open session for table "+session.TableID)
}

func (r *sessionRepo) UpdateCart(ctx context.Context, id string, items []domain.CartItem) (repository.Conditional[domain.TableSession], error) {
	res := r.db.WithContext(ctx).Model(&domain.TableSession{}).
		Where("id = ? AND status = ?", id, domain.SessionActive).
		Select("cart_items").
		Updates(&domain.TableSession{CartItems: items})
	if res.Error != nil {
		return repository.ConflictOrNotFound[domain.TableSession](), fmt.Errorf("%w: update cart of session %s: %v", domain.ErrTransientIO, id, res.Error)
	}
	if res.RowsAffected == 0 {
		return repository.ConflictOrNotFound[domain.TableSession](), nil
	}
	return repository.Ok(&domain.TableSession{ID: id, Status: domain.SessionActive, CartItems: items}), nil
}

// End closes the session, frees its table and completes its open orders atomically.
func (r *sessionRepo) End(ctx context.Context, id string) (repository.Conditional[domain.TableSession], error) {
	now := time.Now()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.TableSession{}).
			Where("id = ? AND status = ?", id, domain.SessionActive).
			Updates(map[string]any{
				"status":   domain.SessionEnded,
				"ended_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errNotMatched
		}

		err := tx.Model(&domain.Table{}).
			Where("current_session_id = ?", id).
			Updates(map[string]any{
				"current_session_id": nil,
				"status":             domain.TableAvailable,
			}).Error
		if err != nil {
			return err
		}

		return tx.Model(&domain.Order{}).
			Where("session_id = ? AND order_status IN ?", id, domain.OpenOrderStatuses).
			Update("order_status", domain.OrderCompleted).Error
	})
	return r.conditional(&domain.TableSession{ID: id, Status: domain.SessionEnded, EndedAt: &now}, err, "end session "+id)
}

func (r *sessionRepo) conditional(rec *domain.TableSession, err error, op string) (repository.Conditional[domain.TableSession], error) {
	switch {
	case err == nil:
		return repository.Ok(rec), nil
	case errors.Is(err, errNotMatched):
		return repository.ConflictOrNotFound[domain.TableSession](), nil
	default:
		return repository.ConflictOrNotFound[domain.TableSession](), fmt.Errorf("%w: %s: %v", domain.ErrTransientIO, op, err)
	}
}
