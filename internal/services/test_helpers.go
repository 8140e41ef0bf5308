package services

import (
	"time"

	"tablesync/internal/domain"
)

func CreateMockOrder(id string, total int64, paymentStatus domain.PaymentStatus, payments ...domain.Payment) *domain.Order {
	return &domain.Order{
		ID:            id,
		RestaurantID:  TestRestaurantID,
		TableID:       TestTableID,
		Total:         total,
		OrderStatus:   domain.OrderServed,
		PaymentStatus: paymentStatus,
		Payments:      payments,
		CreatedAt:     time.Now(),
	}
}

func CreateMockPayment(id, orderID string, amount, refunded int64) domain.Payment {
	return domain.Payment{
		ID:           id,
		OrderID:      orderID,
		Amount:       amount,
		RefundAmount: refunded,
		Status:       domain.PaymentCaptured,
		CreatedAt:    time.Now(),
	}
}

func CreateMockSession(id string, status domain.SessionStatus, items ...domain.CartItem) *domain.TableSession {
	return &domain.TableSession{
		ID:           id,
		RestaurantID: TestRestaurantID,
		TableID:      TestTableID,
		Status:       status,
		CartItems:    items,
		StartedAt:    time.Now(),
	}
}

const (
	TestRestaurantID = "rest-1"
	TestTableID      = "table-7"
	TestOrderID      = "order-1"
	TestPaymentID    = "pay-1"
	TestSessionID    = "session-1"
	TestOrderTotal   = int64(420)
)
