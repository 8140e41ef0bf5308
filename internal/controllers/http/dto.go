package http

import "tablesync/internal/domain"

type UpdatePaymentStatusRequest struct {
	PaymentStatus domain.PaymentStatus `json:"payment_status" binding:"required"`
}

type CreatePaymentRequest struct {
	OrderID          string               `json:"order_id" binding:"required"`
	Amount           int64                `json:"amount" binding:"required,gt=0"`
	Method           domain.PaymentMethod `json:"method"`
	GatewayPaymentID string               `json:"gateway_payment_id"`
	GatewaySignature string               `json:"gateway_signature"`
}

type RefundRequest struct {
	RefundAmount    int64  `json:"refund_amount" binding:"required"`
	Reason          string `json:"reason"`
	AlreadyRefunded int64  `json:"already_refunded"`
}

type SplitPaymentRequest struct {
	CashAmount   int64          `json:"cash_amount"`
	OnlineAmount int64          `json:"online_amount"`
	Metadata     map[string]any `json:"metadata"`
}

type OpenSessionRequest struct {
	RestaurantID string `json:"restaurant_id"`
}

type UpdateCartRequest struct {
	Items []domain.CartItem `json:"items"`
}

type CartResponse struct {
	SessionID string            `json:"session_id"`
	Items     []domain.CartItem `json:"items"`
}

type ClearCartResponse struct {
	Success bool `json:"success"`
}
