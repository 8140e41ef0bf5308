package domain

import "time"

type PaymentRecordStatus string

const (
	PaymentCaptured                PaymentRecordStatus = "captured"
	PaymentRecordPartiallyRefunded PaymentRecordStatus = "partially_refunded"
	PaymentRecordRefunded          PaymentRecordStatus = "refunded"
)

type Payment struct {
	ID               string              `json:"id" gorm:"type:char(36);primaryKey"`
	OrderID          string              `json:"order_id" gorm:"type:char(36);not null;index"`
	Amount           int64               `json:"amount" gorm:"not null"`
	RefundAmount     int64               `json:"refund_amount" gorm:"not null;default:0"`
	Status           PaymentRecordStatus `json:"status" gorm:"type:varchar(20);not null;default:'captured'"`
	Method           PaymentMethod       `json:"method,omitempty" gorm:"type:varchar(10)"`
	GatewayPaymentID string              `json:"gateway_payment_id,omitempty" gorm:"size:128;index"`
	GatewaySignature string              `json:"gateway_signature,omitempty" gorm:"size:255"`
	CreatedAt        time.Time           `json:"created_at" gorm:"autoCreateTime"`
}

// RefundAllocation is the absolute refunded amount a single payment row should carry.
type RefundAllocation struct {
	PaymentID    string
	RefundAmount int64
	Status       PaymentRecordStatus
}

// AllocateRefund spreads totalRefunded across payments in the given order,
// filling each row up to its captured amount. Applying the result twice
// leaves the rows unchanged.
func AllocateRefund(payments []Payment, totalRefunded int64) []RefundAllocation {
	out := make([]RefundAllocation, 0, len(payments))
	remaining := totalRefunded
	for _, p := range payments {
		share := remaining
		if share > p.Amount {
			share = p.Amount
		}
		if share < 0 {
			share = 0
		}
		remaining -= share

		status := PaymentCaptured
		switch {
		case share > 0 && share == p.Amount:
			status = PaymentRecordRefunded
		case share > 0:
			status = PaymentRecordPartiallyRefunded
		}
		out = append(out, RefundAllocation{PaymentID: p.ID, RefundAmount: share, Status: status})
	}
	return out
}
