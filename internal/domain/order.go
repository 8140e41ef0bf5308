package domain

import (
	"encoding/json"
	"time"
)

type OrderStatus string

const (
	OrderReceived  OrderStatus = "received"
	OrderPreparing OrderStatus = "preparing"
	OrderReady     OrderStatus = "ready"
	OrderServed    OrderStatus = "served"
	OrderCompleted OrderStatus = "completed"
	OrderCancelled OrderStatus = "cancelled"
)

// OpenOrderStatuses are the statuses finalized when a table session ends.
var OpenOrderStatuses = []OrderStatus{OrderReceived, OrderPreparing, OrderReady, OrderServed}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderCompleted || s == OrderCancelled
}

type PaymentStatus string

const (
	PaymentPending           PaymentStatus = "pending"
	PaymentPaid              PaymentStatus = "paid"
	PaymentRefunded          PaymentStatus = "refunded"
	PaymentPartiallyRefunded PaymentStatus = "partially_refunded"
)

// paymentPredecessors lists, per target status, the statuses an order may
// hold before moving to it. Writing the current status again is allowed.
var paymentPredecessors = map[PaymentStatus][]PaymentStatus{
	PaymentPending:           {PaymentPending},
	PaymentPaid:              {PaymentPending, PaymentPaid},
	PaymentPartiallyRefunded: {PaymentPaid, PaymentPartiallyRefunded},
	PaymentRefunded:          {PaymentPaid, PaymentPartiallyRefunded, PaymentRefunded},
}

func (s PaymentStatus) Valid() bool {
	_, ok := paymentPredecessors[s]
	return ok
}

// Predecessors returns the statuses from which s can be reached.
func (s PaymentStatus) Predecessors() []PaymentStatus {
	return paymentPredecessors[s]
}

func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, p := range paymentPredecessors[next] {
		if p == s {
			return true
		}
	}
	return false
}

// Refundable reports whether a refund may be taken against an order in this status.
func (s PaymentStatus) Refundable() bool {
	return s == PaymentPaid || s == PaymentPartiallyRefunded
}

type PaymentMethod string

const (
	MethodCash   PaymentMethod = "cash"
	MethodOnline PaymentMethod = "online"
	MethodSplit  PaymentMethod = "split"
)

// SplitDetails is stored as a flat JSON object: the two amounts plus any
// caller metadata at the same level.
type SplitDetails struct {
	CashAmount   int64
	OnlineAmount int64
	Metadata     map[string]any
}

func (d SplitDetails) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.Metadata)+2)
	for k, v := range d.Metadata {
		out[k] = v
	}
	out["cash_amount"] = d.CashAmount
	out["online_amount"] = d.OnlineAmount
	return json.Marshal(out)
}

func (d *SplitDetails) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*d = SplitDetails{}
	for k, v := range raw {
		switch k {
		case "cash_amount":
			if err := json.Unmarshal(v, &d.CashAmount); err != nil {
				return err
			}
		case "online_amount":
			if err := json.Unmarshal(v, &d.OnlineAmount); err != nil {
				return err
			}
		default:
			var val any
			if err := json.Unmarshal(v, &val); err != nil {
				return err
			}
			if d.Metadata == nil {
				d.Metadata = map[string]any{}
			}
			d.Metadata[k] = val
		}
	}
	return nil
}

// Order amounts are minor currency units.
type Order struct {
	ID                 string        `json:"id" gorm:"type:char(36);primaryKey"`
	RestaurantID       string        `json:"restaurant_id" gorm:"type:char(36);not null;index"`
	TableID            string        `json:"table_id" gorm:"type:char(36);index"`
	SessionID          string        `json:"session_id,omitempty" gorm:"type:char(36);index"`
	Total              int64         `json:"total" gorm:"not null"`
	OrderStatus        OrderStatus   `json:"order_status" gorm:"type:varchar(20);not null;default:'received'"`
	PaymentStatus      PaymentStatus `json:"payment_status" gorm:"type:varchar(20);not null;default:'pending'"`
	RefundAmount       int64         `json:"refund_amount" gorm:"not null;default:0"`
	RefundReason       string        `json:"refund_reason,omitempty" gorm:"size:255"`
	DiscountAmount     int64         `json:"discount_amount" gorm:"not null;default:0"`
	PaymentMethod      PaymentMethod `json:"payment_method,omitempty" gorm:"type:varchar(10)"`
	SplitDetails       *SplitDetails `json:"split_details,omitempty" gorm:"type:json;serializer:json"`
	CancellationReason string        `json:"cancellation_reason,omitempty" gorm:"size:255"`
	Payments           []Payment     `json:"payments,omitempty" gorm:"foreignKey:OrderID"`
	CreatedAt          time.Time     `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt          time.Time     `json:"updated_at" gorm:"autoUpdateTime"`
}

// TotalPaid sums the captured amount of the loaded payments.
func (o *Order) TotalPaid() int64 {
	var sum int64
	for _, p := range o.Payments {
		sum += p.Amount
	}
	return sum
}

// OrderProjection is the status view returned after a payment status write.
type OrderProjection struct {
	ID            string        `json:"id"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	OrderStatus   OrderStatus   `json:"order_status"`
}
