package domain

import "time"

type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeUpdate ChangeType = "UPDATE"
	ChangeDelete ChangeType = "DELETE"
)

// OrderChange is one row-level event from the orders change feed.
type OrderChange struct {
	Type         ChangeType `json:"type"`
	RestaurantID string     `json:"restaurant_id"`
	Old          *Order     `json:"old,omitempty"`
	New          *Order     `json:"new,omitempty"`
	CommittedAt  time.Time  `json:"commit_timestamp"`
}

type EventKind string

const (
	EventNewOrder           EventKind = "new_order"
	EventDiscount           EventKind = "discount"
	EventRefund             EventKind = "refund"
	EventPayment            EventKind = "payment"
	EventCancellation       EventKind = "cancellation"
	EventCancellationReason EventKind = "cancellation_reason"
	EventSplitPayment       EventKind = "split_payment"
	EventStatus             EventKind = "status"
)

type Scope string

const (
	ScopeKitchen    Scope = "kitchen"
	ScopeManagement Scope = "management"
)

type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// OrderEvent is a classified, role-scoped notification about one order change.
type OrderEvent struct {
	Kind         EventKind `json:"kind"`
	Scope        Scope     `json:"scope"`
	Priority     Priority  `json:"priority"`
	OrderID      string    `json:"order_id"`
	TableID      string    `json:"table_id,omitempty"`
	RestaurantID string    `json:"restaurant_id,omitempty"`
	Amount       int64     `json:"amount,omitempty"`
	FromStatus   string    `json:"from_status,omitempty"`
	ToStatus     string    `json:"to_status,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

func NotificationTopic(scope Scope) string {
	return "notifications-" + string(scope)
}
