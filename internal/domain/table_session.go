package domain

import "time"

type SessionStatus string

const (
	SessionActive SessionStatus = "active"
	SessionEnded  SessionStatus = "ended"
)

type TableStatus string

const (
	TableAvailable TableStatus = "available"
	TableOccupied  TableStatus = "occupied"
)

type CartItem struct {
	MenuItemID string `json:"menu_item_id"`
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
	UnitPrice  int64  `json:"unit_price"`
	Notes      string `json:"notes,omitempty"`
	AddedBy    string `json:"added_by,omitempty"`
}

type TableSession struct {
	ID           string        `json:"id" gorm:"type:char(36);primaryKey"`
	RestaurantID string        `json:"restaurant_id" gorm:"type:char(36);not null;index"`
	TableID      string        `json:"table_id" gorm:"type:char(36);not null;index"`
	Status       SessionStatus `json:"status" gorm:"type:varchar(10);not null;default:'active'"`
	CartItems    []CartItem    `json:"cart_items" gorm:"type:json;serializer:json"`
	StartedAt    time.Time     `json:"started_at" gorm:"autoCreateTime"`
	EndedAt      *time.Time    `json:"ended_at,omitempty"`
	Orders       []Order       `json:"orders,omitempty" gorm:"foreignKey:SessionID"`
}

type Table struct {
	ID               string      `json:"id" gorm:"type:char(36);primaryKey"`
	RestaurantID     string      `json:"restaurant_id" gorm:"type:char(36);not null;index"`
	Number           string      `json:"number" gorm:"size:20"`
	Status           TableStatus `json:"status" gorm:"type:varchar(10);not null;default:'available'"`
	CurrentSessionID *string     `json:"current_session_id,omitempty" gorm:"type:char(36)"`
}

// CartSnapshot is the payload broadcast on a session topic after every cart write.
type CartSnapshot struct {
	SessionID string     `json:"session_id"`
	Items     []CartItem `json:"items"`
	Ended     bool       `json:"ended,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func SessionTopic(sessionID string) string {
	return "table-session-" + sessionID
}
