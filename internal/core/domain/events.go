package domain

import "time"

// EventType discriminates engine notifications.
type EventType string

const (
	EventStateChanged      EventType = "state_changed"
	EventPurchaseCompleted EventType = "purchase_completed"
)

// PurchaseCompletion reports the final outcome of one purchase attempt.
type PurchaseCompletion struct {
	ItemID        int       `json:"item_id"`
	Success       bool      `json:"success"`
	Message       string    `json:"message"`
	TransactionID string    `json:"transaction_id,omitempty"`
	CompletedAt   time.Time `json:"completed_at"`
}

// EngineEvent is what subscribers receive on the engine's event stream.
// State is set for EventStateChanged, Completion for EventPurchaseCompleted.
type EngineEvent struct {
	Type       EventType           `json:"type"`
	State      PaymentState        `json:"state,omitempty"`
	Completion *PurchaseCompletion `json:"completion,omitempty"`
}
