package domain

import "time"

// RewardKind is our own type for reward categories to avoid "magic ints".
// The engine never interprets it; the reward provider does.
type RewardKind int

const (
	RewardCurrency RewardKind = iota
	RewardUnlock
	RewardBooster
)

// Reward is a fulfillment instruction passed through to the reward
// provider as an opaque payload.
type Reward struct {
	Kind  RewardKind `json:"kind" yaml:"kind"`
	ID    int        `json:"id" yaml:"id"`
	Value int        `json:"value" yaml:"value"`
}

// Item is a purchasable catalog entry. Immutable after catalog load.
type Item struct {
	ID                       int      `json:"id" yaml:"id"`
	Name                     string   `json:"name" yaml:"name"`
	Description              string   `json:"description" yaml:"description"`
	Rewards                  []Reward `json:"rewards" yaml:"rewards"`
	PreventDuplicatePurchase bool     `json:"prevent_duplicate_purchase" yaml:"prevent_duplicate_purchase"`
	// PurchaseLimit bounds how many times the item may be bought; 0 means unbounded.
	PurchaseLimit int `json:"purchase_limit" yaml:"purchase_limit"`
}

// PurchaseRecord is written once per successful purchase and owned by the
// history store afterwards. Rewards is a snapshot of the item's reward
// list at grant time.
type PurchaseRecord struct {
	ItemID        int       `json:"item_id"`
	TransactionID string    `json:"transaction_id"`
	PurchasedAt   time.Time `json:"purchased_at"`
	Rewards       []Reward  `json:"rewards"`
}
