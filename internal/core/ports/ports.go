package ports

import (
	"context"

	"storefront-service/internal/core/domain"
)

// CatalogProvider is an outgoing port for loading the item catalog. It is
// invoked at most once per engine lifetime; the engine caches the result.
type CatalogProvider interface {
	LoadItems(ctx context.Context) (map[int]domain.Item, error)
}

// HistoryStore is an outgoing port for the durable purchase history. All
// methods must be safe to call concurrently for different item ids.
type HistoryStore interface {
	HasHistory(ctx context.Context, itemID int) (bool, error)
	CountHistory(ctx context.Context, itemID int) (int, error)
	SaveHistory(ctx context.Context, itemID int, rec domain.PurchaseRecord) error
	RemoveHistory(ctx context.Context, itemID int) error
	ClearAllHistory(ctx context.Context) error
}

// RewardProvider grants a batch of rewards as one all-or-nothing call.
// Partial grant semantics are the provider's internal concern.
type RewardProvider interface {
	GrantRewards(ctx context.Context, rewards []domain.Reward) error
}

// PurchaseGateway opens a purchase attempt on the platform. A nil return
// only means the attempt started; the accept/deny decision arrives later,
// out-of-band, through AuthorizationResolver.
type PurchaseGateway interface {
	StartPurchase(ctx context.Context, itemID int) error
}

// AuthorizationResolver receives the platform's asynchronous decision for
// a pending attempt. It reports whether an attempt was still waiting;
// stale or unknown resolutions are discarded.
type AuthorizationResolver interface {
	ResolveAuthorization(itemID int, authorized bool) bool
}

// EventPublisher is an outgoing port fanning completion events out to the
// rest of the backend. Publish failures must never fail a purchase.
type EventPublisher interface {
	PublishPurchaseCompleted(ctx context.Context, ev domain.PurchaseCompletion) error
}

// PurchaseService is the incoming port: how the outside world drives the
// purchase engine.
type PurchaseService interface {
	AuthorizationResolver

	LoadCatalog(ctx context.Context) (int, error)
	Purchase(ctx context.Context, itemID int) (bool, error)
	CanPurchase(ctx context.Context, itemID int) bool
	AvailableItems() map[int]domain.Item
	CurrentState() domain.PaymentState
}
