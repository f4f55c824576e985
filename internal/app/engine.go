package app

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"storefront-service/internal/core/domain"
	"storefront-service/internal/core/ports"
)

// DefaultAuthTimeout bounds how long a purchase waits for the platform's
// authorization decision.
const DefaultAuthTimeout = 60 * time.Second

// Engine is the implementation of the PurchaseService port. It owns the
// catalog cache, the in-flight purchase registry, and the payment state
// machine. One engine instance per running game session.
type Engine struct {
	catalog   ports.CatalogProvider
	history   ports.HistoryStore
	rewards   ports.RewardProvider
	gateway   ports.PurchaseGateway
	publisher ports.EventPublisher
	logger    *slog.Logger

	authTimeout time.Duration

	// loadMu serializes LoadCatalog so the provider is invoked at most
	// once even under concurrent loads.
	loadMu sync.Mutex

	mu         sync.RWMutex
	items      map[int]domain.Item // nil until the catalog is loaded
	processing map[int]struct{}
	pending    map[int]chan bool
	state      domain.PaymentState

	hub *subscriberHub
}

// NewEngine is the constructor of the purchase engine. It accepts all
// collaborators through interfaces; publisher may be nil when completion
// events are not fanned out to the backend.
func NewEngine(
	catalog ports.CatalogProvider,
	history ports.HistoryStore,
	rewards ports.RewardProvider,
	gateway ports.PurchaseGateway,
	publisher ports.EventPublisher,
	logger *slog.Logger,
	authTimeout time.Duration,
) *Engine {
	if authTimeout <= 0 {
		authTimeout = DefaultAuthTimeout
	}
	return &Engine{
		catalog:     catalog,
		history:     history,
		rewards:     rewards,
		gateway:     gateway,
		publisher:   publisher,
		logger:      logger,
		authTimeout: authTimeout,
		processing:  make(map[int]struct{}),
		pending:     make(map[int]chan bool),
		state:       domain.StateIdle,
		hub:         newSubscriberHub(),
	}
}

// LoadCatalog loads the item catalog through the catalog provider and
// replaces the cache atomically. Idempotent: once loaded it returns the
// cached item count without calling the provider again. Retry policy on
// failure is the caller's responsibility.
func (e *Engine) LoadCatalog(ctx context.Context) (int, error) {
	e.loadMu.Lock()
	defer e.loadMu.Unlock()

	e.mu.RLock()
	loaded, count := e.items != nil, len(e.items)
	e.mu.RUnlock()
	if loaded {
		return count, nil
	}

	e.setState(domain.StateLoadingItemData)

	items, err := e.catalog.LoadItems(ctx)
	if err != nil {
		e.setState(domain.StateFailed)
		return 0, fmt.Errorf("loading item catalog: %w", err)
	}

	// Copy into a fresh map so the provider cannot mutate the cache after
	// the fact, and swap it in as a whole.
	cache := make(map[int]domain.Item, len(items))
	maps.Copy(cache, items)

	e.mu.Lock()
	e.items = cache
	count = len(cache)
	e.mu.Unlock()

	e.setState(domain.StateIdle)
	e.logger.Info("item catalog loaded", "items", count)
	return count, nil
}

// AvailableItems returns a defensive copy of the catalog cache. Mutating
// the returned map never affects engine state. Nil when the catalog has
// not been loaded.
func (e *Engine) AvailableItems() map[int]domain.Item {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.items == nil {
		return nil
	}
	return maps.Clone(e.items)
}

// CurrentState returns the last payment state transition of any attempt.
func (e *Engine) CurrentState() domain.PaymentState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// CanPurchase reports whether a Purchase call for the item would pass its
// eligibility checks right now. Advisory only: it is inherently racy
// against concurrent Purchase calls and takes no reservation.
func (e *Engine) CanPurchase(ctx context.Context, itemID int) bool {
	_, err := e.checkEligibility(ctx, itemID)
	return err == nil
}

// ResolveAuthorization feeds the platform's asynchronous accept/deny
// decision to the attempt waiting on itemID. It reports whether an
// attempt was still pending; late or unknown decisions are discarded.
func (e *Engine) ResolveAuthorization(itemID int, authorized bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	ch, ok := e.pending[itemID]
	if !ok {
		return false
	}
	// Exactly one decision is consumed per attempt; the channel is
	// buffered so a decision racing the timeout never blocks the caller.
	delete(e.pending, itemID)
	ch <- authorized
	return true
}

// Subscribe registers a listener on the engine's event stream and returns
// the receive channel plus an unsubscribe function. Slow listeners have
// events dropped rather than blocking the engine.
func (e *Engine) Subscribe() (<-chan domain.EngineEvent, func()) {
	return e.hub.subscribe()
}

// Close tears the engine down: all subscriptions are closed, the catalog
// cache and in-flight registry are cleared, and the state returns to Idle.
func (e *Engine) Close() {
	e.hub.closeAll()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.items = nil
	e.processing = make(map[int]struct{})
	e.pending = make(map[int]chan bool)
	e.state = domain.StateIdle
}

// checkEligibility runs the side-effect-free checks shared by Purchase
// and CanPurchase: catalog loaded, item known, not already in flight, and
// the item's duplicate-purchase policy and purchase limit against the
// history store.
func (e *Engine) checkEligibility(ctx context.Context, itemID int) (domain.Item, error) {
	e.mu.RLock()
	loaded := e.items != nil
	item, known := e.items[itemID]
	_, inFlight := e.processing[itemID]
	e.mu.RUnlock()

	switch {
	case !loaded:
		return domain.Item{}, domain.ErrCatalogNotLoaded
	case !known:
		return domain.Item{}, fmt.Errorf("%w: %d", domain.ErrItemNotFound, itemID)
	case inFlight:
		return domain.Item{}, fmt.Errorf("%w: %d", domain.ErrAlreadyProcessing, itemID)
	}

	if item.PreventDuplicatePurchase {
		owned, err := e.history.HasHistory(ctx, itemID)
		if err != nil {
			return domain.Item{}, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
		}
		if owned {
			return domain.Item{}, fmt.Errorf("%w: %d", domain.ErrAlreadyPurchased, itemID)
		}
	}

	if item.PurchaseLimit > 0 {
		n, err := e.history.CountHistory(ctx, itemID)
		if err != nil {
			return domain.Item{}, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
		}
		if n >= item.PurchaseLimit {
			return domain.Item{}, fmt.Errorf("%w: %d", domain.ErrPurchaseLimitReached, itemID)
		}
	}

	return item, nil
}

// reserve inserts the item into the in-flight registry and registers its
// one-shot authorization channel. Exactly one concurrent caller wins the
// reservation; the rest fail with ErrAlreadyProcessing.
func (e *Engine) reserve(itemID int) (chan bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, inFlight := e.processing[itemID]; inFlight {
		return nil, fmt.Errorf("%w: %d", domain.ErrAlreadyProcessing, itemID)
	}
	ch := make(chan bool, 1)
	e.processing[itemID] = struct{}{}
	e.pending[itemID] = ch
	return ch, nil
}

// release removes the item from the in-flight registry and discards any
// still-pending authorization registration. Called unconditionally on
// every exit path of Purchase so the registry never leaks an entry.
func (e *Engine) release(itemID int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.processing, itemID)
	delete(e.pending, itemID)
}

// setState moves the payment state machine. A no-op when the value is
// unchanged, so subscribers never see duplicate notifications for
// repeated identical states.
func (e *Engine) setState(next domain.PaymentState) {
	e.mu.Lock()
	if e.state == next {
		e.mu.Unlock()
		return
	}
	e.state = next
	e.mu.Unlock()

	e.hub.broadcast(domain.EngineEvent{Type: domain.EventStateChanged, State: next})
}
