package app

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"storefront-service/internal/core/domain"
)

// Purchase drives one item purchase end to end: eligibility checks,
// in-flight reservation, the platform authorization race, and the
// reward-and-persist sequence. It returns true only when the rewards were
// granted and the purchase record written. Eligibility failures return
// before any side effect; everything after the reservation reports its
// outcome through a PurchaseCompleted event as well.
func (e *Engine) Purchase(ctx context.Context, itemID int) (bool, error) {
	item, err := e.checkEligibility(ctx, itemID)
	if err != nil {
		return false, err
	}

	authCh, err := e.reserve(itemID)
	if err != nil {
		return false, err
	}
	defer e.release(itemID)

	e.setState(domain.StateProcessingPayment)
	e.logger.Info("purchase started", "item_id", itemID, "item", item.Name)

	if err := e.awaitAuthorization(ctx, itemID, authCh); err != nil {
		e.completeFailure(ctx, itemID, err)
		return false, err
	}

	return e.grantAndPersist(ctx, item)
}

// awaitAuthorization opens the platform purchase attempt and suspends on
// the race between the out-of-band authorization decision and the
// configured timeout. Whichever loses the race is cleaned up by release.
func (e *Engine) awaitAuthorization(ctx context.Context, itemID int, authCh <-chan bool) error {
	// The pending registration already exists, so a decision arriving
	// before StartPurchase even returns is not lost.
	if err := e.gateway.StartPurchase(ctx, itemID); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}

	timer := time.NewTimer(e.authTimeout)
	defer timer.Stop()

	select {
	case authorized := <-authCh:
		if !authorized {
			return fmt.Errorf("%w: item %d", domain.ErrAuthorizationDenied, itemID)
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("%w after %s: item %d", domain.ErrAuthorizationTimeout, e.authTimeout, itemID)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// grantAndPersist runs the post-authorization sequence: grant the item's
// rewards as one batch, then write the purchase record. An item with no
// rewards skips the grant but still records history. A failure here is
// not rolled back against the platform; there is no compensating refund.
func (e *Engine) grantAndPersist(ctx context.Context, item domain.Item) (bool, error) {
	e.setState(domain.StateProcessingReward)

	if len(item.Rewards) > 0 {
		if err := e.rewards.GrantRewards(ctx, item.Rewards); err != nil {
			err = fmt.Errorf("%w: %v", domain.ErrRewardFailed, err)
			e.completeFailure(ctx, item.ID, err)
			return false, err
		}
	}

	rec := domain.PurchaseRecord{
		ItemID:        item.ID,
		TransactionID: uuid.NewString(),
		PurchasedAt:   time.Now().UTC(),
		Rewards:       slices.Clone(item.Rewards),
	}
	if err := e.history.SaveHistory(ctx, item.ID, rec); err != nil {
		err = fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
		e.completeFailure(ctx, item.ID, err)
		return false, err
	}

	e.setState(domain.StateCompleted)
	e.emitCompletion(ctx, domain.PurchaseCompletion{
		ItemID:        item.ID,
		Success:       true,
		Message:       fmt.Sprintf("purchased %q", item.Name),
		TransactionID: rec.TransactionID,
		CompletedAt:   rec.PurchasedAt,
	})
	e.logger.Info("purchase completed", "item_id", item.ID, "transaction_id", rec.TransactionID)
	return true, nil
}

// completeFailure moves the state machine to Failed and reports the
// attempt's outcome to subscribers and the event publisher.
func (e *Engine) completeFailure(ctx context.Context, itemID int, cause error) {
	e.setState(domain.StateFailed)
	e.emitCompletion(ctx, domain.PurchaseCompletion{
		ItemID:      itemID,
		Success:     false,
		Message:     cause.Error(),
		CompletedAt: time.Now().UTC(),
	})
	e.logger.Warn("purchase failed", "item_id", itemID, "error", cause)
}

// emitCompletion fans a completion out to local subscribers and, when
// configured, to the backend event publisher. Publish failures are logged
// and never alter the purchase outcome.
func (e *Engine) emitCompletion(ctx context.Context, c domain.PurchaseCompletion) {
	e.hub.broadcast(domain.EngineEvent{Type: domain.EventPurchaseCompleted, Completion: &c})

	if e.publisher == nil {
		return
	}
	// Publish even when the purchase context is already done (timeout or
	// caller gone); the completion itself must still reach the backend.
	if err := e.publisher.PublishPurchaseCompleted(context.WithoutCancel(ctx), c); err != nil {
		e.logger.Error("failed to publish purchase completion", "item_id", c.ItemID, "error", err)
	}
}
