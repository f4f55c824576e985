package sim

import (
	"context"
	"log/slog"
	"time"

	"storefront-service/internal/core/ports"
)

// Decision scripts how the simulated platform answers purchase attempts.
type Decision string

const (
	Authorize Decision = "authorize"
	Deny      Decision = "deny"
	// Silent never answers, which exercises the engine's timeout path.
	Silent Decision = "silent"
)

// Gateway is a PurchaseGateway test double for environments without the
// platform SDK. It resolves every attempt with a fixed decision after a
// fixed delay, through the same out-of-band resolver the real platform
// callback uses, so the engine cannot tell them apart.
type Gateway struct {
	resolver ports.AuthorizationResolver
	decision Decision
	delay    time.Duration
	logger   *slog.Logger
}

func NewGateway(resolver ports.AuthorizationResolver, decision Decision, delay time.Duration, logger *slog.Logger) *Gateway {
	return &Gateway{
		resolver: resolver,
		decision: decision,
		delay:    delay,
		logger:   logger,
	}
}

func (g *Gateway) StartPurchase(_ context.Context, itemID int) error {
	if g.decision == Silent {
		g.logger.Debug("simulated platform swallowing purchase attempt", "item_id", itemID)
		return nil
	}

	authorized := g.decision == Authorize
	go func() {
		if g.delay > 0 {
			time.Sleep(g.delay)
		}
		if !g.resolver.ResolveAuthorization(itemID, authorized) {
			g.logger.Debug("simulated decision arrived too late", "item_id", itemID)
		}
	}()
	return nil
}
