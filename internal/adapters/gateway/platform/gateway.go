package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Gateway is the PurchaseGateway implementation backed by the platform's
// micro-transaction HTTP API. StartPurchase only opens the attempt; the
// platform posts its accept/deny decision to our authorization callback
// route, which feeds the engine's resolver.
type Gateway struct {
	baseURL     string
	callbackURL string
	client      *http.Client
	logger      *slog.Logger
}

func NewGateway(baseURL, callbackURL string, logger *slog.Logger) *Gateway {
	return &Gateway{
		baseURL:     baseURL,
		callbackURL: callbackURL,
		client:      &http.Client{Timeout: 10 * time.Second},
		logger:      logger,
	}
}

type startPurchaseRequest struct {
	ItemID      int    `json:"item_id"`
	CallbackURL string `json:"callback_url"`
}

// StartPurchase opens a platform purchase attempt. A non-2xx response is
// an immediate failure; a nil return carries no authorization decision.
func (g *Gateway) StartPurchase(ctx context.Context, itemID int) error {
	body, err := json.Marshal(startPurchaseRequest{
		ItemID:      itemID,
		CallbackURL: g.callbackURL,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal purchase attempt: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/purchases", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build purchase attempt request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("platform request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("platform rejected purchase attempt: status %d", resp.StatusCode)
	}

	g.logger.Debug("platform purchase attempt opened", "item_id", itemID)
	return nil
}
