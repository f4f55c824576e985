package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"storefront-service/internal/core/domain"
)

// Client is the RewardProvider implementation backed by the game backend.
// The grant is one batch call; the backend reports a single success or
// failure for the whole list.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

func NewClient(baseURL string, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
		logger:  logger,
	}
}

type grantRequest struct {
	Rewards []domain.Reward `json:"rewards"`
}

func (c *Client) GrantRewards(ctx context.Context, rewards []domain.Reward) error {
	body, err := json.Marshal(grantRequest{Rewards: rewards})
	if err != nil {
		return fmt.Errorf("failed to marshal reward batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/rewards/grant", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build grant request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("reward backend request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("reward backend refused grant: status %d", resp.StatusCode)
	}

	c.logger.Debug("reward batch granted", "rewards", len(rewards))
	return nil
}
