package mock

import (
	"context"
	"log/slog"

	"storefront-service/internal/core/domain"
)

// Publisher is a stub for the EventPublisher port, used when Kafka is
// disabled in the config.
type Publisher struct {
	logger *slog.Logger
}

func NewPublisher(logger *slog.Logger) *Publisher {
	return &Publisher{logger: logger}
}

func (p *Publisher) Close() error {
	return nil
}

func (p *Publisher) PublishPurchaseCompleted(_ context.Context, ev domain.PurchaseCompletion) error {
	p.logger.Info("[MOCK] purchase completed",
		"item_id", ev.ItemID, "success", ev.Success, "transaction_id", ev.TransactionID)
	return nil
}
