package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"storefront-service/internal/core/domain"
)

// Publisher is an implementation of the EventPublisher port for Kafka.
type Publisher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
	wg     sync.WaitGroup
}

// NewPublisher creates a new Kafka publisher instance.
func NewPublisher(bootstrapServers []string, topic string, logger *slog.Logger) (*Publisher, error) {
	opts := []kgo.Opt{
		kgo.SeedBrokers(bootstrapServers...),
		kgo.DefaultProduceTopic(topic),
		kgo.AllowAutoTopicCreation(),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.RecordDeliveryTimeout(10 * time.Second),
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}

	if err := client.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to connect to kafka: %w", err)
	}

	return &Publisher{
		client: client,
		topic:  topic,
		logger: logger,
	}, nil
}

// PublishPurchaseCompleted publishes one purchase completion event, keyed
// by item id so per-item ordering survives partitioning.
func (p *Publisher) PublishPurchaseCompleted(ctx context.Context, ev domain.PurchaseCompletion) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal purchase completion: %w", err)
	}

	record := &kgo.Record{
		Key:   []byte(strconv.Itoa(ev.ItemID)),
		Value: payload,
	}

	p.wg.Add(1)
	// Produce sends the record asynchronously.
	p.client.Produce(ctx, record, func(r *kgo.Record, err error) {
		defer p.wg.Done()
		if err != nil {
			p.logger.Error("failed to deliver completion event to kafka", "topic", r.Topic, "error", err)
		} else {
			p.logger.Debug("completion event delivered to kafka", "topic", r.Topic, "partition", r.Partition, "offset", r.Offset)
		}
	})

	return nil
}

// Close gracefully stops the publisher, draining in-flight produces first.
func (p *Publisher) Close() {
	p.logger.Info("waiting for in-flight kafka produces to finish...")
	p.wg.Wait()
	p.client.Close()
	p.logger.Info("kafka client stopped")
}
