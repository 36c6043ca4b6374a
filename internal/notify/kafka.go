package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/fastship/shipper-agent/internal/config"

	"github.com/go-playground/validator/v10"
	"github.com/segmentio/kafka-go"
)

type Refresher interface {
	Refresh(ctx context.Context) error
}

// Event — push-сообщение о назначении или смене статуса заказа.
// Сам показ уведомлений вне зоны агента: событие лишь триггерит
// синхронизацию списка.
type Event struct {
	Type    string `json:"type" validate:"required,oneof=order_assigned order_updated order_cancelled"`
	OrderID string `json:"order_id" validate:"required"`
}

type Consumer struct {
	logger    *slog.Logger
	reader    *kafka.Reader
	validate  *validator.Validate
	refresher Refresher
}

func NewConsumer(logger *slog.Logger, cfg config.Kafka, refresher Refresher) *Consumer {
	return &Consumer{
		logger: logger.With(slog.String("component", "notify")),
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: cfg.Brokers,
			GroupID: cfg.GroupID,
			Topic:   cfg.Topic,
			MaxWait: cfg.ReaderMaxWait,
		}),
		validate:  validator.New(),
		refresher: refresher,
	}
}

func (c *Consumer) Consume(ctx context.Context) {
	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				break
			}
			c.logger.Error("failed to fetch message", slog.Any("error", err))
			continue
		}

		// Битое событие пропускается: терять нечего, следующая
		// синхронизация всё равно заберёт актуальный список.
		if err := c.handle(ctx, m); err != nil {
			c.logger.Error("failed to handle event", slog.Any("error", err))
		}

		if err := c.reader.CommitMessages(ctx, m); err != nil {
			c.logger.Error("failed to commit message", slog.Any("error", err))
		}
	}
}

func (c *Consumer) handle(ctx context.Context, m kafka.Message) error {
	var event Event
	if err := json.Unmarshal(m.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal event: %w", err)
	}
	if err := c.validate.Struct(event); err != nil {
		return fmt.Errorf("invalid event: %w", err)
	}

	c.logger.Debug("order event received",
		slog.String("type", event.Type), slog.String("order_id", event.OrderID))
	return c.refresher.Refresh(ctx)
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
