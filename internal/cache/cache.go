package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/fastship/shipper-agent/internal/entities"
	"github.com/fastship/shipper-agent/internal/storage"
)

// OrderCache хранит последний успешно загруженный список заказов одним
// снимком. Без TTL и версионирования: каждая запись перезаписывает
// предыдущую, при чтении снимок принимается как есть.
type OrderCache struct {
	logger *slog.Logger
	store  storage.KV
}

func New(logger *slog.Logger, store storage.KV) *OrderCache {
	return &OrderCache{
		logger: logger.With(slog.String("component", "order_cache")),
		store:  store,
	}
}

// Save сериализует и записывает список. Ошибка записи логируется и
// проглатывается: кеш не должен ломать основной поток.
func (c *OrderCache) Save(ctx context.Context, orders []entities.Order) {
	data, err := json.Marshal(orders)
	if err != nil {
		c.logger.Error("failed to marshal orders", slog.Any("error", err))
		return
	}
	if err := c.store.Set(ctx, storage.KeyOrderCache, data); err != nil {
		c.logger.Error("failed to save order cache", slog.Any("error", err))
	}
}

// Load возвращает снимок и true, либо nil и false, если ключа нет или
// содержимое не является массивом заказов.
func (c *OrderCache) Load(ctx context.Context) ([]entities.Order, bool) {
	data, err := c.store.Get(ctx, storage.KeyOrderCache)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, false
	}
	if err != nil {
		c.logger.Error("failed to read order cache", slog.Any("error", err))
		return nil, false
	}

	var orders []entities.Order
	if err := json.Unmarshal(data, &orders); err != nil {
		c.logger.Error("corrupted order cache, ignoring", slog.Any("error", err))
		return nil, false
	}
	return orders, true
}
