package controller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fastship/shipper-agent/internal/api"
	"github.com/fastship/shipper-agent/internal/entities"
	"github.com/fastship/shipper-agent/pkg/utils"
)

type OrdersClient interface {
	ListOrders(ctx context.Context, filter api.ListFilter) (api.ListResult, error)
	Accept(ctx context.Context, id string) error
	Reject(ctx context.Context, id string) error
	UpdateStatus(ctx context.Context, id, status, note string) error
}

type Cache interface {
	Save(ctx context.Context, orders []entities.Order)
	Load(ctx context.Context) ([]entities.Order, bool)
}

type SessionRefresher interface {
	Refresh(ctx context.Context) error
}

// Controller владеет списком заказов курьера и применяет к нему
// оптимистичные обратимые мутации. Все операции последовательны
// относительно mu, конкурирующие обновления списка не дедуплицируются:
// побеждает завершившийся последним.
type Controller struct {
	logger *slog.Logger
	client OrdersClient
	cache  Cache
	auth   SessionRefresher
	retry  utils.RetryConfig

	mu       sync.Mutex
	orders   []entities.Order
	pending  map[string]struct{}
	lastErr  error
	attempts []string
}

func New(logger *slog.Logger, client OrdersClient, cache Cache, auth SessionRefresher, retry utils.RetryConfig) *Controller {
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = 3
	}
	if retry.InitialDelay <= 0 {
		retry.InitialDelay = 500 * time.Millisecond
	}
	if retry.Multiplier <= 1 {
		retry.Multiplier = 2
	}
	return &Controller{
		logger:  logger.With(slog.String("component", "order_controller")),
		client:  client,
		cache:   cache,
		auth:    auth,
		retry:   retry,
		pending: make(map[string]struct{}),
	}
}

// Start поднимает кешированный снимок, чтобы список был виден сразу,
// и запускает первую синхронизацию. Ошибка сети на старте не фатальна:
// агент продолжает работать от кеша.
func (c *Controller) Start(ctx context.Context) error {
	if cached, ok := c.cache.Load(ctx); ok {
		c.mu.Lock()
		c.orders = cached
		c.mu.Unlock()
		c.logger.Info("loaded cached orders", slog.Int("count", len(cached)))
	}

	if err := c.Refresh(ctx); err != nil {
		c.logger.Warn("initial refresh failed", slog.Any("error", err))
	}
	return nil
}

// Refresh обновляет сессию (по возможности) и перечитывает список с
// до трёх попыток и экспоненциальной задержкой. Успех замещает список и
// кеш, неудача оставляет последний отрисованный список нетронутым.
func (c *Controller) Refresh(ctx context.Context) error {
	if err := c.auth.Refresh(ctx); err != nil {
		c.logger.Warn("session refresh failed", slog.Any("error", err))
	}

	var result api.ListResult
	var attempts []string

	err := utils.Retry(ctx, c.retry, func() error {
		var attemptErr error
		result, attemptErr = c.client.ListOrders(ctx, api.ListFilter{})
		if attemptErr != nil {
			attempts = append(attempts, attemptErr.Error())
			return attemptErr
		}
		attempts = append(attempts, "ok")
		return nil
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts = attempts

	if err != nil {
		c.lastErr = err
		c.logger.Error("failed to refresh orders", slog.Any("error", err))
		return err
	}

	c.orders = result.Orders
	c.lastErr = nil
	c.cache.Save(ctx, result.Orders)
	c.logger.Debug("orders refreshed", slog.Int("count", len(result.Orders)))
	return nil
}

// Orders возвращает копию списка.
func (c *Controller) Orders() []entities.Order {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]entities.Order, len(c.orders))
	copy(out, c.orders)
	return out
}

// LastError возвращает ошибку последней неудачной синхронизации,
// nil после успешной.
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Attempts возвращает исходы попыток последней синхронизации, для
// диагностики.
func (c *Controller) Attempts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.attempts))
	copy(out, c.attempts)
	return out
}

// Accept оптимистично помечает заказ принятым и взятым в доставку,
// откатываясь при ошибке сервера.
func (c *Controller) Accept(ctx context.Context, id string) error {
	return c.mutate(ctx, id,
		func(o *entities.Order) {
			o.ShipperAck = entities.AckAccepted
			o.Status = entities.StatusOutForDelivery
		},
		func(ctx context.Context) error { return c.client.Accept(ctx, id) },
	)
}

// Reject оптимистично помечает заказ отклонённым.
func (c *Controller) Reject(ctx context.Context, id string) error {
	return c.mutate(ctx, id,
		func(o *entities.Order) {
			o.ShipperAck = entities.AckRejected
			o.Status = entities.StatusCancelled
		},
		func(ctx context.Context) error { return c.client.Reject(ctx, id) },
	)
}

// UpdateStatus оптимистично переводит заказ в целевой статус.
func (c *Controller) UpdateStatus(ctx context.Context, id, status, note string) error {
	return c.mutate(ctx, id,
		func(o *entities.Order) { o.Status = status },
		func(ctx context.Context) error { return c.client.UpdateStatus(ctx, id, status, note) },
	)
}

// mutate реализует общий контракт мутаций: guard по пустому id и по уже
// идущей мутации того же заказа, снимок, оптимистичное применение, вызов
// API, откат снимка при ошибке. Мутации разных заказов независимы.
func (c *Controller) mutate(ctx context.Context, id string, apply func(*entities.Order), call func(context.Context) error) error {
	if id == "" {
		return nil
	}

	c.mu.Lock()
	if _, busy := c.pending[id]; busy {
		c.mu.Unlock()
		return nil
	}
	idx := c.indexLocked(id)
	if idx < 0 {
		c.mu.Unlock()
		return nil
	}

	// apply меняет только скалярные поля, поэтому поверхностной копии
	// достаточно для точного отката.
	snapshot := c.orders[idx]
	apply(&c.orders[idx])
	c.pending[id] = struct{}{}
	c.mu.Unlock()

	err := call(ctx)

	c.mu.Lock()
	delete(c.pending, id)
	if err != nil {
		if i := c.indexLocked(id); i >= 0 {
			c.orders[i] = snapshot
		}
		c.mu.Unlock()
		c.logger.Error("order mutation failed, rolled back",
			slog.String("order", id), slog.Any("error", err))
		return err
	}
	c.mu.Unlock()
	return nil
}

func (c *Controller) indexLocked(id string) int {
	for i, o := range c.orders {
		if o.Key() == id {
			return i
		}
	}
	return -1
}
