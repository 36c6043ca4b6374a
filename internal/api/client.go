package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/fastship/shipper-agent/internal/entities"
)

const defaultPageLimit = 50

type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client переводит именованные операции в HTTP-запросы к сервису заказов
// и сглаживает неоднородность бекенда каскадом резервных путей.
type Client struct {
	logger  *slog.Logger
	baseURL string
	httpc   *http.Client
	session *Session
}

func New(logger *slog.Logger, cfg Config, session *Session) *Client {
	return &Client{
		logger:  logger.With(slog.String("component", "api_client")),
		baseURL: cfg.BaseURL,
		httpc:   &http.Client{Timeout: cfg.Timeout},
		session: session,
	}
}

// Session возвращает объект сессии, через который слой аутентификации
// обновляет токен.
func (c *Client) Session() *Session {
	return c.session
}

type ListFilter struct {
	Status string
	Page   int
	Limit  int
}

func (f ListFilter) query() url.Values {
	q := url.Values{}
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	page := f.Page
	if page <= 0 {
		page = 1
	}
	limit := f.Limit
	if limit <= 0 {
		limit = defaultPageLimit
	}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	return q
}

type ListResult struct {
	Orders     []entities.Order
	Pagination entities.Pagination
}

// ListOrders опрашивает основной путь, затем резервные. Переход к резервному
// пути происходит только при ошибке транспорта, не-2xx ответе или
// нераспознанной форме тела: корректный пустой массив принимается как
// "заказов нет". Если упали все пути, возвращается ошибка первой попытки.
func (c *Client) ListOrders(ctx context.Context, filter ListFilter) (ListResult, error) {
	paths := []string{"/api/shipper/orders", "/api/orders/my", "/api/orders"}

	var firstErr error
	for i, path := range paths {
		if i > 0 {
			fallbacksTotal.WithLabelValues("list_orders").Inc()
		}

		data, err := c.do(ctx, http.MethodGet, path, filter.query(), nil)
		if err == nil {
			var orders []entities.Order
			var pg entities.Pagination
			orders, pg, err = decodeOrders(data)
			if err == nil {
				return ListResult{Orders: orders, Pagination: pg}, nil
			}
		}

		c.logger.Debug("list orders attempt failed",
			slog.String("path", path), slog.Any("error", err))
		if firstErr == nil {
			firstErr = err
		}
	}
	return ListResult{}, firstErr
}

// GetOrder пробует основной путь и ровно один резервный. Если падают оба,
// наружу уходит ошибка основного, чтобы вызывающий видел исходную причину.
func (c *Client) GetOrder(ctx context.Context, id string) (entities.Order, error) {
	if id == "" {
		return entities.Order{}, guardError("order id is required")
	}

	order, primaryErr := c.getOrder(ctx, "/api/shipper/orders/"+url.PathEscape(id))
	if primaryErr == nil {
		return order, nil
	}

	fallbacksTotal.WithLabelValues("get_order").Inc()
	order, err := c.getOrder(ctx, "/api/orders/"+url.PathEscape(id))
	if err == nil {
		return order, nil
	}
	return entities.Order{}, primaryErr
}

func (c *Client) getOrder(ctx context.Context, path string) (entities.Order, error) {
	data, err := c.do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return entities.Order{}, err
	}
	return decodeOrder(data)
}

// Accept подтверждает назначение. Каскад из трёх уровней: основной
// action-эндпоинт, резервный action-эндпоинт, затем общий перевод статуса.
// При провале всех трёх наружу уходит ошибка последней попытки.
func (c *Client) Accept(ctx context.Context, id string) error {
	return c.action(ctx, "accept", id, entities.StatusOutForDelivery)
}

// Reject отклоняет назначение, резервный перевод статуса — Cancelled.
func (c *Client) Reject(ctx context.Context, id string) error {
	return c.action(ctx, "reject", id, entities.StatusCancelled)
}

func (c *Client) action(ctx context.Context, verb, id, fallbackStatus string) error {
	if id == "" {
		return guardError("order id is required")
	}
	escaped := url.PathEscape(id)

	_, err := c.do(ctx, http.MethodPost, "/api/shipper/orders/"+escaped+"/"+verb, nil, nil)
	if err == nil {
		return nil
	}

	fallbacksTotal.WithLabelValues(verb).Inc()
	_, err = c.do(ctx, http.MethodPost, "/api/orders/"+escaped+"/"+verb, nil, nil)
	if err == nil {
		return nil
	}

	fallbacksTotal.WithLabelValues(verb).Inc()
	body := statusUpdate{OrderStatus: fallbackStatus}
	_, err = c.do(ctx, http.MethodPatch, "/api/orders/"+escaped+"/status", nil, body)
	return err
}

type statusUpdate struct {
	OrderStatus string `json:"order_status"`
	Note        string `json:"note,omitempty"`
}

// UpdateStatus переводит заказ в целевой статус. Один резервный путь;
// при провале обоих возвращается ошибка основного.
func (c *Client) UpdateStatus(ctx context.Context, id, status, note string) error {
	if id == "" {
		return guardError("order id is required")
	}
	escaped := url.PathEscape(id)
	body := statusUpdate{OrderStatus: status, Note: note}

	_, primaryErr := c.do(ctx, http.MethodPatch, "/api/shipper/orders/"+escaped+"/status", nil, body)
	if primaryErr == nil {
		return nil
	}

	fallbacksTotal.WithLabelValues("update_status").Inc()
	if _, err := c.do(ctx, http.MethodPatch, "/api/orders/"+escaped+"/status", nil, body); err == nil {
		return nil
	}
	return primaryErr
}

// do выполняет один HTTP-запрос с bearer-токеном сессии. Ошибка транспорта
// превращается в KindNetwork, не-2xx ответ — в KindServer с сообщением
// из тела.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token := c.session.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		requestsTotal.WithLabelValues(method, "network_error").Inc()
		return nil, networkError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		requestsTotal.WithLabelValues(method, "network_error").Inc()
		return nil, networkError(err)
	}

	requestsTotal.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Inc()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, serverError(resp.StatusCode, data)
	}
	return data, nil
}
