package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/fastship/shipper-agent/internal/api"
	"github.com/fastship/shipper-agent/internal/entities"
	"github.com/fastship/shipper-agent/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

type OrderController interface {
	Visible(tab string) []entities.Order
	Refresh(ctx context.Context) error
	Accept(ctx context.Context, id string) error
	Reject(ctx context.Context, id string) error
	UpdateStatus(ctx context.Context, id, status, note string) error
	LastError() error
	Attempts() []string
}

type OrderGetter interface {
	GetOrder(ctx context.Context, id string) (entities.Order, error)
}

// HTTPHandler — локальный мост к контроллеру для других процессов на
// устройстве (оболочки, дашборда).
type HTTPHandler struct {
	logger     *slog.Logger
	validate   *validator.Validate
	controller OrderController
	getter     OrderGetter
}

func NewHTTPHandler(logger *slog.Logger, controller OrderController, getter OrderGetter) *HTTPHandler {
	return &HTTPHandler{
		logger:     logger.With(slog.String("handler", "http")),
		validate:   validator.New(),
		controller: controller,
		getter:     getter,
	}
}

func (h *HTTPHandler) Init(r chi.Router) {
	r.Get("/orders", h.ListOrders)
	r.Post("/orders/refresh", h.RefreshOrders)
	r.Get("/orders/{order_id}", h.GetOrder)
	r.Post("/orders/{order_id}/accept", h.AcceptOrder)
	r.Post("/orders/{order_id}/reject", h.RejectOrder)
	r.Patch("/orders/{order_id}/status", h.UpdateOrderStatus)
}

// ListOrders отдаёт видимый список для вкладки вместе с состоянием
// последней синхронизации. Пустой список не утверждает «заказов нет»:
// потребитель смотрит на поле error.
func (h *HTTPHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	tab := r.URL.Query().Get("tab")

	res := OrderList{
		Orders:   OrdersToJSON(h.controller.Visible(tab)),
		Attempts: h.controller.Attempts(),
	}
	if err := h.controller.LastError(); err != nil {
		res.Error = err.Error()
	}
	utils.WriteJSON(w, res, http.StatusOK)
}

func (h *HTTPHandler) RefreshOrders(w http.ResponseWriter, r *http.Request) {
	if err := h.controller.Refresh(r.Context()); err != nil {
		h.writeAPIError(w, err)
		return
	}
	utils.WriteJSON(w, OrderList{Orders: OrdersToJSON(h.controller.Visible(""))}, http.StatusOK)
}

func (h *HTTPHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := chi.URLParam(r, "order_id")

	if err := h.validate.Var(orderID, "required"); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	order, err := h.getter.GetOrder(ctx, orderID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to get order",
			slog.Any("error", err), slog.String("order_id", orderID))
		h.writeAPIError(w, err)
		return
	}
	utils.WriteJSON(w, OrderEntityToJSON(order), http.StatusOK)
}

func (h *HTTPHandler) AcceptOrder(w http.ResponseWriter, r *http.Request) {
	h.mutation(w, r, h.controller.Accept)
}

func (h *HTTPHandler) RejectOrder(w http.ResponseWriter, r *http.Request) {
	h.mutation(w, r, h.controller.Reject)
}

func (h *HTTPHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := chi.URLParam(r, "order_id")

	var req StatusUpdate
	if err := utils.DecodeBody(r, &req); err != nil {
		utils.WriteError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	if err := h.controller.UpdateStatus(ctx, orderID, req.OrderStatus, req.Note); err != nil {
		h.writeAPIError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) mutation(w http.ResponseWriter, r *http.Request, call func(ctx context.Context, id string) error) {
	orderID := chi.URLParam(r, "order_id")

	if err := call(r.Context(), orderID); err != nil {
		h.writeAPIError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeAPIError переводит вид ошибки клиента в HTTP-статус моста.
func (h *HTTPHandler) writeAPIError(w http.ResponseWriter, err error) {
	apiErr, ok := err.(*api.Error)
	if !ok {
		utils.WriteError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	switch apiErr.Kind {
	case api.KindNetwork:
		utils.WriteError(w, apiErr.Message, http.StatusBadGateway)
	case api.KindShape:
		utils.WriteError(w, apiErr.Message, http.StatusBadGateway)
	case api.KindGuard:
		utils.WriteError(w, apiErr.Message, http.StatusConflict)
	default:
		status := apiErr.HTTPStatus
		if status < 400 {
			status = http.StatusBadGateway
		}
		utils.WriteError(w, apiErr.Message, status)
	}
}
