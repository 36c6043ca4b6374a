package handler

import (
	"time"

	"github.com/fastship/shipper-agent/internal/entities"
)

// Order — представление заказа для локальных потребителей моста.
type Order struct {
	ID          string      `json:"_id,omitempty"`
	OrderID     string      `json:"order_id,omitempty"`
	Status      string      `json:"order_status"`
	ShipperAck  string      `json:"shipper_ack,omitempty"`
	Total       float64     `json:"total,omitempty"`
	Note        string      `json:"note,omitempty"`
	Recipient   Recipient   `json:"recipient"`
	Destination Destination `json:"destination"`
	Items       []Item      `json:"items,omitempty"`
	CreatedAt   *time.Time  `json:"created_at,omitempty"`
}

type Recipient struct {
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type Destination struct {
	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
	Address   string  `json:"address,omitempty"`
}

type Item struct {
	Name     string  `json:"name,omitempty"`
	Quantity int     `json:"quantity,omitempty"`
	Price    float64 `json:"price,omitempty"`
}

// OrderList — список вместе с состоянием последней синхронизации, чтобы
// потребитель мог показать и данные, и «не смогли обновиться».
type OrderList struct {
	Orders   []Order  `json:"orders"`
	Error    string   `json:"error,omitempty"`
	Attempts []string `json:"attempts,omitempty"`
}

type StatusUpdate struct {
	OrderStatus string `json:"order_status" validate:"required"`
	Note        string `json:"note,omitempty"`
}

func OrderEntityToJSON(o entities.Order) Order {
	out := Order{
		ID:         o.ID,
		OrderID:    o.OrderID,
		Status:     o.Status,
		ShipperAck: o.ShipperAck,
		Total:      o.Total,
		Note:       o.Note,
		Recipient: Recipient{
			Name:  o.Recipient.Name,
			Phone: o.Recipient.Phone,
		},
		Destination: Destination{
			Latitude:  o.Destination.Latitude,
			Longitude: o.Destination.Longitude,
			Address:   o.Destination.Address,
		},
	}

	if !o.CreatedAt.IsZero() {
		ts := o.CreatedAt
		out.CreatedAt = &ts
	}
	for _, it := range o.Items {
		out.Items = append(out.Items, Item{
			Name:     it.Name,
			Quantity: it.Quantity,
			Price:    it.Price,
		})
	}
	return out
}

func OrdersToJSON(orders []entities.Order) []Order {
	out := make([]Order, 0, len(orders))
	for _, o := range orders {
		out = append(out, OrderEntityToJSON(o))
	}
	return out
}
