package entities

import (
	"errors"
	"time"
)

// Статусы доставки, которые присылает бекенд. Набор открытый:
// незнакомые значения не отбрасываются, а попадают в общую вкладку.
const (
	StatusPending        = "Pending"
	StatusAwaitingPickup = "AwaitingPickup"
	StatusOutForDelivery = "OutForDelivery"
	StatusDelivered      = "Delivered"
	StatusCancelled      = "Cancelled"
)

// Подтверждение назначения курьером, независимо от статуса доставки.
const (
	AckPending  = "Pending"
	AckAccepted = "Accepted"
	AckRejected = "Rejected"
)

var (
	ErrOrderNotFound  = errors.New("order not found")
	ErrMissingOrderID = errors.New("order has no identifier")
)

type Order struct {
	ID         string
	OrderID    string
	Status     string
	ShipperAck string

	Destination Destination
	Recipient   Recipient

	Total     float64
	Note      string
	Items     []Item
	CreatedAt time.Time
}

// Key возвращает канонический идентификатор заказа: серверный _id,
// либо человекочитаемый order_id, если _id пуст.
func (o Order) Key() string {
	if o.ID != "" {
		return o.ID
	}
	return o.OrderID
}

type Destination struct {
	Latitude  float64
	Longitude float64
	Address   string
}

// HasCoordinates сообщает, удалось ли извлечь координаты хоть из одной
// известной формы ответа.
func (d Destination) HasCoordinates() bool {
	return d.Latitude != 0 || d.Longitude != 0
}

type Recipient struct {
	Name  string
	Phone string
}

type Item struct {
	Name     string
	Quantity int
	Price    float64
}

type Pagination struct {
	Page  int
	Limit int
	Total int
}
