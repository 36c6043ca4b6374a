package api

import (
	"encoding/json"
	"time"

	"github.com/fastship/shipper-agent/internal/entities"
)

// Бекенд отдаёт списки в трёх формах, проверяются по порядку:
//  1. голый массив [...]
//  2. {"orders": [...], "pagination": {...}}
//  3. {"data": [...]}
//
// Всё остальное — ошибка формы, она не считается пустым списком.
func decodeOrders(data []byte) ([]entities.Order, entities.Pagination, error) {
	var bare []wireOrder
	if err := json.Unmarshal(data, &bare); err == nil {
		return toEntities(bare), entities.Pagination{}, nil
	}

	var envelope struct {
		Orders     []wireOrder     `json:"orders"`
		Data       []wireOrder     `json:"data"`
		Pagination *wirePagination `json:"pagination"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, entities.Pagination{}, shapeError("unrecognized order list response")
	}

	var pg entities.Pagination
	if envelope.Pagination != nil {
		pg = entities.Pagination{
			Page:  envelope.Pagination.Page,
			Limit: envelope.Pagination.Limit,
			Total: envelope.Pagination.Total,
		}
	}

	if envelope.Orders != nil {
		return toEntities(envelope.Orders), pg, nil
	}
	if envelope.Data != nil {
		return toEntities(envelope.Data), pg, nil
	}
	return nil, entities.Pagination{}, shapeError("unrecognized order list response")
}

// Одиночный заказ: голый объект, {"order": {...}} или {"data": {...}}.
func decodeOrder(data []byte) (entities.Order, error) {
	var envelope struct {
		Order *wireOrder `json:"order"`
		Data  *wireOrder `json:"data"`
	}
	if err := json.Unmarshal(data, &envelope); err == nil {
		if envelope.Order != nil {
			return envelope.Order.toEntity(), nil
		}
		if envelope.Data != nil {
			return envelope.Data.toEntity(), nil
		}
	}

	var bare wireOrder
	if err := json.Unmarshal(data, &bare); err == nil && bare.key() != "" {
		return bare.toEntity(), nil
	}
	return entities.Order{}, shapeError("unrecognized order response")
}

type wireOrder struct {
	ID      string `json:"_id"`
	OrderID string `json:"order_id"`
	Status  string `json:"order_status"`
	Ack     string `json:"shipper_ack"`

	Total          float64    `json:"total"`
	Note           string     `json:"note"`
	RecipientName  string     `json:"recipient_name"`
	RecipientPhone string     `json:"recipient_phone"`
	Items          []wireItem `json:"items"`
	CreatedAt      string     `json:"created_at"`

	// Адрес доставки приходит в одной из нескольких форм,
	// см. resolveDestination.
	Destination     *wireCoords     `json:"destination"`
	DeliveryAddress json.RawMessage `json:"delivery_address"`
	Location        *wireGeo        `json:"location"`
	ShippingAddress string          `json:"shipping_address"`
	Address         json.RawMessage `json:"address"`
}

type wireCoords struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type wireGeo struct {
	// GeoJSON: [долгота, широта]
	Coordinates []float64 `json:"coordinates"`
}

type wireItem struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

type wirePagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

func (o wireOrder) key() string {
	if o.ID != "" {
		return o.ID
	}
	return o.OrderID
}

func (o wireOrder) toEntity() entities.Order {
	order := entities.Order{
		ID:         o.ID,
		OrderID:    o.OrderID,
		Status:     o.Status,
		ShipperAck: o.Ack,
		Total:      o.Total,
		Note:       o.Note,
		Recipient: entities.Recipient{
			Name:  o.RecipientName,
			Phone: o.RecipientPhone,
		},
		Destination: o.resolveDestination(),
	}

	if o.CreatedAt != "" {
		if ts, err := time.Parse(time.RFC3339, o.CreatedAt); err == nil {
			order.CreatedAt = ts
		}
	}

	for _, it := range o.Items {
		order.Items = append(order.Items, entities.Item{
			Name:     it.Name,
			Quantity: it.Quantity,
			Price:    it.Price,
		})
	}
	return order
}

// resolveDestination пробует известные формы адреса в порядке приоритета:
// destination{lat,lng} → delivery_address{latitude,longitude} →
// location.coordinates [lng,lat] → текстовые shipping_address / address.
func (o wireOrder) resolveDestination() entities.Destination {
	if o.Destination != nil && (o.Destination.Lat != 0 || o.Destination.Lng != 0) {
		return entities.Destination{Latitude: o.Destination.Lat, Longitude: o.Destination.Lng}
	}

	if len(o.DeliveryAddress) > 0 {
		var structured struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
			Address   string  `json:"address"`
		}
		if err := json.Unmarshal(o.DeliveryAddress, &structured); err == nil {
			if structured.Latitude != 0 || structured.Longitude != 0 {
				return entities.Destination{
					Latitude:  structured.Latitude,
					Longitude: structured.Longitude,
					Address:   structured.Address,
				}
			}
		}
	}

	if o.Location != nil && len(o.Location.Coordinates) == 2 {
		return entities.Destination{
			Latitude:  o.Location.Coordinates[1],
			Longitude: o.Location.Coordinates[0],
		}
	}

	if o.ShippingAddress != "" {
		return entities.Destination{Address: o.ShippingAddress}
	}

	var text string
	if len(o.DeliveryAddress) > 0 && json.Unmarshal(o.DeliveryAddress, &text) == nil && text != "" {
		return entities.Destination{Address: text}
	}
	if len(o.Address) > 0 && json.Unmarshal(o.Address, &text) == nil && text != "" {
		return entities.Destination{Address: text}
	}
	return entities.Destination{}
}

func toEntities(orders []wireOrder) []entities.Order {
	result := make([]entities.Order, 0, len(orders))
	for _, o := range orders {
		result = append(result, o.toEntity())
	}
	return result
}
