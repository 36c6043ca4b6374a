package controller

import "github.com/fastship/shipper-agent/internal/entities"

const (
	TabAll   = "All"
	TabOther = "Other"
)

var knownStatuses = map[string]struct{}{
	entities.StatusPending:        {},
	entities.StatusAwaitingPickup: {},
	entities.StatusOutForDelivery: {},
	entities.StatusDelivered:      {},
	entities.StatusCancelled:      {},
}

// FilterByTab — чистая функция видимого подмножества для вкладки.
// Вкладка OutForDelivery намеренно включает и AwaitingPickup: свежие
// назначения видны в активной доставке ещё до подтверждения. Заказы с
// незнакомым статусом собираются во вкладке Other.
func FilterByTab(orders []entities.Order, tab string) []entities.Order {
	out := make([]entities.Order, 0, len(orders))
	for _, o := range orders {
		if matchesTab(o.Status, tab) {
			out = append(out, o)
		}
	}
	return out
}

func matchesTab(status, tab string) bool {
	switch tab {
	case "", TabAll:
		return true
	case entities.StatusOutForDelivery:
		return status == entities.StatusOutForDelivery || status == entities.StatusAwaitingPickup
	case TabOther:
		_, known := knownStatuses[status]
		return !known
	default:
		return status == tab
	}
}

// Visible возвращает текущий список, отфильтрованный по вкладке.
func (c *Controller) Visible(tab string) []entities.Order {
	return FilterByTab(c.Orders(), tab)
}
