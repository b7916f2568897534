package order

import (
	"time"

	"github.com/Additional-Code/orderdesk/internal/dto"
	"github.com/Additional-Code/orderdesk/internal/entity"
)

// Event types published on the order topic.
const (
	EventOrderCreated = "order.created"
	EventOrderUpdated = "order.updated"
	EventOrderDeleted = "order.deleted"
)

// OrderEvent is emitted after an order is created, updated or deleted.
type OrderEvent struct {
	Type            string    `json:"type"`
	ID              int64     `json:"id"`
	CustomerName    string    `json:"customerName"`
	ShippingAddress string    `json:"shippingAddress"`
	Total           float64   `json:"total"`
	OrderDate       string    `json:"orderDate"`
	OccurredAt      time.Time `json:"occurredAt"`
}

// NewEvent snapshots order into an event of the given type.
func NewEvent(eventType string, order *entity.Order, at time.Time) OrderEvent {
	return OrderEvent{
		Type:            eventType,
		ID:              order.ID,
		CustomerName:    order.CustomerName,
		ShippingAddress: order.ShippingAddress,
		Total:           order.Total,
		OrderDate:       dto.FormatDate(order.OrderDate),
		OccurredAt:      at,
	}
}
