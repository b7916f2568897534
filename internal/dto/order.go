package dto

import (
	"time"

	"github.com/Additional-Code/orderdesk/internal/entity"
)

// DateLayout is the wire format of an order date.
const DateLayout = "2006-01-02"

// OrderRequest is the payload accepted by create and update endpoints.
type OrderRequest struct {
	CustomerName    string  `json:"customerName"`
	ShippingAddress string  `json:"shippingAddress"`
	Total           float64 `json:"total"`
	OrderDate       string  `json:"orderDate,omitempty"`
}

// OrderResponse represents an order as exposed via transport layers.
type OrderResponse struct {
	ID              int64   `json:"id"`
	CustomerName    string  `json:"customerName"`
	OrderDate       string  `json:"orderDate"`
	ShippingAddress string  `json:"shippingAddress"`
	Total           float64 `json:"total"`
}

// FromEntity converts a stored order into its wire representation.
func FromEntity(order *entity.Order) OrderResponse {
	return OrderResponse{
		ID:              order.ID,
		CustomerName:    order.CustomerName,
		OrderDate:       FormatDate(order.OrderDate),
		ShippingAddress: order.ShippingAddress,
		Total:           order.Total,
	}
}

// FromEntities converts a slice of orders, never returning nil.
func FromEntities(orders []entity.Order) []OrderResponse {
	out := make([]OrderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, FromEntity(&orders[i]))
	}
	return out
}

// FormatDate renders t as a calendar date; the zero time renders empty.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}
