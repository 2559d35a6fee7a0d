package models

import (
	"math"
	"time"
)

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
)

type OrderItem struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name,omitempty"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
}

type Order struct {
	ID              string      `json:"id,omitempty"`
	UserID          string      `json:"userId"`
	Items           []OrderItem `json:"items"`
	Total           float64     `json:"total"`
	Status          OrderStatus `json:"status"`
	ShippingAddress string      `json:"shippingAddress,omitempty"`
	CreatedAt       *time.Time  `json:"createdAt,omitempty"`
	UpdatedAt       *time.Time  `json:"updatedAt,omitempty"`
}

func (o Order) GetID() string { return o.ID }

// RecalculateTotal sums the line items, rounded to cents.
func (o *Order) RecalculateTotal() float64 {
	var total float64
	for _, item := range o.Items {
		total += float64(item.Quantity) * item.UnitPrice
	}
	o.Total = math.Round(total*100) / 100
	return o.Total
}

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:    {OrderProcessing, OrderCancelled},
	OrderProcessing: {OrderShipped, OrderCancelled},
	OrderShipped:    {OrderDelivered},
}

// ValidOrderStatus reports whether s is a known status.
func ValidOrderStatus(s OrderStatus) bool {
	switch s {
	case OrderPending, OrderProcessing, OrderShipped, OrderDelivered, OrderCancelled:
		return true
	}
	return false
}

// CanTransition reports whether an order may move from one status to
// another. Delivered and cancelled orders are terminal.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

const OrderSchema = `{
  "type": "object",
  "required": ["userId", "items", "status"],
  "properties": {
    "userId": {"type": "string", "minLength": 1},
    "status": {"type": "string", "enum": ["pending", "processing", "shipped", "delivered", "cancelled"]},
    "total":  {"type": "number", "minimum": 0},
    "items": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["productId", "quantity", "unitPrice"],
        "properties": {
          "productId": {"type": "string", "minLength": 1},
          "quantity":  {"type": "integer", "minimum": 1},
          "unitPrice": {"type": "number", "minimum": 0}
        }
      }
    }
  }
}`
