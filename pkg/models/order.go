// Package models defines the domain records shared across the robot services.
package models

import "time"

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusCompleted  OrderStatus = "COMPLETED"
	OrderStatusFailed     OrderStatus = "FAILED"
)

// Order is one purchase order to be placed on a supplier portal.
// Created by intake in PENDING; mutated only by the dispatcher during a run.
type Order struct {
	ID           string      `json:"id"`
	OrderCode    string      `json:"order_code"    validate:"required"`
	SupplierCode string      `json:"supplier_code" validate:"required"`
	CustomerID   string      `json:"customer_id,omitempty"`
	CustomerName string      `json:"customer_name"`
	Items        []OrderItem `json:"items"         validate:"required,min=1,dive"`
	Status       OrderStatus `json:"status"`
	PortalRef    string      `json:"portal_ref,omitempty"`
	ErrorMessage string      `json:"error_message,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
	CompletedAt  *time.Time  `json:"completed_at,omitempty"`
}

type OrderItem struct {
	ProductCode string  `json:"product_code" validate:"required"`
	ProductName string  `json:"product_name,omitempty"`
	Quantity    int     `json:"quantity"     validate:"gte=0"`
	UnitPrice   float64 `json:"unit_price,omitempty"`
}

// Terminal reports whether the order reached a final state. Terminal orders
// only re-enter processing through an explicit reset to PENDING.
func (o *Order) Terminal() bool {
	return o.Status == OrderStatusCompleted || o.Status == OrderStatusFailed
}
