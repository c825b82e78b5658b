// Package web provides the HTTP API for submitting and inspecting orders.
package web

// CreateOrderRequest is the body for registering a new order.
type CreateOrderRequest struct {
	OrderCode    string             `json:"order_code"    validate:"required"`
	SupplierCode string             `json:"supplier_code" validate:"required"`
	CustomerID   string             `json:"customer_id,omitempty"`
	CustomerName string             `json:"customer_name"`
	Items        []OrderItemRequest `json:"items"         validate:"required,min=1,dive"`
}

type OrderItemRequest struct {
	ProductCode string  `json:"product_code" validate:"required"`
	ProductName string  `json:"product_name,omitempty"`
	Quantity    int     `json:"quantity"     validate:"gte=1"`
	UnitPrice   float64 `json:"unit_price,omitempty"`
}
