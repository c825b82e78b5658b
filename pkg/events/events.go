// Package events defines the order lifecycle notifications published on the
// event bus. Notification senders and downstream systems subscribe to these
// instead of polling the order store.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/dorumake/robot/pkg/models"
)

type EventType string

const Topic = "robot.orders"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	OrderQueuedEvent    EventType = "order.queued"
	OrderStartedEvent   EventType = "order.started"
	OrderCompletedEvent EventType = "order.completed"
	OrderFailedEvent    EventType = "order.failed"
)

type BaseEvent struct {
	ID           string    `json:"id"`
	Type         EventType `json:"type"`
	Timestamp    time.Time `json:"timestamp"`
	OrderID      string    `json:"order_id"`
	OrderCode    string    `json:"order_code"`
	SupplierCode string    `json:"supplier_code"`
	WorkerID     string    `json:"worker_id,omitempty"`
}

func NewBaseEvent(eventType EventType, order *models.Order) BaseEvent {
	return BaseEvent{
		ID:           uuid.New().String(),
		Type:         eventType,
		Timestamp:    time.Now().UTC(),
		OrderID:      order.ID,
		OrderCode:    order.OrderCode,
		SupplierCode: order.SupplierCode,
	}
}

type OrderQueued struct {
	BaseEvent
}

func (e OrderQueued) GetType() EventType {
	return OrderQueuedEvent
}

type OrderStarted struct {
	BaseEvent
}

func (e OrderStarted) GetType() EventType {
	return OrderStartedEvent
}

type OrderCompleted struct {
	BaseEvent

	PortalRef string        `json:"portal_ref"`
	Duration  time.Duration `json:"duration"`
}

func (e OrderCompleted) GetType() EventType {
	return OrderCompletedEvent
}

type OrderFailed struct {
	BaseEvent

	Step       models.Step   `json:"step,omitempty"`
	Message    string        `json:"message"`
	Screenshot string        `json:"screenshot,omitempty"`
	Duration   time.Duration `json:"duration"`
}

func (e OrderFailed) GetType() EventType {
	return OrderFailedEvent
}
