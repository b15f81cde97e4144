package shop

import (
	"context"
	"encoding/json"
	"time"
)

const (
	EventOrderCreated = "OrderCreated"
	EventOrderPaid    = "OrderPaid"
	EventOrderExpired = "OrderExpired"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id"` // order_id
	Payload       json.RawMessage `json:"payload"`
}

type OrderCreatedPayload struct {
	OrderID     string `json:"order_id"`
	ProductID   string `json:"product_id"`
	Quantity    int    `json:"quantity"`
	TotalAmount int64  `json:"total_amount"`
}

type OrderPaidPayload struct {
	OrderID   string   `json:"order_id"`
	ProductID string   `json:"product_id"`
	Codes     []string `json:"codes"`
}

type OrderExpiredPayload struct {
	OrderID string `json:"order_id"`
}

// EventSink receives lifecycle events. Publishing is fire-and-forget:
// the engine never fails an operation because an event could not go out.
type EventSink interface {
	Publish(ctx context.Context, eventType, orderID string, payload any)
}
