package kafka

import (
	"context"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/andikarap/voucher-shop/internal/shop"
)

// EventSink adapts the async producer to the engine's publishing interface.
// Keyed by order id so all events of one order keep their relative order.
type EventSink struct {
	Producer *Producer
	Service  string
}

func (s *EventSink) Publish(_ context.Context, eventType, orderID string, payload any) {
	ev := shop.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.Service,
		CorrelationID: orderID,
		Payload:       MustMarshal(payload),
	}
	s.Producer.Publish([]byte(orderID), MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
