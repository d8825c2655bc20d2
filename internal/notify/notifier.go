// Package notify emits customer-notification events onto the side channel
// consumed by the email/SMS collaborator. The fulfillment service never
// sends customer messages itself.
package notify

import (
	"context"
	"encoding/json"
	"time"
)

// Event types carried on the notification topic.
const (
	EventOrderShipped   = "OrderShipped"
	EventOrderDelivered = "OrderDelivered"
	EventOrderCancelled = "OrderCancelled"
)

// Envelope is the versioned wrapper around every notification event.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id"` // internal order id
	Payload       json.RawMessage `json:"payload"`
}

// Notification is the payload of every notification event.
type Notification struct {
	OrderID        string `json:"order_id"`
	Status         string `json:"status"`
	TrackingNumber string `json:"tracking_number,omitempty"`
	TrackingURL    string `json:"tracking_url,omitempty"`
}

// Notifier is the port to the notification side channel.
type Notifier interface {
	// Notify emits one customer notification. Callers are responsible for
	// dedup; Notify itself sends unconditionally.
	Notify(ctx context.Context, eventType string, n Notification) error
}
