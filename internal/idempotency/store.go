// Package idempotency provides the duplicate-suppression store used across
// the service: webhook event replay, notification dedup, and the per-order
// single-flight guard around orchestration runs.
package idempotency

import (
	"context"
	"fmt"
	"time"
)

// Key formats. Kept in one place so the Redis keyspace is greppable.
const (
	// KeyRunInflight guards at-most-one orchestration in flight per order:
	// fulfill:inflight:{order_id}
	KeyRunInflight = "fulfill:inflight:%s"

	// KeyWebhookEvent suppresses duplicate webhook deliveries:
	// webhook:event:{event_key}
	KeyWebhookEvent = "webhook:event:%s"

	// KeyNotification suppresses duplicate customer notifications per
	// (order, status) transition: notify:{order_id}:{status}
	KeyNotification = "notify:%s:%s"
)

var (
	// TTLRunInflight bounds how long a crashed run can block retries.
	TTLRunInflight = 10 * time.Minute

	// TTLWebhookEvent covers the vendor's webhook retry window with margin.
	TTLWebhookEvent = 48 * time.Hour

	// TTLNotification keeps a notification transition marked long enough
	// that late webhook replays cannot re-notify.
	TTLNotification = 30 * 24 * time.Hour
)

// RunInflightKey builds the single-flight key for an order.
func RunInflightKey(orderID string) string {
	return fmt.Sprintf(KeyRunInflight, orderID)
}

// WebhookEventKey builds the dedup key for a webhook event.
func WebhookEventKey(eventKey string) string {
	return fmt.Sprintf(KeyWebhookEvent, eventKey)
}

// NotificationKey builds the dedup key for an (order, status) notification.
func NotificationKey(orderID, status string) string {
	return fmt.Sprintf(KeyNotification, orderID, status)
}

// Store is the duplicate-suppression port. Acquire has set-if-not-exists
// semantics: the first caller for a key wins, every later caller within the
// TTL loses.
type Store interface {
	// Acquire claims key for ttl. Returns true if this caller claimed it,
	// false if it was already held.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Release drops a claim early. Used by the single-flight guard once a
	// run reaches a terminal state; dedup keys are left to expire.
	Release(ctx context.Context, key string) error
}
