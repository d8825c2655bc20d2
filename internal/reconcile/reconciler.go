// Package reconcile folds asynchronous vendor status changes back into
// internal order state.
//
// Vendor webhooks are at-least-once; everything here is written to be
// replayed. The order update is a last-write-wins set keyed by provider
// order ID, and customer notifications are deduplicated per (order, status)
// transition through the idempotency store, so replaying the same delivery
// N times converges to the same state with exactly one notification.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jcmexdev/pod-fulfillment/internal/idempotency"
	"github.com/jcmexdev/pod-fulfillment/internal/notify"
	"github.com/jcmexdev/pod-fulfillment/internal/orderstore"
)

// ErrOrderNotLinked indicates the webhook references a vendor order this
// system has no record of. Logged and accepted; the vendor is not at fault,
// so it must never trigger vendor-side retries.
var ErrOrderNotLinked = errors.New("reconcile: no internal order for provider order id")

// Reconciler applies vendor status changes to internal orders.
type Reconciler struct {
	orders   orderstore.Store
	notifier notify.Notifier
	idem     idempotency.Store
}

// NewReconciler wires a reconciler from its collaborators.
func NewReconciler(orders orderstore.Store, notifier notify.Notifier, idem idempotency.Store) *Reconciler {
	return &Reconciler{orders: orders, notifier: notifier, idem: idem}
}

// Reconcile looks up the internal order linked to providerOrderID, maps the
// vendor status, and updates fulfillment status and tracking fields.
// Idempotent: the update is last-write-wins and the notification side effect
// fires at most once per distinct (order, status) transition.
func (r *Reconciler) Reconcile(ctx context.Context, providerOrderID, vendorStatus string, tracking *orderstore.Tracking) error {
	order, err := r.orders.FindByProviderOrderID(ctx, providerOrderID)
	if err != nil {
		if errors.Is(err, orderstore.ErrProviderOrderNotLinked) {
			slog.WarnContext(ctx, "webhook for unknown provider order",
				"provider_order_id", providerOrderID, "vendor_status", vendorStatus)
			return fmt.Errorf("%w: %s", ErrOrderNotLinked, providerOrderID)
		}
		return fmt.Errorf("reconcile: lookup order for %s: %w", providerOrderID, err)
	}

	status, known := MapStatus(vendorStatus)
	if !known {
		slog.WarnContext(ctx, "unmapped vendor status, applying default",
			"provider_order_id", providerOrderID, "vendor_status", vendorStatus,
			"default", DefaultStatus)
	}

	if err := r.orders.ApplyStatus(ctx, order.ID, status, tracking); err != nil {
		return fmt.Errorf("reconcile: apply status for order %s: %w", order.ID, err)
	}

	slog.InfoContext(ctx, "order status reconciled",
		"order_id", order.ID, "provider_order_id", providerOrderID,
		"vendor_status", vendorStatus, "status", status)

	return r.maybeNotify(ctx, order.ID, status, tracking)
}

// maybeNotify emits the customer notification for shipped/delivered/
// cancelled transitions, once per (order, status).
func (r *Reconciler) maybeNotify(ctx context.Context, orderID string, status orderstore.Status, tracking *orderstore.Tracking) error {
	eventType, ok := notificationEvent(status)
	if !ok {
		return nil
	}

	claimed, err := r.idem.Acquire(ctx, idempotency.NotificationKey(orderID, string(status)), idempotency.TTLNotification)
	if err != nil {
		return fmt.Errorf("reconcile: notification dedup for order %s: %w", orderID, err)
	}
	if !claimed {
		return nil
	}

	n := notify.Notification{OrderID: orderID, Status: string(status)}
	if tracking != nil {
		n.TrackingNumber = tracking.Number
		n.TrackingURL = tracking.URL
	}
	if err := r.notifier.Notify(ctx, eventType, n); err != nil {
		// Give a later replay the chance to notify instead of losing the
		// transition entirely.
		_ = r.idem.Release(ctx, idempotency.NotificationKey(orderID, string(status)))
		return fmt.Errorf("reconcile: notify for order %s: %w", orderID, err)
	}
	return nil
}

func notificationEvent(status orderstore.Status) (string, bool) {
	switch status {
	case orderstore.StatusShipped:
		return notify.EventOrderShipped, true
	case orderstore.StatusDelivered:
		return notify.EventOrderDelivered, true
	case orderstore.StatusCancelled:
		return notify.EventOrderCancelled, true
	default:
		return "", false
	}
}
