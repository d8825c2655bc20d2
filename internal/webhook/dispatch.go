package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jcmexdev/pod-fulfillment/internal/orderstore"
	"github.com/jcmexdev/pod-fulfillment/internal/reconcile"
)

// OrderEventData mirrors the data block of the vendor's order events.
type OrderEventData struct {
	Order struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"order"`
	Shipment struct {
		TrackingNumber string `json:"tracking_number"`
		TrackingURL    string `json:"tracking_url"`
	} `json:"shipment"`
}

// CatalogSync is the out-of-scope catalog collaborator that consumes
// product_updated events.
type CatalogSync interface {
	ProductUpdated(ctx context.Context, data json.RawMessage) error
}

// LoggingCatalogSync is the default CatalogSync: it records that a product
// event arrived and drops it. The real catalog service replaces it when the
// product pipeline is wired up.
type LoggingCatalogSync struct{}

// ProductUpdated logs and drops the event.
func (LoggingCatalogSync) ProductUpdated(ctx context.Context, _ json.RawMessage) error {
	slog.InfoContext(ctx, "product update event received; catalog sync not wired")
	return nil
}

// RegisterHandlers wires the recognized event types to the reconciler and
// the catalog collaborator.
//
// order_shipped/delivered/cancelled force their status even when the payload
// omits one; order_updated trusts the payload's status field.
func RegisterHandlers(r *Receiver, rec *reconcile.Reconciler, catalog CatalogSync) {
	r.On(EventOrderUpdated, orderEventHandler(rec, ""))
	r.On(EventOrderShipped, orderEventHandler(rec, "shipped"))
	r.On(EventOrderDelivered, orderEventHandler(rec, "delivered"))
	r.On(EventOrderCancelled, orderEventHandler(rec, "cancelled"))
	r.On(EventProductUpdated, catalog.ProductUpdated)
}

func orderEventHandler(rec *reconcile.Reconciler, forcedStatus string) Handler {
	return func(ctx context.Context, data json.RawMessage) error {
		var ev OrderEventData
		if err := json.Unmarshal(data, &ev); err != nil {
			return fmt.Errorf("%w: order event data: %v", ErrSkipDelivery, err)
		}
		if ev.Order.ID == "" {
			return fmt.Errorf("%w: order event without order id", ErrSkipDelivery)
		}

		vendorStatus := ev.Order.Status
		if forcedStatus != "" {
			vendorStatus = forcedStatus
		}

		var tracking *orderstore.Tracking
		if ev.Shipment.TrackingNumber != "" || ev.Shipment.TrackingURL != "" {
			tracking = &orderstore.Tracking{
				Number: ev.Shipment.TrackingNumber,
				URL:    ev.Shipment.TrackingURL,
			}
		}

		err := rec.Reconcile(ctx, ev.Order.ID, vendorStatus, tracking)
		if errors.Is(err, reconcile.ErrOrderNotLinked) {
			// Logged by the reconciler; the vendor cannot fix this, so the
			// delivery is accepted and dropped.
			return fmt.Errorf("%w: %v", ErrSkipDelivery, err)
		}
		return err
	}
}
