// Package provider defines the port for print-on-demand fulfillment
// providers and the value objects that cross it.
//
// The interface is defined here, in the domain layer; concrete vendor
// adapters (Printful today, others later) live under this package and are
// looked up through the Registry. Callers never hold a concrete vendor type.
package provider

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrVendorUnavailable indicates a network failure or timeout talking to
	// the vendor. Safe to retry with backoff.
	ErrVendorUnavailable = errors.New("provider: vendor temporarily unavailable")

	// ErrVendorRejected indicates the vendor answered with a non-2xx status.
	// Not retryable; the wrapped message carries the vendor's error body
	// verbatim for diagnostics.
	ErrVendorRejected = errors.New("provider: vendor rejected request")

	// ErrVendorOrderNotFound indicates the vendor has no order with the
	// requested ID.
	ErrVendorOrderNotFound = errors.New("provider: vendor order not found")

	ErrProviderNotFound = errors.New("provider: not registered")
	ErrProviderDisabled = errors.New("provider: disabled")
)

// Recipient is the shipping destination of a fulfillment request.
// Validation tags mirror what every POD vendor requires before accepting
// an order.
type Recipient struct {
	Name       string `validate:"required"`
	Address1   string `validate:"required"`
	Address2   string
	City       string `validate:"required"`
	Region     string
	Country    string `validate:"required,iso3166_1_alpha2"`
	PostalCode string `validate:"required"`
	Phone      string
	Email      string `validate:"required,email"`
}

// LineItem is a single vendor-fulfilled position of an order.
type LineItem struct {
	VendorVariantID string
	Quantity        int
	UnitPrice       decimal.Decimal
	ArtworkFiles    []string
}

// Totals carries the settled order amounts. The orchestrator never
// recomputes them; payment is out of scope.
type Totals struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Shipping decimal.Decimal
	Tax      decimal.Decimal
	Currency string
}

// FulfillmentRequest is the vendor-neutral order representation handed to a
// Provider. It is built once per orchestration run by the translator and is
// immutable afterwards; translating the same internal order twice yields an
// identical request, which is what makes run retries safe to diff.
type FulfillmentRequest struct {
	InternalOrderID string
	Recipient       Recipient
	Items           []LineItem
	Totals          Totals
}

// ProviderOrder is the vendor-side order representation. The vendor owns it;
// what we hold is a cached, possibly stale copy.
type ProviderOrder struct {
	ID             string
	Status         string // vendor vocabulary, mapped by the reconciler
	Items          []LineItem
	Totals         Totals
	TrackingNumber string
	TrackingURL    string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ShippingEstimate is a single rate option returned by the vendor.
type ShippingEstimate struct {
	Service  string
	Rate     decimal.Decimal
	Currency string
	MinDays  int
	MaxDays  int
}

// Provider is the uniform fulfillment-provider surface. Each call is a
// single vendor round trip with a bounded timeout; retries are a
// workflow-level policy, never implemented at this layer.
type Provider interface {
	// Name returns the registry name of this provider.
	Name() string

	// CreateOrder submits a new draft order to the vendor.
	CreateOrder(ctx context.Context, req *FulfillmentRequest) (*ProviderOrder, error)

	// GetOrder fetches the current vendor-side state of an order.
	GetOrder(ctx context.Context, providerOrderID string) (*ProviderOrder, error)

	// ConfirmOrder moves a draft order into the vendor's production queue.
	ConfirmOrder(ctx context.Context, providerOrderID string) (*ProviderOrder, error)

	// CancelOrder cancels a vendor order. Returns false if the vendor
	// refused because the order already entered production.
	CancelOrder(ctx context.Context, providerOrderID string) (bool, error)

	// EstimateShipping quotes shipping rates for the request's recipient
	// and items.
	EstimateShipping(ctx context.Context, req *FulfillmentRequest) ([]ShippingEstimate, error)
}
