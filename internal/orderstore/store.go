// Package orderstore defines the port to the internal order system.
//
// The fulfillment service does not own order persistence; it pulls order
// detail from this collaborator and writes fulfillment metadata back onto
// the order record. The in-memory implementation backs tests and local runs.
package orderstore

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrOrderNotFound indicates the order store has no record for the
	// requested internal order ID.
	ErrOrderNotFound = errors.New("orderstore: order not found")

	// ErrProviderOrderNotLinked indicates no internal order carries the
	// requested provider order ID. Webhooks for such orders are logged and
	// accepted; the vendor is not at fault.
	ErrProviderOrderNotLinked = errors.New("orderstore: no order linked to provider order id")
)

// Status is the internal fulfillment status vocabulary. Vendor statuses are
// mapped into it by the reconciler's status table.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// IsValid returns true if s is a known internal status.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	default:
		return false
	}
}

// Address is the order's shipping destination as the order system stores it.
type Address struct {
	Name       string
	Line1      string
	Line2      string
	City       string
	Region     string
	Country    string
	PostalCode string
	Phone      string
}

// Item is one order line. FulfillsVia names the provider responsible for
// producing it; an empty value means the item is fulfilled elsewhere
// (digital download, in-house stock) and is invisible to this service.
type Item struct {
	SKU             string
	FulfillsVia     string
	VendorVariantID string
	Quantity        int
	UnitPrice       decimal.Decimal
	ArtworkFiles    []string
}

// Fulfillment is the metadata this service owns on an order record.
type Fulfillment struct {
	Status          Status
	ProviderName    string
	ProviderOrderID string
	TrackingNumber  string
	TrackingURL     string
	UpdatedAt       time.Time
}

// Order is the order detail pulled from the order system.
type Order struct {
	ID            string
	CustomerEmail string
	ShippingAddr  Address
	Items         []Item
	Subtotal      decimal.Decimal
	Discount      decimal.Decimal
	ShippingCost  decimal.Decimal
	Tax           decimal.Decimal
	Currency      string
	Fulfillment   Fulfillment
}

// Tracking carries shipment tracking fields from a vendor event.
type Tracking struct {
	Number string
	URL    string
}

// Store is the port to the order-store collaborator.
type Store interface {
	// GetOrder pulls full order detail for an internal order ID.
	GetOrder(ctx context.Context, orderID string) (*Order, error)

	// FindByProviderOrderID resolves the internal order linked to a vendor
	// order. Fails with ErrProviderOrderNotLinked when no link exists.
	FindByProviderOrderID(ctx context.Context, providerOrderID string) (*Order, error)

	// LinkProviderOrder writes the provider name and provider order ID onto
	// the order record. This is the persist step of a fulfillment run.
	LinkProviderOrder(ctx context.Context, orderID, providerName, providerOrderID string) error

	// ApplyStatus sets fulfillment status and tracking in one atomic
	// read-modify-write. Last write wins; concurrent webhook deliveries for
	// the same order must not lose updates.
	ApplyStatus(ctx context.Context, orderID string, status Status, tracking *Tracking) error
}
