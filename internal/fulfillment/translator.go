package fulfillment

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/jcmexdev/pod-fulfillment/internal/orderstore"
	"github.com/jcmexdev/pod-fulfillment/internal/provider"
)

// Validation errors. All of them are terminal: retrying without changing
// the order cannot succeed, so the orchestrator fails the run before any
// vendor call is made.
var (
	// ErrNoEligibleItems indicates the order has no line item tagged for the
	// selected provider. Mixed-fulfillment orders are expected; untagged
	// items are silently excluded, but an empty result is a failure.
	ErrNoEligibleItems = errors.New("fulfillment: order has no items for this provider")

	// ErrMissingShippingAddress indicates required recipient address fields
	// are absent.
	ErrMissingShippingAddress = errors.New("fulfillment: shipping address incomplete")

	// ErrMissingContactEmail indicates the order has no customer email,
	// which the vendor requires on every order.
	ErrMissingContactEmail = errors.New("fulfillment: contact email missing")
)

// IsValidationError reports whether err belongs to the validation taxonomy.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrNoEligibleItems) ||
		errors.Is(err, ErrMissingShippingAddress) ||
		errors.Is(err, ErrMissingContactEmail)
}

// validate checks recipient struct tags. Package-level because validator
// caches struct metadata; safe for concurrent use.
var validate = validator.New()

// Translate converts an internal order into a vendor-neutral fulfillment
// request for the named provider.
//
// Pure function, no I/O: the same order always yields the same request,
// which is what makes retried runs comparable and safe.
func Translate(order *orderstore.Order, providerName string) (*provider.FulfillmentRequest, error) {
	recipient := provider.Recipient{
		Name:       order.ShippingAddr.Name,
		Address1:   order.ShippingAddr.Line1,
		Address2:   order.ShippingAddr.Line2,
		City:       order.ShippingAddr.City,
		Region:     order.ShippingAddr.Region,
		Country:    order.ShippingAddr.Country,
		PostalCode: order.ShippingAddr.PostalCode,
		Phone:      order.ShippingAddr.Phone,
		Email:      order.CustomerEmail,
	}
	if err := validateRecipient(recipient); err != nil {
		return nil, err
	}

	items := eligibleItems(order, providerName)
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: provider %q", ErrNoEligibleItems, providerName)
	}

	return &provider.FulfillmentRequest{
		InternalOrderID: order.ID,
		Recipient:       recipient,
		Items:           items,
		Totals: provider.Totals{
			Subtotal: order.Subtotal,
			Discount: order.Discount,
			Shipping: order.ShippingCost,
			Tax:      order.Tax,
			Currency: order.Currency,
		},
	}, nil
}

// ValidateOrder performs the pre-flight checks of the workflow's validate
// step: at least one eligible item and a complete recipient. It shares the
// translator's rules so the validate and convert steps can never disagree.
func ValidateOrder(order *orderstore.Order, providerName string) error {
	if len(eligibleItems(order, providerName)) == 0 {
		return fmt.Errorf("%w: provider %q", ErrNoEligibleItems, providerName)
	}
	return validateRecipient(provider.Recipient{
		Name:       order.ShippingAddr.Name,
		Address1:   order.ShippingAddr.Line1,
		City:       order.ShippingAddr.City,
		Region:     order.ShippingAddr.Region,
		Country:    order.ShippingAddr.Country,
		PostalCode: order.ShippingAddr.PostalCode,
		Email:      order.CustomerEmail,
	})
}

func validateRecipient(r provider.Recipient) error {
	if r.Email == "" {
		return ErrMissingContactEmail
	}
	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				if fe.Field() == "Email" {
					return fmt.Errorf("%w: %s", ErrMissingContactEmail, fe.Field())
				}
			}
			return fmt.Errorf("%w: %s", ErrMissingShippingAddress, verrs[0].Field())
		}
		return fmt.Errorf("%w: %v", ErrMissingShippingAddress, err)
	}
	return nil
}

// eligibleItems filters the order to lines tagged for the provider,
// preserving order so translation stays deterministic.
func eligibleItems(order *orderstore.Order, providerName string) []provider.LineItem {
	var items []provider.LineItem
	for _, it := range order.Items {
		if it.FulfillsVia != providerName {
			continue
		}
		items = append(items, provider.LineItem{
			VendorVariantID: it.VendorVariantID,
			Quantity:        it.Quantity,
			UnitPrice:       it.UnitPrice,
			ArtworkFiles:    it.ArtworkFiles,
		})
	}
	return items
}
