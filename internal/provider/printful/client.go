// Package printful implements the provider.Provider port against the
// Printful order API.
//
// Each method is a single HTTP round trip with a bounded timeout. This layer
// carries no retry logic; retry policy belongs to the fulfillment workflow,
// which knows whether a failure is worth retrying at all.
package printful

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jcmexdev/pod-fulfillment/internal/provider"
)

// ProviderName is the registry name of this adapter.
const ProviderName = "printful"

// Client talks to the Printful order API.
type Client struct {
	config     *Config
	httpClient *http.Client
}

var _ provider.Provider = (*Client)(nil)

// NewClient creates a Printful client from the given configuration.
func NewClient(config *Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.timeout(),
		},
	}, nil
}

// Name returns the registry name of this provider.
func (c *Client) Name() string { return ProviderName }

// CreateOrder submits a new order. Printful creates it in draft state; it
// does not enter production until ConfirmOrder.
func (c *Client) CreateOrder(ctx context.Context, req *provider.FulfillmentRequest) (*provider.ProviderOrder, error) {
	body := apiOrderRequest{
		ExternalID: req.InternalOrderID,
		Recipient:  toAPIRecipient(req.Recipient),
		Items:      toAPIItems(req.Items),
	}

	respBody, err := c.doRequest(ctx, http.MethodPost, "/orders", body)
	if err != nil {
		return nil, err
	}
	return decodeOrder(respBody)
}

// GetOrder fetches the current vendor-side state of an order.
func (c *Client) GetOrder(ctx context.Context, providerOrderID string) (*provider.ProviderOrder, error) {
	respBody, err := c.doRequest(ctx, http.MethodGet, "/orders/"+providerOrderID, nil)
	if err != nil {
		return nil, err
	}
	return decodeOrder(respBody)
}

// ConfirmOrder moves a draft order into Printful's production queue.
func (c *Client) ConfirmOrder(ctx context.Context, providerOrderID string) (*provider.ProviderOrder, error) {
	respBody, err := c.doRequest(ctx, http.MethodPost, "/orders/"+providerOrderID+"/confirm", nil)
	if err != nil {
		return nil, err
	}
	return decodeOrder(respBody)
}

// CancelOrder cancels a vendor order. Printful refuses with a 4xx once the
// order entered production; that surfaces as (false, nil) rather than an
// error because it is an expected outcome, not a fault.
func (c *Client) CancelOrder(ctx context.Context, providerOrderID string) (bool, error) {
	_, err := c.doRequest(ctx, http.MethodDelete, "/orders/"+providerOrderID, nil)
	if err != nil {
		if isRejection(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// EstimateShipping quotes shipping rates for the request's recipient and items.
func (c *Client) EstimateShipping(ctx context.Context, req *provider.FulfillmentRequest) ([]provider.ShippingEstimate, error) {
	body := apiRatesRequest{
		Recipient: toAPIRecipient(req.Recipient),
		Items:     toAPIRateItems(req.Items),
	}

	respBody, err := c.doRequest(ctx, http.MethodPost, "/shipping/rates", body)
	if err != nil {
		return nil, err
	}

	var env ratesEnvelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return nil, fmt.Errorf("printful: parse rates response: %w", err)
	}

	estimates := make([]provider.ShippingEstimate, 0, len(env.Result))
	for _, r := range env.Result {
		estimates = append(estimates, provider.ShippingEstimate{
			Service:  r.Name,
			Rate:     parseAmount(r.Rate),
			Currency: r.Currency,
			MinDays:  r.MinDeliveryDays,
			MaxDays:  r.MaxDeliveryDays,
		})
	}
	return estimates, nil
}

// doRequest performs one HTTP round trip against the Printful API.
//
// Error mapping is the heart of the retry taxonomy: transport failures and
// timeouts become ErrVendorUnavailable (retryable), non-2xx responses become
// ErrVendorRejected carrying the vendor's body verbatim (terminal), a 404
// becomes ErrVendorOrderNotFound.
func (c *Client) doRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("printful: marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.APIBaseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("printful: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.Token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", provider.ErrVendorUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", provider.ErrVendorUnavailable, err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", provider.ErrVendorOrderNotFound, path)
	}
	if resp.StatusCode >= 400 {
		// The body is the vendor's error report; keep it verbatim so
		// operators can see exactly what the vendor objected to.
		return nil, fmt.Errorf("%w: HTTP %d: %s", provider.ErrVendorRejected, resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

func isRejection(err error) bool {
	return errors.Is(err, provider.ErrVendorRejected) || errors.Is(err, provider.ErrVendorOrderNotFound)
}

func decodeOrder(respBody []byte) (*provider.ProviderOrder, error) {
	var env orderEnvelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return nil, fmt.Errorf("printful: parse order response: %w", err)
	}
	if env.Result == nil {
		return nil, fmt.Errorf("printful: order response missing result")
	}
	return fromAPIOrder(env.Result), nil
}

func fromAPIOrder(o *apiOrder) *provider.ProviderOrder {
	out := &provider.ProviderOrder{
		ID:     strconv.FormatInt(o.ID, 10),
		Status: o.Status,
		Totals: provider.Totals{
			Subtotal: parseAmount(o.Costs.Subtotal),
			Discount: parseAmount(o.Costs.Discount),
			Shipping: parseAmount(o.Costs.Shipping),
			Tax:      parseAmount(o.Costs.Tax),
			Currency: o.Costs.Currency,
		},
	}
	for _, it := range o.Items {
		out.Items = append(out.Items, provider.LineItem{
			VendorVariantID: it.VariantID,
			Quantity:        it.Quantity,
			UnitPrice:       parseAmount(it.RetailPrice),
			ArtworkFiles:    fileURLs(it.Files),
		})
	}
	if len(o.Shipments) > 0 {
		out.TrackingNumber = o.Shipments[0].TrackingNumber
		out.TrackingURL = o.Shipments[0].TrackingURL
	}
	if o.Created > 0 {
		out.CreatedAt = time.Unix(o.Created, 0)
	}
	if o.Updated > 0 {
		out.UpdatedAt = time.Unix(o.Updated, 0)
	}
	return out
}

func toAPIRecipient(r provider.Recipient) apiRecipient {
	return apiRecipient{
		Name:        r.Name,
		Address1:    r.Address1,
		Address2:    r.Address2,
		City:        r.City,
		StateCode:   r.Region,
		CountryCode: r.Country,
		Zip:         r.PostalCode,
		Phone:       r.Phone,
		Email:       r.Email,
	}
}

func toAPIItems(items []provider.LineItem) []apiItem {
	out := make([]apiItem, 0, len(items))
	for _, it := range items {
		files := make([]apiFile, 0, len(it.ArtworkFiles))
		for _, u := range it.ArtworkFiles {
			files = append(files, apiFile{URL: u})
		}
		out = append(out, apiItem{
			VariantID:   it.VendorVariantID,
			Quantity:    it.Quantity,
			RetailPrice: it.UnitPrice.StringFixed(2),
			Files:       files,
		})
	}
	return out
}

func toAPIRateItems(items []provider.LineItem) []apiRateItem {
	out := make([]apiRateItem, 0, len(items))
	for _, it := range items {
		out = append(out, apiRateItem{VariantID: it.VendorVariantID, Quantity: it.Quantity})
	}
	return out
}

func fileURLs(files []apiFile) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.URL)
	}
	return out
}

// parseAmount converts a vendor money string into a decimal. Vendor
// responses occasionally omit cost fields; an empty string is zero.
func parseAmount(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
