package printful

// Wire types for the Printful order API. Every response is wrapped in an
// envelope {code, result, error}; code mirrors the HTTP status.

type orderEnvelope struct {
	Code   int       `json:"code"`
	Result *apiOrder `json:"result"`
}

type ratesEnvelope struct {
	Code   int       `json:"code"`
	Result []apiRate `json:"result"`
}

type apiOrder struct {
	ID         int64         `json:"id"`
	ExternalID string        `json:"external_id"`
	Status     string        `json:"status"`
	Items      []apiItem     `json:"items"`
	Costs      apiCosts      `json:"costs"`
	Shipments  []apiShipment `json:"shipments"`
	Created    int64         `json:"created"`
	Updated    int64         `json:"updated"`
}

type apiItem struct {
	VariantID   string    `json:"variant_id"`
	Quantity    int       `json:"quantity"`
	RetailPrice string    `json:"retail_price"`
	Files       []apiFile `json:"files"`
}

type apiFile struct {
	URL string `json:"url"`
}

type apiCosts struct {
	Subtotal string `json:"subtotal"`
	Discount string `json:"discount"`
	Shipping string `json:"shipping"`
	Tax      string `json:"tax"`
	Currency string `json:"currency"`
}

type apiShipment struct {
	TrackingNumber string `json:"tracking_number"`
	TrackingURL    string `json:"tracking_url"`
}

type apiRecipient struct {
	Name        string `json:"name"`
	Address1    string `json:"address1"`
	Address2    string `json:"address2,omitempty"`
	City        string `json:"city"`
	StateCode   string `json:"state_code,omitempty"`
	CountryCode string `json:"country_code"`
	Zip         string `json:"zip"`
	Phone       string `json:"phone,omitempty"`
	Email       string `json:"email"`
}

type apiOrderRequest struct {
	ExternalID string       `json:"external_id"`
	Recipient  apiRecipient `json:"recipient"`
	Items      []apiItem    `json:"items"`
}

type apiRatesRequest struct {
	Recipient apiRecipient  `json:"recipient"`
	Items     []apiRateItem `json:"items"`
}

type apiRateItem struct {
	VariantID string `json:"variant_id"`
	Quantity  int    `json:"quantity"`
}

type apiRate struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Rate            string `json:"rate"`
	Currency        string `json:"currency"`
	MinDeliveryDays int    `json:"min_delivery_days"`
	MaxDeliveryDays int    `json:"max_delivery_days"`
}
