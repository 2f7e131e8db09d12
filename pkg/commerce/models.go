package commerce

// SearchResponse is the envelope all paginated list endpoints return
type SearchResponse[T any] struct {
	Items      []T `json:"items"`
	TotalCount int `json:"total_count"`
}

// Order is one order record as returned by the orders search endpoint
type Order struct {
	EntityID          int64   `json:"entity_id"`
	IncrementID       string  `json:"increment_id"`
	Status            string  `json:"status"`
	State             string  `json:"state"`
	CreatedAt         string  `json:"created_at"`
	UpdatedAt         string  `json:"updated_at"`
	CustomerEmail     string  `json:"customer_email"`
	CustomerFirstname string  `json:"customer_firstname"`
	CustomerLastname  string  `json:"customer_lastname"`
	GrandTotal        float64 `json:"grand_total"`
	Subtotal          float64 `json:"subtotal"`
	ShippingAmount    float64 `json:"shipping_amount"`
	TaxAmount         float64 `json:"tax_amount"`
	DiscountAmount    float64 `json:"discount_amount"`
	OrderCurrencyCode string  `json:"order_currency_code"`
	TotalQtyOrdered   float64 `json:"total_qty_ordered"`
	ShippingDesc      string  `json:"shipping_description"`

	Payment             *Payment         `json:"payment,omitempty"`
	Items               []OrderItem      `json:"items"`
	BillingAddress      *Address         `json:"billing_address,omitempty"`
	ExtensionAttributes *OrderExtensions `json:"extension_attributes,omitempty"`
}

// OrderItem is one line item of an order
type OrderItem struct {
	ItemID      int64   `json:"item_id"`
	SKU         string  `json:"sku"`
	Name        string  `json:"name"`
	ProductType string  `json:"product_type"`
	QtyOrdered  float64 `json:"qty_ordered"`
	Price       float64 `json:"price"`
	RowTotal    float64 `json:"row_total"`
	TaxAmount   float64 `json:"tax_amount"`

	// ProductOptions is a JSON document the source system embeds as a
	// string; it is parsed tolerantly at format time.
	ProductOptions string `json:"product_options,omitempty"`
}

// Address is a billing or shipping address block
type Address struct {
	Firstname string   `json:"firstname"`
	Lastname  string   `json:"lastname"`
	Company   string   `json:"company,omitempty"`
	Street    []string `json:"street"`
	City      string   `json:"city"`
	Region    string   `json:"region,omitempty"`
	Postcode  string   `json:"postcode"`
	CountryID string   `json:"country_id"`
	Telephone string   `json:"telephone,omitempty"`
	Email     string   `json:"email,omitempty"`
}

// Payment holds the payment block of an order
type Payment struct {
	Method      string `json:"method"`
	LastTransID string `json:"last_trans_id,omitempty"`
}

// OrderExtensions carries the extension attributes we read
type OrderExtensions struct {
	ShippingAssignments []ShippingAssignment `json:"shipping_assignments,omitempty"`
}

// ShippingAssignment links the shipping address and method to an order
type ShippingAssignment struct {
	Shipping ShippingInfo `json:"shipping"`
}

// ShippingInfo is the shipping block inside an assignment
type ShippingInfo struct {
	Address *Address `json:"address,omitempty"`
	Method  string   `json:"method,omitempty"`
}

// Transaction is one payment transaction attached to an order
type Transaction struct {
	TransactionID int64  `json:"transaction_id"`
	TxnID         string `json:"txn_id"`
	TxnType       string `json:"txn_type"`
	CreatedAt     string `json:"created_at"`
}

// Shipment is one shipment attached to an order
type Shipment struct {
	EntityID    int64           `json:"entity_id"`
	IncrementID string          `json:"increment_id"`
	CreatedAt   string          `json:"created_at"`
	Tracks      []ShipmentTrack `json:"tracks,omitempty"`
}

// ShipmentTrack is one tracking record of a shipment
type ShipmentTrack struct {
	TrackNumber string `json:"track_number"`
	Title       string `json:"title,omitempty"`
	CarrierCode string `json:"carrier_code,omitempty"`
}

// ShippingAddress returns the order's shipping address, or nil when the
// order carries none (virtual/downloadable orders).
func (o *Order) ShippingAddress() *Address {
	if o.ExtensionAttributes == nil {
		return nil
	}
	for _, sa := range o.ExtensionAttributes.ShippingAssignments {
		if sa.Shipping.Address != nil {
			return sa.Shipping.Address
		}
	}
	return nil
}

// ShippingMethod returns the order's shipping method code, if any.
func (o *Order) ShippingMethod() string {
	if o.ExtensionAttributes == nil {
		return ""
	}
	for _, sa := range o.ExtensionAttributes.ShippingAssignments {
		if sa.Shipping.Method != "" {
			return sa.Shipping.Method
		}
	}
	return ""
}

// fulfillmentStatuses are the order statuses for which shipments exist.
var fulfillmentStatuses = map[string]bool{
	"processing": true,
	"complete":   true,
	"shipped":    true,
}

// HasShipments reports whether the order's status indicates fulfillment,
// i.e. whether fetching shipments is worthwhile.
func (o *Order) HasShipments() bool {
	return fulfillmentStatuses[o.Status]
}
