package format

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"shopexport/pkg/commerce"
	"shopexport/pkg/logger"
	"shopexport/pkg/store"
)

// Row is one flat CSV row, values aligned with Columns.
type Row []string

// Formatter converts one durable unit into zero or more flat rows.
type Formatter interface {
	Columns() []string
	Rows(unit *store.Unit) []Row
}

// columns is the fixed output schema: order header fields, the full
// billing and shipping address blocks, then the line item fields. One row
// is emitted per line item; order-level fields repeat on every row.
var columns = []string{
	"increment_id",
	"entity_id",
	"status",
	"created_at",
	"customer_email",
	"customer_firstname",
	"customer_lastname",
	"grand_total",
	"subtotal",
	"shipping_amount",
	"tax_amount",
	"discount_amount",
	"currency",
	"payment_method",
	"transaction_ids",
	"shipping_method",
	"tracking_numbers",
	"billing_firstname",
	"billing_lastname",
	"billing_company",
	"billing_street",
	"billing_city",
	"billing_region",
	"billing_postcode",
	"billing_country",
	"billing_telephone",
	"shipping_firstname",
	"shipping_lastname",
	"shipping_company",
	"shipping_street",
	"shipping_city",
	"shipping_region",
	"shipping_postcode",
	"shipping_country",
	"shipping_telephone",
	"item_sku",
	"item_name",
	"item_qty",
	"item_price",
	"item_row_total",
	"item_options",
}

// OrderFormatter flattens order units into CSV rows.
type OrderFormatter struct {
	logger logger.Logger
}

// NewOrderFormatter creates a formatter.
func NewOrderFormatter(log logger.Logger) *OrderFormatter {
	if log == nil {
		log = logger.GetLogger()
	}
	return &OrderFormatter{logger: log}
}

// Columns returns the fixed, stable column schema.
func (f *OrderFormatter) Columns() []string {
	out := make([]string, len(columns))
	copy(out, columns)
	return out
}

// Rows produces one row per line item. An order without line items
// contributes no rows. Malformed product-option JSON contributes an empty
// options value and a warning, never an error.
func (f *OrderFormatter) Rows(unit *store.Unit) []Row {
	order := unit.Order

	head := []string{
		order.IncrementID,
		strconv.FormatInt(order.EntityID, 10),
		order.Status,
		order.CreatedAt,
		order.CustomerEmail,
		order.CustomerFirstname,
		order.CustomerLastname,
		money(order.GrandTotal),
		money(order.Subtotal),
		money(order.ShippingAmount),
		money(order.TaxAmount),
		money(order.DiscountAmount),
		order.OrderCurrencyCode,
		paymentMethod(order),
		transactionIDs(unit.Transactions),
		order.ShippingMethod(),
		trackingNumbers(unit.Shipments),
	}
	head = append(head, addressBlock(order.BillingAddress)...)
	head = append(head, addressBlock(order.ShippingAddress())...)

	rows := make([]Row, 0, len(order.Items))
	for _, item := range order.Items {
		row := make(Row, 0, len(columns))
		row = append(row, head...)
		row = append(row,
			item.SKU,
			item.Name,
			qty(item.QtyOrdered),
			money(item.Price),
			money(item.RowTotal),
			f.itemOptions(order.IncrementID, &item),
		)
		rows = append(rows, row)
	}

	return rows
}

// addressBlock renders the nine address columns, empty when the order has
// no address of this kind (virtual orders).
func addressBlock(a *commerce.Address) []string {
	if a == nil {
		return make([]string, 9)
	}
	return []string{
		a.Firstname,
		a.Lastname,
		a.Company,
		strings.Join(a.Street, ", "),
		a.City,
		a.Region,
		a.Postcode,
		a.CountryID,
		a.Telephone,
	}
}

func paymentMethod(order *commerce.Order) string {
	if order.Payment == nil {
		return ""
	}
	return order.Payment.Method
}

func transactionIDs(transactions []commerce.Transaction) string {
	if len(transactions) == 0 {
		return ""
	}
	ids := make([]string, 0, len(transactions))
	for _, t := range transactions {
		if t.TxnID != "" {
			ids = append(ids, t.TxnID)
		}
	}
	return strings.Join(ids, "|")
}

func trackingNumbers(shipments []commerce.Shipment) string {
	var numbers []string
	for _, s := range shipments {
		for _, track := range s.Tracks {
			if track.TrackNumber != "" {
				numbers = append(numbers, track.TrackNumber)
			}
		}
	}
	return strings.Join(numbers, "|")
}

// productOptions mirrors the source system's serialized option document;
// only attributes_info is rendered.
type productOptions struct {
	AttributesInfo []struct {
		Label string `json:"label"`
		Value string `json:"value"`
	} `json:"attributes_info"`
}

// itemOptions renders a line item's product options as "Label: Value"
// pairs. The source embeds them as a JSON string; a malformed document is
// logged and contributes an empty value.
func (f *OrderFormatter) itemOptions(incrementID string, item *commerce.OrderItem) string {
	if item.ProductOptions == "" {
		return ""
	}

	var opts productOptions
	if err := json.Unmarshal([]byte(item.ProductOptions), &opts); err != nil {
		f.logger.WarnWithFields("malformed product options, emitting empty value", map[string]interface{}{
			"increment_id": incrementID,
			"sku":          item.SKU,
			"error":        err.Error(),
		})
		return ""
	}

	pairs := make([]string, 0, len(opts.AttributesInfo))
	for _, attr := range opts.AttributesInfo {
		pairs = append(pairs, fmt.Sprintf("%s: %s", attr.Label, attr.Value))
	}
	return strings.Join(pairs, "; ")
}

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func qty(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
