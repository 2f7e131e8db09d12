package commerce

import (
	"fmt"
	"net/url"
)

const (
	// OrdersEndpoint is the paginated order search endpoint
	OrdersEndpoint = "/rest/V1/orders"

	// TransactionsEndpoint is the payment transaction search endpoint
	TransactionsEndpoint = "/rest/V1/transactions"

	// ShipmentsEndpoint is the shipment search endpoint
	ShipmentsEndpoint = "/rest/V1/shipments"

	// MaxPageSize is the largest page the API accepts
	MaxPageSize = 500
)

// OrderSearchURL constructs the URL for one page of the order collection.
// Results are requested sorted by entity_id descending so already-seen
// pages do not shift when new orders are created on the source system
// mid-run. createdAfter, when non-empty (YYYY-MM-DD), adds a created_at
// lower-bound filter group.
func OrderSearchURL(baseURL string, page, pageSize int, createdAfter string) string {
	if pageSize <= 0 {
		pageSize = 1
	} else if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	params := url.Values{}
	params.Set("searchCriteria[currentPage]", fmt.Sprintf("%d", page))
	params.Set("searchCriteria[pageSize]", fmt.Sprintf("%d", pageSize))
	params.Set("searchCriteria[sortOrders][0][field]", "entity_id")
	params.Set("searchCriteria[sortOrders][0][direction]", "DESC")

	if createdAfter != "" {
		params.Set("searchCriteria[filter_groups][0][filters][0][field]", "created_at")
		params.Set("searchCriteria[filter_groups][0][filters][0][value]", createdAfter)
		params.Set("searchCriteria[filter_groups][0][filters][0][condition_type]", "gteq")
	}

	return fmt.Sprintf("%s%s?%s", baseURL, OrdersEndpoint, params.Encode())
}

// TransactionSearchURL constructs the URL for the transactions of one order
func TransactionSearchURL(baseURL string, orderID int64) string {
	return filterByOrderID(baseURL, TransactionsEndpoint, orderID)
}

// ShipmentSearchURL constructs the URL for the shipments of one order
func ShipmentSearchURL(baseURL string, orderID int64) string {
	return filterByOrderID(baseURL, ShipmentsEndpoint, orderID)
}

func filterByOrderID(baseURL, endpoint string, orderID int64) string {
	params := url.Values{}
	params.Set("searchCriteria[filter_groups][0][filters][0][field]", "order_id")
	params.Set("searchCriteria[filter_groups][0][filters][0][value]", fmt.Sprintf("%d", orderID))
	params.Set("searchCriteria[filter_groups][0][filters][0][condition_type]", "eq")

	return fmt.Sprintf("%s%s?%s", baseURL, endpoint, params.Encode())
}
