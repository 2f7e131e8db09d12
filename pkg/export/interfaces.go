package export

import "shopexport/pkg/commerce"

// CommerceClient defines the API operations the download stage depends on
type CommerceClient interface {
	SearchOrders(page, pageSize int, createdAfter string) (*commerce.SearchResponse[commerce.Order], error)
	GetTransactions(orderID int64) ([]commerce.Transaction, error)
	GetShipments(orderID int64) ([]commerce.Shipment, error)
}
