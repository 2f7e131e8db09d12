package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"

	"shopexport/pkg/commerce"
)

// MockCommerceServer simulates the commerce REST API: a fixed order
// collection served newest-first through the paginated search endpoint,
// plus per-order transactions and shipments.
type MockCommerceServer struct {
	server *httptest.Server

	mu     sync.RWMutex
	orders []commerce.Order // sorted by entity_id descending
	txns   map[int64][]commerce.Transaction
	ships  map[int64][]commerce.Shipment

	// errorResponses maps endpoint paths to forced status codes
	errorResponses map[string]int

	requestCount int32
	token        string
}

// NewMockCommerceServer creates a server holding n orders with entity ids
// 1..n. Every third order is "complete" (and has a shipment), the rest
// are "pending". Every order has one transaction.
func NewMockCommerceServer(n int) *MockCommerceServer {
	m := &MockCommerceServer{
		txns:           make(map[int64][]commerce.Transaction),
		ships:          make(map[int64][]commerce.Shipment),
		errorResponses: make(map[string]int),
		token:          "integration-token",
	}

	for id := int64(n); id >= 1; id-- {
		status := "pending"
		if id%3 == 0 {
			status = "complete"
			m.ships[id] = []commerce.Shipment{
				{EntityID: id, Tracks: []commerce.ShipmentTrack{{TrackNumber: fmt.Sprintf("TRACK-%d", id)}}},
			}
		}
		m.orders = append(m.orders, commerce.Order{
			EntityID:          id,
			IncrementID:       fmt.Sprintf("%09d", id),
			Status:            status,
			CreatedAt:         "2024-03-01 12:00:00",
			CustomerEmail:     fmt.Sprintf("customer%d@example.com", id),
			GrandTotal:        float64(id) * 10,
			OrderCurrencyCode: "EUR",
			Payment:           &commerce.Payment{Method: "checkmo"},
			Items: []commerce.OrderItem{
				{SKU: fmt.Sprintf("SKU-%d", id), Name: "Widget", QtyOrdered: 1, Price: float64(id) * 10, RowTotal: float64(id) * 10},
			},
		})
		m.txns[id] = []commerce.Transaction{{TransactionID: id, TxnID: fmt.Sprintf("txn-%d", id)}}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/rest/V1/orders", m.handleOrders)
	mux.HandleFunc("/rest/V1/transactions", m.handleTransactions)
	mux.HandleFunc("/rest/V1/shipments", m.handleShipments)

	m.server = httptest.NewServer(mux)
	return m
}

// URL returns the mock server's base URL.
func (m *MockCommerceServer) URL() string {
	return m.server.URL
}

// Token returns the bearer token the server accepts.
func (m *MockCommerceServer) Token() string {
	return m.token
}

// Close shuts the server down.
func (m *MockCommerceServer) Close() {
	m.server.Close()
}

// RequestCount returns the number of API requests served so far.
func (m *MockCommerceServer) RequestCount() int {
	return int(atomic.LoadInt32(&m.requestCount))
}

// SetErrorResponse forces an endpoint path to answer with a status code.
func (m *MockCommerceServer) SetErrorResponse(path string, code int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorResponses[path] = code
}

// ClearErrorResponse removes a forced error.
func (m *MockCommerceServer) ClearErrorResponse(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.errorResponses, path)
}

func (m *MockCommerceServer) checkRequest(w http.ResponseWriter, r *http.Request) bool {
	atomic.AddInt32(&m.requestCount, 1)

	if r.Header.Get("Authorization") != "Bearer "+m.token {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"message": "The consumer isn't authorized to access resources."})
		return false
	}

	m.mu.RLock()
	code, forced := m.errorResponses[r.URL.Path]
	m.mu.RUnlock()
	if forced {
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]string{"message": "forced error"})
		return false
	}

	return true
}

func (m *MockCommerceServer) handleOrders(w http.ResponseWriter, r *http.Request) {
	if !m.checkRequest(w, r) {
		return
	}

	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("searchCriteria[currentPage]"))
	pageSize, _ := strconv.Atoi(q.Get("searchCriteria[pageSize]"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 100
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	start := (page - 1) * pageSize
	end := start + pageSize
	if start > len(m.orders) {
		start = len(m.orders)
	}
	if end > len(m.orders) {
		end = len(m.orders)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(commerce.SearchResponse[commerce.Order]{
		Items:      m.orders[start:end],
		TotalCount: len(m.orders),
	})
}

func (m *MockCommerceServer) handleTransactions(w http.ResponseWriter, r *http.Request) {
	if !m.checkRequest(w, r) {
		return
	}

	orderID := m.filteredOrderID(r)
	m.mu.RLock()
	defer m.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(commerce.SearchResponse[commerce.Transaction]{
		Items:      m.txns[orderID],
		TotalCount: len(m.txns[orderID]),
	})
}

func (m *MockCommerceServer) handleShipments(w http.ResponseWriter, r *http.Request) {
	if !m.checkRequest(w, r) {
		return
	}

	orderID := m.filteredOrderID(r)
	m.mu.RLock()
	defer m.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(commerce.SearchResponse[commerce.Shipment]{
		Items:      m.ships[orderID],
		TotalCount: len(m.ships[orderID]),
	})
}

func (m *MockCommerceServer) filteredOrderID(r *http.Request) int64 {
	raw := r.URL.Query().Get("searchCriteria[filter_groups][0][filters][0][value]")
	id, _ := strconv.ParseInt(raw, 10, 64)
	return id
}
