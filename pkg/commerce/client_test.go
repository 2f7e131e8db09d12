package commerce

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "shopexport/pkg/errors"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := NewClient(server.URL, "test-token", 5*time.Second, nil, nil)
	return server, client
}

func TestSearchOrders(t *testing.T) {
	var gotPath string
	var gotQuery map[string][]string
	var gotAuth string

	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		gotAuth = r.Header.Get("Authorization")

		json.NewEncoder(w).Encode(SearchResponse[Order]{
			Items: []Order{
				{EntityID: 20, IncrementID: "000000020"},
				{EntityID: 10, IncrementID: "000000010"},
			},
			TotalCount: 57,
		})
	})

	resp, err := client.SearchOrders(2, 50, "2024-01-01")
	require.NoError(t, err)

	assert.Equal(t, "/rest/V1/orders", gotPath)
	assert.Equal(t, "Bearer test-token", gotAuth)
	assert.Equal(t, []string{"2"}, gotQuery["searchCriteria[currentPage]"])
	assert.Equal(t, []string{"50"}, gotQuery["searchCriteria[pageSize]"])
	assert.Equal(t, []string{"entity_id"}, gotQuery["searchCriteria[sortOrders][0][field]"])
	assert.Equal(t, []string{"DESC"}, gotQuery["searchCriteria[sortOrders][0][direction]"])
	assert.Equal(t, []string{"created_at"}, gotQuery["searchCriteria[filter_groups][0][filters][0][field]"])
	assert.Equal(t, []string{"2024-01-01"}, gotQuery["searchCriteria[filter_groups][0][filters][0][value]"])
	assert.Equal(t, []string{"gteq"}, gotQuery["searchCriteria[filter_groups][0][filters][0][condition_type]"])

	assert.Equal(t, 57, resp.TotalCount)
	require.Len(t, resp.Items, 2)
	assert.Equal(t, int64(20), resp.Items[0].EntityID)
}

func TestSearchOrdersNoDateFilter(t *testing.T) {
	var gotQuery map[string][]string
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		json.NewEncoder(w).Encode(SearchResponse[Order]{})
	})

	_, err := client.SearchOrders(1, 100, "")
	require.NoError(t, err)
	assert.NotContains(t, gotQuery, "searchCriteria[filter_groups][0][filters][0][field]")
}

func TestSearchOrdersAuthError(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := client.SearchOrders(1, 100, "")
	require.Error(t, err)

	var apiErr *errs.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, errs.KindAuth, apiErr.Kind)
	assert.Equal(t, 401, apiErr.Code)
}

func TestSearchOrdersTransientError(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.SearchOrders(1, 100, "")
	require.Error(t, err)

	var apiErr *errs.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, errs.KindTransient, apiErr.Kind)
}

func TestSearchOrdersMalformedBody(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	})

	_, err := client.SearchOrders(1, 100, "")
	require.Error(t, err)

	var apiErr *errs.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, errs.KindDataShape, apiErr.Kind)
}

func TestNetworkErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	client := NewClient(server.URL, "t", time.Second, nil, nil)
	server.Close() // Connection refused from here on

	_, err := client.SearchOrders(1, 100, "")
	require.Error(t, err)

	var apiErr *errs.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, errs.KindTransient, apiErr.Kind)
}

func TestGetTransactions(t *testing.T) {
	var gotPath string
	var gotQuery map[string][]string
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		json.NewEncoder(w).Encode(SearchResponse[Transaction]{
			Items: []Transaction{{TxnID: "txn-1"}},
		})
	})

	txns, err := client.GetTransactions(42)
	require.NoError(t, err)

	assert.Equal(t, "/rest/V1/transactions", gotPath)
	assert.Equal(t, []string{"order_id"}, gotQuery["searchCriteria[filter_groups][0][filters][0][field]"])
	assert.Equal(t, []string{"42"}, gotQuery["searchCriteria[filter_groups][0][filters][0][value]"])
	require.Len(t, txns, 1)
	assert.Equal(t, "txn-1", txns[0].TxnID)
}

func TestGetShipments(t *testing.T) {
	var gotPath string
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode(SearchResponse[Shipment]{
			Items: []Shipment{{Tracks: []ShipmentTrack{{TrackNumber: "T1"}}}},
		})
	})

	shipments, err := client.GetShipments(42)
	require.NoError(t, err)

	assert.Equal(t, "/rest/V1/shipments", gotPath)
	require.Len(t, shipments, 1)
	assert.Equal(t, "T1", shipments[0].Tracks[0].TrackNumber)
}
