package export

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopexport/pkg/checkpoint"
	"shopexport/pkg/commerce"
	"shopexport/pkg/config"
	errs "shopexport/pkg/errors"
	"shopexport/pkg/retry"
	"shopexport/pkg/store"
)

// mockClient serves canned pages and sub-resources, recording every call.
type mockClient struct {
	pages       map[int]*commerce.SearchResponse[commerce.Order]
	pageErr     map[int]error
	pageErrOnce map[int]error

	txns    map[int64][]commerce.Transaction
	txnErr  map[int64]error
	ships   map[int64][]commerce.Shipment
	shipErr map[int64]error

	searchCalls []int
	txnCalls    []int64
	shipCalls   []int64
}

func (m *mockClient) SearchOrders(page, pageSize int, createdAfter string) (*commerce.SearchResponse[commerce.Order], error) {
	m.searchCalls = append(m.searchCalls, page)
	if err, ok := m.pageErrOnce[page]; ok {
		delete(m.pageErrOnce, page)
		return nil, err
	}
	if err, ok := m.pageErr[page]; ok {
		return nil, err
	}
	if resp, ok := m.pages[page]; ok {
		return resp, nil
	}
	return &commerce.SearchResponse[commerce.Order]{}, nil
}

func (m *mockClient) GetTransactions(orderID int64) ([]commerce.Transaction, error) {
	m.txnCalls = append(m.txnCalls, orderID)
	if err, ok := m.txnErr[orderID]; ok {
		return nil, err
	}
	return m.txns[orderID], nil
}

func (m *mockClient) GetShipments(orderID int64) ([]commerce.Shipment, error) {
	m.shipCalls = append(m.shipCalls, orderID)
	if err, ok := m.shipErr[orderID]; ok {
		return nil, err
	}
	return m.ships[orderID], nil
}

func testOrder(id int64, status string) commerce.Order {
	return commerce.Order{
		EntityID:    id,
		IncrementID: store.FileName(id),
		Status:      status,
		Items:       []commerce.OrderItem{{SKU: "SKU", QtyOrdered: 1}},
	}
}

func testConfig(pageSize int) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Export.PageSize = pageSize
	cfg.RateLimit.MaxRetries = 1
	return cfg
}

// twoPageClient serves 3 pending orders (30, 20, 10) over two pages of 2.
func twoPageClient() *mockClient {
	return &mockClient{
		pages: map[int]*commerce.SearchResponse[commerce.Order]{
			1: {Items: []commerce.Order{testOrder(30, "pending"), testOrder(20, "pending")}, TotalCount: 3},
			2: {Items: []commerce.Order{testOrder(10, "pending")}, TotalCount: 3},
		},
		txns: map[int64][]commerce.Transaction{
			30: {{TxnID: "txn-30"}},
		},
	}
}

func newDownloadFixture(t *testing.T, client *mockClient, pageSize int) (*DownloadStage, *store.Store, *checkpoint.Manager) {
	t.Helper()
	dir := t.TempDir()
	st, err := store.New(dir)
	require.NoError(t, err)
	cpMgr, err := checkpoint.NewManager(dir, checkpoint.StageDownload)
	require.NoError(t, err)
	return NewDownloadStage(testConfig(pageSize), client, st, cpMgr, nil), st, cpMgr
}

func TestDownloadPaginatesToCompletion(t *testing.T) {
	client := twoPageClient()
	stage, st, cpMgr := newDownloadFixture(t, client, 2)

	require.NoError(t, stage.Run(false, false))

	count, err := st.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	cp, err := cpMgr.Load()
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.True(t, cp.Completed)
	assert.Equal(t, 3, cp.ProcessedCount)
	assert.Equal(t, 3, cp.TotalExpected)
	assert.Equal(t, 2, cp.LastPage)
	assert.Empty(t, cp.Errors)

	// Stops at page 2: 2 pages * 2 per page covers the reported total
	assert.Equal(t, []int{1, 2}, client.searchCalls)

	// Transactions fetched for every order; no shipments for pending orders
	assert.ElementsMatch(t, []int64{30, 20, 10}, client.txnCalls)
	assert.Empty(t, client.shipCalls)

	// Enrichment landed in the unit
	unit, err := st.Get(store.FileName(30))
	require.NoError(t, err)
	require.Len(t, unit.Transactions, 1)
	assert.Equal(t, "txn-30", unit.Transactions[0].TxnID)
}

func TestDownloadSkipsExistingUnits(t *testing.T) {
	client := twoPageClient()
	stage, st, cpMgr := newDownloadFixture(t, client, 2)

	require.NoError(t, st.Put(&store.Unit{
		EntityID: 30,
		Order:    &commerce.Order{EntityID: 30, Status: "pending"},
	}))

	require.NoError(t, stage.Run(false, false))

	// The cached order gets no network calls at all
	assert.NotContains(t, client.txnCalls, int64(30))

	cp, _ := cpMgr.Load()
	assert.Equal(t, 2, cp.ProcessedCount, "only new units count")

	count, _ := st.Count()
	assert.Equal(t, 3, count)
}

func TestDownloadFetchesShipmentsForFulfilledOrders(t *testing.T) {
	client := &mockClient{
		pages: map[int]*commerce.SearchResponse[commerce.Order]{
			1: {Items: []commerce.Order{testOrder(2, "complete"), testOrder(1, "pending")}, TotalCount: 2},
		},
		ships: map[int64][]commerce.Shipment{
			2: {{Tracks: []commerce.ShipmentTrack{{TrackNumber: "T2"}}}},
		},
	}
	stage, st, _ := newDownloadFixture(t, client, 2)

	require.NoError(t, stage.Run(false, false))

	assert.Equal(t, []int64{2}, client.shipCalls)

	unit, err := st.Get(store.FileName(2))
	require.NoError(t, err)
	require.Len(t, unit.Shipments, 1)
}

func TestDownloadRetriesTransientPageError(t *testing.T) {
	client := twoPageClient()
	client.pageErrOnce = map[int]error{2: errs.FromStatusCode(500, "boom")}
	stage, st, cpMgr := newDownloadFixture(t, client, 2)
	stage.cfg.RateLimit.MaxRetries = 3
	stage.backoff = &retry.ConstantBackoff{Delay: time.Millisecond}

	require.NoError(t, stage.Run(false, false))

	// Page 2 is fetched twice: the failed attempt and the retry
	assert.Equal(t, []int{1, 2, 2}, client.searchCalls)

	count, _ := st.Count()
	assert.Equal(t, 3, count)

	cp, err := cpMgr.Load()
	require.NoError(t, err)
	assert.True(t, cp.Completed)
	assert.Equal(t, 2, cp.LastPage)
	assert.Empty(t, cp.Errors, "a retried page leaves no recorded error")
}

func TestDownloadAuthErrorIsFatal(t *testing.T) {
	client := twoPageClient()
	client.pageErr = map[int]error{2: errs.FromStatusCode(401, "unauthorized")}
	stage, st, cpMgr := newDownloadFixture(t, client, 2)

	err := stage.Run(false, false)
	require.Error(t, err)

	var apiErr *errs.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, errs.KindAuth, apiErr.Kind)

	// Page 1's units survive and the cursor stays on the last good page
	count, _ := st.Count()
	assert.Equal(t, 2, count)

	cp, loadErr := cpMgr.Load()
	require.NoError(t, loadErr)
	require.NotNil(t, cp)
	assert.False(t, cp.Completed)
	assert.Equal(t, 1, cp.LastPage)
}

func TestDownloadSubResourceAuthErrorIsFatal(t *testing.T) {
	client := twoPageClient()
	client.txnErr = map[int64]error{30: errs.FromStatusCode(403, "forbidden")}
	stage, st, _ := newDownloadFixture(t, client, 2)

	err := stage.Run(false, false)
	require.Error(t, err)

	var apiErr *errs.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, errs.KindAuth, apiErr.Kind)

	// The failing order was not persisted
	assert.False(t, st.Exists(30))
}

func TestDownloadSubResourceFailureIsPartial(t *testing.T) {
	client := &mockClient{
		pages: map[int]*commerce.SearchResponse[commerce.Order]{
			1: {Items: []commerce.Order{testOrder(5, "complete")}, TotalCount: 1},
		},
		shipErr: map[int64]error{5: errs.FromStatusCode(500, "boom")},
	}
	stage, st, cpMgr := newDownloadFixture(t, client, 2)

	require.NoError(t, stage.Run(false, false))

	// Unit persisted anyway, without shipments, with the error recorded
	unit, err := st.Get(store.FileName(5))
	require.NoError(t, err)
	assert.Empty(t, unit.Shipments)

	cp, _ := cpMgr.Load()
	assert.True(t, cp.Completed)
	require.Len(t, cp.Errors, 1)
	assert.Equal(t, unit.IncrementID, cp.Errors[0].Key)
	assert.Contains(t, cp.Errors[0].Message, string(errs.KindPartial))
}

func TestDownloadResume(t *testing.T) {
	client := twoPageClient()
	client.pageErr = map[int]error{2: errs.FromStatusCode(401, "unauthorized")}
	stage, _, cpMgr := newDownloadFixture(t, client, 2)

	require.Error(t, stage.Run(false, false))

	// Second run without --resume refuses to touch the checkpoint
	err := stage.Run(false, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--resume")

	// Fix the credentials and resume: only page 2 is re-fetched
	delete(client.pageErr, 2)
	client.searchCalls = nil
	require.NoError(t, stage.Run(true, false))

	assert.Equal(t, []int{2}, client.searchCalls)

	cp, _ := cpMgr.Load()
	assert.True(t, cp.Completed)
	assert.Equal(t, 3, cp.ProcessedCount)
}

func TestDownloadCompletedResumeIsNoOp(t *testing.T) {
	client := twoPageClient()
	stage, _, _ := newDownloadFixture(t, client, 2)

	require.NoError(t, stage.Run(false, false))

	client.searchCalls = nil
	require.NoError(t, stage.Run(true, false))
	assert.Empty(t, client.searchCalls, "completed download must not refetch")
}

func TestDownloadForceRestart(t *testing.T) {
	client := twoPageClient()
	stage, _, cpMgr := newDownloadFixture(t, client, 2)

	require.NoError(t, stage.Run(false, false))

	client.searchCalls = nil
	require.NoError(t, stage.Run(false, true))

	// Pages are re-fetched but cached units are skipped
	assert.Equal(t, []int{1, 2}, client.searchCalls)
	cp, _ := cpMgr.Load()
	assert.Equal(t, 0, cp.ProcessedCount)
	assert.True(t, cp.Completed)
}

func TestDownloadEmptyCollection(t *testing.T) {
	client := &mockClient{
		pages: map[int]*commerce.SearchResponse[commerce.Order]{
			1: {Items: nil, TotalCount: 0},
		},
	}
	stage, st, cpMgr := newDownloadFixture(t, client, 2)

	require.NoError(t, stage.Run(false, false))

	count, _ := st.Count()
	assert.Equal(t, 0, count)

	cp, _ := cpMgr.Load()
	assert.True(t, cp.Completed)
	assert.Equal(t, 0, cp.ProcessedCount)
}
