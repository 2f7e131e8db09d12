package integration

import (
	"encoding/csv"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopexport/pkg/checkpoint"
	"shopexport/pkg/commerce"
	"shopexport/pkg/config"
	errs "shopexport/pkg/errors"
	"shopexport/pkg/export"
	"shopexport/pkg/format"
	"shopexport/pkg/ratelimit"
	"shopexport/pkg/store"
)

type pipelineFixture struct {
	server   *MockCommerceServer
	cfg      *config.Config
	client   *commerce.Client
	store    *store.Store
	cacheDir string
	output   string
}

func newPipelineFixture(t *testing.T, orders, pageSize int) *pipelineFixture {
	t.Helper()

	server := NewMockCommerceServer(orders)
	t.Cleanup(server.Close)

	cacheDir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.API.BaseURL = server.URL()
	cfg.API.Token = server.Token()
	cfg.Export.PageSize = pageSize
	cfg.Cache.Directory = cacheDir
	cfg.RateLimit.MaxRetries = 1
	cfg.RateLimit.RequestsPerSecond = 1000 // Tests should not wait on the limiter

	limiter := ratelimit.NewPerSecond(cfg.RateLimit.RequestsPerSecond)
	client := commerce.NewClient(cfg.API.BaseURL, cfg.API.Token, 5*time.Second, limiter, nil)

	st, err := store.New(cacheDir)
	require.NoError(t, err)

	return &pipelineFixture{
		server:   server,
		cfg:      cfg,
		client:   client,
		store:    st,
		cacheDir: cacheDir,
		output:   filepath.Join(t.TempDir(), "orders.csv"),
	}
}

func (f *pipelineFixture) downloadStage(t *testing.T) *export.DownloadStage {
	t.Helper()
	cpMgr, err := checkpoint.NewManager(f.cacheDir, checkpoint.StageDownload)
	require.NoError(t, err)
	return export.NewDownloadStage(f.cfg, f.client, f.store, cpMgr, nil)
}

func (f *pipelineFixture) processStage(t *testing.T) *export.ProcessStage {
	t.Helper()
	cpMgr, err := checkpoint.NewManager(f.cacheDir, checkpoint.StageProcess)
	require.NoError(t, err)
	return export.NewProcessStage(f.cfg, f.store, format.NewOrderFormatter(nil), cpMgr, nil)
}

func readOutput(t *testing.T, path string) [][]string {
	t.Helper()
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()
	records, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	return records
}

func TestPipelineEndToEnd(t *testing.T) {
	f := newPipelineFixture(t, 7, 3)

	require.NoError(t, f.downloadStage(t).Run(false, false))

	count, err := f.store.Count()
	require.NoError(t, err)
	assert.Equal(t, 7, count)

	require.NoError(t, f.processStage(t).Run(false, f.output, false))

	records := readOutput(t, f.output)
	require.Len(t, records, 8, "header plus one row per single-item order")
	assert.Equal(t, "increment_id", records[0][0])

	// All cached units were consumed
	count, _ = f.store.Count()
	assert.Equal(t, 0, count)

	// Fulfilled orders carry their tracking numbers through to the CSV
	formatter := format.NewOrderFormatter(nil)
	trackIdx := -1
	for i, col := range formatter.Columns() {
		if col == "tracking_numbers" {
			trackIdx = i
		}
	}
	require.NotEqual(t, -1, trackIdx)

	tracked := 0
	for _, row := range records[1:] {
		if row[trackIdx] != "" {
			tracked++
		}
	}
	assert.Equal(t, 2, tracked, "orders 3 and 6 are complete and shipped")
}

func TestPipelineDownloadResumeSkipsCachedUnits(t *testing.T) {
	f := newPipelineFixture(t, 6, 2)

	// First run dies on the first order's transactions fetch
	f.server.SetErrorResponse("/rest/V1/transactions", http.StatusUnauthorized)
	err := f.downloadStage(t).Run(false, false)
	require.Error(t, err)

	var apiErr *errs.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, errs.KindAuth, apiErr.Kind)

	// Nothing was cached: the very first unit aborted the run
	count, _ := f.store.Count()
	assert.Equal(t, 0, count)

	// Recover and resume; the whole collection downloads
	f.server.ClearErrorResponse("/rest/V1/transactions")
	require.NoError(t, f.downloadStage(t).Run(true, false))

	count, _ = f.store.Count()
	assert.Equal(t, 6, count)

	// A second resume is a no-op on the wire
	before := f.server.RequestCount()
	require.NoError(t, f.downloadStage(t).Run(true, false))
	assert.Equal(t, before, f.server.RequestCount())
}

func TestPipelineProcessResume(t *testing.T) {
	f := newPipelineFixture(t, 5, 5)
	require.NoError(t, f.downloadStage(t).Run(false, false))

	// Simulate an interrupted process run: consume the first two units by
	// hand the way the stage would, then checkpoint.
	cpMgr, err := checkpoint.NewManager(f.cacheDir, checkpoint.StageProcess)
	require.NoError(t, err)
	cp, err := cpMgr.Create()
	require.NoError(t, err)

	names, err := f.store.List()
	require.NoError(t, err)
	require.Len(t, names, 5)

	formatter := format.NewOrderFormatter(nil)
	var consumed [][]string
	for _, name := range names[:2] {
		unit, err := f.store.Get(name)
		require.NoError(t, err)
		for _, row := range formatter.Rows(unit) {
			consumed = append(consumed, row)
		}
		require.NoError(t, f.store.Delete(name))
		cp.ProcessedCount++
		cp.LastUnit = name
	}
	require.NoError(t, cpMgr.Save(cp))

	// Write what the interrupted run would have left behind
	outFile, err := os.Create(f.output)
	require.NoError(t, err)
	w := csv.NewWriter(outFile)
	require.NoError(t, w.Write(formatter.Columns()))
	for _, row := range consumed {
		require.NoError(t, w.Write(row))
	}
	w.Flush()
	require.NoError(t, outFile.Close())

	// Resume finishes the remaining three units without re-emitting rows
	require.NoError(t, f.processStage(t).Run(true, f.output, false))

	records := readOutput(t, f.output)
	assert.Len(t, records, 6, "header plus all five orders exactly once")

	count, _ := f.store.Count()
	assert.Equal(t, 0, count)
}

func TestPipelineBadTokenFailsDownload(t *testing.T) {
	f := newPipelineFixture(t, 3, 3)
	f.client = commerce.NewClient(f.cfg.API.BaseURL, "wrong-token", 5*time.Second, nil, nil)

	err := f.downloadStage(t).Run(false, false)
	require.Error(t, err)

	var apiErr *errs.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, errs.KindAuth, apiErr.Kind)
	assert.Equal(t, 401, apiErr.Code)
}

func TestPipelineProcessWithoutDownload(t *testing.T) {
	f := newPipelineFixture(t, 3, 3)

	err := f.processStage(t).Run(false, f.output, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run download first")
}
