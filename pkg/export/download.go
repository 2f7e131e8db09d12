package export

import (
	"errors"
	"fmt"
	"time"

	"shopexport/pkg/checkpoint"
	"shopexport/pkg/commerce"
	"shopexport/pkg/config"
	errs "shopexport/pkg/errors"
	"shopexport/pkg/logger"
	"shopexport/pkg/retry"
	"shopexport/pkg/store"
)

// DownloadStage paginates the remote order collection and persists each
// order as a self-contained durable unit. It is sequential: one page at a
// time, one order at a time, each unit fully written before the checkpoint
// advances.
type DownloadStage struct {
	client        CommerceClient
	store         *store.Store
	checkpointMgr *checkpoint.Manager
	cfg           *config.Config
	logger        logger.Logger
	backoff       retry.BackoffStrategy
}

// NewDownloadStage wires the download stage. The config is constructed
// once at startup and passed in; nothing here reads ambient state.
func NewDownloadStage(cfg *config.Config, client CommerceClient, st *store.Store, cpMgr *checkpoint.Manager, log logger.Logger) *DownloadStage {
	if log == nil {
		log = logger.GetLogger()
	}
	return &DownloadStage{
		client:        client,
		store:         st,
		checkpointMgr: cpMgr,
		cfg:           cfg,
		logger:        log,
		backoff:       retry.DefaultExponentialBackoff(),
	}
}

// Run downloads the order collection page by page. On resume it continues
// from checkpoint.LastPage+1; pages already covered by the cursor are
// never re-fetched, and orders already present in the store are skipped
// without a network call for their primary resource.
func (d *DownloadStage) Run(resume, forceRestart bool) error {
	cp, err := d.prepareCheckpoint(resume, forceRestart)
	if err != nil {
		return err
	}

	if cp.Completed {
		d.logger.InfoWithFields("download already completed", map[string]interface{}{
			"processed_count": cp.ProcessedCount,
		})
		return nil
	}

	page := cp.LastPage + 1
	pageSize := d.cfg.Export.PageSize

	d.logger.InfoWithFields("starting download", map[string]interface{}{
		"start_page":    page,
		"page_size":     pageSize,
		"created_after": d.cfg.Export.CreatedAfter,
		"resume":        resume && cp.LastPage > 0,
	})

	retryCfg := retry.DefaultConfig()
	retryCfg.MaxAttempts = d.cfg.RateLimit.MaxRetries
	retryCfg.Backoff = d.backoff
	retryCfg.Logger = d.logger

	for {
		resp, err := retry.DoWithResult(func() (*commerce.SearchResponse[commerce.Order], error) {
			return d.client.SearchOrders(page, pageSize, d.cfg.Export.CreatedAfter)
		}, retryCfg)
		if err != nil {
			// Credentials are not expected to become valid mid-run;
			// leave the cursor on the last good page so a resumed run
			// re-issues this one.
			if saveErr := d.checkpointMgr.Save(cp); saveErr != nil {
				d.logger.WithError(saveErr).Warn("failed to save checkpoint before aborting")
			}
			var apiErr *errs.Error
			if errors.As(err, &apiErr) && errs.IsFatal(apiErr.Kind) {
				d.logger.ErrorWithFields("authentication rejected, aborting download", map[string]interface{}{
					"page":  page,
					"error": err.Error(),
				})
				return fmt.Errorf("download aborted on page %d: %w", page, err)
			}
			return fmt.Errorf("failed to fetch page %d: %w", page, err)
		}

		// The collection size is trusted from the first response of the
		// run and not re-queried; a mutating collection can shift the
		// estimate by one page, which the empty-page check backstops.
		if cp.TotalExpected == 0 {
			cp.TotalExpected = resp.TotalCount
			d.logger.InfoWithFields("order collection size reported", map[string]interface{}{
				"total_count": resp.TotalCount,
			})
		}

		if len(resp.Items) == 0 {
			d.logger.InfoWithFields("empty page, download finished", map[string]interface{}{
				"page": page,
			})
			break
		}

		downloaded := 0
		for i := range resp.Items {
			order := &resp.Items[i]
			ok, err := d.downloadOrder(order, cp)
			if err != nil {
				return err
			}
			if ok {
				downloaded++
			}
		}

		cp.LastPage = page
		cp.ProcessedCount += downloaded
		if err := d.checkpointMgr.Save(cp); err != nil {
			return fmt.Errorf("failed to save checkpoint after page %d: %w", page, err)
		}

		d.logger.InfoWithFields("page downloaded", map[string]interface{}{
			"page":            page,
			"new_units":       downloaded,
			"skipped":         len(resp.Items) - downloaded,
			"processed_count": cp.ProcessedCount,
		})

		if page*pageSize >= cp.TotalExpected {
			d.logger.InfoWithFields("all pages covered, download finished", map[string]interface{}{
				"page":        page,
				"total_count": cp.TotalExpected,
			})
			break
		}

		page++
	}

	cp.MarkCompleted()
	if err := d.checkpointMgr.Save(cp); err != nil {
		return fmt.Errorf("failed to save final checkpoint: %w", err)
	}

	logRunSummary(d.logger, "download", cp)
	return nil
}

// prepareCheckpoint resolves the resume / force-restart flags against any
// existing checkpoint, mirroring the CLI contract: an existing checkpoint
// without --resume is an error rather than a silent restart.
func (d *DownloadStage) prepareCheckpoint(resume, forceRestart bool) (*checkpoint.Checkpoint, error) {
	if forceRestart && d.checkpointMgr.Exists() {
		if err := d.checkpointMgr.Delete(); err != nil {
			d.logger.WithError(err).Warn("failed to delete existing checkpoint")
		}
		d.logger.Info("force restart, ignoring existing checkpoint")
	} else if resume && d.checkpointMgr.Exists() {
		cp, err := d.checkpointMgr.Load()
		if err != nil {
			return nil, fmt.Errorf("failed to load checkpoint: %w", err)
		}
		if cp != nil {
			d.logger.InfoWithFields("resuming download from checkpoint", map[string]interface{}{
				"last_page":       cp.LastPage,
				"processed_count": cp.ProcessedCount,
			})
			return cp, nil
		}
	} else if d.checkpointMgr.Exists() {
		return nil, fmt.Errorf("download checkpoint exists - use --resume to continue or --force-restart to start fresh")
	}

	return d.checkpointMgr.Create()
}

// downloadOrder persists one order as a durable unit, enriching it with
// its dependent sub-resources first. Returns (true, nil) when a new unit
// was written, (false, nil) when skipped or recorded as a per-entity
// error, and a non-nil error only for fatal auth failures.
func (d *DownloadStage) downloadOrder(order *commerce.Order, cp *checkpoint.Checkpoint) (bool, error) {
	if d.store.Exists(order.EntityID) {
		d.logger.DebugWithFields("unit already downloaded, skipping", map[string]interface{}{
			"entity_id":    order.EntityID,
			"increment_id": order.IncrementID,
		})
		return false, nil
	}

	unit := &store.Unit{
		EntityID:     order.EntityID,
		IncrementID:  order.IncrementID,
		DownloadedAt: time.Now(),
		Order:        order,
	}

	// Transactions are fetched for every order; a failure leaves the
	// unit without them (partial) unless it is an auth failure.
	transactions, err := d.client.GetTransactions(order.EntityID)
	if err != nil {
		if fatal := asFatal(err); fatal != nil {
			return false, fmt.Errorf("download aborted while fetching transactions for order %s: %w", order.IncrementID, err)
		}
		cp.RecordError(order.IncrementID, errs.Newf(errs.KindPartial, "transactions fetch failed: %v", err).Error())
		d.logger.WarnWithFields("transactions fetch failed, persisting order without them", map[string]interface{}{
			"increment_id": order.IncrementID,
			"error":        err.Error(),
		})
	} else {
		unit.Transactions = transactions
	}

	// Shipments only exist once the order reached fulfillment.
	if order.HasShipments() {
		shipments, err := d.client.GetShipments(order.EntityID)
		if err != nil {
			if fatal := asFatal(err); fatal != nil {
				return false, fmt.Errorf("download aborted while fetching shipments for order %s: %w", order.IncrementID, err)
			}
			cp.RecordError(order.IncrementID, errs.Newf(errs.KindPartial, "shipments fetch failed: %v", err).Error())
			d.logger.WarnWithFields("shipments fetch failed, persisting order without them", map[string]interface{}{
				"increment_id": order.IncrementID,
				"error":        err.Error(),
			})
		} else {
			unit.Shipments = shipments
		}
	}

	if err := d.store.Put(unit); err != nil {
		cp.RecordError(order.IncrementID, fmt.Sprintf("unit write failed: %v", err))
		d.logger.ErrorWithFields("failed to persist unit", map[string]interface{}{
			"entity_id":    order.EntityID,
			"increment_id": order.IncrementID,
			"error":        err.Error(),
		})
		return false, nil
	}

	d.logger.DebugWithFields("unit persisted", map[string]interface{}{
		"entity_id":    order.EntityID,
		"increment_id": order.IncrementID,
		"transactions": len(unit.Transactions),
		"shipments":    len(unit.Shipments),
	})

	return true, nil
}

// asFatal returns the taxonomy error when err must abort the stage.
func asFatal(err error) *errs.Error {
	var apiErr *errs.Error
	if errors.As(err, &apiErr) && errs.IsFatal(apiErr.Kind) {
		return apiErr
	}
	return nil
}

// logRunSummary writes the end-of-run summary: totals plus the first few
// recorded errors.
func logRunSummary(log logger.Logger, stage string, cp *checkpoint.Checkpoint) {
	fields := map[string]interface{}{
		"stage":           stage,
		"processed_count": cp.ProcessedCount,
		"total_expected":  cp.TotalExpected,
		"errors":          len(cp.Errors),
	}
	if cp.TotalLines > 0 {
		fields["total_lines"] = cp.TotalLines
	}
	log.InfoWithFields("run completed", fields)

	shown := len(cp.Errors)
	if shown > 5 {
		shown = 5
	}
	for _, entry := range cp.Errors[:shown] {
		log.WarnWithFields("recorded error", map[string]interface{}{
			"key":     entry.Key,
			"message": entry.Message,
		})
	}
	if len(cp.Errors) > shown {
		log.WarnWithFields("additional errors not shown", map[string]interface{}{
			"count": len(cp.Errors) - shown,
		})
	}
}
