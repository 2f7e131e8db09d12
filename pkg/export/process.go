package export

import (
	"errors"
	"fmt"

	"shopexport/pkg/checkpoint"
	"shopexport/pkg/config"
	"shopexport/pkg/csvout"
	errs "shopexport/pkg/errors"
	"shopexport/pkg/format"
	"shopexport/pkg/logger"
	"shopexport/pkg/store"
)

// ProcessStage consumes the durable units left by the download stage,
// flattens each into CSV rows through the injected formatter, and deletes
// consumed units. It never touches the network.
type ProcessStage struct {
	store         *store.Store
	formatter     format.Formatter
	checkpointMgr *checkpoint.Manager
	cfg           *config.Config
	logger        logger.Logger
}

// NewProcessStage wires the process stage.
func NewProcessStage(cfg *config.Config, st *store.Store, f format.Formatter, cpMgr *checkpoint.Manager, log logger.Logger) *ProcessStage {
	if log == nil {
		log = logger.GetLogger()
	}
	return &ProcessStage{
		store:         st,
		formatter:     f,
		checkpointMgr: cpMgr,
		cfg:           cfg,
		logger:        log,
	}
}

// Run transforms every remaining unit into CSV rows appended to the sink
// at outputPath. On resume, units are skipped positionally up to and
// including the checkpoint's last consumed unit in the store's sort order;
// the sorted listing is the single source of truth for what remains.
//
// The checkpoint is persisted every cfg.Export.CheckpointInterval units. A
// crash inside that window can under-count processed units (the unit was
// deleted after its rows were written but before the checkpoint caught
// up); rows are never lost and units are never consumed twice.
func (p *ProcessStage) Run(resume bool, outputPath string, keepFiles bool) error {
	var cp *checkpoint.Checkpoint
	var err error

	if resume {
		cp, err = p.checkpointMgr.Load()
		if err != nil {
			return fmt.Errorf("failed to load checkpoint: %w", err)
		}
		if cp != nil && cp.Completed {
			p.logger.InfoWithFields("process already completed", map[string]interface{}{
				"processed_count": cp.ProcessedCount,
				"total_lines":     cp.TotalLines,
			})
			return nil
		}
	} else if p.checkpointMgr.Exists() {
		existing, err := p.checkpointMgr.Load()
		if err == nil && existing != nil && !existing.Completed {
			return fmt.Errorf("process checkpoint exists - use --resume to continue")
		}
	}

	if cp == nil {
		cp, err = p.checkpointMgr.Create()
		if err != nil {
			return err
		}
	}

	names, err := p.store.List()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return errs.Newf(errs.KindNotFound, "no order files found in %s - run download first", p.store.Dir())
	}

	start := 0
	if resume && cp.LastUnit != "" {
		for i, name := range names {
			if name == cp.LastUnit {
				start = i + 1
				break
			}
		}
		// When the cursor unit is absent it was consumed and deleted;
		// everything still listed is remaining work.
	}
	remaining := names[start:]
	cp.TotalExpected = cp.ProcessedCount + len(remaining)

	p.logger.InfoWithFields("starting processing", map[string]interface{}{
		"units_remaining": len(remaining),
		"output":          outputPath,
		"keep_files":      keepFiles,
		"resume":          resume && start > 0,
	})

	sink, err := csvout.Open(outputPath, p.formatter.Columns())
	if err != nil {
		return err
	}
	defer sink.Close()

	sinceSave := 0
	for _, name := range remaining {
		unit, err := p.store.Get(name)
		if err != nil {
			// Missing or malformed units are reported and skipped; the
			// cursor still advances so a resumed run does not loop on them.
			cp.RecordError(name, err.Error())
			cp.LastUnit = name
			var storeErr *errs.Error
			if errors.As(err, &storeErr) {
				p.logger.WarnWithFields("skipping unreadable unit", map[string]interface{}{
					"unit":  name,
					"kind":  string(storeErr.Kind),
					"error": err.Error(),
				})
			} else {
				p.logger.WithError(err).WithField("unit", name).Warn("skipping unreadable unit")
			}
			continue
		}

		rows := p.formatter.Rows(unit)
		if err := sink.Append(rows); err != nil {
			// The sink failing means rows may be lost; persist progress
			// so far and abort.
			if saveErr := p.checkpointMgr.Save(cp); saveErr != nil {
				p.logger.WithError(saveErr).Warn("failed to save checkpoint before aborting")
			}
			return fmt.Errorf("failed to write rows for unit %s: %w", name, err)
		}

		cp.ProcessedCount++
		cp.TotalLines += len(rows)
		cp.LastUnit = name

		if !keepFiles {
			if err := p.store.Delete(name); err != nil {
				// Best effort: the unit stays behind for a cleanup pass.
				cp.RecordError(name, err.Error())
				p.logger.WithError(err).WithField("unit", name).Warn("failed to delete consumed unit")
			}
		}

		p.logger.DebugWithFields("unit processed", map[string]interface{}{
			"unit":  name,
			"rows":  len(rows),
			"total": cp.ProcessedCount,
		})

		sinceSave++
		if sinceSave >= p.cfg.Export.CheckpointInterval {
			if err := p.checkpointMgr.Save(cp); err != nil {
				return fmt.Errorf("failed to save checkpoint: %w", err)
			}
			sinceSave = 0
		}
	}

	cp.MarkCompleted()
	if err := p.checkpointMgr.Save(cp); err != nil {
		return fmt.Errorf("failed to save final checkpoint: %w", err)
	}

	p.logger.InfoWithFields("output written", map[string]interface{}{
		"output": sink.Path(),
		"lines":  sink.Lines(),
	})
	logRunSummary(p.logger, "process", cp)
	return nil
}
