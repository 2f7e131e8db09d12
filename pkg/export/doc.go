// Package export implements the two-phase order export pipeline.
//
// The download stage paginates the remote order collection under rate
// limiting, enriches each order with its transactions and shipments, and
// persists it as a self-contained durable unit, advancing a checkpoint
// after every page. The process stage then enumerates the store in a
// stable order, flattens each unit into CSV rows, and advances its own
// checkpoint, deleting consumed units.
//
// The two stages never run concurrently against the same cache directory;
// each owns its checkpoint exclusively. Either stage can be interrupted
// and resumed: the download stage re-fetches nothing already stored, and
// the process stage emits no unit's rows twice.
package export
