// Package checkpoint persists per-stage export progress so interrupted
// runs resume without reprocessing or data loss.
//
// Each pipeline stage owns one checkpoint file in the cache directory
// (download.checkpoint.json / process.checkpoint.json) holding counts, the
// stage's cursor, the accumulated non-fatal errors and the completion
// flag. Saves are atomic (write to a temporary file, then rename) so a
// crash never leaves a corrupt checkpoint behind.
package checkpoint
