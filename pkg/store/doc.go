// Package store persists downloaded orders as durable units on disk.
//
// The store handles:
//   - One self-contained JSON file per order, named from the entity id
//   - Atomic writes using temporary files and rename
//   - Deterministic, lexicographically sorted enumeration
//   - Idempotent download via existence checks
//
// The download stage exclusively creates and overwrites units; the process
// stage exclusively reads and deletes them. The two stages never run
// concurrently against the same cache directory.
package store
