// Package commerce provides a typed client for the commerce REST API.
//
// This package includes:
//   - A rate-limited HTTP client authenticated with a bearer token
//   - Type-safe models for orders, transactions and shipments
//   - Helper functions for constructing searchCriteria endpoints
//
// The client deliberately performs no retries: transient errors surface to
// the caller, which owns the retry policy, and auth errors (401/403)
// propagate unchanged so the calling stage can abort.
package commerce
