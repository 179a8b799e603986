// Package snapshot persists the full engine state at a WAL sequence: the
// identity counters, every market with its resting orders in priority
// order, and every collateral position. A snapshot plus the entry WAL
// records after its sequence reproduce the live state.
//
// The package only encodes and decodes; building a snapshot from live
// state and restoring it is the service's job.
package snapshot
