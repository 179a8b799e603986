// Package service is the only write entry point into the exchange.
//
// ExchangeService resolves the caller's identity, records every
// state-changing command in the entry WAL, runs it against the market's
// matching engine and custody ledger, and appends the events it produced to
// the exit WAL outbox. Commands on one market run one at a time; different
// markets proceed in parallel. Because every command is logged before it
// runs and the domain is deterministic, replaying the entry WAL after the
// latest snapshot rebuilds the same books, positions and order ids.
//
// Transports such as gRPC sit on top of this package and never touch the
// domain directly.
package service
