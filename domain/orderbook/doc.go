// Package orderbook implements the per-market order book: a red-black tree
// of price levels for each side, FIFO queues of orders within each level,
// and an arena of order records addressed by access keys.
//
// Books are single-writer and deterministic. Every mutation is O(log L) in
// the number of price levels for level lookup and O(1) for the queue
// operation; the best level of either side is cached.
package orderbook
