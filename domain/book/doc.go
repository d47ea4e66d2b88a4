// Package book implements a per-symbol limit order book with
// price-time priority. Each side is a best-first price ladder of FIFO
// levels; the book is partitioned by origin so that peer-reported
// state can be replaced wholesale without disturbing locally-submitted
// orders.
//
// The book has no locking and no knowledge of other nodes; callers
// serialize access per symbol.
package book
