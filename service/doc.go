// Package service orchestrates the core components of the
// matching node: engine, fill store, and fill outbox.
//
// It provides a clean API for placing, cancelling, and
// querying orders, decoupled from the HTTP and websocket transports.
package service
