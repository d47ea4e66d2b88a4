// Package syncer propagates order book state between matching nodes.
//
// Outbound: it drains the engine's event queue and fans snapshots and
// top-of-book advisories out to publishers (the websocket sync hub,
// optionally Kafka market data). Inbound: it dials every configured
// peer's sync stream, drops stale or duplicate snapshots by per-origin
// sequence number, and folds accepted ones into the local books.
//
// Everything here is best-effort. An unreachable peer is skipped; a
// malformed update is logged and dropped; local matching never waits.
package syncer
