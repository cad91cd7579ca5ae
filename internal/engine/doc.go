// Package engine ranks candidate resources against the configured priority
// rule, stored rule groups, and custom rules.
//
// A Service compiles everything into an immutable Snapshot and publishes it
// with an atomic swap. Reload rebuilds the snapshot from the store and the
// current filter settings; when compilation fails the previous snapshot stays
// live and the error is returned, so a bad edit never interrupts ranking.
// Requests in flight keep the snapshot they started with.
package engine
