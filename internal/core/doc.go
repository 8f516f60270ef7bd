// Package core implements the pool orchestration behind refpool: the
// acquire/release state machine, the idle store, the pending queue, slot
// accounting, eviction, and disposal. The public refpool package is a thin
// facade over this package.
package core
