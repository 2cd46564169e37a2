// Package controller is the reconciliation orchestrator of §4.6: it owns
// the three process-wide mutable pieces of state (the inflight tracker,
// the liveness tracker, and the cluster awareness toggle), applies the
// startup/shutdown cluster settings, and runs one tick as
// snapshot -> classify -> dispatch -> restore awareness.
package controller
