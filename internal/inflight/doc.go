// Package inflight tracks moves the planner has issued but the cluster has
// not yet confirmed by showing the shard STARTED at its destination (§4.2).
// It is the one piece of placement state — besides node liveness and the
// zone-awareness toggle — that survives from one tick to the next.
package inflight
