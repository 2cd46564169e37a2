// Package snapshot implements the first stage of the reconciliation
// pipeline (§4.1): it pulls node stats, index listing, and shard listing
// from the cluster, merges in operator overrides, reconciles the inflight
// tracker, and produces the model.Snapshot the rest of the tick reasons
// about.
package snapshot
