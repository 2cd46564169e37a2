// Package model defines the per-tick data model for the placement planner:
// zones, nodes, shards, allocation cells, and the required-replicas map
// that policy and dispatch reason about.
//
// # Overview
//
// Every value in this package is rebuilt from scratch each tick by
// internal/snapshot. Nothing here survives across ticks — the only
// process-wide state the planner keeps lives in internal/inflight and
// internal/controller (inflight moves, node liveness, the zone-awareness
// toggle). That split keeps a tick's reasoning reproducible from a single
// snapshot and keeps cross-tick state small and explicit.
//
// # Arenas, not graphs
//
// Zone, Node and Shard would naturally cross-reference each other (a node
// belongs to a zone, a shard sits on a node, a shard has a back-reference
// to its allocation cell). Rather than modeling that with pointers that
// cycle, each entity is kept in a name-keyed arena (Snapshot.Zones,
// Snapshot.Nodes, Snapshot.Shards) and cross-references are plain string
// keys (Node.Zone, Shard.Node). Back-reference fields that the original
// computes on the fly (zone.num_nodes, node.siblings, shard.allocate) are
// derived once per tick by snapshot.Build and stored directly on the
// struct, so policy code never has to walk the arena to answer "how many
// nodes does this zone have".
package model
