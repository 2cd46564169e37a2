package model

// ShardType distinguishes a shard's primary replica from its other copies.
type ShardType string

const (
	Primary ShardType = "p"
	Replica ShardType = "r"
)

// ShardStatus mirrors the cluster's reported shard lifecycle state.
type ShardStatus string

const (
	Unassigned   ShardStatus = "UNASSIGNED"
	Initializing ShardStatus = "INITIALIZING"
	Started      ShardStatus = "STARTED"
	Relocating   ShardStatus = "RELOCATING"
)

// Liveness is the remembered ALIVE/DEAD classification of a node, kept
// across ticks by internal/controller so that transitions can be logged.
type Liveness int

const (
	LivenessUnknown Liveness = iota
	LivenessAlive
	LivenessDead
)

// Zone is a named availability domain: a rack, an availability zone, or an
// instance class that shares a failure mode.
type Zone struct {
	// Name is the zone's identifier, as reported in a node's "zone" attribute.
	Name string

	// Risky marks a zone whose nodes may vanish without notice (e.g. spot
	// instances). The planner prefers at least one non-risky copy of every
	// shard.
	Risky bool

	// Busy marks a zone that should not host primaries of the most recent
	// index in an alias series (rule F).
	Busy bool

	// Shards is the operator-configured default target replica count for
	// this zone, used as the inter-zone duplication cap (rule J) and as a
	// fallback when an index has no explicit override.
	Shards int

	// NumNodes is the count of nodes (of any role) in this zone, derived
	// once per tick.
	NumNodes int

	// Memory is the sum of heap bytes across data nodes in this zone,
	// derived once per tick; used for allocation-cell fair-share math.
	Memory int64
}

// Node is one member of the cluster.
type Node struct {
	Name string
	IP   string

	// Roles is the set of roles this node participates in ("data", "master",
	// ...). Only nodes with the data role ever receive shards.
	Roles map[string]bool

	// Zone is the name of the Zone this node belongs to. A node without a
	// zone is a fatal snapshot error (§3 invariant).
	Zone string

	// Memory is the node's JVM heap in bytes; zero for non-data nodes.
	Memory int64

	// Disk and DiskFree are filesystem totals in bytes; zero for non-data
	// nodes so they are never candidates for placement.
	Disk     int64
	DiskFree int64

	// Siblings is the count of other data nodes sharing this node's zone,
	// derived once per tick.
	Siblings int
}

func (n *Node) IsData() bool { return n.Roles["data"] }

// DiskFreeRatio reports the fraction of disk still free, or 1.0 for a
// node with no reported disk (never a placement candidate anyway).
func (n *Node) DiskFreeRatio() float64 {
	if n.Disk <= 0 {
		return 1.0
	}
	return float64(n.DiskFree) / float64(n.Disk)
}

// Shard is one replica instance of one partition of one index.
type Shard struct {
	Index string
	I     int
	Type  ShardType
	Status ShardStatus

	// Size is this replica's size in bytes, equalized across all replicas
	// of the same (Index, I) to the maximum observed so unassigned copies
	// get a usable estimate (§4.1 step 7).
	Size int64

	// Node is the node currently hosting this replica, or "" if unassigned.
	// For a relocating shard this is the source node (§4.1 step 6).
	Node string

	// IndexSize is the sum of Size across all replicas of this index,
	// derived once per tick.
	IndexSize int64

	// Siblings is the primary count of this index (i.e. the index's shard
	// count), derived once per tick.
	Siblings int

	// Virtual marks a synthesized INITIALIZING shard standing in for the
	// destination side of an inflight relocation that the cluster has not
	// yet reported (§4.1 step 8). Virtual shards participate in bandwidth
	// and allocation-cell accounting but were never themselves dispatched.
	Virtual bool
}

// Key identifies a single replica instance.
type Key struct {
	Index string
	I     int
	Node  string
}

// ReplicaGroup identifies all replicas of one shard of one index, ignoring
// which node each currently sits on.
type ReplicaGroup struct {
	Index string
	I     int
}

// AllocationCell is the (index, node) pair with a fair-share floor and
// ceiling on how many of the index's shards that node may hold.
type AllocationCell struct {
	Index string
	Node  string

	// MinAllowed and MaxAllowed bound a node's fair share of an index's
	// shards, derived from the node's memory as a fraction of its zone's
	// memory, scaled by the index's expected replica count and primaries.
	MinAllowed int
	MaxAllowed int

	// Shards lists the current STARTED (and virtual INITIALIZING) replicas
	// of Index held on Node.
	Shards []*Shard
}

// CellKey is the map key for an AllocationCell.
type CellKey struct {
	Index string
	Node  string
}

// RequiredReplicas is index -> zone -> target active-replica count.
type RequiredReplicas map[string]map[string]int

// Snapshot is the per-tick view of cluster state that policy and dispatch
// reason about. Policy only reads it; dispatch updates it in place as the
// tick proceeds (an accepted move flips its shard to RELOCATING, and a
// "failed to resolve" rejection clears that node's Zone).
type Snapshot struct {
	Zones map[string]*Zone
	Nodes map[string]*Node

	// Shards is keyed by (index, i, node) rather than a flat slice, since
	// §3's core invariant ("never two instances of (index,i) on the same
	// node") is most naturally enforced by construction against this key.
	Shards map[Key]*Shard

	Cells map[CellKey]*AllocationCell

	Required RequiredReplicas

	// ClusterRed is true when the snapshot was built from a cluster whose
	// health is RED (used to choose allocate_empty_primary vs
	// allocate_replica in dispatch, §4.4 step 7).
	ClusterRed bool
}

// ShardsOf returns every replica of (index, i) in the snapshot, in no
// particular order.
func (s *Snapshot) ShardsOf(index string, i int) []*Shard {
	var out []*Shard
	for k, sh := range s.Shards {
		if k.Index == index && k.I == i {
			out = append(out, sh)
		}
	}
	return out
}

// ActiveZones returns the set of zone names holding a STARTED replica of
// (index, i).
func (s *Snapshot) ActiveZones(index string, i int) map[string]bool {
	zones := map[string]bool{}
	for _, sh := range s.ShardsOf(index, i) {
		if sh.Status != Started || sh.Node == "" {
			continue
		}
		if n, ok := s.Nodes[sh.Node]; ok {
			zones[n.Zone] = true
		}
	}
	return zones
}

// Cell returns the allocation cell for (index, node), creating a zero-value
// one if absent so callers never need a nil check.
func (s *Snapshot) Cell(index, node string) *AllocationCell {
	k := CellKey{Index: index, Node: node}
	if c, ok := s.Cells[k]; ok {
		return c
	}
	return &AllocationCell{Index: index, Node: node}
}

// AllocationRequest is a planner-internal proposal to allocate or move one
// replica, produced by internal/policy and consumed by internal/dispatch.
type AllocationRequest struct {
	Shard *Shard

	// CandidateZones restricts the destination to these zones; nil means
	// any zone is a candidate.
	CandidateZones map[string]bool

	ConcurrencyHint int
	Reason          string

	// ModePriority and ReplicationPriority together define dispatch order,
	// per §4.3's ascending (mode_priority, replication_priority, index_size,
	// shard_id) sort.
	ModePriority        float64
	ReplicationPriority int
}
