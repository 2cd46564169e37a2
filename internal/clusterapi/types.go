package clusterapi

import "context"

// NodeStats is the subset of GET /_nodes/stats this controller consumes
// for one node.
type NodeStats struct {
	Name       string
	Host       string
	Roles      []string
	Zone       string // attributes.zone
	HeapMaxBytes int64 // jvm.mem.heap_max_in_bytes
	DiskTotalBytes     int64 // fs.total.total_in_bytes
	DiskAvailableBytes int64 // fs.total.available_in_bytes
}

// CatIndexRow is one row of GET /_cat/indices.
type CatIndexRow struct {
	Status string
	State  string
	Index  string
	UUID   string
}

// CatShardRow is one row of GET /_cat/shards, before the "A -> ip B"
// relocation marker in Node has been parsed by internal/snapshot.
type CatShardRow struct {
	Index  string
	I      string
	Type   string
	Status string
	Num    string
	Size   string
	IP     string
	Node   string
}

// Command is one /_cluster/reroute command. Exactly one field is set; the
// others are omitted from the wire encoding by the default client.
type Command struct {
	Move                *MoveCommand                `json:"move,omitempty"`
	AllocateReplica      *AllocateCommand            `json:"allocate_replica,omitempty"`
	AllocateStalePrimary *AllocatePrimaryCommand     `json:"allocate_stale_primary,omitempty"`
	AllocateEmptyPrimary *AllocatePrimaryCommand     `json:"allocate_empty_primary,omitempty"`
	Cancel               *CancelCommand              `json:"cancel,omitempty"`
}

type MoveCommand struct {
	Index    string `json:"index"`
	Shard    int    `json:"shard"`
	FromNode string `json:"from_node"`
	ToNode   string `json:"to_node"`
}

type AllocateCommand struct {
	Index string `json:"index"`
	Shard int    `json:"shard"`
	Node  string `json:"node"`
}

type AllocatePrimaryCommand struct {
	Index           string `json:"index"`
	Shard           int    `json:"shard"`
	Node            string `json:"node"`
	AcceptDataLoss bool   `json:"accept_data_loss"`
}

type CancelCommand struct {
	Index string `json:"index"`
	Shard int    `json:"shard"`
	Node  string `json:"node"`
}

// RerouteResult is the outcome of a single /_cluster/reroute call.
type RerouteResult struct {
	Acknowledged bool
	// Reason is the cluster's rejection reason when Acknowledged is false,
	// extracted from either the structured error.root_cause.reason field
	// or the legacy "[NO(reason)]" string form (§6, §7).
	Reason string
}

// Client is everything the planner needs from the cluster HTTP API. The
// default implementation is HTTPClient; tests use an in-memory fake.
type Client interface {
	NodesStats(ctx context.Context) ([]NodeStats, error)
	CatIndices(ctx context.Context) ([]CatIndexRow, error)
	CatShards(ctx context.Context) ([]CatShardRow, error)
	PutIndexSettings(ctx context.Context, index string, numberOfReplicas int) error
	Reroute(ctx context.Context, commands []Command) (RerouteResult, error)
	PutClusterSettings(ctx context.Context, persistent, transient map[string]any) error

	// PutRaw issues an arbitrary PUT with a JSON body, for the operator's
	// "finally" exit commands (§4.6), whose target path is operator
	// configuration rather than a fixed endpoint this package otherwise
	// knows about.
	PutRaw(ctx context.Context, path string, body any) error
}
