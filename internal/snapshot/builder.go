package snapshot

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	hclog "github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"

	"github.com/dreamware/zonectl/internal/clusterapi"
	"github.com/dreamware/zonectl/internal/config"
	"github.com/dreamware/zonectl/internal/inflight"
	"github.com/dreamware/zonectl/internal/model"
	"github.com/dreamware/zonectl/internal/textutil"
)

// Builder pulls cluster state and produces one tick's Snapshot.
type Builder struct {
	Client   clusterapi.Client
	Config   *config.Config
	Liveness *LivenessTracker
	Inflight *inflight.Tracker
	Logger   hclog.Logger
}

// Build implements §4.1: fetch, merge overrides, reconcile liveness and
// inflight state, and derive every computed field the rest of the tick
// needs. A node without a zone is a fatal error for the tick, per §3's
// invariant.
func (b *Builder) Build(ctx context.Context) (*model.Snapshot, error) {
	var nodeStats []clusterapi.NodeStats
	var indexRows []clusterapi.CatIndexRow
	var shardRows []clusterapi.CatShardRow

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		nodeStats, err = b.Client.NodesStats(gctx)
		return err
	})
	g.Go(func() (err error) {
		indexRows, err = b.Client.CatIndices(gctx)
		return err
	})
	g.Go(func() (err error) {
		shardRows, err = b.Client.CatShards(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("snapshot: fetching cluster state: %w", err)
	}

	snap := &model.Snapshot{
		Zones:    make(map[string]*model.Zone, len(b.Config.Zones)),
		Nodes:    make(map[string]*model.Node, len(nodeStats)),
		Shards:   make(map[model.Key]*model.Shard, len(shardRows)),
		Cells:    make(map[model.CellKey]*model.AllocationCell),
		Required: make(model.RequiredReplicas),
	}

	for _, z := range b.Config.Zones {
		snap.Zones[z.Name] = &model.Zone{Name: z.Name, Risky: z.Risky, Busy: z.Busy, Shards: z.Shards}
	}

	present := make(map[string]bool, len(nodeStats))
	for _, ns := range nodeStats {
		present[ns.Name] = true
		roles := make(map[string]bool, len(ns.Roles))
		for _, r := range ns.Roles {
			roles[r] = true
		}
		n := &model.Node{
			Name:     ns.Name,
			IP:       ns.Host,
			Roles:    roles,
			Zone:     ns.Zone,
			Memory:   ns.HeapMaxBytes,
			Disk:     ns.DiskTotalBytes,
			DiskFree: ns.DiskAvailableBytes,
		}
		snap.Nodes[n.Name] = n
	}

	for _, o := range b.Config.Nodes {
		n, ok := snap.Nodes[o.Name]
		if !ok {
			continue
		}
		if o.Zone != "" {
			n.Zone = o.Zone
		}
		if o.Disk != 0 {
			n.Disk = o.Disk
		}
		if o.DiskFree != 0 {
			n.DiskFree = o.DiskFree
		}
		if o.Memory != 0 {
			n.Memory = o.Memory
		}
	}
	for _, n := range snap.Nodes {
		if n.DiskFree > n.Disk {
			n.DiskFree = n.Disk
		}
	}

	b.Liveness.update(present, b.Logger)

	for _, n := range snap.Nodes {
		if n.Zone == "" {
			return nil, fmt.Errorf("snapshot: node %q has no zone", n.Name)
		}
		z, ok := snap.Zones[n.Zone]
		if !ok {
			return nil, fmt.Errorf("snapshot: node %q belongs to unknown zone %q", n.Name, n.Zone)
		}
		z.NumNodes++
		if n.IsData() {
			z.Memory += n.Memory
		} else {
			n.Disk, n.DiskFree, n.Memory = 0, 0, 0
		}
	}
	for _, n := range snap.Nodes {
		if !n.IsData() {
			continue
		}
		for _, other := range snap.Nodes {
			if other.Name != n.Name && other.IsData() && other.Zone == n.Zone {
				n.Siblings++
			}
		}
	}

	for _, row := range indexRows {
		if strings.EqualFold(row.Status, "red") {
			snap.ClusterRed = true
		}
	}

	for _, row := range shardRows {
		i, err := strconv.Atoi(strings.TrimSpace(row.I))
		if err != nil {
			return nil, fmt.Errorf("snapshot: bad shard id %q for index %q: %w", row.I, row.Index, err)
		}
		size, err := textutil.ParseSize(row.Size)
		if err != nil {
			return nil, fmt.Errorf("snapshot: bad shard size %q: %w", row.Size, err)
		}

		node := row.Node
		if from, to, ok := parseRelocatingNode(row.Node); ok {
			b.Inflight.Add(inflight.Move{Index: row.Index, ShardID: i, From: from, To: to})
			node = from
		}

		sh := &model.Shard{
			Index:  row.Index,
			I:      i,
			Type:   model.ShardType(row.Type),
			Status: model.ShardStatus(strings.ToUpper(row.Status)),
			Size:   size,
			Node:   node,
		}
		snap.Shards[model.Key{Index: sh.Index, I: sh.I, Node: sh.Node}] = sh
	}

	equalizeShardSizes(snap.Shards)

	for _, virtual := range b.Inflight.Reconcile(snap.Shards) {
		snap.Shards[model.Key{Index: virtual.Index, I: virtual.I, Node: virtual.Node}] = virtual
	}

	buildRequiredReplicas(snap, b.Config)
	buildDerivedShardFields(snap)
	buildAllocationCells(snap)

	return snap, nil
}

// parseRelocatingNode recognizes the "A -> ip B" marker _cat/shards uses
// for a relocating shard's node field and returns the source and
// destination node names (§4.1 step 6).
func parseRelocatingNode(raw string) (from, to string, ok bool) {
	if !strings.Contains(raw, "->") {
		return "", "", false
	}
	fields := strings.Fields(raw)
	if len(fields) < 2 {
		return "", "", false
	}
	return fields[0], fields[len(fields)-1], true
}

// equalizeShardSizes sets every replica of the same (index, i) to the
// maximum size observed among them, so unassigned shards (which report no
// size) get a usable estimate (§4.1 step 7).
func equalizeShardSizes(shards map[model.Key]*model.Shard) {
	max := map[model.ReplicaGroup]int64{}
	for k, sh := range shards {
		g := model.ReplicaGroup{Index: k.Index, I: k.I}
		if sh.Size > max[g] {
			max[g] = sh.Size
		}
	}
	for k, sh := range shards {
		g := model.ReplicaGroup{Index: k.Index, I: k.I}
		sh.Size = max[g]
	}
}

// buildRequiredReplicas derives index -> zone -> required active replica
// count from the operator's per-zone defaults and per-index overrides,
// bounded above by the zone's node count (§3 invariant, testable
// property 5).
func buildRequiredReplicas(snap *model.Snapshot, cfg *config.Config) {
	indices := map[string]bool{}
	for k := range snap.Shards {
		indices[k.Index] = true
	}

	for index := range indices {
		snap.Required[index] = map[string]int{}
		for _, z := range snap.Zones {
			want := z.Shards
			for _, o := range cfg.Allocate {
				if o.Zone != z.Name {
					continue
				}
				if config.MatchIndex(index, []string{o.Name}) == 0 {
					want = o.Shards
					break
				}
			}
			if want > z.NumNodes {
				want = z.NumNodes
			}
			if want < 0 {
				want = 0
			}
			snap.Required[index][z.Name] = want
		}
	}
}

// buildDerivedShardFields computes IndexSize (sum of replica sizes) and
// Siblings (primary count) for every shard of every index, once per tick.
func buildDerivedShardFields(snap *model.Snapshot) {
	indexSize := map[string]int64{}
	primaries := map[string]int{}
	for _, sh := range snap.Shards {
		indexSize[sh.Index] += sh.Size
		if sh.Type == model.Primary {
			primaries[sh.Index]++
		}
	}
	for _, sh := range snap.Shards {
		sh.IndexSize = indexSize[sh.Index]
		sh.Siblings = primaries[sh.Index]
	}
}

// buildAllocationCells computes, for every (index, node) pair with a data
// node, the fair-share floor and ceiling of that index's shards the node
// should hold:
//
//	pro = (node.memory / zone.memory) * (required[index][zone] * numPrimaries)
//	min_allowed = floor(pro)
//	max_allowed = ceil(pro), or 0 if the node holds no memory share
func buildAllocationCells(snap *model.Snapshot) {
	primaries := map[string]int{}
	current := map[model.CellKey][]*model.Shard{}
	for _, sh := range snap.Shards {
		if sh.Type == model.Primary {
			primaries[sh.Index]++
		}
	}
	for k, sh := range snap.Shards {
		if sh.Status != model.Started && !sh.Virtual {
			continue
		}
		ck := model.CellKey{Index: sh.Index, Node: k.Node}
		current[ck] = append(current[ck], sh)
	}

	indices := map[string]bool{}
	for k := range snap.Shards {
		indices[k.Index] = true
	}

	for index := range indices {
		numPrimaries := primaries[index]
		for _, n := range snap.Nodes {
			var minAllowed, maxAllowed int
			z := snap.Zones[n.Zone]
			if n.IsData() && z != nil && z.Memory > 0 {
				pro := (float64(n.Memory) / float64(z.Memory)) * float64(snap.Required[index][n.Zone]*numPrimaries)
				minAllowed = int(math.Floor(pro))
				if n.Memory > 0 {
					maxAllowed = int(math.Ceil(pro))
				}
			}
			ck := model.CellKey{Index: index, Node: n.Name}
			snap.Cells[ck] = &model.AllocationCell{
				Index:      index,
				Node:       n.Name,
				MinAllowed: minAllowed,
				MaxAllowed: maxAllowed,
				Shards:     current[ck],
			}
		}
	}
}
