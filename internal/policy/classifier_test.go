package policy

import (
	"testing"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/zonectl/internal/config"
	"github.com/dreamware/zonectl/internal/model"
)

func testLogger() hclog.Logger { return hclog.NewNullLogger() }

func newSnapshot() *model.Snapshot {
	return &model.Snapshot{
		Zones:    map[string]*model.Zone{},
		Nodes:    map[string]*model.Node{},
		Shards:   map[model.Key]*model.Shard{},
		Cells:    map[model.CellKey]*model.AllocationCell{},
		Required: model.RequiredReplicas{},
	}
}

func addNode(snap *model.Snapshot, name, zone string) *model.Node {
	n := &model.Node{Name: name, Zone: zone, Roles: map[string]bool{"data": true}, Memory: 1000, Disk: 100, DiskFree: 50}
	snap.Nodes[name] = n
	return n
}

func addShard(snap *model.Snapshot, index string, i int, typ model.ShardType, status model.ShardStatus, node string, size int64) *model.Shard {
	sh := &model.Shard{Index: index, I: i, Type: typ, Status: status, Node: node, Size: size, IndexSize: size}
	snap.Shards[model.Key{Index: index, I: i, Node: node}] = sh
	return sh
}

// TestClassifySingleUnassignedReplicaTwoZones mirrors §8 scenario A: the
// replica is UNASSIGNED but the primary zone already has an active copy,
// so rule B does not fire for this group and rule H picks up the slack.
func TestClassifySingleUnassignedReplicaTwoZones(t *testing.T) {
	snap := newSnapshot()
	snap.Zones["primary"] = &model.Zone{Name: "primary", NumNodes: 1}
	snap.Zones["spot"] = &model.Zone{Name: "spot", Risky: true, NumNodes: 1}
	addNode(snap, "p1", "primary")
	addNode(snap, "s1", "spot")
	addShard(snap, "ix", 0, model.Primary, model.Started, "p1", 10)
	addShard(snap, "ix", 0, model.Replica, model.Unassigned, "", 10)
	snap.Required["ix"] = map[string]int{"primary": 1, "spot": 1}

	cfg := &config.Config{}
	res := Classify(snap, cfg, testLogger())

	var found *model.AllocationRequest
	for _, r := range res.Requests {
		if r.Reason == "low risk shards" {
			found = r
		}
	}
	require.NotNil(t, found, "expected rule H to propose allocating the unassigned replica")
	assert.Equal(t, float64(4), found.ModePriority)
	assert.True(t, found.CandidateZones["spot"])
	assert.False(t, found.CandidateZones["primary"])
}

// TestClassifyOverAllocatedPrimaryZone mirrors §8 scenario B.
func TestClassifyOverAllocatedPrimaryZone(t *testing.T) {
	snap := newSnapshot()
	snap.Zones["primary"] = &model.Zone{Name: "primary", NumNodes: 2}
	snap.Zones["spot"] = &model.Zone{Name: "spot", Risky: true, NumNodes: 1}
	addNode(snap, "primary-a", "primary")
	addNode(snap, "primary-b", "primary")
	addNode(snap, "spot-a", "spot")
	addShard(snap, "ix", 0, model.Primary, model.Started, "primary-a", 10)
	addShard(snap, "ix", 0, model.Replica, model.Started, "primary-b", 10)
	snap.Required["ix"] = map[string]int{"primary": 1, "spot": 1}

	cfg := &config.Config{}
	res := Classify(snap, cfg, testLogger())

	var found *model.AllocationRequest
	for _, r := range res.Requests {
		if r.Reason == "over allocated" {
			found = r
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, float64(3), found.ModePriority)
	assert.True(t, found.CandidateZones["spot"])
	assert.False(t, found.CandidateZones["primary"])
}

// TestClassifyFreeSpaceEvacuation mirrors §8 scenario C.
func TestClassifyFreeSpaceEvacuation(t *testing.T) {
	snap := newSnapshot()
	snap.Zones["primary"] = &model.Zone{Name: "primary", NumNodes: 2}
	full := addNode(snap, "full", "primary")
	full.Disk, full.DiskFree = 100, 4
	addNode(snap, "roomy", "primary")

	addShard(snap, "ix", 0, model.Primary, model.Started, "full", 20)
	addShard(snap, "ix", 1, model.Primary, model.Started, "full", 5)
	snap.Required["ix"] = map[string]int{"primary": 2}

	cfg := &config.Config{}
	res := Classify(snap, cfg, testLogger())

	var found *model.AllocationRequest
	for _, r := range res.Requests {
		if r.Reason == "free space" {
			found = r
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, float64(3), found.ModePriority)
	assert.Equal(t, 0, found.Shard.I, "the larger shard (size 20) should be chosen over the smaller (size 5)")
	assert.True(t, found.CandidateZones["primary"])
}

// TestClassifyRedIndexAllUnassigned mirrors §8 scenario D: every replica of
// (index,i) is UNASSIGNED, so the group's active-zone set is empty and
// rule B proposes allocation at mode_priority 1. (Rule C may also match
// this group since an empty realized-zone set is vacuously "all risky";
// internal/dispatch's done-set is what guarantees exactly one command
// survives per (index,i), not the classifier.)
func TestClassifyRedIndexAllUnassigned(t *testing.T) {
	snap := newSnapshot()
	snap.Zones["primary"] = &model.Zone{Name: "primary", NumNodes: 1}
	addNode(snap, "p1", "primary")
	addShard(snap, "ix", 0, model.Primary, model.Unassigned, "", 10)
	snap.Required["ix"] = map[string]int{"primary": 1}

	cfg := &config.Config{}
	res := Classify(snap, cfg, testLogger())

	var sawPriorityOne bool
	for _, r := range res.Requests {
		if r.ModePriority == 1 && r.Shard.Index == "ix" {
			sawPriorityOne = true
		}
	}
	assert.True(t, sawPriorityOne, "expected a not-started proposal at mode_priority 1")
}

func TestClassifyDefersWhenMultipleIndexesBusyWarmingUp(t *testing.T) {
	snap := newSnapshot()
	snap.Zones["primary"] = &model.Zone{Name: "primary", NumNodes: 1}
	addNode(snap, "p1", "primary")
	addShard(snap, "a", 0, model.Primary, model.Unassigned, "", 10)
	addShard(snap, "a", 1, model.Replica, model.Relocating, "p1", 10)
	addShard(snap, "b", 0, model.Primary, model.Unassigned, "", 10)
	addShard(snap, "b", 1, model.Replica, model.Relocating, "p1", 10)
	snap.Required["a"] = map[string]int{"primary": 1}
	snap.Required["b"] = map[string]int{"primary": 1}

	cfg := &config.Config{}
	res := Classify(snap, cfg, testLogger())

	assert.True(t, res.SkipTick, "cluster busy warming up should defer the whole tick, not just rule B")
	for _, r := range res.Requests {
		assert.NotEqual(t, "not started", r.Reason, "rule B should be deferred entirely this tick")
	}
}

// TestClassifySkipTickAlsoTriggersOnInitializingShards mirrors §4.3 rule
// B's "RELOCATING/INITIALIZING" wording: an index warming up with only
// INITIALIZING shards (no RELOCATING ones) must still count as busy.
func TestClassifySkipTickAlsoTriggersOnInitializingShards(t *testing.T) {
	snap := newSnapshot()
	snap.Zones["primary"] = &model.Zone{Name: "primary", NumNodes: 1}
	addNode(snap, "p1", "primary")
	addShard(snap, "a", 0, model.Primary, model.Unassigned, "", 10)
	addShard(snap, "a", 1, model.Replica, model.Initializing, "p1", 10)
	addShard(snap, "b", 0, model.Primary, model.Unassigned, "", 10)
	addShard(snap, "b", 1, model.Replica, model.Initializing, "p1", 10)
	snap.Required["a"] = map[string]int{"primary": 1}
	snap.Required["b"] = map[string]int{"primary": 1}

	cfg := &config.Config{}
	res := Classify(snap, cfg, testLogger())

	assert.True(t, res.SkipTick)
}

func TestClassifyOrdersRequestsByPriorityThenIndexSizeThenShardID(t *testing.T) {
	snap := newSnapshot()
	snap.Zones["primary"] = &model.Zone{Name: "primary", NumNodes: 2}
	snap.Zones["spot"] = &model.Zone{Name: "spot", Risky: true, NumNodes: 1}
	addNode(snap, "p1", "primary")
	addNode(snap, "p2", "primary")
	addNode(snap, "s1", "spot")

	addShard(snap, "big", 0, model.Primary, model.Started, "p1", 100)
	addShard(snap, "big", 0, model.Replica, model.Unassigned, "", 100)
	addShard(snap, "small", 0, model.Primary, model.Started, "p2", 1)
	addShard(snap, "small", 0, model.Replica, model.Unassigned, "", 1)
	snap.Required["big"] = map[string]int{"primary": 1, "spot": 1}
	snap.Required["small"] = map[string]int{"primary": 1, "spot": 1}

	cfg := &config.Config{}
	res := Classify(snap, cfg, testLogger())
	require.NotEmpty(t, res.Requests)

	for i := 1; i < len(res.Requests); i++ {
		a, b := res.Requests[i-1], res.Requests[i]
		if a.ModePriority != b.ModePriority {
			assert.Less(t, a.ModePriority, b.ModePriority)
			continue
		}
		if a.ReplicationPriority != b.ReplicationPriority {
			assert.LessOrEqual(t, a.ReplicationPriority, b.ReplicationPriority)
			continue
		}
		if a.Shard.IndexSize != b.Shard.IndexSize {
			assert.Less(t, a.Shard.IndexSize, b.Shard.IndexSize)
			continue
		}
		assert.LessOrEqual(t, a.Shard.I, b.Shard.I)
	}
}

func TestRuleAProposesReplicaCountCorrection(t *testing.T) {
	snap := newSnapshot()
	snap.Zones["primary"] = &model.Zone{Name: "primary", NumNodes: 1}
	addNode(snap, "p1", "primary")
	addShard(snap, "ix", 0, model.Primary, model.Started, "p1", 10)
	addShard(snap, "ix", 0, model.Replica, model.Started, "p1", 10)
	addShard(snap, "ix", 0, model.Replica, model.Started, "p1", 10)
	snap.Required["ix"] = map[string]int{"primary": 1}

	cfg := &config.Config{}
	res := Classify(snap, cfg, testLogger())

	require.Len(t, res.Corrections, 1)
	assert.Equal(t, "ix", res.Corrections[0].Index)
	assert.Equal(t, 0, res.Corrections[0].NumberOfReplicas, "required-1 == 1-1 == 0")
}

func TestLatestIndexPerAliasSeriesPicksLexicographicallyGreatestSuffix(t *testing.T) {
	latest := latestIndexPerAliasSeries([]string{
		"logs-2020010100000000", "logs-2020020100000000", "other-index",
	}, 15)
	assert.True(t, latest["logs-2020020100000000"])
	assert.False(t, latest["logs-2020010100000000"])
	assert.True(t, latest["other-index"])
}
