package dispatch

import (
	"context"
	"testing"
	"time"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/zonectl/internal/awareness"
	"github.com/dreamware/zonectl/internal/clusterapi"
	"github.com/dreamware/zonectl/internal/inflight"
	"github.com/dreamware/zonectl/internal/model"
)

type fakeClient struct {
	results      []clusterapi.RerouteResult
	rerouteCalls []clusterapi.Command
	settingsLog  []map[string]any
}

func (f *fakeClient) NodesStats(context.Context) ([]clusterapi.NodeStats, error)    { return nil, nil }
func (f *fakeClient) CatIndices(context.Context) ([]clusterapi.CatIndexRow, error)  { return nil, nil }
func (f *fakeClient) CatShards(context.Context) ([]clusterapi.CatShardRow, error)   { return nil, nil }
func (f *fakeClient) PutIndexSettings(context.Context, string, int) error           { return nil }
func (f *fakeClient) PutRaw(context.Context, string, any) error                    { return nil }
func (f *fakeClient) PutClusterSettings(_ context.Context, _ map[string]any, transient map[string]any) error {
	f.settingsLog = append(f.settingsLog, transient)
	return nil
}
func (f *fakeClient) Reroute(_ context.Context, cmds []clusterapi.Command) (clusterapi.RerouteResult, error) {
	f.rerouteCalls = append(f.rerouteCalls, cmds[0])
	idx := len(f.rerouteCalls) - 1
	if idx < len(f.results) {
		return f.results[idx], nil
	}
	return clusterapi.RerouteResult{Acknowledged: true}, nil
}

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
	n := &model.Node{
		Name: name, Zone: zone, Roles: map[string]bool{"data": true},
		Memory: 1000, Disk: 10_000_000_000, DiskFree: 8_000_000_000,
	}
	snap.Nodes[name] = n
	return n
}

func newDispatcher(client clusterapi.Client) *Dispatcher {
	return New(client, inflight.New(), awareness.New(client, hclog.NewNullLogger()), hclog.NewNullLogger())
}

func TestDispatchHappyPathMovesShardAndUpdatesInflight(t *testing.T) {
	snap := newSnapshot()
	addNode(snap, "p1", "primary")
	addNode(snap, "p2", "primary")
	snap.Shards[model.Key{Index: "ix", I: 0, Node: "p1"}] = &model.Shard{Index: "ix", I: 0, Type: model.Primary, Status: model.Started, Node: "p1", Size: 10}

	client := &fakeClient{}
	d := newDispatcher(client)
	req := &model.AllocationRequest{
		Shard:          snap.Shards[model.Key{Index: "ix", I: 0, Node: "p1"}],
		CandidateZones: map[string]bool{"primary": true},
		Reason:         "not started",
		ModePriority:   4,
	}

	outcome, err := d.Dispatch(context.Background(), snap, []*model.AllocationRequest{req}, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.Dispatched)
	require.Len(t, client.rerouteCalls, 1)
	require.NotNil(t, client.rerouteCalls[0].Move)
	assert.Equal(t, "p2", client.rerouteCalls[0].Move.ToNode)
	assert.Equal(t, model.Relocating, req.Shard.Status)
	require.Len(t, d.Inflight.All(), 1)
}

func TestDispatchSkipsSecondRequestForSameShardGroup(t *testing.T) {
	snap := newSnapshot()
	addNode(snap, "p1", "primary")
	addNode(snap, "p2", "primary")
	addNode(snap, "p3", "primary")
	sh := &model.Shard{Index: "ix", I: 0, Type: model.Primary, Status: model.Started, Node: "p1", Size: 10}
	snap.Shards[model.Key{Index: "ix", I: 0, Node: "p1"}] = sh

	client := &fakeClient{}
	d := newDispatcher(client)
	req1 := &model.AllocationRequest{Shard: sh, CandidateZones: map[string]bool{"primary": true}, Reason: "not started", ModePriority: 4}
	req2 := &model.AllocationRequest{Shard: sh, CandidateZones: map[string]bool{"primary": true}, Reason: "not started", ModePriority: 4}

	outcome, err := d.Dispatch(context.Background(), snap, []*model.AllocationRequest{req1, req2}, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.Dispatched)
	assert.Len(t, client.rerouteCalls, 1)
}

// TestDispatchBandwidthCapDefersThirdMove mirrors §8 scenario E: three
// 1 GiB shards sharing a source, concurrency hint 1 (budget = 1 ×
// BigShardSize = 2 GiB); only two fit in the outbound budget this tick.
func TestDispatchBandwidthCapDefersThirdMove(t *testing.T) {
	snap := newSnapshot()
	addNode(snap, "p1", "primary")
	addNode(snap, "p2", "primary")

	const oneGiB = 1 << 30
	var reqs []*model.AllocationRequest
	for i := 0; i < 3; i++ {
		sh := &model.Shard{Index: "ix", I: i, Type: model.Primary, Status: model.Started, Node: "p1", Size: oneGiB}
		snap.Shards[model.Key{Index: "ix", I: i, Node: "p1"}] = sh
		reqs = append(reqs, &model.AllocationRequest{
			Shard: sh, CandidateZones: map[string]bool{"primary": true},
			Reason: "not started", ModePriority: 4, ConcurrencyHint: 1,
		})
	}

	client := &fakeClient{}
	d := newDispatcher(client)
	outcome, err := d.Dispatch(context.Background(), snap, reqs, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, outcome.Dispatched, "only two 1 GiB moves fit in the 2 GiB outbound budget")
}

// TestDispatchTooManyCopiesRetriesOnceWithAwarenessDisabled mirrors §8
// scenario F.
func TestDispatchTooManyCopiesRetriesOnceWithAwarenessDisabled(t *testing.T) {
	snap := newSnapshot()
	addNode(snap, "p1", "primary")
	addNode(snap, "p2", "primary")
	sh := &model.Shard{Index: "ix", I: 0, Type: model.Primary, Status: model.Started, Node: "p1", Size: 10}
	snap.Shards[model.Key{Index: "ix", I: 0, Node: "p1"}] = sh

	client := &fakeClient{results: []clusterapi.RerouteResult{
		{Acknowledged: false, Reason: "too many copies of the shard"},
		{Acknowledged: true},
	}}
	d := newDispatcher(client)
	var slept time.Duration
	d.Sleep = func(dur time.Duration) { slept = dur }

	req := &model.AllocationRequest{Shard: sh, CandidateZones: map[string]bool{"primary": true}, Reason: "not started", ModePriority: 4}
	outcome, err := d.Dispatch(context.Background(), snap, []*model.AllocationRequest{req}, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.Dispatched)
	assert.Len(t, client.rerouteCalls, 2, "expected one retry after the awareness toggle")
	assert.Equal(t, 5*time.Second, slept)
	assert.True(t, d.Awareness.On(), "awareness should be restored at end of tick regardless of errors")
}

// TestDispatchTreatsSameNodeRejectionAsSuccess mirrors §7: "shard cannot be
// allocated on same node" means the cluster already has what was asked for,
// so the group is satisfied without counting toward the failure streak.
func TestDispatchTreatsSameNodeRejectionAsSuccess(t *testing.T) {
	snap := newSnapshot()
	addNode(snap, "p1", "primary")
	addNode(snap, "p2", "primary")
	sh := &model.Shard{Index: "ix", I: 0, Type: model.Primary, Status: model.Started, Node: "p1", Size: 10}
	snap.Shards[model.Key{Index: "ix", I: 0, Node: "p1"}] = sh

	client := &fakeClient{results: []clusterapi.RerouteResult{
		{Acknowledged: false, Reason: "shard cannot be allocated on same node"},
	}}
	d := newDispatcher(client)
	req := &model.AllocationRequest{Shard: sh, CandidateZones: map[string]bool{"primary": true}, Reason: "not started", ModePriority: 4}

	outcome, err := d.Dispatch(context.Background(), snap, []*model.AllocationRequest{req}, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, outcome.Failed)
	assert.Equal(t, 0, outcome.Dispatched, "nothing actually moved")
	assert.False(t, outcome.Aborted)
}

// TestDispatchSkipsRecoverableRejectionsWithoutCountingFailures mirrors §7's
// "target node version" / "too many shards on nodes for attribute" /
// "after allocation more than allowed" categories: none of these should
// push the tick toward the abort threshold even three in a row.
func TestDispatchSkipsRecoverableRejectionsWithoutCountingFailures(t *testing.T) {
	snap := newSnapshot()
	addNode(snap, "p1", "primary")
	addNode(snap, "p2", "primary")

	var reqs []*model.AllocationRequest
	for i := 0; i < 3; i++ {
		sh := &model.Shard{Index: "ix", I: i, Type: model.Primary, Status: model.Started, Node: "p1", Size: 1}
		snap.Shards[model.Key{Index: "ix", I: i, Node: "p1"}] = sh
		reqs = append(reqs, &model.AllocationRequest{Shard: sh, CandidateZones: map[string]bool{"primary": true}, Reason: "not started", ModePriority: 4})
	}

	client := &fakeClient{results: []clusterapi.RerouteResult{
		{Acknowledged: false, Reason: "target node version is too old"},
		{Acknowledged: false, Reason: "too many shards on nodes for attribute [zone]"},
		{Acknowledged: false, Reason: "after allocation more than allowed [80%] on node"},
	}}
	d := newDispatcher(client)
	outcome, err := d.Dispatch(context.Background(), snap, reqs, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, outcome.Failed)
	assert.False(t, outcome.Aborted)
	assert.Len(t, client.rerouteCalls, 3, "all three shards are attempted despite the recoverable rejections")
}

// TestDispatchNodeLostRejectionExcludesNodeForRestOfTick mirrors §7's
// "failed to resolve [X]" category: the unresolvable node must drop out of
// destination candidacy for the remainder of the tick.
func TestDispatchNodeLostRejectionExcludesNodeForRestOfTick(t *testing.T) {
	snap := newSnapshot()
	addNode(snap, "p1", "primary")
	lost := addNode(snap, "p2", "primary")
	_ = lost

	sh0 := &model.Shard{Index: "ix", I: 0, Type: model.Primary, Status: model.Started, Node: "p1", Size: 1}
	sh1 := &model.Shard{Index: "ix", I: 1, Type: model.Primary, Status: model.Started, Node: "p1", Size: 1}
	snap.Shards[model.Key{Index: "ix", I: 0, Node: "p1"}] = sh0
	snap.Shards[model.Key{Index: "ix", I: 1, Node: "p1"}] = sh1
	reqs := []*model.AllocationRequest{
		{Shard: sh0, CandidateZones: map[string]bool{"primary": true}, Reason: "not started", ModePriority: 4},
		{Shard: sh1, CandidateZones: map[string]bool{"primary": true}, Reason: "not started", ModePriority: 4},
	}

	client := &fakeClient{results: []clusterapi.RerouteResult{
		{Acknowledged: false, Reason: "failed to resolve [p2]"},
	}}
	d := newDispatcher(client)
	outcome, err := d.Dispatch(context.Background(), snap, reqs, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, outcome.Failed, "node-lost is not a counted failure")
	assert.Equal(t, "", snap.Nodes["p2"].Zone, "the unresolvable node's zone is cleared")
	assert.Len(t, client.rerouteCalls, 1, "the second shard had no remaining candidate node to dispatch to")
}

func TestDispatchAbortsAfterMaxConsecutiveFailures(t *testing.T) {
	snap := newSnapshot()
	addNode(snap, "p1", "primary")
	addNode(snap, "p2", "primary")

	var reqs []*model.AllocationRequest
	for i := 0; i < 4; i++ {
		sh := &model.Shard{Index: "ix", I: i, Type: model.Primary, Status: model.Started, Node: "p1", Size: 1}
		snap.Shards[model.Key{Index: "ix", I: i, Node: "p1"}] = sh
		reqs = append(reqs, &model.AllocationRequest{Shard: sh, CandidateZones: map[string]bool{"primary": true}, Reason: "not started", ModePriority: 4})
	}

	client := &fakeClient{results: []clusterapi.RerouteResult{
		{Acknowledged: false, Reason: "some other rejection"},
		{Acknowledged: false, Reason: "some other rejection"},
		{Acknowledged: false, Reason: "some other rejection"},
	}}
	d := newDispatcher(client)
	outcome, err := d.Dispatch(context.Background(), snap, reqs, 1)
	require.NoError(t, err)
	assert.True(t, outcome.Aborted)
	assert.Equal(t, 3, outcome.Failed)
	assert.Len(t, client.rerouteCalls, 3, "tick aborts after MAX_MOVE_FAILURES, leaving the fourth request unprocessed")
}
