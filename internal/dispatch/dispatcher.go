package dispatch

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	hclog "github.com/hashicorp/go-hclog"
	multierror "github.com/hashicorp/go-multierror"
	"golang.org/x/time/rate"

	"github.com/dreamware/zonectl/internal/awareness"
	"github.com/dreamware/zonectl/internal/clusterapi"
	"github.com/dreamware/zonectl/internal/inflight"
	"github.com/dreamware/zonectl/internal/model"
)

const (
	// BigShardSize is the per-node byte budget multiplier base: a node
	// should not be asked to move more than concurrent × BigShardSize in
	// one tick (§4.4 step 3).
	BigShardSize = 2 << 30 // 2 GiB

	// MaxMoveFailures stops the tick after this many consecutive
	// dispatch failures (§4.4 step 10).
	MaxMoveFailures = 3

	retryAfterAwarenessToggle = 5 * time.Second
)

// Outcome summarizes one call to Dispatch.
type Outcome struct {
	Dispatched int
	Failed     int
	Aborted    bool
}

// Dispatcher holds the process-wide collaborators the destination
// selector needs: the cluster client, the inflight tracker it appends
// accepted moves to, and the zone-awareness toggle it flips for the
// "too many copies of the shard" retry.
type Dispatcher struct {
	Client    clusterapi.Client
	Inflight  *inflight.Tracker
	Awareness *awareness.Toggle
	Logger    hclog.Logger

	// Sleep is overridable so tests don't wait out the real 5s retry delay.
	Sleep func(time.Duration)

	// TickInterval sizes the bandwidth backstop limiters below; defaults
	// to 30s, the orchestrator's tick period (§4.6).
	TickInterval time.Duration

	limitersMu sync.Mutex
	limiters   map[string]*rate.Limiter
}

// limiterFor lazily creates a per-node burst limiter sized so that, at
// the expected tick cadence, it never binds ahead of the explicit byte
// counters above under normal conditions; it only actually excludes a node
// as a candidate when a caller drives ticks faster than TickInterval and
// the per-node byte budget hasn't reset yet (§4.4 domain-stack note).
func (d *Dispatcher) limiterFor(node string) *rate.Limiter {
	d.limitersMu.Lock()
	defer d.limitersMu.Unlock()
	if d.limiters == nil {
		d.limiters = map[string]*rate.Limiter{}
	}
	lim, ok := d.limiters[node]
	if !ok {
		interval := d.TickInterval
		if interval <= 0 {
			interval = 30 * time.Second
		}
		lim = rate.NewLimiter(rate.Limit(float64(BigShardSize)/interval.Seconds()), BigShardSize)
		d.limiters[node] = lim
	}
	return lim
}

// New returns a Dispatcher wired to its collaborators.
func New(client clusterapi.Client, tracker *inflight.Tracker, toggle *awareness.Toggle, logger hclog.Logger) *Dispatcher {
	return &Dispatcher{Client: client, Inflight: tracker, Awareness: toggle, Logger: logger, Sleep: time.Sleep}
}

// Dispatch processes requests in the order given (callers pass
// policy.Classify's already-sorted output), issuing at most one command
// per (index, shard_id), and unconditionally re-enables zone awareness
// before returning (§4.4 end of tick).
func (d *Dispatcher) Dispatch(ctx context.Context, snap *model.Snapshot, requests []*model.AllocationRequest, seed int64) (Outcome, error) {
	defer func() {
		if err := d.Awareness.Enable(context.Background()); err != nil {
			d.Logger.Error("failed to restore zone awareness at end of tick", "error", err)
		}
	}()

	rng := rand.New(rand.NewSource(seed))
	inbound, outbound := initBandwidth(snap, d.Inflight)
	done := map[model.ReplicaGroup]bool{}

	var outcome Outcome
	var errs *multierror.Error
	consecutiveFailures := 0

dispatchLoop:
	for _, req := range requests {
		g := model.ReplicaGroup{Index: req.Shard.Index, I: req.Shard.I}
		if done[g] {
			continue
		}

		source := sourceNode(snap, req.Shard)
		budget := requestBudget(req)
		if source != "" && outbound[source] >= budget {
			continue
		}
		if source != "" && d.limiterFor(source).TokensAt(time.Now()) < float64(req.Shard.Size) {
			d.Logger.Debug("node hit bandwidth backstop for this tick window, deferring", "node", source, "direction", "outbound")
			continue
		}

		dest, shouldWarn, ok := d.chooseDestination(rng, snap, inbound, req)
		if !ok {
			if shouldWarn {
				d.Logger.Warn("no destination candidates with positive weight", "index", req.Shard.Index, "shard", req.Shard.I, "reason", req.Reason)
			}
			continue
		}

		cmd := buildCommand(snap, req, source, dest)
		result, err := d.postWithRetry(ctx, req, cmd)
		if err != nil {
			consecutiveFailures++
			errs = multierror.Append(errs, err)
			outcome.Failed++
			if consecutiveFailures >= MaxMoveFailures {
				outcome.Aborted = true
				break dispatchLoop
			}
			continue
		}
		if !result.Acknowledged {
			// §7: not every rejection reason is a real failure. Classify it
			// before touching consecutiveFailures, so a cluster returning a
			// string of recoverable rejections doesn't trip the abort
			// threshold the way a string of genuine failures should.
			switch class, lostNode := classifyRejection(result.Reason); class {
			case rejectionSkip:
				d.Logger.Debug("reroute skipped, recoverable rejection", "index", req.Shard.Index, "shard", req.Shard.I, "reason", result.Reason)
				continue dispatchLoop
			case rejectionNodeLost:
				d.Logger.Warn("node unresolvable, excluding it from placement for the rest of this tick", "node", lostNode, "reason", result.Reason)
				if n := snap.Nodes[lostNode]; n != nil {
					n.Zone = ""
				}
				continue dispatchLoop
			case rejectionTreatAsSuccess:
				// The shard is already where it needs to be; nothing moved,
				// so no bandwidth/inflight bookkeeping, but the group is
				// satisfied and the streak of real failures is unbroken by it.
				d.Logger.Debug("reroute already satisfied", "index", req.Shard.Index, "shard", req.Shard.I, "reason", result.Reason)
				done[g] = true
				continue dispatchLoop
			default:
				consecutiveFailures++
				outcome.Failed++
				d.Logger.Warn("reroute rejected", "index", req.Shard.Index, "shard", req.Shard.I, "reason", result.Reason)
				if consecutiveFailures >= MaxMoveFailures {
					outcome.Aborted = true
					break dispatchLoop
				}
				continue dispatchLoop
			}
		}

		consecutiveFailures = 0
		done[g] = true
		outbound[source] += req.Shard.Size
		inbound[dest] += req.Shard.Size
		if source != "" {
			d.limiterFor(source).AllowN(time.Now(), int(req.Shard.Size))
		}
		d.limiterFor(dest).AllowN(time.Now(), int(req.Shard.Size))
		if req.Shard.Status == model.Started {
			req.Shard.Status = model.Relocating
			d.Inflight.Add(inflight.Move{Index: req.Shard.Index, ShardID: req.Shard.I, From: source, To: dest})
		}
		outcome.Dispatched++
		d.Logger.Info("dispatched", "index", req.Shard.Index, "shard", req.Shard.I,
			"reason", req.Reason, "mode_priority", req.ModePriority, "from", source, "to", dest)
	}

	return outcome, errs.ErrorOrNil()
}

func requestBudget(req *model.AllocationRequest) int64 {
	if req.ConcurrencyHint <= 0 {
		return BigShardSize
	}
	return int64(req.ConcurrencyHint) * BigShardSize
}

// sourceNode implements §4.4 step 2: the shard's current node, or, for an
// UNASSIGNED shard with a STARTED primary elsewhere, that primary's node
// (the cluster will pull from it). Returns "" when neither applies (e.g.
// an empty-primary allocation with no existing copy to pull from).
func sourceNode(snap *model.Snapshot, sh *model.Shard) string {
	if sh.Node != "" {
		return sh.Node
	}
	if sh.Status != model.Unassigned {
		return ""
	}
	for _, other := range snap.ShardsOf(sh.Index, sh.I) {
		if other.Type == model.Primary && other.Status == model.Started {
			return other.Node
		}
	}
	return ""
}

func buildCommand(snap *model.Snapshot, req *model.AllocationRequest, source, dest string) clusterapi.Command {
	sh := req.Shard
	if sh.Status == model.Unassigned {
		if snap.ClusterRed {
			return clusterapi.Command{AllocateEmptyPrimary: &clusterapi.AllocatePrimaryCommand{
				Index: sh.Index, Shard: sh.I, Node: dest, AcceptDataLoss: true,
			}}
		}
		return clusterapi.Command{AllocateReplica: &clusterapi.AllocateCommand{Index: sh.Index, Shard: sh.I, Node: dest}}
	}
	return clusterapi.Command{Move: &clusterapi.MoveCommand{Index: sh.Index, Shard: sh.I, FromNode: source, ToNode: dest}}
}

// postWithRetry implements §4.4 step 10's one-shot "too many copies of the
// shard" recovery: disable zone awareness, wait, retry once.
func (d *Dispatcher) postWithRetry(ctx context.Context, req *model.AllocationRequest, cmd clusterapi.Command) (clusterapi.RerouteResult, error) {
	result, err := d.Client.Reroute(ctx, []clusterapi.Command{cmd})
	if err != nil || result.Acknowledged {
		return result, err
	}
	if !strings.Contains(result.Reason, "too many copies of the shard") {
		return result, nil
	}

	d.Logger.Warn("too many copies of the shard, retrying once with zone awareness disabled",
		"index", req.Shard.Index, "shard", req.Shard.I)
	if err := d.Awareness.Disable(ctx); err != nil {
		return result, err
	}
	d.Sleep(retryAfterAwarenessToggle)
	return d.Client.Reroute(ctx, []clusterapi.Command{cmd})
}

// rejectionClass is how §7 tells a genuine dispatch failure (counts toward
// MaxMoveFailures) apart from a reroute reason that is recoverable without
// retrying, or that already got what it wanted.
type rejectionClass int

const (
	// rejectionFatal counts toward consecutiveFailures.
	rejectionFatal rejectionClass = iota
	// rejectionSkip is a recoverable reason; move on to the next shard
	// without touching the failure streak.
	rejectionSkip
	// rejectionTreatAsSuccess means the cluster already satisfies the
	// request (e.g. the shard is already on that node); the group is done.
	rejectionTreatAsSuccess
	// rejectionNodeLost means the named node no longer resolves; its zone
	// is cleared so it drops out of candidate selection for the rest of
	// this tick.
	rejectionNodeLost
)

// classifyRejection implements §7's non-acknowledged-reroute taxonomy
// (`balance.py:1076-1090`). lostNode is only meaningful when class is
// rejectionNodeLost.
func classifyRejection(reason string) (class rejectionClass, lostNode string) {
	switch {
	case strings.Contains(reason, "shard cannot be allocated on same node"):
		return rejectionTreatAsSuccess, ""
	case strings.Contains(reason, "target node version"),
		strings.Contains(reason, "too many shards on nodes for attribute"),
		strings.Contains(reason, "after allocation more than allowed"):
		return rejectionSkip, ""
	default:
		if node, ok := extractUnresolvedNode(reason); ok {
			return rejectionNodeLost, node
		}
		return rejectionFatal, ""
	}
}

// extractUnresolvedNode pulls X out of a "failed to resolve [X]" reason.
func extractUnresolvedNode(reason string) (string, bool) {
	const marker = "failed to resolve ["
	start := strings.Index(reason, marker)
	if start < 0 {
		return "", false
	}
	start += len(marker)
	end := strings.IndexByte(reason[start:], ']')
	if end < 0 {
		return "", false
	}
	return reason[start : start+end], true
}

type weighted struct {
	node   string
	weight float64
}

// chooseDestination implements §4.4 steps 4-6. ok is false when no
// candidate carries positive weight; shouldWarn distinguishes "every
// candidate was excluded for being full" (worth a warning) from "every
// candidate was excluded for a legitimate placement reason" (not worth one).
func (d *Dispatcher) chooseDestination(rng *rand.Rand, snap *model.Snapshot, inbound map[string]int64, req *model.AllocationRequest) (dest string, shouldWarn bool, ok bool) {
	names := make([]string, 0, len(snap.Nodes))
	for name := range snap.Nodes {
		names = append(names, name)
	}
	sort.Strings(names)

	var candidates []weighted
	sawGoodReason := false

	for _, name := range names {
		n := snap.Nodes[name]
		if !n.IsData() {
			continue
		}
		if n.Zone == "" {
			// A node whose zone was nulled out this tick after a "failed to
			// resolve" rejection (§7) is unresolvable; don't offer it again.
			continue
		}
		if len(req.CandidateZones) > 0 && !req.CandidateZones[n.Zone] {
			sawGoodReason = true
			continue
		}
		if hostsShard(snap, req.Shard.Index, req.Shard.I, name) {
			sawGoodReason = true
			continue
		}

		budget := requestBudget(req)
		if inbound[name] >= budget {
			continue // fullness
		}
		if d.limiterFor(name).TokensAt(time.Now()) < float64(req.Shard.Size) {
			continue // bandwidth backstop, fullness
		}

		cell := snap.Cell(req.Shard.Index, name)
		if req.ModePriority >= 5 && len(cell.Shards) >= cell.MaxAllowed {
			sawGoodReason = true
			continue
		}
		if isRebalanceReason(req.Reason) {
			if len(cell.Shards) <= cell.MinAllowed {
				sawGoodReason = true
				continue
			}
			if d.isPendingDestination(name) {
				sawGoodReason = true
				continue
			}
		}
		if violatesDiskFloor(n, req.Shard.Size, req.Reason) {
			continue // fullness
		}

		w := placementWeight(n, cell, req.Shard.IndexSize)
		if w <= 0 {
			continue
		}
		candidates = append(candidates, weighted{node: name, weight: w})
	}

	if len(candidates) == 0 {
		return "", !sawGoodReason, false
	}
	return weightedPick(rng, candidates), false, true
}

func isRebalanceReason(reason string) bool {
	return reason == "not balanced" || reason == "slightly better balance"
}

func hostsShard(snap *model.Snapshot, index string, i int, node string) bool {
	_, ok := snap.Shards[model.Key{Index: index, I: i, Node: node}]
	return ok
}

func (d *Dispatcher) isPendingDestination(node string) bool {
	for _, m := range d.Inflight.All() {
		if m.To == node {
			return true
		}
	}
	return false
}

// violatesDiskFloor implements §4.4 step 4's disk-floor exclusion:
// "slightly better balance" ignores disk floors entirely; every other
// reason is held to a 5% hard floor, and every reason except "not
// started" is also held to the stricter 10% floor.
func violatesDiskFloor(n *model.Node, shardSize int64, reason string) bool {
	if reason == "slightly better balance" || n.Disk <= 0 {
		return false
	}
	after := float64(n.DiskFree-shardSize) / float64(n.Disk)
	if after < 0.05 {
		return true
	}
	if reason == "not started" {
		return false
	}
	return after < 0.10
}

// placementWeight implements §4.4 step 4's base weight: node memory,
// scaled down by the node's existing share of this index's bytes, then
// scaled again to prefer nodes below their fair share of this index's
// shard count.
func placementWeight(n *model.Node, cell *model.AllocationCell, indexSize int64) float64 {
	var sameIndexBytes int64
	for _, sh := range cell.Shards {
		sameIndexBytes += sh.Size
	}
	fullness := 1 - float64(sameIndexBytes)/float64(indexSize+1)
	base := float64(n.Memory) * fullness

	exponent := cell.MinAllowed - len(cell.Shards) - 1
	if exponent > -1 {
		exponent = -1
	}
	return base * math.Pow(4, float64(exponent))
}

func weightedPick(rng *rand.Rand, candidates []weighted) string {
	total := 0.0
	for _, c := range candidates {
		total += c.weight
	}
	if total <= 0 {
		return candidates[rng.Intn(len(candidates))].node
	}
	r := rng.Float64() * total
	for _, c := range candidates {
		r -= c.weight
		if r <= 0 {
			return c.node
		}
	}
	return candidates[len(candidates)-1].node
}

func initBandwidth(snap *model.Snapshot, tracker *inflight.Tracker) (inbound, outbound map[string]int64) {
	inbound = map[string]int64{}
	outbound = map[string]int64{}
	for _, m := range tracker.All() {
		sh := snap.Shards[model.Key{Index: m.Index, I: m.ShardID, Node: m.From}]
		var size int64
		if sh != nil {
			size = sh.Size
		}
		outbound[m.From] += size
		inbound[m.To] += size
	}
	return inbound, outbound
}
