package policy

import (
	"math"
	"sort"

	hclog "github.com/hashicorp/go-hclog"
	"golang.org/x/exp/slices"

	"github.com/dreamware/zonectl/internal/config"
	"github.com/dreamware/zonectl/internal/model"
)

const concurrentDefault = 1

var (
	startedOnly         = map[model.ShardStatus]bool{model.Started: true}
	startedOrRelocating = map[model.ShardStatus]bool{model.Started: true, model.Relocating: true}
	anyActive           = map[model.ShardStatus]bool{model.Started: true, model.Relocating: true, model.Initializing: true}
)

// ReplicaCorrection is rule A's output: the number_of_replicas value an
// index's settings should be corrected to. Issuing the PUT is
// internal/controller's job, not the classifier's.
type ReplicaCorrection struct {
	Index            string
	NumberOfReplicas int
}

// Result is everything Classify produces for one tick.
type Result struct {
	Requests    []*model.AllocationRequest
	Corrections []ReplicaCorrection

	// SkipTick is set by rule B when the cluster is busy warming up
	// (§4.3 rule B): the caller must not dispatch any of Requests this
	// tick, though Corrections — a side effect independent of placement —
	// still apply.
	SkipTick bool
}

// Classify evaluates rules A-K against snap and returns the pooled
// allocation requests, sorted ascending by (mode_priority,
// replication_priority, index_size, shard_id) per §4.3, along with any
// replica-count corrections rule A wants applied.
func Classify(snap *model.Snapshot, cfg *config.Config, logger hclog.Logger) Result {
	groups := groupByReplicaGroup(snap)

	var res Result
	res.Corrections = ruleA(snap, logger)
	diagnosePrimaryShardCount(snap, logger)
	for _, zoneName := range sortedZoneNames(snap) {
		z := snap.Zones[zoneName]
		logger.Debug("zone memory", "zone", zoneName, "memory", z.Memory, "num_nodes", z.NumNodes)
	}

	bReqs, skipTick := ruleB(snap, groups, logger)
	res.Requests = append(res.Requests, bReqs...)
	res.SkipTick = skipTick

	res.Requests = append(res.Requests, ruleC(snap, groups)...)

	overloaded, dReqs := ruleD(snap, groups)
	res.Requests = append(res.Requests, dReqs...)

	res.Requests = append(res.Requests, ruleE(snap)...)
	res.Requests = append(res.Requests, ruleF(snap, cfg, groups)...)
	res.Requests = append(res.Requests, ruleG(snap, groups)...)
	res.Requests = append(res.Requests, ruleH(snap, groups)...)

	zonesWithImbalance := map[string]bool{}
	res.Requests = append(res.Requests, ruleI(snap, overloaded, zonesWithImbalance)...)
	res.Requests = append(res.Requests, ruleJ(snap, groups)...)
	res.Requests = append(res.Requests, ruleK(snap, zonesWithImbalance, overloaded, logger)...)

	for _, r := range res.Requests {
		r.ReplicationPriority = config.MatchIndex(r.Shard.Index, cfg.ReplicationPriority)
	}
	slices.SortFunc(res.Requests, func(a, b *model.AllocationRequest) int {
		if a.ModePriority != b.ModePriority {
			return cmpFloat(a.ModePriority, b.ModePriority)
		}
		if a.ReplicationPriority != b.ReplicationPriority {
			return a.ReplicationPriority - b.ReplicationPriority
		}
		if a.Shard.IndexSize != b.Shard.IndexSize {
			return cmpInt64(a.Shard.IndexSize, b.Shard.IndexSize)
		}
		return a.Shard.I - b.Shard.I
	})

	return res
}

func newRequest(sh *model.Shard, zones map[string]bool, modePriority float64, reason string, concurrencyHint int) *model.AllocationRequest {
	return &model.AllocationRequest{
		Shard:           sh,
		CandidateZones:  zones,
		ConcurrencyHint: concurrencyHint,
		Reason:          reason,
		ModePriority:    modePriority,
	}
}

// ruleA computes, for every index, the replica-count correction rule A
// wants applied: round(total replicas / primary count) must equal the
// sum of required[index][zone] across zones, or the index's
// number_of_replicas is set to required-1 (§4.3 rule A).
func ruleA(snap *model.Snapshot, logger hclog.Logger) []ReplicaCorrection {
	counts := map[string]int{}
	primaries := map[string]int{}
	for _, sh := range snap.Shards {
		counts[sh.Index]++
		if sh.Type == model.Primary {
			primaries[sh.Index]++
		}
	}

	var out []ReplicaCorrection
	for _, index := range sortedKeys(counts) {
		if primaries[index] == 0 {
			continue
		}
		required := 0
		for _, n := range snap.Required[index] {
			required += n
		}
		current := int(math.Round(float64(counts[index]) / float64(primaries[index])))
		if current == required {
			continue
		}
		logger.Info("replica count needs correction", "index", index, "current", current, "required", required)
		out = append(out, ReplicaCorrection{Index: index, NumberOfReplicas: required - 1})
	}
	return out
}

// diagnosePrimaryShardCount logs each index's primary (shard id) count at
// debug level. balance.py surfaces this in its periodic review of an
// index's replicas; zonectl keeps it as a diagnostic, not a placement
// rule (§4.3 supplemental).
func diagnosePrimaryShardCount(snap *model.Snapshot, logger hclog.Logger) {
	primaries := map[string]int{}
	for _, sh := range snap.Shards {
		if sh.Type == model.Primary {
			primaries[sh.Index]++
		}
	}
	for _, index := range sortedKeys(primaries) {
		logger.Debug("index shard count", "index", index, "primaries", primaries[index])
	}
}

// ruleB finds (index,i) groups with no active replica anywhere and
// requests allocation of one UNASSIGNED replica to a non-risky zone,
// unless more than one such group belongs to an index that already has a
// RELOCATING or INITIALIZING shard — in which case skip defers the whole
// tick, not just this rule's own requests (§4.3 rule B: "skip this tick
// entirely"); the caller must not dispatch anything this tick when it is
// true.
func ruleB(snap *model.Snapshot, groups map[model.ReplicaGroup][]*model.Shard, logger hclog.Logger) (reqs []*model.AllocationRequest, skipTick bool) {
	relocatingIndexes := map[string]bool{}
	for _, sh := range snap.Shards {
		if sh.Status == model.Relocating || sh.Status == model.Initializing {
			relocatingIndexes[sh.Index] = true
		}
	}

	var notStarted []*model.Shard
	for _, g := range sortedGroups(groups) {
		if len(zonesWithStatus(snap, groups[g], anyActive)) > 0 {
			continue
		}
		if u := firstUnassigned(groups[g]); u != nil {
			notStarted = append(notStarted, u)
		}
	}
	if len(notStarted) == 0 {
		logger.Debug("all shards have started")
		return nil, false
	}

	var busy, readyToInit []*model.Shard
	for _, sh := range notStarted {
		if relocatingIndexes[sh.Index] {
			busy = append(busy, sh)
		} else {
			readyToInit = append(readyToInit, sh)
		}
	}
	if len(busy) > 1 {
		logger.Info("delaying work, cluster busy relocating/initializing shards", "busy", len(busy))
		return nil, true
	}

	logger.Warn("shards have not started", "count", len(notStarted))
	nonRisky := nonRiskyZoneNames(snap)
	var out []*model.AllocationRequest
	for _, sh := range readyToInit {
		out = append(out, newRequest(sh, nonRisky, 1, "not started", 30))
	}
	return out, false
}

// ruleC finds (index,i) groups whose only realized (STARTED/RELOCATING)
// copies sit in risky zones, and requests allocation of one UNASSIGNED
// replica twice: once into the non-risky zones the index requires
// replicas in (priority 2), and once into the risky zones it requires
// replicas in (priority 2.1), the fallback dispatch reaches when the
// first request was not accepted (§4.3 rule C). A request whose zone set
// would be empty is not emitted.
func ruleC(snap *model.Snapshot, groups map[model.ReplicaGroup][]*model.Shard) []*model.AllocationRequest {
	risky := riskyZoneNames(snap)
	var out []*model.AllocationRequest
	for _, g := range sortedGroups(groups) {
		replicas := groups[g]
		realized := zonesWithStatus(snap, replicas, startedOrRelocating)
		if !subsetOf(realized, risky) {
			continue
		}
		sh := firstUnassigned(replicas)
		if sh == nil {
			continue
		}
		zonesForShard := zonesWithNonZeroRequirement(snap, g.Index)
		low := setMinus(zonesForShard, risky)
		if len(low) > 0 {
			out = append(out, newRequest(sh, low, 2, "high risk shards", 10))
		}
		high := setIntersect(zonesForShard, risky)
		if len(high) > 0 {
			out = append(out, newRequest(sh, high, 2.1, "high risk shards (alt)", 10))
		}
	}
	return out
}

type zoneIndexKey struct {
	Zone  string
	Index string
}

// ruleD finds (index,i,z) triples where z holds more STARTED replicas
// than required, and proposes moving one of them to the best alternate
// zone with room (§4.3 rule D). It returns the set of (zone,index) pairs
// found overloaded, which rules I and K must exclude.
func ruleD(snap *model.Snapshot, groups map[model.ReplicaGroup][]*model.Shard) (map[zoneIndexKey]bool, []*model.AllocationRequest) {
	overloaded := map[zoneIndexKey]bool{}
	var out []*model.AllocationRequest

	for _, g := range sortedGroups(groups) {
		replicas := groups[g]
		for _, zoneName := range sortedZoneNames(snap) {
			started := filterByZoneStatus(snap, replicas, zoneName, startedOnly)
			if len(started) <= snap.Required[g.Index][zoneName] {
				continue
			}
			overloaded[zoneIndexKey{Zone: zoneName, Index: g.Index}] = true

			dest, ok := bestAlternateZone(snap, g.Index, replicas, zoneName)
			if !ok {
				continue
			}
			sh := pickMovable(started, snap.Zones[dest].Busy)
			if sh == nil {
				continue
			}
			out = append(out, newRequest(sh, map[string]bool{dest: true}, 3, "over allocated", concurrentDefault))
		}
	}
	return overloaded, out
}

func bestAlternateZone(snap *model.Snapshot, index string, replicas []*model.Shard, exclude string) (string, bool) {
	type candidate struct {
		name    string
		risky   bool
		active  int
		hasRoom bool
	}
	var best *candidate
	for _, zoneName := range sortedZoneNames(snap) {
		if zoneName == exclude {
			continue
		}
		z := snap.Zones[zoneName]
		active := len(filterByZoneStatus(snap, replicas, zoneName, anyActive))
		c := candidate{name: zoneName, risky: z.Risky, active: active, hasRoom: active < snap.Required[index][zoneName]}
		if best == nil || (c.risky != best.risky && !c.risky) || (c.risky == best.risky && c.active < best.active) {
			best = &c
		}
	}
	if best == nil || !best.hasRoom {
		return "", false
	}
	return best.name, true
}

func pickMovable(candidates []*model.Shard, destBusy bool) *model.Shard {
	usable := make([]*model.Shard, 0, len(candidates))
	for _, sh := range candidates {
		if destBusy && sh.Type == model.Primary {
			continue
		}
		usable = append(usable, sh)
	}
	if len(usable) == 0 {
		usable = candidates
	}
	if len(usable) == 0 {
		return nil
	}
	sort.Slice(usable, func(i, j int) bool { return usable[i].Node < usable[j].Node })
	return usable[0]
}

// ruleE picks the largest STARTED shard on any data node whose free disk
// ratio has dropped below 5% and requests a move within the same zone
// (§4.3 rule E).
func ruleE(snap *model.Snapshot) []*model.AllocationRequest {
	var out []*model.AllocationRequest
	for _, name := range sortedNodeNames(snap) {
		n := snap.Nodes[name]
		if !n.IsData() || n.Disk <= 0 || n.DiskFreeRatio() >= 0.05 {
			continue
		}
		biggest := biggestStartedShardOn(snap, name)
		if biggest == nil {
			continue
		}
		out = append(out, newRequest(biggest, map[string]bool{n.Zone: true}, 3, "free space", concurrentDefault))
	}
	return out
}

func biggestStartedShardOn(snap *model.Snapshot, node string) *model.Shard {
	var best *model.Shard
	for _, k := range sortedShardKeys(snap) {
		sh := snap.Shards[k]
		if sh.Node != node || sh.Status != model.Started {
			continue
		}
		if best == nil || sh.Size > best.Size {
			best = sh
		}
	}
	return best
}

// ruleF finds the most recent index of each alias series (indices sharing
// everything but a trailing AliasPrefixLen-character suffix) and, where
// every replica is STARTED and a primary sits in a busy zone, requests
// that a non-busy peer move into the primary's zone so the primary can
// migrate out naturally (§4.3 rule F).
func ruleF(snap *model.Snapshot, cfg *config.Config, groups map[model.ReplicaGroup][]*model.Shard) []*model.AllocationRequest {
	latest := latestIndexPerAliasSeries(indexNames(snap), cfg.AliasPrefixLen)

	var out []*model.AllocationRequest
	for _, g := range sortedGroups(groups) {
		if !latest[g.Index] {
			continue
		}
		replicas := groups[g]
		if !allStarted(replicas) {
			continue
		}
		for _, primary := range replicas {
			if primary.Type != model.Primary {
				continue
			}
			n, ok := snap.Nodes[primary.Node]
			if !ok || !snap.Zones[n.Zone].Busy {
				continue
			}
			peer := pickNonBusyPeer(snap, replicas, primary)
			if peer == nil {
				continue
			}
			out = append(out, newRequest(peer, map[string]bool{n.Zone: true}, 3, "move replica into busy zone", concurrentDefault))
		}
	}
	return out
}

func latestIndexPerAliasSeries(indices []string, prefixLen int) map[string]bool {
	type series struct{ best string }
	byKey := map[string]*series{}
	for _, idx := range indices {
		key := idx
		if len(idx) > prefixLen {
			key = idx[:len(idx)-prefixLen]
		}
		s, ok := byKey[key]
		if !ok {
			byKey[key] = &series{best: idx}
		} else if idx > s.best {
			s.best = idx
		}
	}
	latest := map[string]bool{}
	for _, s := range byKey {
		latest[s.best] = true
	}
	return latest
}

func pickNonBusyPeer(snap *model.Snapshot, replicas []*model.Shard, primary *model.Shard) *model.Shard {
	candidates := make([]*model.Shard, 0, len(replicas))
	for _, r := range replicas {
		if r == primary {
			continue
		}
		n, ok := snap.Nodes[r.Node]
		if !ok || snap.Zones[n.Zone].Busy {
			continue
		}
		candidates = append(candidates, r)
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Node < candidates[j].Node })
	return candidates[0]
}

// ruleG requests allocation of an UNASSIGNED primary into any zone that
// already holds a STARTED copy of the same (index,i) but whose active
// count is still below required (§4.3 rule G).
func ruleG(snap *model.Snapshot, groups map[model.ReplicaGroup][]*model.Shard) []*model.AllocationRequest {
	var out []*model.AllocationRequest
	for _, g := range sortedGroups(groups) {
		replicas := groups[g]
		sh := firstUnassignedPrimary(replicas)
		if sh == nil {
			continue
		}
		zones := map[string]bool{}
		for _, zoneName := range sortedZoneNames(snap) {
			started := filterByZoneStatus(snap, replicas, zoneName, startedOnly)
			active := len(filterByZoneStatus(snap, replicas, zoneName, anyActive))
			if len(started) >= 1 && active < snap.Required[g.Index][zoneName] {
				zones[zoneName] = true
			}
		}
		if len(zones) > 0 {
			out = append(out, newRequest(sh, zones, 5, "duplicate shards", concurrentDefault))
		}
	}
	return out
}

// ruleH requests allocation of any UNASSIGNED replica into zones whose
// active count for that (index,i) is still below required (§4.3 rule H).
func ruleH(snap *model.Snapshot, groups map[model.ReplicaGroup][]*model.Shard) []*model.AllocationRequest {
	var out []*model.AllocationRequest
	for _, g := range sortedGroups(groups) {
		replicas := groups[g]
		sh := firstUnassigned(replicas)
		if sh == nil {
			continue
		}
		zones := map[string]bool{}
		for _, zoneName := range sortedZoneNames(snap) {
			active := len(filterByZoneStatus(snap, replicas, zoneName, anyActive))
			if active < snap.Required[g.Index][zoneName] {
				zones[zoneName] = true
			}
		}
		if len(zones) > 0 {
			out = append(out, newRequest(sh, zones, 4, "low risk shards", concurrentDefault))
		}
	}
	return out
}

// ruleI finds allocation cells holding more STARTED shards than their
// fair-share ceiling (and not already flagged overloaded by rule D) and
// proposes moving the surplus within the same zone (§4.3 rule I).
func ruleI(snap *model.Snapshot, overloaded map[zoneIndexKey]bool, zonesWithImbalance map[string]bool) []*model.AllocationRequest {
	var out []*model.AllocationRequest
	for _, ck := range sortedCellKeys(snap) {
		cell := snap.Cells[ck]
		n, ok := snap.Nodes[ck.Node]
		if !ok {
			continue
		}
		started := startedOf(cell.Shards)
		excess := len(started) - cell.MaxAllowed
		if excess <= 0 {
			continue
		}
		if overloaded[zoneIndexKey{Zone: n.Zone, Index: ck.Index}] {
			continue
		}
		sort.Slice(started, func(i, j int) bool { return started[i].I < started[j].I })

		moved := 0
		busy := n.Zone != "" && snap.Zones[n.Zone] != nil && snap.Zones[n.Zone].Busy
		for _, sh := range started {
			if moved >= excess {
				break
			}
			if busy && sh.Type == model.Primary {
				continue
			}
			out = append(out, newRequest(sh, map[string]bool{n.Zone: true}, 4, "not balanced", concurrentDefault))
			if n.Zone != "" {
				zonesWithImbalance[n.Zone] = true
			}
			moved++
		}
	}
	return out
}

// ruleJ is rule G across zones rather than within one: it uses the
// zone's configured Shards default as the duplication cap instead of the
// index's required replica count (§4.3 rule J).
func ruleJ(snap *model.Snapshot, groups map[model.ReplicaGroup][]*model.Shard) []*model.AllocationRequest {
	var out []*model.AllocationRequest
	for _, g := range sortedGroups(groups) {
		replicas := groups[g]
		sh := firstUnassigned(replicas)
		if sh == nil {
			continue
		}
		zones := map[string]bool{}
		for _, zoneName := range sortedZoneNames(snap) {
			z := snap.Zones[zoneName]
			started := len(filterByZoneStatus(snap, replicas, zoneName, startedOnly))
			active := len(filterByZoneStatus(snap, replicas, zoneName, anyActive))
			if started >= 1 && active < z.Shards {
				zones[zoneName] = true
			}
		}
		if len(zones) > 0 {
			out = append(out, newRequest(sh, zones, 7, "inter-zone duplicate shards", concurrentDefault))
		}
	}
	return out
}

// ruleK skips every zone in which rule I proposed a move (for any index)
// and every (zone,index) pair rule D flagged overloaded; for each
// remaining (index,zone) pair it finds the node in that zone holding the
// most STARTED shards of the index and,
// if it holds more than max(1, min_allowed), proposes moving one to the
// same zone as a fine-tuning step (§4.3 rule K).
func ruleK(snap *model.Snapshot, zonesWithImbalance map[string]bool, overloaded map[zoneIndexKey]bool, logger hclog.Logger) []*model.AllocationRequest {
	var out []*model.AllocationRequest
	moves := 0
	for _, index := range indexNames(snap) {
		for _, zoneName := range sortedZoneNames(snap) {
			if zonesWithImbalance[zoneName] || overloaded[zoneIndexKey{Zone: zoneName, Index: index}] {
				continue
			}
			var bestShard *model.Shard
			mostShards := 0
			for _, nodeName := range sortedNodeNames(snap) {
				n := snap.Nodes[nodeName]
				if n.Zone != zoneName {
					continue
				}
				cell := snap.Cell(index, nodeName)
				if len(cell.Shards) == 0 || len(cell.Shards) < cell.MinAllowed {
					continue
				}
				started := startedOf(cell.Shards)
				threshold := cell.MinAllowed
				if threshold < 1 {
					threshold = 1
				}
				if len(started) <= threshold || len(started) <= mostShards {
					continue
				}
				sort.Slice(started, func(i, j int) bool { return started[i].I < started[j].I })
				bestShard = started[0]
				mostShards = len(started)
			}
			if bestShard != nil {
				out = append(out, newRequest(bestShard, map[string]bool{zoneName: true}, 8, "slightly better balance", concurrentDefault))
				moves++
			}
		}
	}
	if moves > 0 {
		logger.Info("shards moved to slightly better location", "count", moves)
	}
	return out
}

// --- shared helpers ---

func groupByReplicaGroup(snap *model.Snapshot) map[model.ReplicaGroup][]*model.Shard {
	groups := map[model.ReplicaGroup][]*model.Shard{}
	for k, sh := range snap.Shards {
		g := model.ReplicaGroup{Index: k.Index, I: k.I}
		groups[g] = append(groups[g], sh)
	}
	return groups
}

func sortedGroups(groups map[model.ReplicaGroup][]*model.Shard) []model.ReplicaGroup {
	out := make([]model.ReplicaGroup, 0, len(groups))
	for g := range groups {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Index != out[j].Index {
			return out[i].Index < out[j].Index
		}
		return out[i].I < out[j].I
	})
	return out
}

func sortedZoneNames(snap *model.Snapshot) []string {
	out := make([]string, 0, len(snap.Zones))
	for name := range snap.Zones {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func sortedNodeNames(snap *model.Snapshot) []string {
	out := make([]string, 0, len(snap.Nodes))
	for name := range snap.Nodes {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func sortedShardKeys(snap *model.Snapshot) []model.Key {
	out := make([]model.Key, 0, len(snap.Shards))
	for k := range snap.Shards {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Index != out[j].Index {
			return out[i].Index < out[j].Index
		}
		if out[i].I != out[j].I {
			return out[i].I < out[j].I
		}
		return out[i].Node < out[j].Node
	})
	return out
}

func sortedCellKeys(snap *model.Snapshot) []model.CellKey {
	out := make([]model.CellKey, 0, len(snap.Cells))
	for k := range snap.Cells {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Index != out[j].Index {
			return out[i].Index < out[j].Index
		}
		return out[i].Node < out[j].Node
	})
	return out
}

func sortedKeys(m map[string]int) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func indexNames(snap *model.Snapshot) []string {
	seen := map[string]bool{}
	for k := range snap.Shards {
		seen[k.Index] = true
	}
	out := make([]string, 0, len(seen))
	for idx := range seen {
		out = append(out, idx)
	}
	sort.Strings(out)
	return out
}

func riskyZoneNames(snap *model.Snapshot) map[string]bool {
	out := map[string]bool{}
	for name, z := range snap.Zones {
		if z.Risky {
			out[name] = true
		}
	}
	return out
}

func nonRiskyZoneNames(snap *model.Snapshot) map[string]bool {
	out := map[string]bool{}
	for name, z := range snap.Zones {
		if !z.Risky {
			out[name] = true
		}
	}
	return out
}

func zonesWithNonZeroRequirement(snap *model.Snapshot, index string) map[string]bool {
	out := map[string]bool{}
	for zone, n := range snap.Required[index] {
		if n > 0 {
			out[zone] = true
		}
	}
	return out
}

func zonesWithStatus(snap *model.Snapshot, replicas []*model.Shard, statuses map[model.ShardStatus]bool) map[string]bool {
	zones := map[string]bool{}
	for _, sh := range replicas {
		if !statuses[sh.Status] || sh.Node == "" {
			continue
		}
		if n, ok := snap.Nodes[sh.Node]; ok {
			zones[n.Zone] = true
		}
	}
	return zones
}

func filterByZoneStatus(snap *model.Snapshot, replicas []*model.Shard, zoneName string, statuses map[model.ShardStatus]bool) []*model.Shard {
	var out []*model.Shard
	for _, sh := range replicas {
		if !statuses[sh.Status] || sh.Node == "" {
			continue
		}
		if n, ok := snap.Nodes[sh.Node]; ok && n.Zone == zoneName {
			out = append(out, sh)
		}
	}
	return out
}

func startedOf(shards []*model.Shard) []*model.Shard {
	out := make([]*model.Shard, 0, len(shards))
	for _, sh := range shards {
		if sh.Status == model.Started {
			out = append(out, sh)
		}
	}
	return out
}

func firstUnassigned(replicas []*model.Shard) *model.Shard {
	sorted := append([]*model.Shard(nil), replicas...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Node < sorted[j].Node })
	for _, sh := range sorted {
		if sh.Status == model.Unassigned {
			return sh
		}
	}
	return nil
}

func firstUnassignedPrimary(replicas []*model.Shard) *model.Shard {
	for _, sh := range firstUnassignedCandidates(replicas) {
		if sh.Type == model.Primary {
			return sh
		}
	}
	return nil
}

func firstUnassignedCandidates(replicas []*model.Shard) []*model.Shard {
	sorted := append([]*model.Shard(nil), replicas...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Node < sorted[j].Node })
	var out []*model.Shard
	for _, sh := range sorted {
		if sh.Status == model.Unassigned {
			out = append(out, sh)
		}
	}
	return out
}

func allStarted(replicas []*model.Shard) bool {
	for _, sh := range replicas {
		if sh.Status != model.Started {
			return false
		}
	}
	return true
}

func subsetOf(a, b map[string]bool) bool {
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

func setMinus(a, b map[string]bool) map[string]bool {
	out := map[string]bool{}
	for k := range a {
		if !b[k] {
			out[k] = true
		}
	}
	return out
}

func setIntersect(a, b map[string]bool) map[string]bool {
	out := map[string]bool{}
	for k := range a {
		if b[k] {
			out[k] = true
		}
	}
	return out
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
