package inflight

import (
	"sync"

	"github.com/dreamware/zonectl/internal/model"
)

// Move is a reroute the planner has issued for (Index, ShardID), from From
// to To, whose completion has not yet appeared in a cluster snapshot.
type Move struct {
	Index   string
	ShardID int
	From    string
	To      string
}

// Tracker is the process-wide, mutex-protected sequence of inflight moves.
// It is mutated only by the snapshot builder (Add for each relocation it
// parses from _cat/shards, then Reconcile) and by the dispatcher when a
// reroute is accepted (Add) — see §4.2.
type Tracker struct {
	mu    sync.Mutex
	moves []Move
}

// New returns an empty tracker.
func New() *Tracker {
	return &Tracker{}
}

// Add records a newly accepted move.
func (t *Tracker) Add(m Move) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.moves = append(t.moves, m)
}

// All returns a snapshot copy of the current inflight moves.
func (t *Tracker) All() []Move {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Move, len(t.moves))
	copy(out, t.moves)
	return out
}

// Reconcile retires inflight moves the cluster has confirmed or
// abandoned, and returns the virtual INITIALIZING shards that stand in
// for moves still pending (§4.1 step 8):
//
//   - If a STARTED replica already sits on the move's destination node,
//     the move is done; it is dropped.
//   - Else if a replica of the same (index, shard) is still RELOCATING
//     from the move's source node, the move is still pending; a virtual
//     shard is synthesized at the destination so bandwidth and allocation
//     accounting include the pending arrival.
//   - Else neither condition holds (the source shard vanished without a
//     trace, e.g. the node died mid-move); the move is stale and dropped.
func (t *Tracker) Reconcile(current map[model.Key]*model.Shard) []*model.Shard {
	t.mu.Lock()
	defer t.mu.Unlock()

	var virtual []*model.Shard
	kept := t.moves[:0:0]
	for _, m := range t.moves {
		if started := current[model.Key{Index: m.Index, I: m.ShardID, Node: m.To}]; started != nil && started.Status == model.Started {
			continue
		}

		source := current[model.Key{Index: m.Index, I: m.ShardID, Node: m.From}]
		if source != nil && source.Status == model.Relocating {
			virtual = append(virtual, &model.Shard{
				Index: m.Index,
				I:     m.ShardID,
				// Forced to Replica regardless of the source's type
				// (balance.py:208): a relocating primary's virtual
				// destination must never double-count as a second primary
				// in the allocation-cell fair-share math.
				Type:    model.Replica,
				Status:  model.Initializing,
				Size:    source.Size,
				Node:    m.To,
				Virtual: true,
			})
			kept = append(kept, m)
			continue
		}
		// Neither confirmed nor still relocating: stale, drop silently.
	}
	t.moves = kept
	return virtual
}
