package snapshot

import (
	"sync"

	hclog "github.com/hashicorp/go-hclog"

	"github.com/dreamware/zonectl/internal/model"
)

// LivenessTracker remembers each node's ALIVE/DEAD classification across
// ticks so the builder can log transition alerts (§3 "Lifecycle": node
// liveness is remembered across ticks; §4.1 step 3). It is safe to reuse
// across many calls to Build.
type LivenessTracker struct {
	mu        sync.Mutex
	status    map[string]model.Liveness
	firstTick bool
}

// NewLivenessTracker returns a tracker whose first update call will not
// alert on nodes seen for the first time (§4.1 step 3: "First tick
// suppresses the new node alert").
func NewLivenessTracker() *LivenessTracker {
	return &LivenessTracker{status: map[string]model.Liveness{}, firstTick: true}
}

// update reconciles the tracker against the set of node names present in
// this tick's snapshot, logging alerts for every transition. Every present
// node is recorded ALIVE; every known node that is absent is recorded DEAD.
func (lt *LivenessTracker) update(present map[string]bool, logger hclog.Logger) {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	for name := range present {
		prior, known := lt.status[name]
		switch {
		case !known:
			if !lt.firstTick {
				logger.Warn("new node joined cluster", "node", name)
			}
		case prior == model.LivenessDead:
			logger.Warn("node came back", "node", name)
		}
		lt.status[name] = model.LivenessAlive
	}

	for name, prior := range lt.status {
		if present[name] {
			continue
		}
		if prior != model.LivenessDead {
			logger.Warn("node went away", "node", name)
		}
		lt.status[name] = model.LivenessDead
	}

	lt.firstTick = false
}
