package controller

import (
	hclog "github.com/hashicorp/go-hclog"

	"github.com/dreamware/zonectl/internal/awareness"
	"github.com/dreamware/zonectl/internal/clusterapi"
	"github.com/dreamware/zonectl/internal/inflight"
	"github.com/dreamware/zonectl/internal/snapshot"
)

// State holds the process-wide mutable pieces the orchestrator carries
// from one tick to the next: the inflight move tracker, node liveness
// history, and the cluster awareness toggle (§9 design note: keep
// module-scope mutables out of globals, bundle them instead).
type State struct {
	Inflight  *inflight.Tracker
	Liveness  *snapshot.LivenessTracker
	Awareness *awareness.Toggle
}

// NewState wires a fresh State against client and logger.
func NewState(client clusterapi.Client, logger hclog.Logger) *State {
	return &State{
		Inflight:  inflight.New(),
		Liveness:  snapshot.NewLivenessTracker(),
		Awareness: awareness.New(client, logger.Named("awareness")),
	}
}
