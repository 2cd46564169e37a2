package controller

import (
	"context"
	"time"

	"github.com/google/uuid"
	hclog "github.com/hashicorp/go-hclog"

	"github.com/dreamware/zonectl/internal/clusterapi"
	"github.com/dreamware/zonectl/internal/config"
	"github.com/dreamware/zonectl/internal/dispatch"
	"github.com/dreamware/zonectl/internal/policy"
	"github.com/dreamware/zonectl/internal/snapshot"
)

// TickResult summarizes one reconciliation pass for the caller (and for
// tests); the per-tick request id lets an operator grep one tick's log
// lines out of a noisy stream.
type TickResult struct {
	RequestID  string
	Dispatched int
	Failed     int
	Aborted    bool
}

// Orchestrator drives the tick described in §4.6: snapshot -> classify ->
// dispatch -> restore awareness, on a fixed interval, cooperatively
// stoppable between ticks. It owns the State that crosses ticks and the
// collaborators (builder, dispatcher) that are safe to reuse tick after
// tick.
type Orchestrator struct {
	Client clusterapi.Client
	Config *config.Config
	State  *State
	Logger hclog.Logger

	builder    *snapshot.Builder
	dispatcher *dispatch.Dispatcher
}

// New wires an Orchestrator against a cluster client, operator config, and
// logger. The returned State is also reachable for callers that want to
// inspect inflight moves or liveness between ticks (e.g. a status endpoint,
// out of scope here but a natural extension point).
func New(client clusterapi.Client, cfg *config.Config, logger hclog.Logger) *Orchestrator {
	state := NewState(client, logger)
	return &Orchestrator{
		Client: client,
		Config: cfg,
		State:  state,
		Logger: logger,
		builder: &snapshot.Builder{
			Client:   client,
			Config:   cfg,
			Liveness: state.Liveness,
			Inflight: state.Inflight,
			Logger:   logger.Named("snapshot"),
		},
		dispatcher: dispatch.New(client, state.Inflight, state.Awareness, logger.Named("dispatch")),
	}
}

// Start applies the operator's startup cluster settings (§4.6 "On process
// start"): the built-in allocator stays out of the planner's way for the
// life of the process.
func (o *Orchestrator) Start(ctx context.Context) error {
	return applyStartupSettings(ctx, o.Client)
}

// Stop applies the operator's "finally" exit command list (§4.6 "On
// process exit"). Safe to call even if Start was never reached.
func (o *Orchestrator) Stop(ctx context.Context) error {
	return applyFinallyCommands(ctx, o.Client, o.Config.Finally)
}

// Tick runs exactly one reconciliation pass. A snapshot build failure is
// logged and returned so Run can retry next tick (§4.1 "Failure"); a
// classify/dispatch error does not stop the tick from completing, since
// dispatch itself already bounds how much damage a bad tick can do via
// MaxMoveFailures.
func (o *Orchestrator) Tick(ctx context.Context) (TickResult, error) {
	requestID := uuid.NewString()
	logger := o.Logger.With("request_id", requestID)
	o.builder.Logger = logger.Named("snapshot")
	o.dispatcher.Logger = logger.Named("dispatch")

	snap, err := o.builder.Build(ctx)
	if err != nil {
		logger.Error("snapshot build failed, retrying next tick", "error", err)
		return TickResult{RequestID: requestID}, err
	}

	result := policy.Classify(snap, o.Config, logger.Named("policy"))

	// Rule A's replica-count correction is a side effect, issued
	// immediately rather than pooled with the placement requests (§4.3.A).
	for _, corr := range result.Corrections {
		if err := o.Client.PutIndexSettings(ctx, corr.Index, corr.NumberOfReplicas); err != nil {
			logger.Error("failed to correct replica count", "index", corr.Index,
				"number_of_replicas", corr.NumberOfReplicas, "error", err)
		}
	}

	if result.SkipTick {
		logger.Info("deferring tick, cluster busy relocating/initializing shards")
		return TickResult{RequestID: requestID}, nil
	}

	outcome, dispatchErr := o.dispatcher.Dispatch(ctx, snap, result.Requests, time.Now().UnixNano())
	if dispatchErr != nil {
		logger.Warn("tick completed with dispatch errors", "error", dispatchErr)
	}

	logger.Info("tick complete", "dispatched", outcome.Dispatched, "failed", outcome.Failed, "aborted", outcome.Aborted)
	return TickResult{
		RequestID:  requestID,
		Dispatched: outcome.Dispatched,
		Failed:     outcome.Failed,
		Aborted:    outcome.Aborted,
	}, nil
}

// Run drives Tick on interval until ctx is cancelled. A shutdown signal
// only interrupts between ticks (§5 "Cancellation"): the select only
// checks ctx.Done() between ticker fires, and Tick runs under a context
// that cancellation of ctx does not reach, so a started tick completes.
func (o *Orchestrator) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.Logger.Info("shutdown signal received, stopping between ticks")
			return
		case <-ticker.C:
			if _, err := o.Tick(context.WithoutCancel(ctx)); err != nil {
				o.Logger.Error("tick failed", "error", err)
			}
		}
	}
}
