package controller

import (
	"context"
	"fmt"

	multierror "github.com/hashicorp/go-multierror"

	"github.com/dreamware/zonectl/internal/clusterapi"
)

// applyStartupSettings implements §4.6 "On process start": disable the
// built-in allocator, force the custom balance weights this controller
// relies on instead of Elasticsearch's own shard/index balance, and turn
// the disk threshold off so the dispatcher's own disk-floor checks are
// the only ones in effect (§4.4 step 4). Exact keys and values are
// carried from the original's startup block.
func applyStartupSettings(ctx context.Context, client clusterapi.Client) error {
	persistent := map[string]any{
		"cluster.routing.allocation.enable":                          "none",
		"cluster.routing.allocation.awareness.attributes":            "zone",
		"cluster.routing.allocation.awareness.force.zone.values":     nil,
		"cluster.routing.allocation.balance.shard":                   0.45,
		"cluster.routing.allocation.balance.index":                   0.55,
		"cluster.routing.allocation.balance.threshold":                1,
		"cluster.routing.use_adaptive_replica_selection":              true,
	}
	transient := map[string]any{
		"cluster.routing.allocation.enable":                          "none",
		"cluster.routing.allocation.awareness.attributes":            nil,
		"cluster.routing.allocation.awareness.force.zone.values":     nil,
		"cluster.routing.allocation.balance.shard":                   0.0,
		"cluster.routing.allocation.balance.index":                   0.0,
		"cluster.routing.allocation.balance.threshold":                1000,
		"cluster.routing.use_adaptive_replica_selection":              true,
		"cluster.routing.allocation.disk.threshold_enabled":           false,
	}
	if err := client.PutClusterSettings(ctx, persistent, transient); err != nil {
		return fmt.Errorf("controller: applying startup settings: %w", err)
	}
	return nil
}

// applyFinallyCommands runs the operator's configured exit command list
// (§4.6 "On process exit"): each key is a path suffix appended to the
// cluster base URL, each value a list of JSON bodies PUT to it in order.
func applyFinallyCommands(ctx context.Context, client clusterapi.Client, finally map[string][]string) error {
	var errs *multierror.Error
	for path, commands := range finally {
		for _, cmd := range commands {
			if err := client.PutRaw(ctx, path, cmd); err != nil {
				errs = multierror.Append(errs, fmt.Errorf("controller: finally command for %s: %w", path, err))
			}
		}
	}
	return errs.ErrorOrNil()
}
