package awareness

import (
	"context"
	"sync"
	"time"

	hclog "github.com/hashicorp/go-hclog"

	"github.com/dreamware/zonectl/internal/clusterapi"
)

// identicalNodeAttribute is a cluster-wide node attribute value that
// happens to be identical on every node, so using it as the awareness
// attribute effectively disables zone-awareness restrictions.
const identicalNodeAttribute = "identical"

// Toggle is the process-wide zone_restrictions_on boolean of §4.5. It is
// safe for concurrent use; transitions are idempotent.
type Toggle struct {
	mu     sync.Mutex
	on     bool
	client clusterapi.Client
	logger hclog.Logger
}

// New returns a Toggle that starts with zone restrictions considered on,
// matching the cluster's expected steady-state configuration.
func New(client clusterapi.Client, logger hclog.Logger) *Toggle {
	return &Toggle{on: true, client: client, logger: logger}
}

// On reports whether zone restrictions are currently believed to be
// enabled.
func (t *Toggle) On() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.on
}

// Disable sets the cluster's awareness attribute to a value identical on
// every node, lifting zone restrictions. A no-op if already disabled.
func (t *Toggle) Disable(ctx context.Context) error {
	return t.set(ctx, false)
}

// Enable restores the "zone" awareness attribute. A no-op if already
// enabled.
func (t *Toggle) Enable(ctx context.Context) error {
	return t.set(ctx, true)
}

func (t *Toggle) set(ctx context.Context, want bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.on == want {
		return nil
	}

	attr := identicalNodeAttribute
	if want {
		attr = "zone"
	}

	start := time.Now()
	err := t.client.PutClusterSettings(ctx, nil, map[string]any{
		"cluster.routing.allocation.awareness.attributes": attr,
	})
	elapsed := time.Since(start)
	if err != nil {
		t.logger.Error("zone awareness toggle failed", "want_on", want, "elapsed", elapsed, "error", err)
		return err
	}

	t.on = want
	t.logger.Info("zone awareness toggled", "on", want, "elapsed", elapsed)
	return nil
}
