package inflight

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/zonectl/internal/model"
)

func TestReconcileRetiresOnStarted(t *testing.T) {
	tr := New()
	tr.Add(Move{Index: "logs", ShardID: 0, From: "n1", To: "n2"})

	current := map[model.Key]*model.Shard{
		{Index: "logs", I: 0, Node: "n2"}: {Index: "logs", I: 0, Node: "n2", Status: model.Started},
	}

	virtual := tr.Reconcile(current)
	assert.Empty(t, virtual)
	assert.Empty(t, tr.All())
}

func TestReconcileSynthesizesVirtualShardWhilePending(t *testing.T) {
	tr := New()
	tr.Add(Move{Index: "logs", ShardID: 0, From: "n1", To: "n2"})

	current := map[model.Key]*model.Shard{
		{Index: "logs", I: 0, Node: "n1"}: {Index: "logs", I: 0, Node: "n1", Status: model.Relocating, Size: 512},
	}

	virtual := tr.Reconcile(current)
	require.Len(t, virtual, 1)
	assert.Equal(t, "n2", virtual[0].Node)
	assert.Equal(t, model.Initializing, virtual[0].Status)
	assert.Equal(t, int64(512), virtual[0].Size)
	assert.True(t, virtual[0].Virtual)
	assert.Len(t, tr.All(), 1)
}

// TestReconcileForcesVirtualShardTypeToReplica mirrors balance.py:208: a
// relocating primary's virtual destination must never be synthesized as a
// second primary, or it would double-count numPrimaries for the index.
func TestReconcileForcesVirtualShardTypeToReplica(t *testing.T) {
	tr := New()
	tr.Add(Move{Index: "logs", ShardID: 0, From: "n1", To: "n2"})

	current := map[model.Key]*model.Shard{
		{Index: "logs", I: 0, Node: "n1"}: {Index: "logs", I: 0, Node: "n1", Type: model.Primary, Status: model.Relocating, Size: 512},
	}

	virtual := tr.Reconcile(current)
	require.Len(t, virtual, 1)
	assert.Equal(t, model.Replica, virtual[0].Type)
}

func TestReconcileDropsStaleMove(t *testing.T) {
	tr := New()
	tr.Add(Move{Index: "logs", ShardID: 0, From: "n1", To: "n2"})

	virtual := tr.Reconcile(map[model.Key]*model.Shard{})
	assert.Empty(t, virtual)
	assert.Empty(t, tr.All())
}

func TestAddIsConcurrencySafe(t *testing.T) {
	tr := New()
	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func(i int) {
			tr.Add(Move{Index: "logs", ShardID: i, From: "n1", To: "n2"})
			done <- struct{}{}
		}(i)
	}
	for i := 0; i < 8; i++ {
		<-done
	}
	assert.Len(t, tr.All(), 8)
}
