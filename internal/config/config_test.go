package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
elasticsearch:
  host: escluster.internal
  port: 9200
zones:
  - name: primary
    shards: 1
  - name: spot
    risky: true
    shards: 1
  - name: backup
    busy: true
    shards: 1
nodes:
  - name: node-quirky
    zone: primary
allocate:
  - name: "logs-*"
    zone: spot
    shards: 2
replication_priority:
  - "billing-*"
  - "logs-*"
finally:
  cluster.routing.allocation.enable:
    - all
`

func TestLoadParsesFullShape(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(sample), 0o644))

	cfg, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, "escluster.internal", cfg.Elasticsearch.Host)
	assert.Equal(t, 9200, cfg.Elasticsearch.Port)
	require.Len(t, cfg.Zones, 3)
	assert.True(t, cfg.Zones[1].Risky)
	assert.True(t, cfg.Zones[2].Busy)
	require.Len(t, cfg.Nodes, 1)
	assert.Equal(t, "primary", cfg.Nodes[0].Zone)
	require.Len(t, cfg.Allocate, 1)
	assert.Equal(t, 2, cfg.Allocate[0].Shards)
	assert.Equal(t, []string{"all"}, cfg.Finally["cluster.routing.allocation.enable"])
	assert.Equal(t, 15, cfg.AliasPrefixLen)
}

func TestMatchIndexFirstGlobWins(t *testing.T) {
	patterns := []string{"billing-*", "logs-*"}
	assert.Equal(t, 0, MatchIndex("billing-2026", patterns))
	assert.Equal(t, 1, MatchIndex("logs-2026", patterns))
	assert.Equal(t, 2, MatchIndex("other", patterns))
}
