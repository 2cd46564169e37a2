package config

import (
	"fmt"
	"os"
	"path"

	"gopkg.in/yaml.v3"
)

// Elasticsearch is the cluster connection target.
type Elasticsearch struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// ZoneConfig is one operator-declared zone: its risk class, whether it
// should avoid primaries, and its default per-index replica target.
type ZoneConfig struct {
	Name   string `yaml:"name"`
	Shards int    `yaml:"shards"`
	Risky  bool   `yaml:"risky"`
	Busy   bool   `yaml:"busy"`
}

// NodeOverride patches a node's attributes after it's read from
// /_nodes/stats — e.g. forcing a zone the cluster doesn't report, or
// clamping disk numbers for a node with known-bad fs stats.
type NodeOverride struct {
	Name     string `yaml:"name"`
	Zone     string `yaml:"zone,omitempty"`
	Disk     int64  `yaml:"disk,omitempty"`
	DiskFree int64  `yaml:"disk_free,omitempty"`
	Memory   int64  `yaml:"memory,omitempty"`
}

// AllocateOverride assigns a per-index (or glob-matched) replica target
// for a specific zone, overriding the zone's default Shards count.
type AllocateOverride struct {
	// Name may be an exact index name or a glob pattern (path.Match syntax).
	Name   string `yaml:"name"`
	Zone   string `yaml:"zone"`
	Shards int    `yaml:"shards"`
}

// Config is the full operator policy document.
type Config struct {
	Elasticsearch Elasticsearch `yaml:"elasticsearch"`
	Zones         []ZoneConfig  `yaml:"zones"`
	Nodes         []NodeOverride `yaml:"nodes"`
	Allocate      []AllocateOverride `yaml:"allocate"`

	// ReplicationPriority is a list of glob patterns (or exact names); the
	// first one an index matches gives that index's replication_priority
	// (lower index = higher priority). Unmatched indices sort last (§4.3).
	ReplicationPriority []string `yaml:"replication_priority"`

	// Finally maps a cluster settings path to the command list applied on
	// orchestrator exit (§4.6).
	Finally map[string][]string `yaml:"finally"`

	Constants map[string]any `yaml:"constants"`
	Debug     map[string]any `yaml:"debug"`
	Connect   map[string]any `yaml:"connect"`

	// AliasPrefixLen is the length of the trailing suffix (e.g. a
	// timestamp) that rule F strips from an index name to find its alias
	// series; indices left with the same remainder belong to one series.
	// Defaults to 15 to match the original's hard-coded heuristic.
	AliasPrefixLen int `yaml:"alias_prefix_len"`
}

// Load reads and parses a YAML operator configuration file.
func Load(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", filePath, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", filePath, err)
	}
	if cfg.AliasPrefixLen <= 0 {
		cfg.AliasPrefixLen = 15
	}
	return &cfg, nil
}

// MatchIndex returns the zero-based priority of the first pattern in
// patterns that matches index, or len(patterns) if none match (so
// unmatched indices sort after every matched one, per §4.3).
func MatchIndex(index string, patterns []string) int {
	for i, pattern := range patterns {
		if pattern == index {
			return i
		}
		if ok, err := path.Match(pattern, index); err == nil && ok {
			return i
		}
	}
	return len(patterns)
}
