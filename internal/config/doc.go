// Package config loads the operator-supplied policy document described in
// spec.md §6 ("Operator configuration (shape)"): zones, per-node and
// per-index overrides, replication priority globs, and the "finally"
// commands the orchestrator applies on the way out.
package config
