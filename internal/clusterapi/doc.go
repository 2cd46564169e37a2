// Package clusterapi is the Go expression of the external cluster HTTP
// surface this controller drives (§6): node stats, the _cat listings, the
// settings endpoint, and /_cluster/reroute. Transport concerns — retries,
// connection pooling, TLS — belong to this package's default client, not
// to the planner; internal/snapshot, internal/policy and internal/dispatch
// only ever see the Client interface.
package clusterapi
