// Package dispatch implements the destination selector and dispatcher
// stage of the reconciliation pipeline (§4.4): given one tick's pooled,
// sorted allocation requests, it builds a per-node weight vector for each
// request, draws a destination by weighted random sample, issues the
// corresponding /_cluster/reroute command, and tracks per-node inbound
// and outbound byte budgets so no node is asked to move more than
// concurrent × BIG_SHARD_SIZE in a single tick.
package dispatch
