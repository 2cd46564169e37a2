// Package awareness implements the cluster zone-awareness toggle (§4.5):
// a process-wide boolean that controls whether the cluster's allocation
// awareness attribute is set to "zone" or to a value that is identical
// across every node (and therefore has no effect). Flipping it off lets
// the dispatcher retry a move that the cluster rejected as "too many
// copies of the shard" when zone awareness was the reason no destination
// had room.
package awareness
