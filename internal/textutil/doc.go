// Package textutil parses the small ad-hoc text formats the cluster API
// speaks: human-readable size strings ("9.6mb") and the space-padded
// fixed-width tables returned by _cat/indices and _cat/shards.
package textutil
