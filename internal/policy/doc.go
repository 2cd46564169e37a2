// Package policy implements the classifier stage of the reconciliation
// pipeline (§4.3): given one tick's Snapshot, it evaluates the fixed-order
// placement rules A-K and produces a pool of allocation requests for
// internal/dispatch to act on, plus any replica-count corrections rule A
// wants applied immediately.
//
// Classify is a pure function of its Snapshot and Config argument: it
// never talks to the cluster and never mutates the snapshot. Rule A is
// the one rule with a side effect in the original design (a settings PUT
// rather than a placement proposal); here it is expressed as data too —
// internal/controller is the one that actually issues the PUT — so the
// classifier stays pure end to end.
package policy
