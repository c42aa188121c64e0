// Package sync provides the synchronization facade between marxiv UI
// surfaces and the durable local store.
//
// The facade maintains a two-tier cache with an explicit reconciliation
// policy. At startup it seeds its state synchronously from the fast-path
// cache (or hardcoded defaults) so there is never a visible flash of
// default appearance, then reads the durable store in Load and overwrites
// state, cache and visual side effects wherever the durable values differ:
// the durable store always wins a mismatch.
//
// Mutations are optimistic. The in-memory state, the visual side effect
// and the fast cache all update immediately; the durable write happens in
// the background and its failure is logged, never surfaced, with one
// exception. A failed reorder write triggers a rollback reload from the
// durable store, because the visual order would otherwise be the only
// representation of truth.
//
// Cross-instance consistency is a typed publish-subscribe owned by the
// facade: subscribers register callbacks keyed by setting name and update
// without issuing their own durable reads. The channel is process-local;
// separate processes converge on their next durable read, or immediately
// when the optional fast-cache watcher is running.
package sync
