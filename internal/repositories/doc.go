// Package repositories implements SQLite persistence for the correlation engine.
//
// Key Implementations:
//   - [PreDBRepository] : PreDB lookups by id, title, filename and hash, paginated search, CSV import
//   - [ListingCache] : Time-limited cache of PreDB listing pages and counts
//   - [ReleaseRepository] : Streams hash and title candidates, applies guarded idempotent updates
//   - [RunRepository] : Match run history with status tracking
//
// Store failures are wrapped with shared.ErrStoreUnavailable and missing rows with shared.ErrNotFound so callers
// can tell a fatal outage from a normal miss.
//
// Sequence numbers provide stable, human-readable ordering (e.g., run #42) independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
