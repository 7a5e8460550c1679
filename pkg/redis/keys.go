package redis

// Key construction helpers for engine state.

// BufferSnapshotKey is the key for the serialized event buffer + sequence
// table blob (string). This is the only state the engine needs to survive
// a restart; patterns and clusters are recomputed from it.
const BufferSnapshotKey = "insight:buffer:snapshot"

// SuggestionSnapshotKey is the key for the serialized suggestion registry
// (string). Best-effort cache, not source of truth.
const SuggestionSnapshotKey = "insight:suggestions:snapshot"

// RecentEventsKey is the key for a trimmed mirror of recent events (list),
// kept for external diagnostics.
const RecentEventsKey = "insight:events:recent"

// MetaKey is the key for engine metadata (hash): last snapshot time,
// last mining pass, counters.
const MetaKey = "insight:meta"
