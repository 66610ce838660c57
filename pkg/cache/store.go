// Package cache provides the namespaced key/value storage used for both
// static section content and mutable per-session game state.
package cache

import "context"

// Namespace partitions keys by the kind of content they hold (spec §4.1,
// §6). Static content namespaces are read-mostly and typically backed by
// the filesystem; mutable namespaces are read-write and typically backed by
// Redis.
type Namespace string

const (
	// NamespaceSections holds raw section markdown; load-only, never written
	// by the engine.
	NamespaceSections Namespace = "sections"
	// NamespaceRules holds raw rules markdown (dedicated rules files);
	// load-only.
	NamespaceRules Namespace = "rules"
	// NamespaceCachedSections holds formatted narrative markdown keyed by
	// section number.
	NamespaceCachedSections Namespace = "cached_sections"
	// NamespaceCachedRules holds structured, serialized Rules markdown keyed
	// by section number.
	NamespaceCachedRules Namespace = "cached_rules"
	// NamespaceState holds the latest GameState snapshot for a game, keyed
	// by game id alone; each save replaces the previous snapshot, so the
	// states of earlier sections are not kept.
	NamespaceState Namespace = "state"
	// NamespaceTrace holds a session's accumulated Trace history.
	NamespaceTrace Namespace = "trace"
	// NamespaceCharacter holds a character sheet snapshot.
	NamespaceCharacter Namespace = "character"
)

// Store is a namespaced key/value content store distinguishing raw,
// load-only source content from cached, derived content (spec §4.1).
// GetCached reports a miss by returning (nil, false, nil); it returns a
// non-nil error only on an actual I/O or backend failure. The narrator and
// rules nodes treat such a failure as a miss; Engine.LoadState returns it.
type Store interface {
	// GetCached returns a previously saved value, or ok=false on a miss.
	// Missing and expired entries are indistinguishable.
	GetCached(ctx context.Context, ns Namespace, key string) (value []byte, ok bool, err error)
	// SaveCached overwrites the value for key. Writes are all-or-nothing;
	// there are no partial writes.
	SaveCached(ctx context.Context, ns Namespace, key string, value []byte) error
	// LoadRaw returns source content for key, or ok=false if it does not
	// exist. LoadRaw never writes.
	LoadRaw(ctx context.Context, ns Namespace, key string) (content string, ok bool, err error)
	// ExistsRaw reports whether raw content exists for key.
	ExistsRaw(ctx context.Context, ns Namespace, key string) (bool, error)
	// Delete removes a single cached key.
	Delete(ctx context.Context, ns Namespace, key string) error
	// Clear removes every cached key in a namespace.
	Clear(ctx context.Context, ns Namespace) error
}

// TTLStore is a Store whose cached writes may expire after a duration (spec
// §4.1, Redis-backed state/trace namespaces). ttlSeconds <= 0 means no
// expiry.
type TTLStore interface {
	Store
	SaveCachedTTL(ctx context.Context, ns Namespace, key string, value []byte, ttlSeconds int) error
}
