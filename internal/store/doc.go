// Package store implements the revision-tracked encrypted item store.
//
// Every save appends an immutable, content-addressed revision blob and
// merges the item's overview into a single encrypted index. The index is
// the one authoritative projection over the latest committed revision of
// every item: decrypted lazily on first access through a single-flight
// cache, mutated only through batched queue flushes, and dropped from
// memory the moment the key agent locks.
//
// The two writes of a save are not transactional. A crash between the
// revision blob landing and the index flush leaves an orphaned blob the
// index never references; the next load falls back to the last indexed
// revision and the orphan is harmless garbage.
package store
