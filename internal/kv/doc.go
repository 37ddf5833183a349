// Package kv provides the persisted key-value storage for passcards.
//
// A Store groups keys into named namespaces; the item store uses two:
//   - keys: encryption key entries and the password hint (unencrypted
//     wrapped blobs, safe at rest)
//   - items: the encrypted overview index, revision blobs, and sync
//     bookkeeping
//
// Schema versioning lives in an internal bucket. Stores older than schema
// version 2 are upgraded destructively: every namespace is dropped and the
// two above recreated empty.
//
// BoltStore is the production implementation; BBolt provides ACID
// transactions, file locking, and ordered keys for prefix scans.
// MemoryStore mirrors it for tests.
package kv
