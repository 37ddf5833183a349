package kv

import (
	"context"
	"errors"
)

// Schema version expected by the current release. Opening an older store
// triggers the destructive upgrade that recreates the keys and items
// namespaces.
const SchemaVersion = 2

var (
	ErrNewerSchema = errors.New("store was written by a newer version")
)

// UpgradeFunc migrates a store from an older schema version. It runs
// before the new version number is recorded.
type UpgradeFunc func(ctx context.Context, from int, s Store) error

// Store is the persisted key-value collaborator. Implementations group
// keys into named namespaces and keep keys within a namespace ordered.
type Store interface {
	// Namespace returns a handle for the named namespace. The namespace
	// is created lazily on first write.
	Namespace(name string) Namespace
	// CreateNamespace creates an empty namespace if it does not exist.
	CreateNamespace(ctx context.Context, name string) error
	// Namespaces lists all existing namespace names.
	Namespaces(ctx context.Context) ([]string, error)
	// DeleteNamespace removes a namespace and everything in it.
	DeleteNamespace(ctx context.Context, name string) error
	// Delete wipes the entire store.
	Delete(ctx context.Context) error
	Close() error
}

// Namespace provides access to one keyspace within a store.
type Namespace interface {
	// Get returns the value for key, or nil if the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key, overwriting any previous value.
	Set(ctx context.Context, key string, value []byte) error
	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
	// List returns all keys starting with prefix, in key order.
	List(ctx context.Context, prefix string) ([]string, error)
}

// DestructiveUpgrade is the standard schema migration: versions before 2
// have no usable layout, so all namespaces are deleted and the keys and
// items namespaces recreated empty. There is no partial migration.
func DestructiveUpgrade(ctx context.Context, from int, s Store) error {
	if from >= 2 {
		return nil
	}
	names, err := s.Namespaces(ctx)
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := s.DeleteNamespace(ctx, name); err != nil {
			return err
		}
	}
	for _, name := range []string{"keys", "items"} {
		if err := s.CreateNamespace(ctx, name); err != nil {
			return err
		}
	}
	return nil
}
