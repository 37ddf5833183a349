package kv

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

// Internal bucket holding schema bookkeeping, never exposed as a namespace.
var metaBucket = []byte("_meta")

var metaVersion = []byte("schema_version")

// BoltStore provides BBolt-backed persistent storage.
type BoltStore struct {
	db *bolt.DB
}

// OpenBolt opens or creates a store at path and brings it to schemaVersion,
// running upgrade first when the on-disk version is older. Opening a store
// written by a newer schema fails with ErrNewerSchema.
func OpenBolt(ctx context.Context, path string, schemaVersion int, upgrade UpgradeFunc) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	s := &BoltStore{db: db}

	current, err := s.version()
	if err != nil {
		db.Close()
		return nil, err
	}
	if current > schemaVersion {
		db.Close()
		return nil, fmt.Errorf("%w: schema %d, supported %d", ErrNewerSchema, current, schemaVersion)
	}
	if current < schemaVersion {
		if upgrade != nil {
			if err := upgrade(ctx, current, s); err != nil {
				db.Close()
				return nil, fmt.Errorf("schema upgrade from %d failed: %w", current, err)
			}
		}
		if err := s.setVersion(schemaVersion); err != nil {
			db.Close()
			return nil, err
		}
	}
	return s, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) version() (int, error) {
	var version int
	err := s.db.View(func(tx *bolt.Tx) error {
		meta := tx.Bucket(metaBucket)
		if meta == nil {
			return nil
		}
		data := meta.Get(metaVersion)
		if len(data) == 4 {
			version = int(binary.BigEndian.Uint32(data))
		}
		return nil
	})
	return version, err
}

func (s *BoltStore) setVersion(version int) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		meta, err := tx.CreateBucketIfNotExists(metaBucket)
		if err != nil {
			return err
		}
		data := make([]byte, 4)
		binary.BigEndian.PutUint32(data, uint32(version))
		return meta.Put(metaVersion, data)
	})
}

// Namespace returns a handle for the named bucket.
func (s *BoltStore) Namespace(name string) Namespace {
	return &boltNamespace{db: s.db, bucket: []byte(name)}
}

// CreateNamespace creates an empty bucket if it does not exist.
func (s *BoltStore) CreateNamespace(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(name))
		return err
	})
}

// Namespaces lists all buckets except internal bookkeeping.
func (s *BoltStore) Namespaces(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var names []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bolt.Bucket) error {
			if !bytes.Equal(name, metaBucket) {
				names = append(names, string(name))
			}
			return nil
		})
	})
	return names, err
}

// DeleteNamespace removes a bucket and everything in it.
func (s *BoltStore) DeleteNamespace(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket([]byte(name)) == nil {
			return nil
		}
		return tx.DeleteBucket([]byte(name))
	})
}

// Delete wipes every bucket, schema bookkeeping included.
func (s *BoltStore) Delete(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		var names [][]byte
		if err := tx.ForEach(func(name []byte, _ *bolt.Bucket) error {
			names = append(names, append([]byte(nil), name...))
			return nil
		}); err != nil {
			return err
		}
		for _, name := range names {
			if err := tx.DeleteBucket(name); err != nil {
				return err
			}
		}
		return nil
	})
}

type boltNamespace struct {
	db     *bolt.DB
	bucket []byte
}

// Get returns the value for key, or nil if the key or bucket is absent.
func (n *boltNamespace) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var value []byte
	err := n.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(n.bucket)
		if b == nil {
			return nil
		}
		if data := b.Get([]byte(key)); data != nil {
			// Make a copy since the slice is only valid during the transaction
			value = append([]byte(nil), data...)
		}
		return nil
	})
	return value, err
}

// Set stores value under key, creating the bucket if needed.
func (n *boltNamespace) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return n.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(n.bucket)
		if err != nil {
			return err
		}
		return b.Put([]byte(key), value)
	})
}

// Remove deletes key. Removing an absent key is not an error.
func (n *boltNamespace) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return n.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(n.bucket)
		if b == nil {
			return nil
		}
		return b.Delete([]byte(key))
	})
}

// List returns all keys starting with prefix, in key order.
func (n *boltNamespace) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var keys []string
	err := n.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(n.bucket)
		if b == nil {
			return nil
		}
		c := b.Cursor()
		p := []byte(prefix)
		for k, _ := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, _ = c.Next() {
			keys = append(keys, string(k))
		}
		return nil
	})
	return keys, err
}
