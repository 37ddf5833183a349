package kv

import (
	"context"
	"path/filepath"
	"testing"
)

func TestOpenBoltRunsUpgrade(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.passcards")
	ctx := context.Background()

	var from = -1
	s, err := OpenBolt(ctx, dbPath, SchemaVersion, func(ctx context.Context, v int, s Store) error {
		from = v
		return DestructiveUpgrade(ctx, v, s)
	})
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}

	if from != 0 {
		t.Errorf("Upgrade should run from version 0, got %d", from)
	}

	names, err := s.Namespaces(ctx)
	if err != nil {
		t.Fatalf("Failed to list namespaces: %v", err)
	}
	if len(names) != 2 || names[0] != "items" || names[1] != "keys" {
		t.Errorf("Expected namespaces [items keys], got %v", names)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Failed to close store: %v", err)
	}

	// Reopening at the same version must not run the upgrade again.
	from = -1
	s, err = OpenBolt(ctx, dbPath, SchemaVersion, func(ctx context.Context, v int, s Store) error {
		from = v
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	defer s.Close()

	if from != -1 {
		t.Errorf("Upgrade should not run on reopen, ran from %d", from)
	}
}

func TestOpenBoltRejectsNewerSchema(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.passcards")
	ctx := context.Background()

	s, err := OpenBolt(ctx, dbPath, SchemaVersion+1, nil)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	s.Close()

	if _, err := OpenBolt(ctx, dbPath, SchemaVersion, nil); err == nil {
		t.Fatal("Opening a newer-schema store should fail")
	}
}

func TestDestructiveUpgradeDropsOldData(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if err := s.Namespace("legacy").Set(ctx, "a", []byte("1")); err != nil {
		t.Fatalf("Failed to seed namespace: %v", err)
	}

	if err := DestructiveUpgrade(ctx, 1, s); err != nil {
		t.Fatalf("Upgrade failed: %v", err)
	}

	names, err := s.Namespaces(ctx)
	if err != nil {
		t.Fatalf("Failed to list namespaces: %v", err)
	}
	if len(names) != 2 || names[0] != "items" || names[1] != "keys" {
		t.Errorf("Expected namespaces [items keys], got %v", names)
	}
}

func TestNamespaceOperations(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.passcards")
	ctx := context.Background()

	s, err := OpenBolt(ctx, dbPath, SchemaVersion, DestructiveUpgrade)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	defer s.Close()

	ns := s.Namespace("items")

	// Absent key reads as nil.
	value, err := ns.Get(ctx, "missing")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if value != nil {
		t.Errorf("Expected nil for missing key, got %q", value)
	}

	// Set then get.
	if err := ns.Set(ctx, "revision/u1/r2", []byte("blob2")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := ns.Set(ctx, "revision/u1/r1", []byte("blob1")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := ns.Set(ctx, "index", []byte("overview")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	value, err = ns.Get(ctx, "revision/u1/r1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(value) != "blob1" {
		t.Errorf("Value mismatch: got %q", value)
	}

	// Prefix listing in key order.
	keys, err := ns.List(ctx, "revision/u1/")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(keys) != 2 || keys[0] != "revision/u1/r1" || keys[1] != "revision/u1/r2" {
		t.Errorf("Unexpected keys: %v", keys)
	}

	// Remove is idempotent.
	if err := ns.Remove(ctx, "index"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if err := ns.Remove(ctx, "index"); err != nil {
		t.Fatalf("Second remove failed: %v", err)
	}

	// Wipe everything.
	if err := s.Delete(ctx); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	keys, err = ns.List(ctx, "")
	if err != nil {
		t.Fatalf("List after delete failed: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("Store should be empty after delete, got %v", keys)
	}
}
