package kv

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-memory Store used by tests and as a scratch store
// for imports. It mirrors the BoltStore semantics, including key ordering.
type MemoryStore struct {
	mu         sync.Mutex
	namespaces map[string]map[string][]byte
}

// NewMemoryStore creates an empty in-memory store at the current schema.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{namespaces: make(map[string]map[string][]byte)}
}

func (s *MemoryStore) Close() error { return nil }

// Namespace returns a handle for the named namespace.
func (s *MemoryStore) Namespace(name string) Namespace {
	return &memoryNamespace{store: s, name: name}
}

// CreateNamespace creates an empty namespace if it does not exist.
func (s *MemoryStore) CreateNamespace(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.namespaces[name] == nil {
		s.namespaces[name] = make(map[string][]byte)
	}
	return nil
}

// Namespaces lists all existing namespace names.
func (s *MemoryStore) Namespaces(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.namespaces))
	for name := range s.namespaces {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// DeleteNamespace removes a namespace and everything in it.
func (s *MemoryStore) DeleteNamespace(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.namespaces, name)
	return nil
}

// Delete wipes the entire store.
func (s *MemoryStore) Delete(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.namespaces = make(map[string]map[string][]byte)
	return nil
}

type memoryNamespace struct {
	store *MemoryStore
	name  string
}

func (n *memoryNamespace) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n.store.mu.Lock()
	defer n.store.mu.Unlock()
	ns := n.store.namespaces[n.name]
	if ns == nil {
		return nil, nil
	}
	value, ok := ns[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), value...), nil
}

func (n *memoryNamespace) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.store.mu.Lock()
	defer n.store.mu.Unlock()
	ns := n.store.namespaces[n.name]
	if ns == nil {
		ns = make(map[string][]byte)
		n.store.namespaces[n.name] = ns
	}
	ns[key] = append([]byte(nil), value...)
	return nil
}

func (n *memoryNamespace) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.store.mu.Lock()
	defer n.store.mu.Unlock()
	if ns := n.store.namespaces[n.name]; ns != nil {
		delete(ns, key)
	}
	return nil
}

func (n *memoryNamespace) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n.store.mu.Lock()
	defer n.store.mu.Unlock()
	ns := n.store.namespaces[n.name]
	if ns == nil {
		return nil, nil
	}
	var keys []string
	for key := range ns {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
