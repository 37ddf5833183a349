package store

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Kryndex/passcards/internal/agent"
	"github.com/Kryndex/passcards/internal/crypto"
	"github.com/Kryndex/passcards/internal/kv"
	"github.com/Kryndex/passcards/internal/vault"
)

const (
	indexKey       = "index"
	revisionPrefix = "revision/"
	lastSyncPrefix = "lastSynced/"
	vaultIDKey     = "vault_id"
)

var (
	ErrNotFound  = errors.New("item not found")
	ErrAssertion = errors.New("internal invariant violation")
)

// ItemSource identifies who initiated a save: a local edit gets fresh
// timestamps, a sync replay must carry its own.
type ItemSource int

const (
	SourceLocalEdit ItemSource = iota
	SourceSync
)

// ListOptions controls ListItems filtering.
type ListOptions struct {
	IncludeTombstones bool
}

// LastSyncEntry records which revision of an item was last pushed to a
// remote, independent of the revision chain itself.
type LastSyncEntry struct {
	Revision string `json:"revision"`
	At       int64  `json:"at"`
}

// LocalStore is the revision-tracked encrypted item store. It composes
// the vault and key agent for crypto, a cached decryption of the
// overview index, and a batched queue serializing index writes.
type LocalStore struct {
	keys  kv.Namespace
	items kv.Namespace
	vault *vault.Vault
	agent *agent.KeyAgent
	index *CachedValue[overviewMap]
	queue *UpdateQueue[indexEntry]
	log   *zap.Logger

	listenerMu      sync.Mutex
	unlockListeners []func()
	itemListeners   []func(Item)
}

// NewLocalStore builds a store over s. The keys and items namespaces are
// expected to exist (the schema upgrade creates them).
func NewLocalStore(ctx context.Context, s kv.Store, keyAgent *agent.KeyAgent, log *zap.Logger) (*LocalStore, error) {
	if log == nil {
		log = zap.NewNop()
	}

	v, err := vault.Open(ctx, s.Namespace("keys"), keyAgent, log)
	if err != nil {
		return nil, err
	}

	ls := &LocalStore{
		keys:  s.Namespace("keys"),
		items: s.Namespace("items"),
		vault: v,
		agent: keyAgent,
		log:   log,
	}
	ls.index = NewCachedValue(ls.loadIndex, ls.writeIndex)
	ls.queue = NewUpdateQueue(ls.mergeIndex)

	// The decrypted index must not outlive the keys that decrypted it.
	keyAgent.OnLockChanged(func(locked bool) {
		if locked {
			ls.index.Clear()
		}
	})
	return ls, nil
}

// Unlock unlocks the vault and notifies unlock listeners.
func (ls *LocalStore) Unlock(ctx context.Context, password []byte) error {
	if err := ls.vault.Unlock(ctx, password); err != nil {
		return err
	}
	ls.listenerMu.Lock()
	listeners := append([]func(){}, ls.unlockListeners...)
	ls.listenerMu.Unlock()
	for _, fn := range listeners {
		fn()
	}
	return nil
}

// Lock wipes the unlocked keys; the index cache is cleared via the
// agent's lock-state event.
func (ls *LocalStore) Lock() { ls.vault.Lock() }

// IsLocked reports whether the vault is locked.
func (ls *LocalStore) IsLocked() bool { return ls.vault.IsLocked() }

// OnUnlock registers a listener fired after every successful unlock.
func (ls *LocalStore) OnUnlock(fn func()) {
	ls.listenerMu.Lock()
	defer ls.listenerMu.Unlock()
	ls.unlockListeners = append(ls.unlockListeners, fn)
}

// OnItemUpdated registers a listener fired with the saved item after
// every successful SaveItem. Listeners run synchronously in registration
// order.
func (ls *LocalStore) OnItemUpdated(fn func(Item)) {
	ls.listenerMu.Lock()
	defer ls.listenerMu.Unlock()
	ls.itemListeners = append(ls.itemListeners, fn)
}

// ListKeys returns the persisted key entries.
func (ls *LocalStore) ListKeys() []vault.EncryptionKeyEntry { return ls.vault.ListKeys() }

// SaveKeys persists key entries and the password hint.
func (ls *LocalStore) SaveKeys(ctx context.Context, entries []vault.EncryptionKeyEntry, hint string) error {
	return ls.vault.SaveKeys(ctx, entries, hint)
}

// PasswordHint returns the stored master password hint.
func (ls *LocalStore) PasswordHint(ctx context.Context) (string, error) {
	return ls.vault.PasswordHint(ctx)
}

// DecryptItemData decrypts a payload sealed under the key for the given
// security level. Importers use it to open content encrypted by other
// stores sharing the same master keys.
func (ls *LocalStore) DecryptItemData(ctx context.Context, level string, data []byte) ([]byte, error) {
	return ls.vault.DecryptItemData(ctx, level, data)
}

// VaultID returns a stable random id for this store, generating and
// persisting one on first use. The keyring integration keys passwords
// by it.
func (ls *LocalStore) VaultID(ctx context.Context) (string, error) {
	data, err := ls.keys.Get(ctx, vaultIDKey)
	if err != nil {
		return "", err
	}
	if data != nil {
		return string(data), nil
	}
	b, err := crypto.GenerateRandom(16)
	if err != nil {
		return "", err
	}
	id := hex.EncodeToString(b)
	if err := ls.keys.Set(ctx, vaultIDKey, []byte(id)); err != nil {
		return "", err
	}
	return id, nil
}

// ListItems returns the current item of every uuid in the index, sorted
// by title then uuid. Tombstones are filtered out unless requested.
func (ls *LocalStore) ListItems(ctx context.Context, opts ListOptions) ([]Item, error) {
	idx, err := ls.index.Get(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(idx))
	for id, entry := range idx {
		it := itemFromEntry(id, entry)
		if it.IsTombstone() && !opts.IncludeTombstones {
			continue
		}
		items = append(items, it)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Title != items[j].Title {
			return items[i].Title < items[j].Title
		}
		return items[i].UUID < items[j].UUID
	})
	return items, nil
}

// LoadItem returns an item by uuid. With a revision it decrypts that
// immutable snapshot directly, bypassing the index; without one it
// returns the current item from the cached index.
func (ls *LocalStore) LoadItem(ctx context.Context, id, revision string) (Item, error) {
	if revision != "" {
		level, err := ls.levelFor(ctx, id)
		if err != nil {
			return Item{}, err
		}
		rev, err := ls.loadRevision(ctx, id, revision, level)
		if err != nil {
			return Item{}, err
		}
		return itemFromOverview(id, rev.Overview, revision, rev.ParentRevision), nil
	}

	idx, err := ls.index.Get(ctx)
	if err != nil {
		return Item{}, err
	}
	entry, ok := idx[id]
	if !ok {
		return Item{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return itemFromEntry(id, entry), nil
}

// GetContent decrypts and returns the content of the item's revision.
func (ls *LocalStore) GetContent(ctx context.Context, it Item) (ItemContent, error) {
	if it.Revision == "" {
		if it.content != nil {
			return *it.content, nil
		}
		return ItemContent{}, fmt.Errorf("%w: %s has no saved revision", ErrNotFound, it.UUID)
	}
	level := it.SecurityLevel
	if level == "" {
		level = vault.LevelSL5
	}
	rev, err := ls.loadRevision(ctx, it.UUID, it.Revision, level)
	if err != nil {
		return ItemContent{}, err
	}
	return rev.Content, nil
}

// SaveItem persists a new revision of the item and merges it into the
// overview index. SaveItem returns only when both the revision blob and
// the index flush have landed, then publishes the saved item to
// OnItemUpdated listeners.
func (ls *LocalStore) SaveItem(ctx context.Context, it *Item, source ItemSource) error {
	switch source {
	case SourceLocalEdit:
		now := time.Now().UTC().Truncate(time.Second)
		if it.CreatedAt.IsZero() {
			it.CreatedAt = now
		}
		it.UpdatedAt = now
	case SourceSync:
		// A sync replay carries the remote's timestamps; missing ones
		// mean the caller is broken, not the data.
		if it.CreatedAt.IsZero() || it.UpdatedAt.IsZero() {
			return fmt.Errorf("%w: sync-sourced save of %s missing timestamps", ErrAssertion, it.UUID)
		}
	default:
		return fmt.Errorf("%w: unknown item source %d", ErrAssertion, source)
	}
	if it.SecurityLevel == "" {
		it.SecurityLevel = vault.LevelSL5
	}

	content, err := ls.contentForSave(ctx, it)
	if err != nil {
		return err
	}

	overview := it.overview()
	parent := it.Revision
	revision, err := revisionID(overview, content)
	if err != nil {
		return fmt.Errorf("failed to compute revision id: %w", err)
	}

	blob, err := json.Marshal(itemRevision{
		ParentRevision: parent,
		Overview:       overview,
		Content:        content,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal revision: %w", err)
	}
	encrypted, err := ls.vault.EncryptItemData(ctx, it.SecurityLevel, blob)
	if err != nil {
		return err
	}

	// The blob must land before the index entry is enqueued: a queued
	// push cannot be retracted, and the index must never reference a
	// revision that was not persisted. A crash between the two writes
	// leaves the one tolerated partial state, an orphaned blob.
	if err := ls.writeRevision(ctx, it.UUID, revision, encrypted); err != nil {
		return err
	}
	if err := ls.queue.Push(ctx, it.UUID, indexEntry{
		Revision:       revision,
		ParentRevision: parent,
		Overview:       overview,
	}); err != nil {
		return err
	}

	it.ParentRevision = parent
	it.Revision = revision
	it.content = nil
	ls.log.Debug("item saved",
		zap.String("uuid", it.UUID),
		zap.String("revision", revision))

	ls.listenerMu.Lock()
	listeners := append([]func(Item){}, ls.itemListeners...)
	ls.listenerMu.Unlock()
	for _, fn := range listeners {
		fn(*it)
	}
	return nil
}

// DeleteItem replaces the item with a tombstone so the deletion survives
// sync. History is never erased.
func (ls *LocalStore) DeleteItem(ctx context.Context, it *Item) error {
	it.TypeName = TypeTombstone
	it.Trashed = true
	it.Title = ""
	it.Location = ""
	it.OpenContents = OpenContents{}
	it.SetContent(ItemContent{})
	return ls.SaveItem(ctx, it, SourceLocalEdit)
}

// ItemRevisions walks the revision chain from the item's current revision
// to its first, latest first.
func (ls *LocalStore) ItemRevisions(ctx context.Context, id string) ([]string, error) {
	current, err := ls.LoadItem(ctx, id, "")
	if err != nil {
		return nil, err
	}
	var revisions []string
	for rev := current.Revision; rev != ""; {
		revisions = append(revisions, rev)
		snapshot, err := ls.loadRevision(ctx, id, rev, current.SecurityLevel)
		if err != nil {
			return nil, err
		}
		rev = snapshot.ParentRevision
	}
	return revisions, nil
}

// LastSyncedRevision returns the sync bookkeeping for an item, or a zero
// entry if it was never synced.
func (ls *LocalStore) LastSyncedRevision(ctx context.Context, id string) (LastSyncEntry, error) {
	data, err := ls.items.Get(ctx, lastSyncPrefix+id)
	if err != nil {
		return LastSyncEntry{}, err
	}
	if data == nil {
		return LastSyncEntry{}, nil
	}
	var entry LastSyncEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return LastSyncEntry{}, fmt.Errorf("failed to unmarshal sync entry: %w", err)
	}
	return entry, nil
}

// SetLastSyncedRevision marks the item's resident revision as synced.
// Passing any other revision is an invariant violation: only the current
// revision can be reported to a remote.
func (ls *LocalStore) SetLastSyncedRevision(ctx context.Context, it Item, revision string) error {
	idx, err := ls.index.Get(ctx)
	if err != nil {
		return err
	}
	entry, ok := idx[it.UUID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, it.UUID)
	}
	if entry.Revision != revision {
		return fmt.Errorf("%w: revision %s is not the current revision of %s", ErrAssertion, revision, it.UUID)
	}

	now := time.Now().UTC().Unix()
	data, err := json.Marshal(LastSyncEntry{Revision: revision, At: now})
	if err != nil {
		return err
	}
	if err := ls.items.Set(ctx, lastSyncPrefix+it.UUID, data); err != nil {
		return fmt.Errorf("failed to store sync entry: %w", err)
	}

	// Re-enqueue so the cached lastSyncedAt stays consistent.
	entry.LastSyncedAt = now
	return ls.queue.Push(ctx, it.UUID, entry)
}

// LastSyncTimestamps returns the last-synced time of every item that has
// one.
func (ls *LocalStore) LastSyncTimestamps(ctx context.Context) (map[string]time.Time, error) {
	keys, err := ls.items.List(ctx, lastSyncPrefix)
	if err != nil {
		return nil, err
	}
	out := make(map[string]time.Time, len(keys))
	for _, key := range keys {
		data, err := ls.items.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if data == nil {
			continue
		}
		var entry LastSyncEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			return nil, fmt.Errorf("failed to unmarshal sync entry: %w", err)
		}
		out[key[len(lastSyncPrefix):]] = time.Unix(entry.At, 0).UTC()
	}
	return out, nil
}

func (ls *LocalStore) contentForSave(ctx context.Context, it *Item) (ItemContent, error) {
	if it.content != nil {
		return *it.content, nil
	}
	if it.Revision == "" {
		return ItemContent{}, nil
	}
	rev, err := ls.loadRevision(ctx, it.UUID, it.Revision, it.SecurityLevel)
	if err != nil {
		return ItemContent{}, err
	}
	return rev.Content, nil
}

// levelFor resolves an item's security level from the index, defaulting
// for revisions of items no longer indexed.
func (ls *LocalStore) levelFor(ctx context.Context, id string) (string, error) {
	idx, err := ls.index.Get(ctx)
	if err != nil {
		return "", err
	}
	if entry, ok := idx[id]; ok && entry.Overview.SecurityLevel != "" {
		return entry.Overview.SecurityLevel, nil
	}
	return vault.LevelSL5, nil
}

func (ls *LocalStore) loadRevision(ctx context.Context, id, revision, level string) (itemRevision, error) {
	data, err := ls.items.Get(ctx, revisionPrefix+id+"/"+revision)
	if err != nil {
		return itemRevision{}, err
	}
	if data == nil {
		return itemRevision{}, fmt.Errorf("%w: %s revision %s", ErrNotFound, id, revision)
	}
	plaintext, err := ls.vault.DecryptItemData(ctx, level, data)
	if err != nil {
		return itemRevision{}, err
	}
	var rev itemRevision
	if err := json.Unmarshal(plaintext, &rev); err != nil {
		return itemRevision{}, fmt.Errorf("failed to unmarshal revision: %w", err)
	}
	return rev, nil
}

// writeRevision persists a revision blob at its content-addressed key.
// Blobs are append-only: an identical save hits the same key with the
// same bytes semantics, so an existing blob is left untouched.
func (ls *LocalStore) writeRevision(ctx context.Context, id, revision string, encrypted []byte) error {
	key := revisionPrefix + id + "/" + revision
	existing, err := ls.items.Get(ctx, key)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	return ls.items.Set(ctx, key, encrypted)
}

// loadIndex decrypts the overview index from storage, an empty map if
// none was written yet.
func (ls *LocalStore) loadIndex(ctx context.Context) (overviewMap, error) {
	data, err := ls.items.Get(ctx, indexKey)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return overviewMap{}, nil
	}
	plaintext, err := ls.vault.DecryptItemData(ctx, vault.LevelSL5, data)
	if err != nil {
		return nil, err
	}
	var idx overviewMap
	if err := json.Unmarshal(plaintext, &idx); err != nil {
		return nil, fmt.Errorf("failed to unmarshal index: %w", err)
	}
	return idx, nil
}

// writeIndex encrypts and persists the overview index.
func (ls *LocalStore) writeIndex(ctx context.Context, idx overviewMap) error {
	plaintext, err := json.Marshal(idx)
	if err != nil {
		return fmt.Errorf("failed to marshal index: %w", err)
	}
	encrypted, err := ls.vault.EncryptItemData(ctx, vault.LevelSL5, plaintext)
	if err != nil {
		return err
	}
	return ls.items.Set(ctx, indexKey, encrypted)
}

// mergeIndex is the queue's flush callback: one read-modify-write of the
// index per batch, no matter how many items were pushed.
func (ls *LocalStore) mergeIndex(ctx context.Context, updates map[string]indexEntry) error {
	idx, err := ls.index.Get(ctx)
	if err != nil {
		return err
	}
	merged := make(overviewMap, len(idx)+len(updates))
	for id, entry := range idx {
		merged[id] = entry
	}
	for id, entry := range updates {
		// A save does not carry sync bookkeeping; keep what the index
		// already knows.
		if entry.LastSyncedAt == 0 {
			if old, ok := merged[id]; ok {
				entry.LastSyncedAt = old.LastSyncedAt
			}
		}
		merged[id] = entry
	}
	return ls.index.Set(ctx, merged)
}
