package vault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Kryndex/passcards/internal/agent"
	"github.com/Kryndex/passcards/internal/crypto"
	"github.com/Kryndex/passcards/internal/kv"
)

const (
	keyPrefix = "key/"
	hintKey   = "hint"
)

var (
	ErrKeyValidation = errors.New("key validation failed")
	ErrNoKeyForLevel = errors.New("no key for security level")
	ErrSchema        = errors.New("malformed key store")
)

// Vault reads persisted key entries once at open, drives key derivation
// during unlock, and exposes per-security-level encryption of item data.
// All key material lives in the KeyAgent, never in the Vault itself.
type Vault struct {
	keys    kv.Namespace
	agent   *agent.KeyAgent
	entries []EncryptionKeyEntry
	log     *zap.Logger
}

// Open reads the persisted key entries and builds a locked vault. Entries
// at the unused SL3 tier are dropped here and never enter the derivation
// set.
func Open(ctx context.Context, keys kv.Namespace, keyAgent *agent.KeyAgent, log *zap.Logger) (*Vault, error) {
	if log == nil {
		log = zap.NewNop()
	}
	v := &Vault{keys: keys, agent: keyAgent, log: log}
	if err := v.reload(ctx); err != nil {
		return nil, err
	}
	return v, nil
}

func (v *Vault) reload(ctx context.Context) error {
	ids, err := v.keys.List(ctx, keyPrefix)
	if err != nil {
		return fmt.Errorf("failed to list key entries: %w", err)
	}

	entries := make([]EncryptionKeyEntry, 0, len(ids))
	for _, id := range ids {
		data, err := v.keys.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to read key entry %s: %w", id, err)
		}
		var entry EncryptionKeyEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			return fmt.Errorf("%w: entry %s: %v", ErrSchema, id, err)
		}
		if entry.Identifier == "" || entry.Iterations <= 0 {
			return fmt.Errorf("%w: entry %s missing identifier or iterations", ErrSchema, id)
		}
		if entry.Level == LevelSL3 {
			v.log.Debug("skipping legacy SL3 key entry", zap.String("id", entry.Identifier))
			continue
		}
		entries = append(entries, entry)
	}
	v.entries = entries
	return nil
}

// Unlock derives and validates every key entry with the password and
// registers the results with the KeyAgent. The unlock is atomic: if any
// entry fails validation, no key from this attempt is registered.
// Entries already held by the agent are skipped, so re-unlocking an
// unlocked vault is a no-op.
func (v *Vault) Unlock(ctx context.Context, password []byte) error {
	held := make(map[string]bool)
	for _, id := range v.agent.ListKeys() {
		held[id] = true
	}

	type derived struct {
		id  string
		key []byte
	}
	var pending []derived
	for _, entry := range v.entries {
		if held[entry.Identifier] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		key, err := DeriveAndValidate(password, entry)
		if err != nil {
			for _, d := range pending {
				crypto.ClearBytes(d.key)
			}
			return err
		}
		pending = append(pending, derived{id: entry.Identifier, key: key})
	}

	for _, d := range pending {
		v.agent.AddKey(d.id, d.key)
		crypto.ClearBytes(d.key)
	}
	v.log.Info("vault unlocked", zap.Int("keys", len(v.entries)))
	return nil
}

// Lock wipes all keys from the agent.
func (v *Vault) Lock() {
	v.agent.ForgetKeys()
	v.log.Info("vault locked")
}

// IsLocked reports whether any persisted key is absent from the agent.
// A partially registered key set counts as locked.
func (v *Vault) IsLocked() bool {
	held := make(map[string]bool)
	for _, id := range v.agent.ListKeys() {
		held[id] = true
	}
	for _, entry := range v.entries {
		if !held[entry.Identifier] {
			return true
		}
	}
	return len(v.entries) == 0
}

// ListKeys returns the loaded key entries.
func (v *Vault) ListKeys() []EncryptionKeyEntry {
	return append([]EncryptionKeyEntry(nil), v.entries...)
}

// SaveKeys persists key entries and the password hint, then reloads the
// derivation set.
func (v *Vault) SaveKeys(ctx context.Context, entries []EncryptionKeyEntry, hint string) error {
	for _, entry := range entries {
		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("failed to marshal key entry: %w", err)
		}
		if err := v.keys.Set(ctx, keyPrefix+entry.Identifier, data); err != nil {
			return fmt.Errorf("failed to store key entry: %w", err)
		}
	}
	if err := v.keys.Set(ctx, hintKey, []byte(hint)); err != nil {
		return fmt.Errorf("failed to store password hint: %w", err)
	}
	return v.reload(ctx)
}

// PasswordHint returns the stored password hint, empty if none was saved.
func (v *Vault) PasswordHint(ctx context.Context) (string, error) {
	data, err := v.keys.Get(ctx, hintKey)
	if err != nil {
		return "", fmt.Errorf("failed to read password hint: %w", err)
	}
	return string(data), nil
}

// EncryptItemData encrypts data under the key entry matching level.
func (v *Vault) EncryptItemData(ctx context.Context, level string, data []byte) ([]byte, error) {
	entry, err := v.entryForLevel(level)
	if err != nil {
		return nil, err
	}
	return v.agent.Encrypt(ctx, entry.Identifier, data, agent.CryptoParams{Algo: agent.AlgoAES128OpenSSL})
}

// DecryptItemData decrypts data under the key entry matching level.
func (v *Vault) DecryptItemData(ctx context.Context, level string, data []byte) ([]byte, error) {
	entry, err := v.entryForLevel(level)
	if err != nil {
		return nil, err
	}
	return v.agent.Decrypt(ctx, entry.Identifier, data, agent.CryptoParams{Algo: agent.AlgoAES128OpenSSL})
}

func (v *Vault) entryForLevel(level string) (EncryptionKeyEntry, error) {
	for _, entry := range v.entries {
		if entry.Level == level {
			return entry, nil
		}
	}
	return EncryptionKeyEntry{}, fmt.Errorf("%w: %q", ErrNoKeyForLevel, level)
}
