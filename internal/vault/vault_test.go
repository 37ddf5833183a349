package vault

import (
	"context"
	"errors"
	"testing"

	"github.com/Kryndex/passcards/internal/agent"
	"github.com/Kryndex/passcards/internal/kv"
)

func openTestVault(t *testing.T, entries []EncryptionKeyEntry) (*Vault, *agent.KeyAgent) {
	t.Helper()
	ctx := context.Background()

	store := kv.NewMemoryStore()
	keyAgent := agent.NewKeyAgent(nil)

	v, err := Open(ctx, store.Namespace("keys"), keyAgent, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := v.SaveKeys(ctx, entries, "the hint"); err != nil {
		t.Fatalf("SaveKeys failed: %v", err)
	}
	return v, keyAgent
}

func TestDeriveAndValidate(t *testing.T) {
	entry, err := NewKeyEntry([]byte("correct"), LevelSL5, 1000)
	if err != nil {
		t.Fatalf("NewKeyEntry failed: %v", err)
	}

	key, err := DeriveAndValidate([]byte("correct"), entry)
	if err != nil {
		t.Fatalf("DeriveAndValidate with right password failed: %v", err)
	}
	if len(key) == 0 {
		t.Fatal("derived key should not be empty")
	}

	if _, err := DeriveAndValidate([]byte("wrong"), entry); !errors.Is(err, ErrKeyValidation) {
		t.Errorf("expected ErrKeyValidation, got %v", err)
	}

	// Tampered validation blob fails the same way.
	tampered := entry
	tampered.Validation = append([]byte(nil), entry.Validation...)
	tampered.Validation[len(tampered.Validation)-1] ^= 0xff
	if _, err := DeriveAndValidate([]byte("correct"), tampered); !errors.Is(err, ErrKeyValidation) {
		t.Errorf("expected ErrKeyValidation for tampered entry, got %v", err)
	}
}

func TestUnlockAndLock(t *testing.T) {
	ctx := context.Background()
	entry, err := NewKeyEntry([]byte("correct"), LevelSL5, 1000)
	if err != nil {
		t.Fatalf("NewKeyEntry failed: %v", err)
	}
	v, keyAgent := openTestVault(t, []EncryptionKeyEntry{entry})

	if !v.IsLocked() {
		t.Fatal("fresh vault should be locked")
	}

	if err := v.Unlock(ctx, []byte("wrong")); !errors.Is(err, ErrKeyValidation) {
		t.Fatalf("expected ErrKeyValidation, got %v", err)
	}
	if !v.IsLocked() {
		t.Error("vault should stay locked after failed unlock")
	}

	if err := v.Unlock(ctx, []byte("correct")); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}
	if v.IsLocked() {
		t.Error("vault should be unlocked")
	}

	ids := keyAgent.ListKeys()
	if len(ids) != 1 || ids[0] != entry.Identifier {
		t.Errorf("agent should hold %q, got %v", entry.Identifier, ids)
	}

	// Re-unlocking an unlocked vault is a no-op, even with a bad password.
	if err := v.Unlock(ctx, []byte("wrong")); err != nil {
		t.Errorf("re-unlock should skip registered entries, got %v", err)
	}

	v.Lock()
	if !v.IsLocked() {
		t.Error("vault should be locked after Lock")
	}
	if ids := keyAgent.ListKeys(); len(ids) != 0 {
		t.Errorf("agent should be empty after Lock, got %v", ids)
	}
}

func TestUnlockAtomicOnPartialFailure(t *testing.T) {
	ctx := context.Background()

	good, err := NewKeyEntry([]byte("pw"), LevelSL5, 1000)
	if err != nil {
		t.Fatalf("NewKeyEntry failed: %v", err)
	}
	other, err := NewKeyEntry([]byte("different password"), "SL4", 1000)
	if err != nil {
		t.Fatalf("NewKeyEntry failed: %v", err)
	}
	v, keyAgent := openTestVault(t, []EncryptionKeyEntry{good, other})

	if err := v.Unlock(ctx, []byte("pw")); !errors.Is(err, ErrKeyValidation) {
		t.Fatalf("expected ErrKeyValidation, got %v", err)
	}
	if ids := keyAgent.ListKeys(); len(ids) != 0 {
		t.Errorf("failed unlock must not register any key, got %v", ids)
	}
	if !v.IsLocked() {
		t.Error("vault should remain locked")
	}
}

func TestSL3EntriesSkipped(t *testing.T) {
	ctx := context.Background()

	sl5, err := NewKeyEntry([]byte("pw"), LevelSL5, 1000)
	if err != nil {
		t.Fatalf("NewKeyEntry failed: %v", err)
	}
	// An SL3 entry wrapped under a different password would fail
	// derivation if it were ever loaded.
	sl3, err := NewKeyEntry([]byte("stale"), LevelSL3, 1000)
	if err != nil {
		t.Fatalf("NewKeyEntry failed: %v", err)
	}
	v, keyAgent := openTestVault(t, []EncryptionKeyEntry{sl5, sl3})

	if len(v.ListKeys()) != 1 {
		t.Fatalf("SL3 entry should be dropped at load, got %d entries", len(v.ListKeys()))
	}
	if err := v.Unlock(ctx, []byte("pw")); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}
	if ids := keyAgent.ListKeys(); len(ids) != 1 || ids[0] != sl5.Identifier {
		t.Errorf("only the SL5 key should be registered, got %v", ids)
	}
}

func TestItemDataRoundTrip(t *testing.T) {
	ctx := context.Background()
	entry, err := NewKeyEntry([]byte("pw"), LevelSL5, 1000)
	if err != nil {
		t.Fatalf("NewKeyEntry failed: %v", err)
	}
	v, _ := openTestVault(t, []EncryptionKeyEntry{entry})
	if err := v.Unlock(ctx, []byte("pw")); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}

	ct, err := v.EncryptItemData(ctx, LevelSL5, []byte(`{"sections":[]}`))
	if err != nil {
		t.Fatalf("EncryptItemData failed: %v", err)
	}
	pt, err := v.DecryptItemData(ctx, LevelSL5, ct)
	if err != nil {
		t.Fatalf("DecryptItemData failed: %v", err)
	}
	if string(pt) != `{"sections":[]}` {
		t.Errorf("round trip mismatch: got %q", pt)
	}

	if _, err := v.EncryptItemData(ctx, "SL9", []byte("x")); !errors.Is(err, ErrNoKeyForLevel) {
		t.Errorf("expected ErrNoKeyForLevel, got %v", err)
	}
}

func TestPasswordHint(t *testing.T) {
	ctx := context.Background()
	entry, err := NewKeyEntry([]byte("pw"), LevelSL5, 1000)
	if err != nil {
		t.Fatalf("NewKeyEntry failed: %v", err)
	}
	v, _ := openTestVault(t, []EncryptionKeyEntry{entry})

	hint, err := v.PasswordHint(ctx)
	if err != nil {
		t.Fatalf("PasswordHint failed: %v", err)
	}
	if hint != "the hint" {
		t.Errorf("hint mismatch: got %q", hint)
	}
}

func TestMalformedKeyEntry(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	keys := store.Namespace("keys")
	if err := keys.Set(ctx, "key/BROKEN", []byte("not json")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	_, err := Open(ctx, keys, agent.NewKeyAgent(nil), nil)
	if !errors.Is(err, ErrSchema) {
		t.Errorf("expected ErrSchema, got %v", err)
	}
}
