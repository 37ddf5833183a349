package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/Kryndex/passcards/internal/agent"
	"github.com/Kryndex/passcards/internal/agilekeychain"
	"github.com/Kryndex/passcards/internal/crypto"
	"github.com/Kryndex/passcards/internal/keyring"
	"github.com/Kryndex/passcards/internal/kv"
	"github.com/Kryndex/passcards/internal/store"
	"github.com/Kryndex/passcards/internal/vault"
)

const defaultVaultFile = "passcards.db"

// vaultPath resolves the vault database location: PASSCARDS_VAULT if
// set, otherwise passcards.db in the current directory.
func vaultPath() string {
	if path := os.Getenv("PASSCARDS_VAULT"); path != "" {
		return path
	}
	return defaultVaultFile
}

func newLogger() *zap.Logger {
	if os.Getenv("PASSCARDS_DEBUG") == "" {
		return zap.NewNop()
	}
	log, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return log
}

// openStore opens the vault database and builds the local store over it.
// The returned close function must be called before exit.
func openStore(ctx context.Context) (*store.LocalStore, func(), error) {
	kvStore, err := kv.OpenBolt(ctx, vaultPath(), kv.SchemaVersion, kv.DestructiveUpgrade)
	if err != nil {
		return nil, nil, err
	}

	log := newLogger()
	ls, err := store.NewLocalStore(ctx, kvStore, agent.NewKeyAgent(log), log)
	if err != nil {
		kvStore.Close()
		return nil, nil, err
	}
	return ls, func() { kvStore.Close() }, nil
}

func openStoreOrExit(ctx context.Context) (*store.LocalStore, func()) {
	ls, closeStore, err := openStore(ctx)
	if err != nil {
		HandleError(err)
	}
	return ls, closeStore
}

// unlockStore unlocks using the first password source that works: the
// OS keyring, the PASSCARDS_PASSWORD environment variable, then an
// interactive prompt. A wrong password prints the stored hint if one
// exists.
func unlockStore(ctx context.Context, ls *store.LocalStore) {
	if !ls.IsLocked() {
		return
	}

	if vaultID, err := ls.VaultID(ctx); err == nil {
		if stored, err := keyring.GetPassword(vaultID); err == nil {
			if err := ls.Unlock(ctx, []byte(stored)); err == nil {
				return
			}
			fmt.Fprintln(os.Stderr, "Warning: keyring password no longer valid")
		}
	}

	password := GetPasswordOrExit("Enter master password: ")
	defer crypto.ClearBytes(password)

	if err := ls.Unlock(ctx, password); err != nil {
		if errors.Is(err, vault.ErrKeyValidation) {
			printHint(ctx, ls)
		}
		HandleError(err)
	}
}

// GetPassword retrieves a password from the environment or prompts for
// it. The caller clears the returned bytes.
func GetPassword(prompt string) ([]byte, error) {
	if password := getPasswordFromEnv(); password != nil {
		return password, nil
	}
	password, err := readPassword(prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}
	return password, nil
}

// GetPasswordOrExit is like GetPassword but exits on error.
func GetPasswordOrExit(prompt string) []byte {
	password, err := GetPassword(prompt)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	return password
}

func printHint(ctx context.Context, ls *store.LocalStore) {
	hint, err := ls.PasswordHint(ctx)
	if err == nil && hint != "" {
		fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
	}
}

// HandleError prints a friendly message for known errors and exits.
func HandleError(err error) {
	switch {
	case errors.Is(err, vault.ErrKeyValidation):
		fmt.Fprintln(os.Stderr, "Error: wrong master password")
	case errors.Is(err, vault.ErrNoKeyForLevel):
		fmt.Fprintln(os.Stderr, "Error: vault is locked")
		fmt.Fprintln(os.Stderr, "Unlock it with your master password first")
	case errors.Is(err, vault.ErrSchema):
		fmt.Fprintln(os.Stderr, "Error: vault key store is corrupted")
	case errors.Is(err, store.ErrNotFound):
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	case errors.Is(err, agilekeychain.ErrNotKeychain):
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		fmt.Fprintln(os.Stderr, "Expected a directory containing data/default/")
	case errors.Is(err, kv.ErrNewerSchema):
		fmt.Fprintln(os.Stderr, "Error: vault was created by a newer version of passcards")
	default:
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
	os.Exit(1)
}
