package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/Kryndex/passcards/internal/keyring"
	"github.com/Kryndex/passcards/internal/store"
)

// Status shows vault details that do not require the master password,
// plus item counts when the vault can be unlocked without prompting.
func Status(ctx context.Context) {
	path := vaultPath()
	info, err := os.Stat(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: no vault at %s\n", path)
		fmt.Fprintln(os.Stderr, "Run 'passcards init' first")
		os.Exit(1)
	}

	ls, closeStore := openStoreOrExit(ctx)
	defer closeStore()

	fmt.Printf("Vault:    %s (%d bytes)\n", path, info.Size())
	fmt.Printf("Keys:     %d\n", len(ls.ListKeys()))

	if hint, err := ls.PasswordHint(ctx); err == nil && hint != "" {
		fmt.Printf("Hint:     %s\n", hint)
	}
	if vaultID, err := ls.VaultID(ctx); err == nil {
		fmt.Printf("Vault ID: %s\n", vaultID)
		if keyring.HasPassword(vaultID) {
			fmt.Println("Keyring:  password stored")
		}
	}

	// Item counts need the index, which needs a key. Only try password
	// sources that do not prompt.
	if tryUnlockQuiet(ctx, ls) {
		items, err := ls.ListItems(ctx, store.ListOptions{IncludeTombstones: true})
		if err == nil {
			active, trashed, tombstones := 0, 0, 0
			for _, it := range items {
				switch {
				case it.IsTombstone():
					tombstones++
				case it.Trashed:
					trashed++
				default:
					active++
				}
			}
			fmt.Printf("Items:    %d active, %d trashed, %d deleted\n", active, trashed, tombstones)
		}
	} else {
		fmt.Println("Locked:   yes")
	}
}

// tryUnlockQuiet attempts keyring and environment passwords only.
func tryUnlockQuiet(ctx context.Context, ls *store.LocalStore) bool {
	if !ls.IsLocked() {
		return true
	}
	if vaultID, err := ls.VaultID(ctx); err == nil {
		if stored, err := keyring.GetPassword(vaultID); err == nil {
			if ls.Unlock(ctx, []byte(stored)) == nil {
				return true
			}
		}
	}
	if password := getPasswordFromEnv(); password != nil {
		if ls.Unlock(ctx, password) == nil {
			return true
		}
	}
	return false
}
