package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/Kryndex/passcards/internal/crypto"
	"github.com/Kryndex/passcards/internal/vault"
)

// Init creates a new vault with a single SL5 master key.
func Init(ctx context.Context, hint string, iterations int) {
	if _, err := os.Stat(vaultPath()); err == nil {
		fmt.Fprintf(os.Stderr, "Error: %s already exists\n", vaultPath())
		fmt.Fprintln(os.Stderr, "Use 'passcards status' to see its state")
		os.Exit(1)
	}

	password, err := getPasswordForInit()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	defer crypto.ClearBytes(password)

	ls, closeStore := openStoreOrExit(ctx)
	defer closeStore()

	entry, err := vault.NewKeyEntry(password, vault.LevelSL5, iterations)
	if err != nil {
		HandleError(err)
	}
	if err := ls.SaveKeys(ctx, []vault.EncryptionKeyEntry{entry}, hint); err != nil {
		HandleError(err)
	}
	if err := ls.Unlock(ctx, password); err != nil {
		HandleError(err)
	}

	fmt.Printf("✓ Initialized %s\n", vaultPath())
}
