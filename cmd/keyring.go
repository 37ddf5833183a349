package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/Kryndex/passcards/internal/crypto"
	"github.com/Kryndex/passcards/internal/keyring"
)

// KeyringSave verifies the master password and stores it in the OS
// keyring, keyed by the vault id.
func KeyringSave(ctx context.Context) {
	ls, closeStore := openStoreOrExit(ctx)
	defer closeStore()

	password, err := readPassword("Enter master password: ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	defer crypto.ClearBytes(password)

	if err := ls.Unlock(ctx, password); err != nil {
		HandleError(err)
	}

	vaultID, err := ls.VaultID(ctx)
	if err != nil {
		HandleError(err)
	}
	if err := keyring.SavePassword(vaultID, string(password)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to save to keyring: %s\n", err)
		os.Exit(1)
	}

	fmt.Println("Password saved to keyring")
}

// KeyringDelete removes the stored master password from the OS keyring.
func KeyringDelete(ctx context.Context) {
	ls, closeStore := openStoreOrExit(ctx)
	defer closeStore()

	vaultID, err := ls.VaultID(ctx)
	if err != nil {
		HandleError(err)
	}
	if err := keyring.DeletePassword(vaultID); err != nil {
		fmt.Println("No password stored in keyring")
		return
	}

	fmt.Println("Password removed from keyring")
}

// KeyringStatus reports whether a password is stored for this vault.
func KeyringStatus(ctx context.Context) {
	ls, closeStore := openStoreOrExit(ctx)
	defer closeStore()

	vaultID, err := ls.VaultID(ctx)
	if err != nil {
		HandleError(err)
	}
	if keyring.HasPassword(vaultID) {
		fmt.Println("Password: stored in keyring")
	} else {
		fmt.Println("Password: not stored")
	}
}
