package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/Kryndex/passcards/internal/agilekeychain"
	"github.com/Kryndex/passcards/internal/store"
)

// Import copies master keys and items from a legacy file-backed vault
// into the local store. Items keep their original uuids and timestamps.
func Import(ctx context.Context, keychainDir string) {
	kc, err := agilekeychain.Open(keychainDir)
	if err != nil {
		HandleError(err)
	}

	keys, err := kc.EncryptionKeys()
	if err != nil {
		HandleError(err)
	}
	if len(keys) == 0 {
		fmt.Fprintln(os.Stderr, "Error: keychain has no encryption keys")
		os.Exit(1)
	}

	ls, closeStore := openStoreOrExit(ctx)
	defer closeStore()

	if err := ls.SaveKeys(ctx, keys, ""); err != nil {
		HandleError(err)
	}
	unlockStore(ctx, ls)

	contents, err := kc.Contents()
	if err != nil {
		HandleError(err)
	}

	imported := 0
	for _, entry := range contents {
		file, err := kc.Item(entry.UUID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: skipping %s: %s\n", entry.UUID, err)
			continue
		}

		it := file.ToItem()
		// Older keychains omit item timestamps; fall back to the
		// overview listing so the sync-sourced save has both.
		if it.UpdatedAt.IsZero() {
			it.UpdatedAt = entry.UpdatedAt
		}
		if it.CreatedAt.IsZero() {
			it.CreatedAt = it.UpdatedAt
		}

		plaintext, err := ls.DecryptItemData(ctx, it.SecurityLevel, file.Encrypted)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: skipping %s: %s\n", entry.UUID, err)
			continue
		}
		var content store.ItemContent
		if err := json.Unmarshal(plaintext, &content); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: skipping %s: %s\n", entry.UUID, err)
			continue
		}
		it.SetContent(content)

		if err := ls.SaveItem(ctx, &it, store.SourceSync); err != nil {
			HandleError(err)
		}
		imported++
	}

	fmt.Printf("✓ Imported %d of %d items\n", imported, len(contents))
}
