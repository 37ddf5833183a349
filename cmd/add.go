package cmd

import (
	"context"
	"fmt"

	"github.com/Kryndex/passcards/internal/crypto"
	"github.com/Kryndex/passcards/internal/store"
)

// Add creates a new login item, prompting for the secret value so it
// never appears in shell history.
func Add(ctx context.Context, title, location, username string) {
	ls, closeStore := openStoreOrExit(ctx)
	defer closeStore()
	unlockStore(ctx, ls)

	secret, err := readPassword("Password for item: ")
	if err != nil {
		HandleError(err)
	}
	defer crypto.ClearBytes(secret)

	it := store.NewItem(title, store.TypeLogin)
	it.Location = location

	content := store.ItemContent{
		FormFields: []store.FormField{
			{Name: "password", ID: "password", Type: "P", Designation: "password", Value: string(secret)},
		},
	}
	if username != "" {
		content.FormFields = append([]store.FormField{
			{Name: "username", ID: "username", Type: "T", Designation: "username", Value: username},
		}, content.FormFields...)
	}
	if location != "" {
		content.URLs = []store.ItemURL{{Label: "website", URL: location}}
	}
	it.SetContent(content)

	if err := ls.SaveItem(ctx, it, store.SourceLocalEdit); err != nil {
		HandleError(err)
	}

	fmt.Printf("✓ Added %s (%s)\n", it.Title, it.UUID)
}
