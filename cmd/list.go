package cmd

import (
	"context"
	"fmt"

	"github.com/Kryndex/passcards/internal/store"
)

// Ls lists items in the vault, sorted by title.
func Ls(ctx context.Context, includeTrashed bool) {
	ls, closeStore := openStoreOrExit(ctx)
	defer closeStore()
	unlockStore(ctx, ls)

	items, err := ls.ListItems(ctx, store.ListOptions{})
	if err != nil {
		HandleError(err)
	}

	shown := 0
	for _, it := range items {
		if it.Trashed && !includeTrashed {
			continue
		}
		marker := " "
		if it.Trashed {
			marker = "T"
		}
		fmt.Printf("%s %s  %-30s %s\n", marker, it.UUID, it.Title, it.Location)
		shown++
	}
	if shown == 0 {
		fmt.Println("No items in vault")
	}
}
