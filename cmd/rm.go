package cmd

import (
	"context"
	"fmt"
)

// Remove deletes items by uuid, leaving tombstones so the deletions
// propagate on sync.
func Remove(ctx context.Context, uuids []string) {
	ls, closeStore := openStoreOrExit(ctx)
	defer closeStore()
	unlockStore(ctx, ls)

	for _, id := range uuids {
		it, err := ls.LoadItem(ctx, id, "")
		if err != nil {
			HandleError(err)
		}
		title := it.Title
		if err := ls.DeleteItem(ctx, &it); err != nil {
			HandleError(err)
		}
		fmt.Printf("✓ Removed %s (%s)\n", id, title)
	}
}
