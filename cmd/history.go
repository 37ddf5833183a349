package cmd

import (
	"context"
	"fmt"
)

// History lists an item's revision chain, newest first.
func History(ctx context.Context, uuid string) {
	ls, closeStore := openStoreOrExit(ctx)
	defer closeStore()
	unlockStore(ctx, ls)

	revisions, err := ls.ItemRevisions(ctx, uuid)
	if err != nil {
		HandleError(err)
	}

	for i, rev := range revisions {
		marker := " "
		if i == 0 {
			marker = "*"
		}
		fmt.Printf("%s %s\n", marker, rev)
	}
}

// Diff prints a line diff between two revisions of an item.
func Diff(ctx context.Context, uuid, revA, revB string) {
	ls, closeStore := openStoreOrExit(ctx)
	defer closeStore()
	unlockStore(ctx, ls)

	out, err := ls.DiffRevisions(ctx, uuid, revA, revB)
	if err != nil {
		HandleError(err)
	}
	if out == "" {
		fmt.Println("Revisions are identical")
		return
	}
	fmt.Print(out)
}
