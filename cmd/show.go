package cmd

import (
	"context"
	"fmt"
	"strings"
)

// Show prints an item's overview and decrypted content. With a revision
// it shows that immutable snapshot instead of the current state.
func Show(ctx context.Context, uuid, revision string) {
	ls, closeStore := openStoreOrExit(ctx)
	defer closeStore()
	unlockStore(ctx, ls)

	it, err := ls.LoadItem(ctx, uuid, revision)
	if err != nil {
		HandleError(err)
	}

	fmt.Printf("Title:    %s\n", it.Title)
	fmt.Printf("Type:     %s\n", it.TypeName)
	if it.Location != "" {
		fmt.Printf("Location: %s\n", it.Location)
	}
	if len(it.OpenContents.Tags) > 0 {
		fmt.Printf("Tags:     %s\n", strings.Join(it.OpenContents.Tags, ", "))
	}
	fmt.Printf("Updated:  %s\n", it.UpdatedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Revision: %s\n", it.Revision)
	if it.Trashed {
		fmt.Println("Trashed:  yes")
	}

	content, err := ls.GetContent(ctx, it)
	if err != nil {
		HandleError(err)
	}

	for _, field := range content.FormFields {
		fmt.Printf("  %s: %s\n", field.Name, field.Value)
	}
	for _, section := range content.Sections {
		if section.Title != "" {
			fmt.Printf("  [%s]\n", section.Title)
		}
		for _, field := range section.Fields {
			fmt.Printf("  %s: %s\n", field.Title, field.Value)
		}
	}
	for _, u := range content.URLs {
		fmt.Printf("  %s: %s\n", u.Label, u.URL)
	}
	if content.Notes != "" {
		fmt.Printf("  notes: %s\n", content.Notes)
	}
}
