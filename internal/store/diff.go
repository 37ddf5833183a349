package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DiffRevisions renders a unified diff between two revisions of an item,
// oldest on the left. Returns an empty string when the snapshots are
// identical.
func (ls *LocalStore) DiffRevisions(ctx context.Context, id, revA, revB string) (string, error) {
	level, err := ls.levelFor(ctx, id)
	if err != nil {
		return "", err
	}
	a, err := ls.loadRevision(ctx, id, revA, level)
	if err != nil {
		return "", err
	}
	b, err := ls.loadRevision(ctx, id, revB, level)
	if err != nil {
		return "", err
	}

	aText, err := renderRevision(a)
	if err != nil {
		return "", err
	}
	bText, err := renderRevision(b)
	if err != nil {
		return "", err
	}
	if aText == bText {
		return "", nil
	}

	dmp := diffmatchpatch.New()

	// Line-mode diff for readable output over the rendered JSON.
	ca, cb, lineArray := dmp.DiffLinesToChars(aText, bText)
	diffs := dmp.DiffMain(ca, cb, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	patches := dmp.PatchMake(aText, diffs)
	if len(patches) == 0 {
		return "", nil
	}

	var result strings.Builder
	result.WriteString(fmt.Sprintf("--- %s@%s\n", id, shortRev(revA)))
	result.WriteString(fmt.Sprintf("+++ %s@%s\n", id, shortRev(revB)))
	result.WriteString(dmp.PatchToText(patches))
	return result.String(), nil
}

// renderRevision produces the stable textual form a diff is computed
// over: indented JSON of the decrypted snapshot.
func renderRevision(rev itemRevision) (string, error) {
	data, err := json.MarshalIndent(struct {
		Overview Overview    `json:"overview"`
		Content  ItemContent `json:"content"`
	}{rev.Overview, rev.Content}, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data) + "\n", nil
}

func shortRev(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}
