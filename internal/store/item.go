package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Well-known item type names from the legacy format.
const (
	TypeLogin      = "webforms.WebForm"
	TypeSecureNote = "securenotes.SecureNote"
	TypePassword   = "passwords.Password"
	// TypeTombstone marks a deleted item. The record is kept so the
	// deletion propagates during sync instead of the item reappearing.
	TypeTombstone = "system.Tombstone"
)

// Item is the decrypted in-memory form of a stored record. UUID is the
// immutable identity; Revision and ParentRevision change on every save.
type Item struct {
	UUID           string
	Title          string
	TypeName       string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Trashed        bool
	FolderUUID     string
	Location       string
	SecurityLevel  string
	Revision       string
	ParentRevision string
	OpenContents   OpenContents

	// content set via SetContent, pending until the next save.
	content *ItemContent
}

// OpenContents holds the unencrypted item fields from the legacy format.
type OpenContents struct {
	Tags  []string `json:"tags,omitempty"`
	Scope string   `json:"scope,omitempty"`
}

// ItemContent is the encrypted payload of an item.
type ItemContent struct {
	Sections   []ItemSection `json:"sections,omitempty"`
	FormFields []FormField   `json:"fields,omitempty"`
	URLs       []ItemURL     `json:"urls,omitempty"`
	Notes      string        `json:"notesPlain,omitempty"`
}

// ItemSection groups related fields under a titled heading.
type ItemSection struct {
	Name   string         `json:"name"`
	Title  string         `json:"title"`
	Fields []SectionField `json:"fields,omitempty"`
}

// SectionField is one typed key/value pair inside a section.
type SectionField struct {
	Kind  string `json:"k"`
	Name  string `json:"n"`
	Title string `json:"t"`
	Value string `json:"v"`
}

// FormField is a saved web-form input.
type FormField struct {
	Name        string `json:"name"`
	ID          string `json:"id"`
	Type        string `json:"type"`
	Designation string `json:"designation,omitempty"`
	Value       string `json:"value"`
}

// ItemURL is a labeled location associated with an item.
type ItemURL struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// Overview is the projection of an item kept in the encrypted index for
// fast listing, distinct from the encrypted content. Timestamps are unix
// seconds so the serialized form, and therefore the revision id, is
// stable across round trips.
type Overview struct {
	Title         string       `json:"title"`
	TypeName      string       `json:"typeName"`
	CreatedAt     int64        `json:"createdAt"`
	UpdatedAt     int64        `json:"updatedAt"`
	Trashed       bool         `json:"trashed"`
	FolderUUID    string       `json:"folderUuid,omitempty"`
	Location      string       `json:"location,omitempty"`
	SecurityLevel string       `json:"securityLevel,omitempty"`
	OpenContents  OpenContents `json:"openContents"`
}

// itemRevision is the unit persisted per save: an immutable,
// content-addressed snapshot keyed by its revision id.
type itemRevision struct {
	ParentRevision string      `json:"parentRevision,omitempty"`
	Overview       Overview    `json:"overview"`
	Content        ItemContent `json:"content"`
}

// indexEntry is one record of the overview map: the overview projection
// of an item's latest committed revision plus sync bookkeeping.
type indexEntry struct {
	Revision       string   `json:"revision"`
	ParentRevision string   `json:"parentRevision,omitempty"`
	Overview       Overview `json:"overview"`
	LastSyncedAt   int64    `json:"lastSyncedAt,omitempty"`
}

// overviewMap is the single encrypted index blob, uuid to entry.
type overviewMap map[string]indexEntry

// NewItem creates an unsaved item with a fresh uuid at the default
// security level.
func NewItem(title, typeName string) *Item {
	return &Item{
		UUID:          NewUUID(),
		Title:         title,
		TypeName:      typeName,
		SecurityLevel: "SL5",
	}
}

// NewUUID generates an item uuid in the legacy format: 32 uppercase hex
// digits, no dashes.
func NewUUID() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
}

// SetContent replaces the item's content for the next save.
func (it *Item) SetContent(content ItemContent) {
	c := content
	it.content = &c
}

// IsTombstone reports whether the item marks a deletion.
func (it *Item) IsTombstone() bool {
	return it.TypeName == TypeTombstone
}

// overview computes a fresh overview snapshot from the item's mutable
// fields.
func (it *Item) overview() Overview {
	o := Overview{
		Title:         it.Title,
		TypeName:      it.TypeName,
		Trashed:       it.Trashed,
		FolderUUID:    it.FolderUUID,
		Location:      it.Location,
		SecurityLevel: it.SecurityLevel,
		OpenContents:  it.OpenContents,
	}
	if !it.CreatedAt.IsZero() {
		o.CreatedAt = it.CreatedAt.Unix()
	}
	if !it.UpdatedAt.IsZero() {
		o.UpdatedAt = it.UpdatedAt.Unix()
	}
	return o
}

// itemFromEntry builds the current item view from an index entry.
func itemFromEntry(id string, entry indexEntry) Item {
	return itemFromOverview(id, entry.Overview, entry.Revision, entry.ParentRevision)
}

func itemFromOverview(id string, o Overview, revision, parent string) Item {
	it := Item{
		UUID:           id,
		Title:          o.Title,
		TypeName:       o.TypeName,
		Trashed:        o.Trashed,
		FolderUUID:     o.FolderUUID,
		Location:       o.Location,
		OpenContents:   o.OpenContents,
		SecurityLevel:  o.SecurityLevel,
		Revision:       revision,
		ParentRevision: parent,
	}
	if it.SecurityLevel == "" {
		it.SecurityLevel = "SL5"
	}
	if o.CreatedAt != 0 {
		it.CreatedAt = time.Unix(o.CreatedAt, 0).UTC()
	}
	if o.UpdatedAt != 0 {
		it.UpdatedAt = time.Unix(o.UpdatedAt, 0).UTC()
	}
	return it
}

// revisionID computes the deterministic, content-addressed id of a
// revision: identical overview and content always hash to the same id.
func revisionID(o Overview, c ItemContent) (string, error) {
	payload, err := json.Marshal(struct {
		Overview Overview    `json:"overview"`
		Content  ItemContent `json:"content"`
	}{o, c})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}
