package agilekeychain

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/Kryndex/passcards/internal/store"
	"github.com/Kryndex/passcards/internal/vault"
)

const dataDir = "data/default"

var (
	ErrNotKeychain = errors.New("not an agile keychain directory")
	ErrBadUUID     = errors.New("invalid item uuid")
)

// Item uuids are 32 hex digits. Validated before any uuid is turned into
// a file path, so a tampered contents file cannot escape the keychain.
var uuidPattern = regexp.MustCompile(`^[0-9A-Fa-f]{32}$`)

// Keychain reads the legacy file-backed vault layout.
type Keychain struct {
	root string
}

// Open verifies the layout exists under root.
func Open(root string) (*Keychain, error) {
	info, err := os.Stat(filepath.Join(root, dataDir))
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotKeychain, root)
	}
	return &Keychain{root: root}, nil
}

// keyEntryFile is one entry of encryptionKeys.js with base64 payloads.
type keyEntryFile struct {
	Identifier string `json:"identifier"`
	Level      string `json:"level"`
	Data       string `json:"data"`
	Validation string `json:"validation"`
	Iterations int    `json:"iterations"`
}

// EncryptionKeys reads data/default/encryptionKeys.js.
func (k *Keychain) EncryptionKeys() ([]vault.EncryptionKeyEntry, error) {
	raw, err := os.ReadFile(filepath.Join(k.root, dataDir, "encryptionKeys.js"))
	if err != nil {
		return nil, fmt.Errorf("failed to read encryption keys: %w", err)
	}

	var file struct {
		List []keyEntryFile `json:"list"`
	}
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse encryption keys: %w", err)
	}

	entries := make([]vault.EncryptionKeyEntry, 0, len(file.List))
	for _, e := range file.List {
		data, err := decodeBase64(e.Data)
		if err != nil {
			return nil, fmt.Errorf("key %s: bad data field: %w", e.Identifier, err)
		}
		validation, err := decodeBase64(e.Validation)
		if err != nil {
			return nil, fmt.Errorf("key %s: bad validation field: %w", e.Identifier, err)
		}
		entries = append(entries, vault.EncryptionKeyEntry{
			Identifier: e.Identifier,
			Level:      e.Level,
			Data:       data,
			Validation: validation,
			Iterations: e.Iterations,
		})
	}
	return entries, nil
}

// ContentsEntry is one row of the overview listing in contents.js. On
// disk it is a positional 8-element tuple; the named form exists only in
// memory.
type ContentsEntry struct {
	UUID       string
	TypeName   string
	Title      string
	Location   string
	UpdatedAt  time.Time
	FolderUUID string
	Trashed    bool
}

// UnmarshalJSON decodes the positional tuple
// [uuid, typeName, title, location, updatedAt, folderUuid, 0, "Y"/"N"].
func (e *ContentsEntry) UnmarshalJSON(data []byte) error {
	var tuple []any
	if err := json.Unmarshal(data, &tuple); err != nil {
		return err
	}
	if len(tuple) < 8 {
		return fmt.Errorf("contents entry has %d fields, want 8", len(tuple))
	}
	e.UUID = asString(tuple[0])
	e.TypeName = asString(tuple[1])
	e.Title = asString(tuple[2])
	e.Location = asString(tuple[3])
	if secs, ok := tuple[4].(float64); ok {
		e.UpdatedAt = time.Unix(int64(secs), 0).UTC()
	}
	e.FolderUUID = asString(tuple[5])
	e.Trashed = asString(tuple[7]) == "Y"
	return nil
}

// MarshalJSON emits the positional tuple form.
func (e ContentsEntry) MarshalJSON() ([]byte, error) {
	trashed := "N"
	if e.Trashed {
		trashed = "Y"
	}
	var updated int64
	if !e.UpdatedAt.IsZero() {
		updated = e.UpdatedAt.Unix()
	}
	return json.Marshal([]any{
		e.UUID, e.TypeName, e.Title, e.Location,
		updated, e.FolderUUID, 0, trashed,
	})
}

// Contents reads data/default/contents.js.
func (k *Keychain) Contents() ([]ContentsEntry, error) {
	raw, err := os.ReadFile(filepath.Join(k.root, dataDir, "contents.js"))
	if err != nil {
		return nil, fmt.Errorf("failed to read contents: %w", err)
	}
	var entries []ContentsEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse contents: %w", err)
	}
	return entries, nil
}

// base64Data decodes through the same tolerant path as the key entries,
// since item files pad their base64 fields the same way.
type base64Data []byte

func (d *base64Data) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	raw, err := decodeBase64(s)
	if err != nil {
		return err
	}
	*d = raw
	return nil
}

func (d base64Data) MarshalJSON() ([]byte, error) {
	return json.Marshal(base64.StdEncoding.EncodeToString(d))
}

// ItemFile is a <uuid>.1password file: plaintext overview fields plus the
// encrypted content payload.
type ItemFile struct {
	UUID          string              `json:"uuid"`
	Title         string              `json:"title"`
	TypeName      string              `json:"typeName"`
	LocationKey   string              `json:"locationKey,omitempty"`
	Location      string              `json:"location,omitempty"`
	FolderUUID    string              `json:"folderUuid,omitempty"`
	CreatedAt     int64               `json:"createdAt"`
	UpdatedAt     int64               `json:"updatedAt"`
	Trashed       bool                `json:"trashed,omitempty"`
	SecurityLevel string              `json:"securityLevel,omitempty"`
	OpenContents  *store.OpenContents `json:"openContents,omitempty"`
	Encrypted     base64Data          `json:"encrypted"`
}

// Item reads one data/default/<uuid>.1password file.
func (k *Keychain) Item(id string) (*ItemFile, error) {
	if !uuidPattern.MatchString(id) {
		return nil, fmt.Errorf("%w: %q", ErrBadUUID, id)
	}
	raw, err := os.ReadFile(filepath.Join(k.root, dataDir, id+".1password"))
	if err != nil {
		return nil, fmt.Errorf("failed to read item %s: %w", id, err)
	}
	var file ItemFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse item %s: %w", id, err)
	}
	if file.UUID == "" {
		file.UUID = id
	}
	return &file, nil
}

// ToItem converts the file form into a store item. The encrypted payload
// stays behind; the caller decrypts it and attaches the content.
func (f *ItemFile) ToItem() store.Item {
	it := store.Item{
		UUID:          f.UUID,
		Title:         f.Title,
		TypeName:      f.TypeName,
		Location:      f.Location,
		FolderUUID:    f.FolderUUID,
		Trashed:       f.Trashed,
		SecurityLevel: f.SecurityLevel,
	}
	if it.SecurityLevel == "" {
		it.SecurityLevel = vault.LevelSL5
	}
	if f.OpenContents != nil {
		it.OpenContents = *f.OpenContents
	}
	if f.CreatedAt != 0 {
		it.CreatedAt = time.Unix(f.CreatedAt, 0).UTC()
	}
	if f.UpdatedAt != 0 {
		it.UpdatedAt = time.Unix(f.UpdatedAt, 0).UTC()
	}
	return it
}

// decodeBase64 tolerates the trailing NULs and whitespace real keychain
// files carry in their base64 fields.
func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimRight(s, "\x00\r\n\t ")
	return base64.StdEncoding.DecodeString(s)
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
