package agilekeychain

import (
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kryndex/passcards/internal/crypto"
	"github.com/Kryndex/passcards/internal/store"
	"github.com/Kryndex/passcards/internal/vault"
)

const (
	testPassword = "logMEin"
	testUUID     = "6A628FDD87F433598E43368DC42A13C6"
)

// writeTestKeychain lays out a minimal vault on disk and returns its
// root together with the raw master key used to seal the item payload.
func writeTestKeychain(t *testing.T) (string, []byte) {
	t.Helper()

	root := t.TempDir()
	dir := filepath.Join(root, dataDir)
	require.NoError(t, os.MkdirAll(dir, 0o755))

	entry, err := vault.NewKeyEntry([]byte(testPassword), vault.LevelSL5, 1000)
	require.NoError(t, err)
	masterKey, err := vault.DeriveAndValidate([]byte(testPassword), entry)
	require.NoError(t, err)

	keysFile := map[string]any{
		"list": []map[string]any{
			{
				"identifier": entry.Identifier,
				"level":      entry.Level,
				// Real files pad base64 fields with trailing NULs.
				"data":       base64.StdEncoding.EncodeToString(entry.Data) + "\x00",
				"validation": base64.StdEncoding.EncodeToString(entry.Validation),
				"iterations": entry.Iterations,
			},
		},
		"SL5": entry.Identifier,
	}
	writeJSON(t, filepath.Join(dir, "encryptionKeys.js"), keysFile)

	contents := [][]any{
		{testUUID, store.TypeLogin, "Bank", "https://bank.example.com",
			1700000000, "", 0, "N"},
		{"5F2BE02E3F3A4F569E7A106A51C1D8D4", store.TypeSecureNote, "Note", "",
			1700000100, "", 0, "Y"},
	}
	writeJSON(t, filepath.Join(dir, "contents.js"), contents)

	content := store.ItemContent{
		FormFields: []store.FormField{
			{Name: "password", ID: "pw", Type: "P", Value: "hunter2"},
		},
	}
	plaintext, err := json.Marshal(content)
	require.NoError(t, err)
	encrypted, err := crypto.EncryptSalted(masterKey, plaintext)
	require.NoError(t, err)

	itemFile := map[string]any{
		"uuid":      testUUID,
		"title":     "Bank",
		"typeName":  store.TypeLogin,
		"location":  "https://bank.example.com",
		"createdAt": 1699990000,
		"updatedAt": 1700000000,
		// Padded like the key entries; strict base64 would reject it.
		"encrypted": base64.StdEncoding.EncodeToString(encrypted) + "\x00",
		"openContents": map[string]any{
			"tags": []string{"finance"},
		},
	}
	writeJSON(t, filepath.Join(dir, testUUID+".1password"), itemFile)

	return root, masterKey
}

func writeJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func TestOpenRejectsMissingLayout(t *testing.T) {
	_, err := Open(t.TempDir())
	require.ErrorIs(t, err, ErrNotKeychain)
}

func TestEncryptionKeys(t *testing.T) {
	root, _ := writeTestKeychain(t)
	kc, err := Open(root)
	require.NoError(t, err)

	entries, err := kc.EncryptionKeys()
	require.NoError(t, err)
	require.Len(t, entries, 1)

	e := entries[0]
	assert.Equal(t, vault.LevelSL5, e.Level)
	assert.Equal(t, 1000, e.Iterations)
	assert.NotEmpty(t, e.Data)
	assert.NotEmpty(t, e.Validation)

	// The parsed entry must still validate against the password.
	_, err = vault.DeriveAndValidate([]byte(testPassword), e)
	require.NoError(t, err)
	_, err = vault.DeriveAndValidate([]byte("wrong"), e)
	require.ErrorIs(t, err, vault.ErrKeyValidation)
}

func TestContents(t *testing.T) {
	root, _ := writeTestKeychain(t)
	kc, err := Open(root)
	require.NoError(t, err)

	entries, err := kc.Contents()
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, testUUID, entries[0].UUID)
	assert.Equal(t, "Bank", entries[0].Title)
	assert.Equal(t, store.TypeLogin, entries[0].TypeName)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), entries[0].UpdatedAt)
	assert.False(t, entries[0].Trashed)
	assert.True(t, entries[1].Trashed)
}

func TestContentsEntryTupleRoundTrip(t *testing.T) {
	entry := ContentsEntry{
		UUID:      testUUID,
		TypeName:  store.TypeLogin,
		Title:     "Bank",
		Location:  "https://bank.example.com",
		UpdatedAt: time.Unix(1700000000, 0).UTC(),
		Trashed:   true,
	}

	data, err := json.Marshal(entry)
	require.NoError(t, err)
	assert.JSONEq(t, `["6A628FDD87F433598E43368DC42A13C6","webforms.WebForm","Bank","https://bank.example.com",1700000000,"",0,"Y"]`, string(data))

	var got ContentsEntry
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, entry, got)
}

func TestItem(t *testing.T) {
	root, masterKey := writeTestKeychain(t)
	kc, err := Open(root)
	require.NoError(t, err)

	file, err := kc.Item(testUUID)
	require.NoError(t, err)
	assert.Equal(t, "Bank", file.Title)
	require.NotNil(t, file.OpenContents)
	assert.Equal(t, []string{"finance"}, file.OpenContents.Tags)

	it := file.ToItem()
	assert.Equal(t, testUUID, it.UUID)
	assert.Equal(t, vault.LevelSL5, it.SecurityLevel)
	assert.Equal(t, time.Unix(1699990000, 0).UTC(), it.CreatedAt)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), it.UpdatedAt)

	plaintext, err := crypto.DecryptSalted(masterKey, file.Encrypted)
	require.NoError(t, err)
	var content store.ItemContent
	require.NoError(t, json.Unmarshal(plaintext, &content))
	require.Len(t, content.FormFields, 1)
	assert.Equal(t, "hunter2", content.FormFields[0].Value)
}

func TestItemRejectsBadUUID(t *testing.T) {
	root, _ := writeTestKeychain(t)
	kc, err := Open(root)
	require.NoError(t, err)

	_, err = kc.Item("../../../etc/passwd")
	require.ErrorIs(t, err, ErrBadUUID)
	_, err = kc.Item("not-a-uuid")
	require.ErrorIs(t, err, ErrBadUUID)
}
