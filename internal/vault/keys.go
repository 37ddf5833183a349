package vault

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/Kryndex/passcards/internal/crypto"
)

// Security levels used by the legacy keychain format. Items only ever
// reference SL5; SL3 entries are a remnant duplicate of the master key at
// a lower tier and are skipped at vault load.
const (
	LevelSL3 = "SL3"
	LevelSL5 = "SL5"
)

// EncryptionKeyEntry is a wrapped master key as persisted in the keys
// namespace. Data holds the key encrypted under the password-derived
// key inside a Salted__ envelope; Validation holds the key encrypted
// under itself, used to verify a derivation attempt.
type EncryptionKeyEntry struct {
	Identifier string `json:"identifier"`
	Level      string `json:"level"`
	Data       []byte `json:"data"`
	Validation []byte `json:"validation"`
	Iterations int    `json:"iterations"`
}

// DeriveAndValidate unwraps an entry's master key with the given password
// and verifies it against the validation blob. A wrong password and a
// tampered entry are indistinguishable; both fail with ErrKeyValidation.
func DeriveAndValidate(password []byte, entry EncryptionKeyEntry) ([]byte, error) {
	salt, wrapped, err := crypto.ParseEnvelope(entry.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyValidation, err)
	}

	kdf := crypto.KDF{Salt: salt, Iterations: entry.Iterations}
	key, iv := kdf.DeriveKeyIV(password)

	candidate, err := crypto.DecryptCBC(key, iv, wrapped)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyValidation, err)
	}

	// The validation blob is the raw key encrypted under itself with the
	// salted derivation. Decrypting it with the candidate must yield the
	// candidate back.
	check, err := crypto.DecryptSalted(candidate, entry.Validation)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyValidation, err)
	}
	if !bytes.Equal(check, candidate) {
		crypto.ClearBytes(candidate)
		crypto.ClearBytes(check)
		return nil, ErrKeyValidation
	}
	crypto.ClearBytes(check)

	return candidate, nil
}

// NewKeyEntry generates a fresh random master key and wraps it under the
// password, producing an entry that DeriveAndValidate accepts. Used when
// initializing a new vault.
func NewKeyEntry(password []byte, level string, iterations int) (EncryptionKeyEntry, error) {
	rawKey, err := crypto.GenerateRandom(crypto.MasterKeyLen)
	if err != nil {
		return EncryptionKeyEntry{}, err
	}
	defer crypto.ClearBytes(rawKey)

	salt, err := crypto.GenerateRandom(crypto.SaltSize)
	if err != nil {
		return EncryptionKeyEntry{}, err
	}

	kdf := crypto.KDF{Salt: salt, Iterations: iterations}
	key, iv := kdf.DeriveKeyIV(password)

	wrapped, err := crypto.EncryptCBC(key, iv, rawKey)
	if err != nil {
		return EncryptionKeyEntry{}, err
	}

	validation, err := crypto.EncryptSalted(rawKey, rawKey)
	if err != nil {
		return EncryptionKeyEntry{}, err
	}

	id, err := crypto.GenerateRandom(16)
	if err != nil {
		return EncryptionKeyEntry{}, err
	}

	return EncryptionKeyEntry{
		Identifier: strings.ToUpper(hex.EncodeToString(id)),
		Level:      level,
		Data:       crypto.SealEnvelope(salt, wrapped),
		Validation: validation,
		Iterations: iterations,
	}, nil
}
