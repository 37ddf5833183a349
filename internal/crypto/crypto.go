package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	SaltSize     = 8    // OpenSSL envelope salt size in bytes
	KeySize      = 16   // AES-128 key size
	IVSize       = 16   // AES-CBC IV size
	DerivedSize  = 32   // PBKDF2 output: 16-byte key followed by 16-byte IV
	MasterKeyLen = 1024 // Raw master key length in the legacy keychain format
)

// saltMagic prefixes every salted ciphertext, as written by OpenSSL's
// `enc` tool and by the legacy keychain format this package must match.
var saltMagic = []byte("Salted__")

var (
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
	ErrBadPadding        = errors.New("bad padding")
)

// KDF derives an AES key and IV from a master password.
type KDF struct {
	Salt       []byte
	Iterations int
}

// DeriveKeyIV derives a 32-byte value via PBKDF2-HMAC-SHA1 and splits it
// into an AES-128 key and a CBC IV. SHA1 is fixed by the legacy key-wrap
// scheme and cannot be upgraded without breaking existing vaults.
func (k *KDF) DeriveKeyIV(password []byte) (key, iv []byte) {
	derived := pbkdf2.Key(password, k.Salt, k.Iterations, DerivedSize, sha1.New)
	return derived[:KeySize], derived[KeySize:]
}

// DeriveSaltedKeyIV derives a key/IV pair from a secret and salt using the
// OpenSSL EVP_BytesToKey construction with MD5 and two rounds:
//
//	d1 = MD5(secret || salt)
//	d2 = MD5(d1 || secret || salt)
//
// d1 is the key, d2 the IV. This is the derivation the legacy format uses
// for everything encrypted under an unlocked master key.
func DeriveSaltedKeyIV(secret, salt []byte) (key, iv []byte) {
	h := md5.New()
	h.Write(secret)
	h.Write(salt)
	d1 := h.Sum(nil)

	h.Reset()
	h.Write(d1)
	h.Write(secret)
	h.Write(salt)
	d2 := h.Sum(nil)

	return d1, d2
}

// EncryptCBC encrypts plaintext with AES-CBC and PKCS#7 padding.
func EncryptCBC(key, iv, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	padded := pkcs7Pad(plaintext, block.BlockSize())
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)
	return ciphertext, nil
}

// DecryptCBC decrypts AES-CBC ciphertext and strips PKCS#7 padding.
func DecryptCBC(key, iv, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	if len(ciphertext) == 0 || len(ciphertext)%block.BlockSize() != 0 {
		return nil, ErrInvalidCiphertext
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)
	return pkcs7Unpad(plaintext, block.BlockSize())
}

// ParseEnvelope splits a salted ciphertext into its salt and payload.
// Data without the Salted__ prefix is treated as unsalted, matching the
// legacy reader's behavior for very old entries.
func ParseEnvelope(data []byte) (salt, ciphertext []byte, err error) {
	if bytes.HasPrefix(data, saltMagic) {
		if len(data) < len(saltMagic)+SaltSize {
			return nil, nil, ErrInvalidCiphertext
		}
		return data[len(saltMagic) : len(saltMagic)+SaltSize], data[len(saltMagic)+SaltSize:], nil
	}
	return nil, data, nil
}

// SealEnvelope prepends the Salted__ magic and salt to a ciphertext.
func SealEnvelope(salt, ciphertext []byte) []byte {
	out := make([]byte, 0, len(saltMagic)+len(salt)+len(ciphertext))
	out = append(out, saltMagic...)
	out = append(out, salt...)
	return append(out, ciphertext...)
}

// EncryptSalted encrypts plaintext under a secret with a fresh random
// envelope salt and the salted key/IV derivation.
func EncryptSalted(secret, plaintext []byte) ([]byte, error) {
	salt, err := GenerateRandom(SaltSize)
	if err != nil {
		return nil, err
	}

	key, iv := DeriveSaltedKeyIV(secret, salt)
	ciphertext, err := EncryptCBC(key, iv, plaintext)
	if err != nil {
		return nil, err
	}
	return SealEnvelope(salt, ciphertext), nil
}

// DecryptSalted reverses EncryptSalted using the salt embedded in the
// ciphertext envelope.
func DecryptSalted(secret, data []byte) ([]byte, error) {
	salt, ciphertext, err := ParseEnvelope(data)
	if err != nil {
		return nil, err
	}
	key, iv := DeriveSaltedKeyIV(secret, salt)
	return DecryptCBC(key, iv, ciphertext)
}

// pkcs7Pad pads data to a multiple of blockSize.
func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(append([]byte(nil), data...), bytes.Repeat([]byte{byte(n)}, n)...)
}

// pkcs7Unpad strips and verifies PKCS#7 padding.
func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, ErrBadPadding
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, ErrBadPadding
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, ErrBadPadding
		}
	}
	return data[:len(data)-n], nil
}

// ClearBytes securely clears a byte slice
func ClearBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// ConstantTimeCompare performs a constant-time comparison of two byte slices
func ConstantTimeCompare(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

// GenerateRandom generates n random bytes
func GenerateRandom(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return b, nil
}
