// Package crypto provides the legacy-compatible primitives for passcards.
//
// Two derivations coexist:
//   - PBKDF2-HMAC-SHA1 turns the master password into the key/IV pair that
//     unwraps a vault's raw master key (KDF.DeriveKeyIV).
//   - The OpenSSL EVP_BytesToKey MD5 construction turns an unwrapped master
//     key plus a per-message salt into the key/IV pair for item data
//     (DeriveSaltedKeyIV).
//
// All payloads use AES-128-CBC with PKCS#7 padding inside the OpenSSL
// "Salted__" envelope. None of this is modern cryptography; it is fixed
// byte-for-byte by the keychain format existing vaults are written in.
package crypto
