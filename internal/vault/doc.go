// Package vault manages the wrapped master keys of a passcards store.
//
// Key entries are persisted unencrypted in the keys namespace; their
// payloads are themselves ciphertext (a master key wrapped under the
// password-derived key), so nothing secret is readable at rest. Unlocking
// derives every entry with PBKDF2, validates each candidate key against
// its validation blob, and hands the results to the KeyAgent atomically.
//
// Item content is encrypted per security level: the vault picks the entry
// matching the level and delegates the actual cipher work to the agent.
package vault
