// Package agilekeychain reads the legacy file-backed vault format so
// existing vaults can be imported into the local store.
//
// The layout under the vault root is:
//
//	data/default/encryptionKeys.js   master key entries, base64 payloads
//	data/default/contents.js         item overview tuples
//	data/default/<uuid>.1password    one file per item
//
// The package only parses; decryption of item payloads happens against
// the key agent once the master keys are registered.
package agilekeychain
