// Package keyring stores vault master passwords in the OS keyring,
// keyed by vault id so multiple vaults on one machine do not collide.
package keyring

import (
	"github.com/zalando/go-keyring"
)

const serviceName = "passcards"

// SavePassword stores the master password for a vault.
func SavePassword(vaultID string, password string) error {
	return keyring.Set(serviceName, vaultID, password)
}

// GetPassword retrieves the stored master password for a vault.
func GetPassword(vaultID string) (string, error) {
	return keyring.Get(serviceName, vaultID)
}

// DeletePassword removes the stored master password for a vault.
func DeletePassword(vaultID string) error {
	return keyring.Delete(serviceName, vaultID)
}

// HasPassword reports whether a password is stored for a vault.
func HasPassword(vaultID string) bool {
	_, err := keyring.Get(serviceName, vaultID)
	return err == nil
}
