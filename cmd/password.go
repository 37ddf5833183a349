package cmd

import (
	"fmt"
	"os"
	"syscall"

	"golang.org/x/term"

	"github.com/Kryndex/passcards/internal/crypto"
)

// readPassword reads a password from the terminal without echoing.
func readPassword(prompt string) ([]byte, error) {
	fmt.Print(prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}
	return password, nil
}

// readPasswordConfirm reads a password twice and ensures they match.
func readPasswordConfirm() ([]byte, error) {
	password1, err := readPassword("Enter master password: ")
	if err != nil {
		return nil, err
	}
	defer crypto.ClearBytes(password1)

	password2, err := readPassword("Confirm master password: ")
	if err != nil {
		return nil, err
	}
	defer crypto.ClearBytes(password2)

	if !crypto.ConstantTimeCompare(password1, password2) {
		return nil, fmt.Errorf("passwords do not match")
	}

	result := make([]byte, len(password1))
	copy(result, password1)
	return result, nil
}

// getPasswordFromEnv reads the PASSCARDS_PASSWORD environment variable.
func getPasswordFromEnv() []byte {
	password := os.Getenv("PASSCARDS_PASSWORD")
	if password == "" {
		return nil
	}
	// Copy so ClearBytes on the result cannot touch the env value.
	result := make([]byte, len(password))
	copy(result, password)
	return result
}

// getPasswordForInit checks the environment first, then prompts with
// confirmation.
func getPasswordForInit() ([]byte, error) {
	if password := getPasswordFromEnv(); password != nil {
		return password, nil
	}
	return readPasswordConfirm()
}
