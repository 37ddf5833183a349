package agent

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/Kryndex/passcards/internal/crypto"
)

// AlgoAES128OpenSSL is the one algorithm the legacy format uses: a fresh
// random envelope salt, the salted key/IV derivation, then AES-128-CBC.
const AlgoAES128OpenSSL = "aes-128-openssl"

var (
	ErrNoSuchKey            = errors.New("no such key")
	ErrUnsupportedAlgorithm = errors.New("unsupported algorithm")
)

// CryptoParams selects the scheme used for a single encrypt or decrypt
// call. Unrecognized algorithms are rejected, never silently defaulted.
type CryptoParams struct {
	Algo string
}

// KeyAgent holds unlocked decryption keys in memory and performs all
// encryption and decryption once a vault is unlocked. Keys never leave
// the agent; callers reference them by id.
type KeyAgent struct {
	mu        sync.Mutex
	keys      map[string][]byte
	listeners []func(locked bool)
	log       *zap.Logger
}

// NewKeyAgent creates an empty, locked agent.
func NewKeyAgent(log *zap.Logger) *KeyAgent {
	if log == nil {
		log = zap.NewNop()
	}
	return &KeyAgent{
		keys: make(map[string][]byte),
		log:  log,
	}
}

// AddKey registers a decrypted key under id. Re-adding an existing id is
// a no-op. The agent keeps its own copy of the key bytes.
func (a *KeyAgent) AddKey(id string, key []byte) {
	a.mu.Lock()
	if _, ok := a.keys[id]; ok {
		a.mu.Unlock()
		return
	}
	wasLocked := len(a.keys) == 0
	a.keys[id] = append([]byte(nil), key...)
	listeners := a.snapshotListeners()
	a.mu.Unlock()

	a.log.Debug("key registered", zap.String("id", id))
	if wasLocked {
		notify(listeners, false)
	}
}

// ListKeys returns the ids of all held keys, sorted.
func (a *KeyAgent) ListKeys() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	ids := make([]string, 0, len(a.keys))
	for id := range a.keys {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ForgetKeys wipes every key from memory and transitions the agent to
// locked, notifying lock-state listeners.
func (a *KeyAgent) ForgetKeys() {
	a.mu.Lock()
	hadKeys := len(a.keys) > 0
	for id, key := range a.keys {
		crypto.ClearBytes(key)
		delete(a.keys, id)
	}
	listeners := a.snapshotListeners()
	a.mu.Unlock()

	a.log.Debug("keys forgotten")
	if hadKeys {
		notify(listeners, true)
	}
}

// OnLockChanged registers a listener invoked synchronously, in
// registration order, whenever the agent transitions between locked and
// unlocked.
func (a *KeyAgent) OnLockChanged(fn func(locked bool)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listeners = append(a.listeners, fn)
}

// Encrypt encrypts data under the key registered as id.
func (a *KeyAgent) Encrypt(ctx context.Context, id string, data []byte, params CryptoParams) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key, err := a.lookup(id)
	if err != nil {
		return nil, err
	}
	if params.Algo != AlgoAES128OpenSSL {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, params.Algo)
	}
	return crypto.EncryptSalted(key, data)
}

// Decrypt decrypts data previously encrypted under the key registered as
// id, using the salt embedded in the ciphertext envelope.
func (a *KeyAgent) Decrypt(ctx context.Context, id string, data []byte, params CryptoParams) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key, err := a.lookup(id)
	if err != nil {
		return nil, err
	}
	if params.Algo != AlgoAES128OpenSSL {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, params.Algo)
	}
	return crypto.DecryptSalted(key, data)
}

func (a *KeyAgent) lookup(id string) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	key, ok := a.keys[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoSuchKey, id)
	}
	// Copy so a concurrent ForgetKeys cannot zero bytes mid-operation.
	return append([]byte(nil), key...), nil
}

func (a *KeyAgent) snapshotListeners() []func(locked bool) {
	return append([]func(locked bool){}, a.listeners...)
}

func notify(listeners []func(locked bool), locked bool) {
	for _, fn := range listeners {
		fn(locked)
	}
}
