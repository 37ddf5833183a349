package agent

import (
	"context"
	"errors"
	"testing"
)

func TestAddListForget(t *testing.T) {
	a := NewKeyAgent(nil)

	if ids := a.ListKeys(); len(ids) != 0 {
		t.Fatalf("new agent should hold no keys, got %v", ids)
	}

	a.AddKey("KEY2", []byte("second"))
	a.AddKey("KEY1", []byte("first"))
	a.AddKey("KEY1", []byte("overwrite attempt"))

	ids := a.ListKeys()
	if len(ids) != 2 || ids[0] != "KEY1" || ids[1] != "KEY2" {
		t.Errorf("unexpected key ids: %v", ids)
	}

	// Idempotent insert kept the original key material.
	ct, err := a.Encrypt(context.Background(), "KEY1", []byte("m"), CryptoParams{Algo: AlgoAES128OpenSSL})
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	pt, err := a.Decrypt(context.Background(), "KEY1", ct, CryptoParams{Algo: AlgoAES128OpenSSL})
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if string(pt) != "m" {
		t.Errorf("round trip mismatch: got %q", pt)
	}

	a.ForgetKeys()
	if ids := a.ListKeys(); len(ids) != 0 {
		t.Errorf("agent should be empty after ForgetKeys, got %v", ids)
	}
}

func TestEncryptUnknownKey(t *testing.T) {
	a := NewKeyAgent(nil)
	_, err := a.Encrypt(context.Background(), "nope", []byte("m"), CryptoParams{Algo: AlgoAES128OpenSSL})
	if !errors.Is(err, ErrNoSuchKey) {
		t.Errorf("expected ErrNoSuchKey, got %v", err)
	}
}

func TestUnsupportedAlgorithm(t *testing.T) {
	a := NewKeyAgent(nil)
	a.AddKey("k", []byte("key"))

	_, err := a.Encrypt(context.Background(), "k", []byte("m"), CryptoParams{Algo: "rot13"})
	if !errors.Is(err, ErrUnsupportedAlgorithm) {
		t.Errorf("expected ErrUnsupportedAlgorithm, got %v", err)
	}
	_, err = a.Decrypt(context.Background(), "k", []byte("m"), CryptoParams{})
	if !errors.Is(err, ErrUnsupportedAlgorithm) {
		t.Errorf("expected ErrUnsupportedAlgorithm, got %v", err)
	}
}

func TestLockStateEvents(t *testing.T) {
	a := NewKeyAgent(nil)

	var events []bool
	a.OnLockChanged(func(locked bool) { events = append(events, locked) })

	a.AddKey("k1", []byte("x"))
	a.AddKey("k2", []byte("y")) // no transition, already unlocked
	a.ForgetKeys()
	a.ForgetKeys() // no transition, already locked

	if len(events) != 2 || events[0] != false || events[1] != true {
		t.Errorf("unexpected lock events: %v", events)
	}
}
