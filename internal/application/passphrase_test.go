package application

import (
	"errors"
	"testing"
)

var testArgon2idParams = Argon2idParams{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16}

func TestPassphraseHashRoundTrip(t *testing.T) {
	t.Parallel()

	hash, err := CreatePassphraseHash("open sesame", testArgon2idParams)
	if err != nil {
		t.Fatalf("CreatePassphraseHash returned error: %v", err)
	}
	if err := VerifyPassphrase(hash, "open sesame"); err != nil {
		t.Fatalf("expected passphrase to verify, got %v", err)
	}
	if err := VerifyPassphrase(hash, "open barley"); !errors.Is(err, ErrInvalidPassphrase) {
		t.Fatalf("expected ErrInvalidPassphrase, got %v", err)
	}
	if err := VerifyPassphrase("plain", "open sesame"); !errors.Is(err, ErrInvalidPassphraseHash) {
		t.Fatalf("expected ErrInvalidPassphraseHash, got %v", err)
	}
}

func TestAdminGate(t *testing.T) {
	t.Parallel()

	hash, err := CreatePassphraseHash("octavian", testArgon2idParams)
	if err != nil {
		t.Fatalf("CreatePassphraseHash returned error: %v", err)
	}
	gate := NewAdminGate(hash)

	if err := gate.Check("octavian"); err != nil {
		t.Fatalf("expected gate to open, got %v", err)
	}
	if err := gate.Check("augustus"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := gate.Check(""); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for empty passphrase, got %v", err)
	}
	if err := NewAdminGate("").Check("octavian"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unconfigured gate to stay closed, got %v", err)
	}
}
