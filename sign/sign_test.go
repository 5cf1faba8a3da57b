package sign_test

import (
	"errors"
	"testing"

	"github.com/medwire/medwire-go/sign"
)

func TestSign_Deterministic(t *testing.T) {
	a, err := sign.Sign([]byte("payload"), []byte("key"))
	if err != nil {
		t.Fatalf("Sign() error: %v", err)
	}
	b, err := sign.Sign([]byte("payload"), []byte("key"))
	if err != nil {
		t.Fatalf("Sign() error: %v", err)
	}
	if a != b {
		t.Errorf("Sign() not deterministic: %v != %v", a, b)
	}
	if a.Algorithm != sign.HMACAlgorithm {
		t.Errorf("Algorithm = %q, want %q", a.Algorithm, sign.HMACAlgorithm)
	}
	if a.Value == "" {
		t.Error("Value should not be empty")
	}
}

func TestSign_KeySensitive(t *testing.T) {
	a, _ := sign.Sign([]byte("payload"), []byte("key-one"))
	b, _ := sign.Sign([]byte("payload"), []byte("key-two"))
	if a.Value == b.Value {
		t.Error("different keys must produce different digests")
	}
}

func TestSign_EmptyKey(t *testing.T) {
	_, err := sign.Sign([]byte("payload"), nil)
	if !errors.Is(err, sign.ErrEmptyKey) {
		t.Errorf("Sign() with empty key: err = %v, want ErrEmptyKey", err)
	}
}

func TestSign_KnownVector(t *testing.T) {
	// RFC 4231 test case 2: key "Jefe", data "what do ya want for nothing?".
	a, err := sign.Sign([]byte("what do ya want for nothing?"), []byte("Jefe"))
	if err != nil {
		t.Fatalf("Sign() error: %v", err)
	}
	const want = "W9zBRr9gdU5qBCQmCJV1x1oAPwidJzmDnexYuWTsOEM="
	if a.Value != want {
		t.Errorf("Sign() = %q, want %q", a.Value, want)
	}
}

func TestHash_Deterministic(t *testing.T) {
	a := sign.Hash([]byte("payload"))
	b := sign.Hash([]byte("payload"))
	if a != b {
		t.Errorf("Hash() not deterministic: %v != %v", a, b)
	}
	if a.Algorithm != sign.HashAlgorithm {
		t.Errorf("Algorithm = %q, want %q", a.Algorithm, sign.HashAlgorithm)
	}
}

func TestHash_EmptyPayload(t *testing.T) {
	// SHA-256 of the empty string.
	const want = "47DEQpj8HBSa+/TImW+5JCeuQeRkm5NMpJWZG3hSuFU="
	if got := sign.Hash(nil).Value; got != want {
		t.Errorf("Hash(nil) = %q, want %q", got, want)
	}
}
