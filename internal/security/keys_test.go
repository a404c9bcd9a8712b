package security

import (
	"crypto/rsa"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestParsePrivateKey_Inline(t *testing.T) {
	key, err := ParsePrivateKey(testPrivateKeyPEM)
	if err != nil {
		t.Fatalf("ParsePrivateKey: %v", err)
	}
	if _, ok := key.Public().(*rsa.PublicKey); !ok {
		t.Errorf("public key type = %T, want *rsa.PublicKey", key.Public())
	}
}

func TestParsePublicKey_Inline(t *testing.T) {
	pub, err := ParsePublicKey(testPublicKeyPEM)
	if err != nil {
		t.Fatalf("ParsePublicKey: %v", err)
	}
	if KeyAlg(pub) != "RS256" {
		t.Errorf("KeyAlg = %q, want RS256", KeyAlg(pub))
	}
}

func TestParsePrivateKey_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key.pem")
	if err := os.WriteFile(path, []byte(testPrivateKeyPEM), 0o600); err != nil {
		t.Fatalf("write key file: %v", err)
	}
	if _, err := ParsePrivateKey(path); err != nil {
		t.Errorf("ParsePrivateKey from file: %v", err)
	}
}

func TestParseKeys_Invalid(t *testing.T) {
	if _, err := ParsePrivateKey(""); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("empty input: want ErrInvalidKey, got %v", err)
	}
	if _, err := ParsePrivateKey("-----BEGIN GARBAGE-----\nabc\n-----END GARBAGE-----"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("unknown block type: want ErrInvalidKey, got %v", err)
	}
	if _, err := ParsePublicKey(testPrivateKeyPEM); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("private PEM as public key: want ErrInvalidKey, got %v", err)
	}
}
