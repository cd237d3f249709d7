package middleware

import (
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	secret := DeriveSecretKey("test-secret")

	token, err := GenerateToken(secret, "client-1", time.Now())
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	parsed, err := VerifyToken(secret, token)
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if !parsed.Valid {
		t.Error("parsed token is not valid")
	}
}

func TestVerifyTokenRejectsWrongSecret(t *testing.T) {
	token, err := GenerateToken(DeriveSecretKey("right"), "client-1", time.Now())
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	if _, err := VerifyToken(DeriveSecretKey("wrong"), token); err == nil {
		t.Error("VerifyToken should reject a token signed with another secret")
	}
}

func TestVerifyTokenRejectsExpired(t *testing.T) {
	secret := DeriveSecretKey("test-secret")

	// Issued far enough back that the expiry has passed.
	token, err := GenerateToken(secret, "client-1", time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	if _, err := VerifyToken(secret, token); err == nil {
		t.Error("VerifyToken should reject an expired token")
	}
}

func TestVerifyTokenRejectsGarbage(t *testing.T) {
	if _, err := VerifyToken(DeriveSecretKey("s"), "not.a.token"); err == nil {
		t.Error("VerifyToken should reject malformed input")
	}
}

func TestDeriveSecretKeyStable(t *testing.T) {
	if DeriveSecretKey("abc") != DeriveSecretKey("abc") {
		t.Error("derivation must be stable for the same input")
	}
	if DeriveSecretKey("abc") == DeriveSecretKey("abd") {
		t.Error("different inputs should derive different keys")
	}
}
