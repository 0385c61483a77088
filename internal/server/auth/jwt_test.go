package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/aimathteacher/backend/internal/common"
)

func TestGenerateAndParse_Access(t *testing.T) {
	t.Parallel()

	secret := []byte("super-secret")

	tok, err := GenerateAccessToken(42, "x@y.com", secret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateAccessToken error: %v", err)
	}

	claims, err := ParseToken(tok, secret)
	if err != nil {
		t.Fatalf("ParseToken error: %v", err)
	}
	id, err := claims.UserID()
	if err != nil {
		t.Fatalf("UserID error: %v", err)
	}
	if id != 42 {
		t.Fatalf("userID mismatch: got %d want 42", id)
	}
	if claims.Email != "x@y.com" {
		t.Fatalf("email mismatch: got %q", claims.Email)
	}
	if claims.TokenType != TokenTypeAccess {
		t.Fatalf("token type mismatch: got %q", claims.TokenType)
	}
}

func TestGenerateRefreshToken_Type(t *testing.T) {
	t.Parallel()

	secret := []byte("k")
	tok, err := GenerateRefreshToken(7, secret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateRefreshToken error: %v", err)
	}

	claims, err := ParseToken(tok, secret)
	if err != nil {
		t.Fatalf("ParseToken error: %v", err)
	}
	if claims.TokenType != TokenTypeRefresh {
		t.Fatalf("expected refresh type, got %q", claims.TokenType)
	}
	if claims.Email != "" {
		t.Fatalf("refresh token must not carry email, got %q", claims.Email)
	}
}

func TestParseToken_Expired(t *testing.T) {
	t.Parallel()

	secret := []byte("secret")
	tok, err := GenerateAccessToken(1, "", secret, -1*time.Second)
	if err != nil {
		t.Fatalf("GenerateAccessToken error: %v", err)
	}

	_, err = ParseToken(tok, secret)
	if !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected common.ErrInvalidToken for expired token, got %v", err)
	}
}

func TestParseToken_WrongSecret(t *testing.T) {
	t.Parallel()

	tok, err := GenerateAccessToken(2, "", []byte("right-secret"), time.Hour)
	if err != nil {
		t.Fatalf("GenerateAccessToken error: %v", err)
	}

	if _, err = ParseToken(tok, []byte("wrong-secret")); err == nil {
		t.Fatalf("expected error for invalid signature, got nil")
	}
}

func TestParseToken_MalformedString(t *testing.T) {
	t.Parallel()

	if _, err := ParseToken("not.a.jwt", []byte("k")); err == nil {
		t.Fatalf("expected error for malformed token, got nil")
	}
}

func TestPassword_HashAndCheck(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("hunter22")
	if err != nil {
		t.Fatalf("HashPassword error: %v", err)
	}
	if !CheckPassword(hash, "hunter22") {
		t.Fatalf("correct password rejected")
	}
	if CheckPassword(hash, "hunter23") {
		t.Fatalf("wrong password accepted")
	}
	if CheckPassword("", "hunter22") {
		t.Fatalf("empty hash must never match")
	}
}

func TestValidatePassword_Bounds(t *testing.T) {
	t.Parallel()

	if err := ValidatePassword("short"); err == nil {
		t.Fatalf("5-char password must be rejected")
	}
	if err := ValidatePassword("longen"); err != nil {
		t.Fatalf("6-char password must be accepted: %v", err)
	}
}
