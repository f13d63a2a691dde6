package auth

import (
	"errors"
	"testing"
)

func TestToken_KnownVectors(t *testing.T) {
	tests := []struct {
		roomID, userID, secret string
		want                   string
	}{
		{"r1", "u1", "s", "93029c2c67944d8fb75b50f714022624"},
		{"lobby", "alice", "hunter2", "57538fb49a20daa1ef6afaf7bbff97cd"},
		{"room-9", "user-3", "secret", "1b43a09700a792109d8fc22343b1c5a6"},
	}
	for _, tt := range tests {
		if got := Token(tt.roomID, tt.userID, tt.secret); got != tt.want {
			t.Fatalf("Token(%q,%q,%q)=%q, want %q", tt.roomID, tt.userID, tt.secret, got, tt.want)
		}
	}
}

func TestValidate_NoSecretSkipsAuth(t *testing.T) {
	if err := Validate("r1", "u1", "", ""); err != nil {
		t.Fatalf("expected accept without secret, got %v", err)
	}
	if err := Validate("r1", "u1", "garbage", ""); err != nil {
		t.Fatalf("expected accept of any token without secret, got %v", err)
	}
}

func TestValidate_MissingToken(t *testing.T) {
	if err := Validate("r1", "u1", "", "s"); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
}

func TestValidate_TokenMatch(t *testing.T) {
	if err := Validate("r1", "u1", Token("r1", "u1", "s"), "s"); err != nil {
		t.Fatalf("expected valid token to pass, got %v", err)
	}
}

func TestValidate_TokenMismatch(t *testing.T) {
	if err := Validate("r1", "u1", "93029c2c67944d8fb75b50f714022625", "s"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	// Case must match exactly; hex digests are lowercase.
	if err := Validate("r1", "u1", "93029C2C67944D8FB75B50F714022624", "s"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected uppercase token to be rejected, got %v", err)
	}
	// Token minted for a different room must not transfer.
	if err := Validate("r2", "u1", Token("r1", "u1", "s"), "s"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected cross-room token to be rejected, got %v", err)
	}
}
