package auth

import (
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"trivia-night-service/internal/domain"
)

func TestNewRequiresSecretAndPassword(t *testing.T) {
	var cfgErr *domain.ConfigurationError
	if _, err := New(Config{Password: "pw"}); !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError without secret, got %v", err)
	}
	if _, err := New(Config{Secret: "s"}); !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError without password, got %v", err)
	}
	if _, err := New(Config{Secret: "s", PasswordHash: "plain"}); !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError for non-bcrypt hash, got %v", err)
	}
}

func TestSignInOutLifecycle(t *testing.T) {
	now := time.Date(2026, 10, 15, 20, 0, 0, 0, time.UTC)
	hash, err := bcrypt.GenerateFromPassword([]byte("quizmaster"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	a, err := NewWithClock(Config{PasswordHash: string(hash), Secret: "secret", TokenTTL: time.Hour}, func() time.Time { return now })
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	changes, cancel := a.Subscribe()
	defer cancel()

	if _, err := a.SignIn("wrong"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	token, err := a.SignIn("quizmaster")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if !a.Authenticated(token) {
		t.Fatalf("expected fresh token to authenticate")
	}
	if signedIn := <-changes; !signedIn {
		t.Fatalf("expected sign-in notification")
	}

	other, _ := a.SignIn("quizmaster")
	<-changes
	a.SignOut(token)
	if a.Authenticated(token) {
		t.Fatalf("expected revoked token to be rejected")
	}
	if signedIn := <-changes; signedIn {
		t.Fatalf("expected sign-out notification")
	}
	if !a.Authenticated(other) {
		t.Fatalf("expected other session to survive")
	}

	now = now.Add(2 * time.Hour)
	if a.Authenticated(other) {
		t.Fatalf("expected expired token to be rejected")
	}
	if a.Authenticated("") || a.Authenticated("not.a.jwt") {
		t.Fatalf("expected garbage tokens to be rejected")
	}
}

func TestTokensFromAnotherSecretAreRejected(t *testing.T) {
	a, _ := New(Config{Password: "pw", Secret: "one"})
	b, _ := New(Config{Password: "pw", Secret: "two"})
	token, err := a.SignIn("pw")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if b.Authenticated(token) {
		t.Fatalf("expected foreign token to be rejected")
	}
}
