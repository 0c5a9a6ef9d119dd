// Package auth guards the host and editor surfaces with a shared password
// and short-lived signed session tokens.
package auth

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"trivia-night-service/internal/domain"
)

const hostSubject = "host"

// Config holds the host credentials. PasswordHash wins over Password.
type Config struct {
	Password     string
	PasswordHash string
	Secret       string
	TokenTTL     time.Duration
}

// Authenticator issues and checks host session tokens.
type Authenticator struct {
	hash   []byte
	secret []byte
	ttl    time.Duration
	now    func() time.Time

	mu      sync.Mutex
	revoked map[string]time.Time
	subs    map[chan bool]struct{}
}

// New validates cfg. A missing secret or password is a ConfigurationError.
func New(cfg Config) (*Authenticator, error) {
	return NewWithClock(cfg, time.Now)
}

func NewWithClock(cfg Config, now func() time.Time) (*Authenticator, error) {
	if cfg.Secret == "" {
		return nil, &domain.ConfigurationError{Component: "auth", Reason: "jwt secret is empty"}
	}
	hash := []byte(cfg.PasswordHash)
	switch {
	case len(hash) > 0:
		if _, err := bcrypt.Cost(hash); err != nil {
			return nil, &domain.ConfigurationError{Component: "auth", Reason: "password hash is not bcrypt"}
		}
	case cfg.Password != "":
		var err error
		hash, err = bcrypt.GenerateFromPassword([]byte(cfg.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash host password: %w", err)
		}
	default:
		return nil, &domain.ConfigurationError{Component: "auth", Reason: "host password is empty"}
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Authenticator{
		hash:    hash,
		secret:  []byte(cfg.Secret),
		ttl:     ttl,
		now:     now,
		revoked: make(map[string]time.Time),
		subs:    make(map[chan bool]struct{}),
	}, nil
}

type hostClaims struct {
	jwt.RegisteredClaims
}

// SignIn checks the password and returns a signed session token.
func (a *Authenticator) SignIn(password string) (string, error) {
	if err := bcrypt.CompareHashAndPassword(a.hash, []byte(password)); err != nil {
		return "", domain.ErrUnauthorized
	}
	now := a.now()
	claims := hostClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   hostSubject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	a.notify(true)
	return token, nil
}

// SignOut revokes token. Unknown or expired tokens are ignored.
func (a *Authenticator) SignOut(token string) {
	claims, err := a.parse(token)
	if err != nil {
		return
	}
	a.mu.Lock()
	a.revoked[claims.ID] = claims.ExpiresAt.Time
	a.pruneLocked()
	a.mu.Unlock()
	a.notify(false)
}

// Authenticated reports whether token is a live host session.
func (a *Authenticator) Authenticated(token string) bool {
	claims, err := a.parse(token)
	if err != nil {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	_, revoked := a.revoked[claims.ID]
	return !revoked
}

// Subscribe delivers true on every sign-in and false on every sign-out.
// Slow subscribers miss notifications rather than block.
func (a *Authenticator) Subscribe() (<-chan bool, func()) {
	ch := make(chan bool, 4)
	a.mu.Lock()
	a.subs[ch] = struct{}{}
	a.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			a.mu.Lock()
			delete(a.subs, ch)
			a.mu.Unlock()
			close(ch)
		})
	}
}

func (a *Authenticator) parse(raw string) (*hostClaims, error) {
	if raw == "" {
		return nil, domain.ErrUnauthorized
	}
	claims := &hostClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithoutClaimsValidation())
	if err != nil || !token.Valid {
		return nil, errors.Join(domain.ErrUnauthorized, err)
	}
	if claims.Subject != hostSubject || claims.ID == "" || !claims.VerifyExpiresAt(a.now(), true) {
		return nil, domain.ErrUnauthorized
	}
	return claims, nil
}

func (a *Authenticator) pruneLocked() {
	now := a.now()
	for id, exp := range a.revoked {
		if now.After(exp) {
			delete(a.revoked, id)
		}
	}
}

func (a *Authenticator) notify(signedIn bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for ch := range a.subs {
		select {
		case ch <- signedIn:
		default:
		}
	}
}
