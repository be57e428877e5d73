package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

// OwnerSubject is the subject of every admin token.
const OwnerSubject = "admin"

var (
	// ErrInvalidToken indicates a missing, malformed, forged or expired token.
	ErrInvalidToken = errors.New("invalid token")
	// ErrInvalidPassword indicates the supplied password is wrong.
	ErrInvalidPassword = errors.New("invalid password")
)

// Session describes an authenticated admin request.
type Session struct {
	Subject   string
	TokenID   string
	ExpiresAt time.Time
}

// TokenManager issues and verifies HS256 tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager returns a manager signing with secret.
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue returns a signed token for the owner and its expiry.
func (m *TokenManager) Issue() (string, time.Time, error) {
	now := m.now()
	expiresAt := now.Add(m.ttl)

	claims := jwt.RegisteredClaims{
		Subject:   OwnerSubject,
		ID:        ulid.Make().String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify parses token and returns its session.
func (m *TokenManager) Verify(token string) (*Session, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (interface{}, error) {
			return m.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithSubject(OwnerSubject),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	return &Session{
		Subject:   claims.Subject,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Authenticator checks the owner password and hands out tokens.
type Authenticator struct {
	passwordHash string
	tokens       *TokenManager
}

// NewAuthenticator accepts the admin password either as plaintext, which is
// hashed once so it is not kept, or as an argon2id PHC hash.
func NewAuthenticator(password string, tokens *TokenManager) (*Authenticator, error) {
	if IsEncodedHash(password) {
		if _, _, _, err := decodeHash(password); err != nil {
			return nil, fmt.Errorf("admin password hash: %w", err)
		}
		return &Authenticator{passwordHash: password, tokens: tokens}, nil
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash admin password: %w", err)
	}
	return &Authenticator{passwordHash: hash, tokens: tokens}, nil
}

// Login returns a token when password matches.
func (a *Authenticator) Login(password string) (string, time.Time, error) {
	ok, err := VerifyPassword(password, a.passwordHash)
	if err != nil {
		return "", time.Time{}, err
	}
	if !ok {
		return "", time.Time{}, ErrInvalidPassword
	}
	return a.tokens.Issue()
}

// Verify validates a bearer token.
func (a *Authenticator) Verify(token string) (*Session, error) {
	return a.tokens.Verify(token)
}
