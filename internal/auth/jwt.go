// Package auth turns bearer tokens into core principals.
//
// Tokens are HS256 JWTs. The subject carries the numeric user id and a
// custom "role" claim carries farmer or officer. Tokens must carry an expiry
// and the configured issuer.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/JonMunkholm/agrorecords/internal/core"
)

// Authenticator resolves a raw bearer token to a principal.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (core.Principal, error)
}

// Claims is the token payload.
type Claims struct {
	Role core.Role `json:"role"`
	jwt.RegisteredClaims
}

// JWT signs and verifies HS256 tokens with a shared secret.
type JWT struct {
	secret []byte
	issuer string
	now    func() time.Time
}

var _ Authenticator = (*JWT)(nil)

// NewJWT returns a JWT authenticator.
func NewJWT(secret, issuer string) *JWT {
	return &JWT{secret: []byte(secret), issuer: issuer, now: time.Now}
}

// Authenticate verifies token and returns its principal. Every failure wraps
// core.ErrUnauthenticated.
func (j *JWT) Authenticate(_ context.Context, token string) (core.Principal, error) {
	if token == "" {
		return core.Principal{}, fmt.Errorf("missing bearer token: %w", core.ErrUnauthenticated)
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return j.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return core.Principal{}, fmt.Errorf("verify token: %v: %w", err, core.ErrUnauthenticated)
	}

	if claims.ExpiresAt == nil {
		return core.Principal{}, fmt.Errorf("token has no expiry: %w", core.ErrUnauthenticated)
	}
	if !claims.VerifyIssuer(j.issuer, true) {
		return core.Principal{}, fmt.Errorf("token issuer %q: %w", claims.Issuer, core.ErrUnauthenticated)
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return core.Principal{}, fmt.Errorf("token subject %q: %w", claims.Subject, core.ErrUnauthenticated)
	}
	if !claims.Role.Valid() {
		return core.Principal{}, fmt.Errorf("token role %q: %w", claims.Role, core.ErrUnauthenticated)
	}

	return core.Principal{ID: id, Role: claims.Role}, nil
}

// Issue mints a token for p that expires after ttl.
func (j *JWT) Issue(p core.Principal, ttl time.Duration) (string, error) {
	if !p.Role.Valid() {
		return "", fmt.Errorf("issue token: invalid role %q", p.Role)
	}
	if p.ID <= 0 {
		return "", errors.New("issue token: principal id must be positive")
	}

	now := j.now()
	claims := Claims{
		Role: p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(p.ID, 10),
			Issuer:    j.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
