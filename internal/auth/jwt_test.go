package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/agrorecords/internal/core"
)

const secret = "0123456789abcdef0123456789abcdef"

func sign(t *testing.T, method jwt.SigningMethod, key any, claims jwt.Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func TestJWT_RoundTrip(t *testing.T) {
	j := NewJWT(secret, "agrorecords")
	want := core.Principal{ID: 42, Role: core.RoleFarmer}

	token, err := j.Issue(want, time.Hour)
	require.NoError(t, err)

	got, err := j.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestJWT_Rejects(t *testing.T) {
	j := NewJWT(secret, "agrorecords")
	exp := jwt.NewNumericDate(time.Now().Add(time.Hour))
	valid := func() Claims {
		return Claims{
			Role: core.RoleOfficer,
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "7",
				Issuer:    "agrorecords",
				ExpiresAt: exp,
			},
		}
	}

	expired := NewJWT(secret, "agrorecords")
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expiredToken, err := expired.Issue(core.Principal{ID: 7, Role: core.RoleOfficer}, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not.a.jwt"},
		{"expired", expiredToken},
		{"wrong secret", sign(t, jwt.SigningMethodHS256, []byte("another-secret-another-secret-xx"), valid())},
		{"wrong algorithm", sign(t, jwt.SigningMethodHS512, []byte(secret), valid())},
		{"unsigned", sign(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, valid())},
		{"wrong issuer", func() string {
			c := valid()
			c.Issuer = "someone-else"
			return sign(t, jwt.SigningMethodHS256, []byte(secret), c)
		}()},
		{"no expiry", func() string {
			c := valid()
			c.ExpiresAt = nil
			return sign(t, jwt.SigningMethodHS256, []byte(secret), c)
		}()},
		{"non-numeric subject", func() string {
			c := valid()
			c.Subject = "alice"
			return sign(t, jwt.SigningMethodHS256, []byte(secret), c)
		}()},
		{"unknown role", func() string {
			c := valid()
			c.Role = "admin"
			return sign(t, jwt.SigningMethodHS256, []byte(secret), c)
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := j.Authenticate(context.Background(), tt.token)
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrUnauthenticated)
			assert.Equal(t, core.KindUnauthenticated, core.KindOf(err))
		})
	}
}

func TestJWT_IssueRejectsInvalidPrincipal(t *testing.T) {
	j := NewJWT(secret, "agrorecords")

	_, err := j.Issue(core.Principal{ID: 1, Role: "admin"}, time.Hour)
	assert.Error(t, err)

	_, err = j.Issue(core.Principal{ID: 0, Role: core.RoleFarmer}, time.Hour)
	assert.Error(t, err)
}
