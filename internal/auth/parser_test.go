package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plate-reader/internal/model"
)

func TestIssueAndParse(t *testing.T) {
	p := NewParser("secret")

	token, err := p.Issue("ops@example", model.UserRoleAdmin, time.Hour)
	require.NoError(t, err)

	principal, err := p.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "ops@example", principal.Subject)
	assert.True(t, principal.IsAdmin())
	assert.True(t, principal.IsOperator())
}

func TestParseRejects(t *testing.T) {
	p := NewParser("secret")

	expired, err := p.Issue("ops", model.UserRoleAdmin, -time.Minute)
	require.NoError(t, err)

	foreign, err := NewParser("other").Issue("ops", model.UserRoleAdmin, time.Hour)
	require.NoError(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"role": "ADMIN"}).SignedString([]byte("secret"))
	require.NoError(t, err)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{"sub": "ops"}).SignedString([]byte("secret"))
	require.NoError(t, err)

	tests := map[string]string{
		"garbage":      "not.a.token",
		"expired":      expired,
		"wrong secret": foreign,
		"no subject":   noSubject,
		"wrong method": hs512,
		"empty":        "",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := p.Parse(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}
