// Package auth verifies the bearer tokens minted by the external identity
// service. The bookstore trusts the token's subject and role as given.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/bookstore-backend/pkg/config"
	"github.com/angelmondragon/bookstore-backend/pkg/enums"
)

// clock skew tolerated between the identity service and this API
const leeway = 30 * time.Second

var signingMethod = jwt.SigningMethodHS256

// Identity is who the bearer token says the caller is.
type Identity struct {
	UserID uuid.UUID
	Role   enums.Role
}

// The user id travels in "sub"; "role" is the only private claim.
type claims struct {
	Role enums.Role `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Verify checks signature, issuer and expiry and returns the caller. A token
// without a role claim is an ordinary user.
func Verify(cfg config.JWTConfig, raw string) (Identity, error) {
	if cfg.Secret == "" {
		return Identity{}, errors.New("jwt secret is required")
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(leeway),
	)
	var c claims
	if _, err := parser.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) {
		return []byte(cfg.Secret), nil
	}); err != nil {
		return Identity{}, err
	}

	userID, err := uuid.Parse(c.Subject)
	if err != nil || userID == uuid.Nil {
		return Identity{}, fmt.Errorf("token subject %q is not a user id", c.Subject)
	}
	role := c.Role
	if role == "" {
		role = enums.RoleUser
	}
	if !role.IsValid() {
		return Identity{}, fmt.Errorf("token role %q is not recognised", role)
	}
	return Identity{UserID: userID, Role: role}, nil
}

// Issue signs a token shaped like the identity service's. The API never hands
// these out; tests and local tooling use it.
func Issue(cfg config.JWTConfig, who Identity, now time.Time, ttl time.Duration) (string, error) {
	switch {
	case cfg.Secret == "":
		return "", errors.New("jwt secret is required")
	case ttl <= 0:
		return "", errors.New("jwt ttl must be positive")
	case !who.Role.IsValid():
		return "", fmt.Errorf("invalid role %q", who.Role)
	}

	token := jwt.NewWithClaims(signingMethod, claims{
		Role: who.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   who.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	})
	signed, err := token.SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("sign jwt: %w", err)
	}
	return signed, nil
}
