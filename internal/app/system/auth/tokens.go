// internal/app/system/auth/tokens.go
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/intorehq/intorehub/internal/domain/models"
)

// Issuer signs and verifies API bearer tokens (HS256).
type Issuer struct {
	secret []byte
	ttl    time.Duration
}

// NewIssuer creates a token issuer. secret must be non-empty.
func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Issuer{secret: []byte(secret), ttl: ttl}, nil
}

type tokenClaims struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	Role          string `json:"role"`
	IntoreGroupID string `json:"intore_group_id,omitempty"`
	jwt.RegisteredClaims
}

// Issue returns a signed token for the user.
func (i *Issuer) Issue(u models.User) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		Name:  u.FullName,
		Email: u.Email,
		Role:  u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID.Hex(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	if u.IntoreGroupID != nil {
		claims.IntoreGroupID = u.IntoreGroupID.Hex()
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

// Verify parses and validates a token, returning the embedded principal.
func (i *Issuer) Verify(tokenString string) (*Principal, error) {
	var claims tokenClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return &Principal{
		ID:            claims.Subject,
		Name:          claims.Name,
		Email:         claims.Email,
		Role:          claims.Role,
		IntoreGroupID: claims.IntoreGroupID,
	}, nil
}
