package authority

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is returned for tokens that fail signature, format or expiry checks.
var ErrInvalidToken = errors.New("invalid or expired token")

// TokenIssuer signs and parses HS256 access tokens.
type TokenIssuer struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewTokenIssuer creates an issuer. The key must not be empty.
func NewTokenIssuer(key []byte, ttl time.Duration) (*TokenIssuer, error) {
	if len(key) == 0 {
		return nil, errors.New("signing key is required")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenIssuer{key: key, ttl: ttl, now: time.Now}, nil
}

// Issue returns a signed token for userID together with its claims.
func (i *TokenIssuer) Issue(userID int) (string, *jwt.RegisteredClaims, error) {
	now := i.now()
	claims := &jwt.RegisteredClaims{
		Subject:   strconv.Itoa(userID),
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return signed, claims, nil
}

// Parse validates tokenStr and returns its claims.
func (i *TokenIssuer) Parse(tokenStr string) (*jwt.RegisteredClaims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	claims := &jwt.RegisteredClaims{}
	token, err := parser.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return i.key, nil
	})
	if err != nil || !token.Valid || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
