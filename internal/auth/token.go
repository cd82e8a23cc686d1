// Package auth issues and verifies bearer tokens and hashes passwords.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pavelanni/examportal/internal/apperr"
	"github.com/pavelanni/examportal/internal/model"
)

const issuer = "examportal"

// DefaultTokenTTL is used when a Service is created with a zero TTL.
const DefaultTokenTTL = 8 * time.Hour

// Claims is the JWT payload. The subject carries the user ID as well so
// generic JWT tooling can read it.
type Claims struct {
	UserID int64          `json:"user_id"`
	Role   model.UserRole `json:"role"`
	jwt.RegisteredClaims
}

// Service signs and verifies HS256 tokens.
type Service struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewService returns a token service. The secret must not be empty.
func NewService(secret string, ttl time.Duration) (*Service, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Service{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue returns a signed token for the user.
func (s *Service) Issue(userID int64, role model.UserRole) (string, error) {
	now := s.now()
	claims := &Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature, expiry and issuer and returns the principal.
// Every failure is reported as apperr.ErrInvalidToken.
func (s *Service) Verify(tokenStr string) (model.Principal, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return model.Principal{}, apperr.ErrInvalidToken.With("invalid token: %v", err)
	}
	if claims.UserID <= 0 || !claims.Role.Valid() {
		return model.Principal{}, apperr.ErrInvalidToken
	}
	return model.Principal{UserID: claims.UserID, Role: claims.Role}, nil
}
