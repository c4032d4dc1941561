// Package auth issues and validates the JWTs that carry a user's identity
// between the platform's account system and this service. The token is the
// only identity input the HTTP layer trusts; role and standing travel as
// explicit claims rather than being looked up per request.
package auth

import (
	"errors"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for any token that fails signature, expiry, or
// shape checks. Callers get no further detail by design.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the JWT payload. Role is a plain string here; the services layer
// owns the closed role enum and validates it.
type Claims struct {
	UserID   int64  `json:"user_id"`
	Role     string `json:"role"`
	Approved bool   `json:"approved"`
	Banned   bool   `json:"banned"`
	jwtlib.RegisteredClaims
}

// Service signs and validates HS256 tokens with a shared secret.
type Service struct {
	secret []byte
	ttl    time.Duration
}

// New returns a Service signing with secret and issuing tokens valid for ttl.
func New(secret string, ttl time.Duration) *Service {
	return &Service{
		secret: []byte(secret),
		ttl:    ttl,
	}
}

// GenerateToken mints a signed token for the given identity.
func (s *Service) GenerateToken(userID int64, role string, approved, banned bool) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   userID,
		Role:     role,
		Approved: approved,
		Banned:   banned,
		RegisteredClaims: jwtlib.RegisteredClaims{
			ExpiresAt: jwtlib.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwtlib.NewNumericDate(now),
		},
	}

	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ValidateToken parses tokenStr and returns its claims, or ErrInvalidToken.
func (s *Service) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwtlib.ParseWithClaims(tokenStr, &Claims{}, func(t *jwtlib.Token) (any, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
