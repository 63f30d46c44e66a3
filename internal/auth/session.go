package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/shelfwise/lending/internal/domain"
)

const sessionAudience = "lending-api"

type SessionClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// SessionCodec mints and validates the signed session tokens carried in
// the "session" cookie. Tokens are stateless: there is no server-side
// revocation list, expiry is the only invalidation.
type SessionCodec struct {
	secret []byte
	ttl    time.Duration
}

func NewSessionCodec(secret []byte, ttl time.Duration) *SessionCodec {
	return &SessionCodec{secret: secret, ttl: ttl}
}

func (c *SessionCodec) TTL() time.Duration {
	return c.ttl
}

func (c *SessionCodec) Mint(email string) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
			Audience:  []string{sessionAudience},
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

// Validate returns the email bound to the token. Signature integrity is
// checked before expiry; any failure collapses to ErrSessionInvalid.
func (c *SessionCodec) Validate(tokenString string) (string, error) {
	tok, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return c.secret, nil
	}, jwt.WithAudience(sessionAudience))
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrSessionInvalid, err)
	}

	claims, ok := tok.Claims.(*SessionClaims)
	if !ok || !tok.Valid || claims.Email == "" {
		return "", domain.ErrSessionInvalid
	}
	return claims.Email, nil
}
