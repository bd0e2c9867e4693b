package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"quizlive/internal/domain"
)

// ErrInvalidToken is returned for tokens that fail verification.
var ErrInvalidToken = errors.New("invalid auth token")

// Verifier checks identity tokens issued by the external auth service. The
// core verifies once at connection open and trusts the resulting identity
// for the connection's lifetime.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify parses and validates an HS256 token and extracts the participant
// identity from its sub/name claims.
func (v *Verifier) Verify(tokenString string) (domain.Identity, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return domain.Identity{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return domain.Identity{}, ErrInvalidToken
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return domain.Identity{}, ErrInvalidToken
	}
	name, _ := claims["name"].(string)
	return domain.Identity{ID: sub, Name: name}, nil
}

// GuestIdentity mints a session-scoped identity for unauthenticated clients.
// Each connection without a token gets a fresh one; reconnecting guests keep
// their identity by presenting the guest id they were handed at join.
func GuestIdentity() domain.Identity {
	return domain.Identity{
		ID:    "guest-" + uuid.NewString(),
		Guest: true,
	}
}
