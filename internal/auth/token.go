// Package auth signs and verifies the bearer tokens (JWTs) that identify the current user,
// and hashes user passwords.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/andrewwphillips/libraryql/internal/model"
	"github.com/golang-jwt/jwt/v4"
)

// Claims are the contents of a token - the user's name and ID
type Claims struct {
	Username string `json:"username"`
	UserID   string `json:"id"`
	jwt.RegisteredClaims
}

// Signer creates and checks HS256 tokens using a shared secret
type Signer struct {
	secret   []byte
	lifetime time.Duration // zero for tokens that do not expire
	now      func() time.Time
}

// NewSigner returns a signer for the secret.  If lifetime is positive tokens expire after that time.
func NewSigner(secret string, lifetime time.Duration) *Signer {
	return &Signer{secret: []byte(secret), lifetime: lifetime, now: time.Now}
}

// Sign returns a token for the user
func (s *Signer) Sign(user model.User) (string, error) {
	now := s.now()
	claims := Claims{
		Username: user.Username,
		UserID:   user.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if s.lifetime > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(s.lifetime))
	}
	r, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("%w signing token", err)
	}
	return r, nil
}

// Verify checks the token's signature (and expiry, if any) returning its claims
func (s *Signer) Verify(token string) (*Claims, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, &CredentialError{Err: err}
	}
	if !parsed.Valid {
		return nil, &CredentialError{Err: errors.New("token is not valid")}
	}
	if claims.UserID == "" {
		return nil, &CredentialError{Err: errors.New("token has no id")}
	}
	return &claims, nil
}
