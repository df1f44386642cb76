package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrWrongPassword is returned by Check when the password does not match the hash
var ErrWrongPassword = errors.New("wrong password")

// Hasher hashes passwords with bcrypt (each hash has its own salt)
type Hasher struct {
	Cost int // bcrypt cost (bcrypt.DefaultCost if zero)
}

// Hash returns the hash of the password to be stored with the user
func (h Hasher) Hash(password string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("%w hashing password", err)
	}
	return string(hash), nil
}

// Check returns nil if the password matches the hash
func (h Hasher) Check(hash, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrWrongPassword
	}
	return err
}
