package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

type (
	Hasher interface {
		Hash(plain string) (string, error)
		// Verify returns false without an error when plain does not match.
		Verify(plain, hash string) (bool, error)
	}

	BcryptHasher struct {
		cost int
	}
)

const (
	DefaultBcryptCost = 10

	maxBcryptInput = 72
)

func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost {
		cost = DefaultBcryptCost
	}
	return &BcryptHasher{cost: cost}
}

func (b *BcryptHasher) Hash(plain string) (string, error) {
	buf, err := bcrypt.GenerateFromPassword([]byte(plain), b.cost)
	if err != nil {
		return "", fmt.Errorf("unable to hash password, cause %w", err)
	}
	return string(buf), nil
}

// Verify relies on bcrypt's constant time comparison. A malformed stored
// hash is reported as an error, not as a mismatch.
func (b *BcryptHasher) Verify(plain, hash string) (bool, error) {
	if len(plain) > maxBcryptInput {
		// bcrypt would only look at the prefix and accept it
		return false, nil
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("unable to verify password hash, cause %w", err)
	}
}
