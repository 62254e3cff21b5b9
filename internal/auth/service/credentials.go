package service

import (
	"errors"
	"fmt"

	"github.com/silaprtnw01/webtoon-be-normal-design/internal/auth/domain"
	"github.com/silaprtnw01/webtoon-be-normal-design/pkg/cryptox"
)

// Credentials creates and checks password credentials.
type Credentials struct {
	Hasher *cryptox.Hasher
}

func (c *Credentials) Hash(password string) (string, error) {
	return c.Hasher.Hash(password)
}

// Check verifies password against u. A nil user or an account without a
// password still runs a full Argon2id verification so every failure path
// costs the same.
func (c *Credentials) Check(u *domain.User, password string) error {
	if u == nil || !u.HasPassword() {
		_ = c.Hasher.VerifyDummy(password)
		return ErrInvalidCredentials
	}

	err := c.Hasher.Verify(password, *u.PasswordHash)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, cryptox.ErrPasswordMismatch):
		return ErrInvalidCredentials
	default:
		return fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
}

// Placeholder returns an unusable credential for accounts created through an
// identity provider.
func (c *Credentials) Placeholder() (string, error) {
	return c.Hasher.UnusableHash()
}
