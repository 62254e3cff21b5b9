package domain

import "time"

type User struct {
	ID           string
	Email        string  // lowercased
	PasswordHash *string // argon2 encoded, nil for accounts without a password
	DisplayName  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasPassword reports whether the account can log in with a password.
func (u User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}
