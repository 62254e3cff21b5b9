package domain

import "time"

// Identity providers.
const ProviderGoogle = "google"

// AccountProvider links an external identity to a user.
type AccountProvider struct {
	ID         string
	UserID     string
	Provider   string
	ProviderID string
	CreatedAt  time.Time
}

// OAuthProfile is the identity returned by an external provider.
type OAuthProfile struct {
	Provider      string
	ProviderID    string
	Email         string
	EmailVerified bool
	DisplayName   string
}
