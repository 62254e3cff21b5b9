package service

import (
	"net/http"
	"time"
)

const RefreshCookieName = "refresh_token"

// CookiePolicy describes how the refresh token cookie is set.
type CookiePolicy struct {
	Name     string
	Domain   string
	Path     string
	HTTPOnly bool
	Secure   bool
	SameSite http.SameSite
	MaxAge   time.Duration
}

// NewCookiePolicy returns the refresh cookie policy for an environment.
// Production cookies are Secure and SameSite=Strict; elsewhere they are Lax
// so local front ends on another port keep working.
func NewCookiePolicy(production bool, domain string, refreshTTL time.Duration) CookiePolicy {
	p := CookiePolicy{
		Name:     RefreshCookieName,
		Domain:   domain,
		Path:     "/",
		HTTPOnly: true,
		Secure:   production,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   refreshTTL,
	}
	if production {
		p.SameSite = http.SameSiteStrictMode
	}
	return p
}

// Cookie carries value under the policy.
func (p CookiePolicy) Cookie(value string) *http.Cookie {
	return &http.Cookie{
		Name:     p.Name,
		Value:    value,
		Domain:   p.Domain,
		Path:     p.Path,
		MaxAge:   int(p.MaxAge / time.Second),
		HttpOnly: p.HTTPOnly,
		Secure:   p.Secure,
		SameSite: p.SameSite,
	}
}

// Clear expires the cookie on the client.
func (p CookiePolicy) Clear() *http.Cookie {
	c := p.Cookie("")
	c.MaxAge = -1
	c.Expires = time.Unix(0, 0)
	return c
}
