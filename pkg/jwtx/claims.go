package jwtx

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default token TTLs, overridable through configuration.
const (
	DefaultAccessTokenTTL  = 10 * time.Minute
	DefaultRefreshTokenTTL = 30 * 24 * time.Hour
)

// TokenType tags the class of a token inside its payload ("typ" claim).
type TokenType string

const (
	TypeAccess  TokenType = "access"
	TypeRefresh TokenType = "refresh"
)

// AccessClaims are carried by short lived bearer tokens.
type AccessClaims struct {
	jwt.RegisteredClaims

	Type TokenType `json:"typ"`

	// Session ID
	SID string `json:"sid"`

	// Role codes at issuance time, e.g. ["user","admin"]
	Roles []string `json:"roles"`
}

// RefreshClaims are carried by refresh tokens. The registered "jti" claim is
// the id of the RefreshTokenRecord minted alongside the token.
type RefreshClaims struct {
	jwt.RegisteredClaims

	Type TokenType `json:"typ"`

	// Session ID
	SID string `json:"sid"`
}

// NewAccessClaims builds access claims valid from now for ttl.
func NewAccessClaims(subject, sid string, roles []string, issuer string, ttl time.Duration, now time.Time) AccessClaims {
	if roles == nil {
		roles = []string{}
	}
	return AccessClaims{
		RegisteredClaims: registered(subject, issuer, "", ttl, now),
		Type:             TypeAccess,
		SID:              sid,
		Roles:            roles,
	}
}

// NewRefreshClaims builds refresh claims for the record identified by jti.
func NewRefreshClaims(subject, sid, jti, issuer string, ttl time.Duration, now time.Time) RefreshClaims {
	return RefreshClaims{
		RegisteredClaims: registered(subject, issuer, jti, ttl, now),
		Type:             TypeRefresh,
		SID:              sid,
	}
}

func registered(subject, issuer, jti string, ttl time.Duration, now time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        jti,
	}
}

// Validate is invoked by the jwt parser after the registered claims pass.
func (c *AccessClaims) Validate() error {
	if c.Type != TypeAccess {
		return ErrWrongType
	}
	var errs []error
	if c.Subject == "" {
		errs = append(errs, missingClaim("sub"))
	}
	if c.SID == "" {
		errs = append(errs, missingClaim("sid"))
	}
	return errors.Join(errs...)
}

// Validate is invoked by the jwt parser after the registered claims pass.
func (c *RefreshClaims) Validate() error {
	if c.Type != TypeRefresh {
		return ErrWrongType
	}
	var errs []error
	if c.Subject == "" {
		errs = append(errs, missingClaim("sub"))
	}
	if c.SID == "" {
		errs = append(errs, missingClaim("sid"))
	}
	if c.ID == "" {
		errs = append(errs, missingClaim("jti"))
	}
	return errors.Join(errs...)
}

// HasRole reports whether the access token carries the role code.
func (c *AccessClaims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func missingClaim(name string) error {
	return &claimError{name: name}
}

type claimError struct{ name string }

func (e *claimError) Error() string { return "jwtx: missing claim " + e.name }
func (e *claimError) Is(target error) bool {
	return target == ErrInvalidClaim
}
