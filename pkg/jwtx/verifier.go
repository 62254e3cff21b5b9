package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformed    = errors.New("jwtx: malformed token")
	ErrUnknownKID   = errors.New("jwtx: unknown kid")
	ErrInvalidSig   = errors.New("jwtx: invalid signature")
	ErrIssuer       = errors.New("jwtx: issuer mismatch")
	ErrExpired      = errors.New("jwtx: token expired")
	ErrNotYetValid  = errors.New("jwtx: token not yet valid")
	ErrInvalidClaim = errors.New("jwtx: invalid claims")

	// ErrWrongType is returned when a token of one class is presented where
	// another class was expected.
	ErrWrongType = errors.New("jwtx: wrong token type")
)

// VerifyOptions captures common expectations used by verifiers.
type VerifyOptions struct {
	// Issuer the token must have (claims.iss). Empty means "don't care".
	Issuer string

	// Leeway allows small clock skew when validating exp/nbf/iat.
	Leeway time.Duration

	// Now supplies the current time. Defaults to time.Now.
	Now func() time.Time
}

// Verifier checks tokens produced by one Signer.
type Verifier struct {
	alg  string
	kid  string
	key  any
	opts VerifyOptions
}

// NewVerifier builds a verifier for tokens signed by s.
func NewVerifier(s Signer, opts VerifyOptions) *Verifier {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Verifier{alg: s.Alg(), kid: s.KID(), key: s.VerificationKey(), opts: opts}
}

// VerifyAccess parses and validates an access token.
func (v *Verifier) VerifyAccess(token string) (*AccessClaims, error) {
	var claims AccessClaims
	if err := v.parse(token, &claims); err != nil {
		return nil, err
	}
	return &claims, nil
}

// VerifyRefresh parses and validates a refresh token.
func (v *Verifier) VerifyRefresh(token string) (*RefreshClaims, error) {
	var claims RefreshClaims
	if err := v.parse(token, &claims); err != nil {
		return nil, err
	}
	return &claims, nil
}

func (v *Verifier) parse(token string, claims jwt.Claims) error {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{v.alg}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(v.opts.Now),
		jwt.WithLeeway(v.opts.Leeway),
	}
	if v.opts.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.opts.Issuer))
	}

	_, err := jwt.NewParser(opts...).ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if kid, _ := t.Header["kid"].(string); kid != v.kid {
			return nil, ErrUnknownKID
		}
		return v.key, nil
	})
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, ErrWrongType):
		return ErrWrongType
	case errors.Is(err, ErrUnknownKID):
		return ErrUnknownKID
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrInvalidSig
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet), errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return ErrNotYetValid
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return ErrIssuer
	default:
		return fmt.Errorf("%w: %v", ErrInvalidClaim, err)
	}
}
