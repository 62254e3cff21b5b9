package jwtx

import (
	"crypto"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Supported JWT signing algorithms
const (
	AlgorithmHS256 = "HS256"
	AlgorithmEdDSA = "EdDSA"
)

// MinSecretLength is the shortest HMAC secret accepted.
const MinSecretLength = 16

// Signer is our interface for anything that can sign JWTs.
type Signer interface {
	Alg() string
	KID() string
	Sign(claims jwt.Claims) (string, error)

	// VerificationKey returns the key a parser needs to check signatures
	// produced by this signer.
	VerificationKey() any
	Validate() error
}

// HS256Signer signs with a shared HMAC secret.
type HS256Signer struct {
	kid    string
	secret []byte
}

// NewSignerHS256 creates an HS256 signer from a shared secret.
func NewSignerHS256(kid string, secret []byte) (Signer, error) {
	s := &HS256Signer{kid: kid, secret: append([]byte(nil), secret...)}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *HS256Signer) Alg() string          { return AlgorithmHS256 }
func (s *HS256Signer) KID() string          { return s.kid }
func (s *HS256Signer) VerificationKey() any { return s.secret }

func (s *HS256Signer) Sign(claims jwt.Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	if s.kid != "" {
		t.Header["kid"] = s.kid
	}
	return t.SignedString(s.secret)
}

func (s *HS256Signer) Validate() error {
	if len(s.secret) < MinSecretLength {
		return fmt.Errorf("jwtx: HS256 secret must be at least %d bytes", MinSecretLength)
	}
	return nil
}

// NewSignerEdDSA creates an EdDSA signer from PKCS8 PEM bytes.
func NewSignerEdDSA(kid string, pemKey []byte) (Signer, error) {
	return newEdDSASigner(kid, pemKey)
}

// SharesKey reports whether two signers would accept each other's tokens.
// Access and refresh tokens must never share key material.
func SharesKey(a, b Signer) bool {
	if a.Alg() != b.Alg() {
		return false
	}
	switch ka := a.VerificationKey().(type) {
	case []byte:
		kb, ok := b.VerificationKey().([]byte)
		return ok && subtle.ConstantTimeCompare(ka, kb) == 1
	case interface{ Equal(crypto.PublicKey) bool }:
		return ka.Equal(b.VerificationKey())
	}
	return false
}

var errNilSigner = errors.New("jwtx: nil signer")
