package jwtx

import (
	"crypto/ed25519"
	"encoding/base64"
)

// JWK is a single public JSON Web Key (RFC 7517).
type JWK struct {
	Kty string `json:"kty"`           // key type: "OKP"
	Use string `json:"use,omitempty"` // "sig"
	Alg string `json:"alg,omitempty"` // "EdDSA"
	Kid string `json:"kid,omitempty"`

	// Ed25519 / OKP fields
	Crv string `json:"crv,omitempty"` // "Ed25519"
	X   string `json:"x,omitempty"`   // base64url encoded public key
}

// JWKS is a JSON Web Key Set (RFC 7517).
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// NewEd25519JWK builds a JWK for an Ed25519 public key.
func NewEd25519JWK(kid string, pub ed25519.PublicKey) JWK {
	return JWK{
		Kty: "OKP",
		Use: "sig",
		Alg: AlgorithmEdDSA,
		Kid: kid,
		Crv: "Ed25519",
		X:   base64.RawURLEncoding.EncodeToString(pub),
	}
}

// PublicJWKS returns the keys other services need to verify access tokens.
// Symmetric keys are never published, and neither is the refresh key since
// refresh tokens are only ever verified here.
func (k *KeyManager) PublicJWKS() JWKS {
	set := JWKS{Keys: []JWK{}}
	if pub, ok := k.Access.VerificationKey().(ed25519.PublicKey); ok {
		set.Keys = append(set.Keys, NewEd25519JWK(k.Access.KID(), pub))
	}
	return set
}
