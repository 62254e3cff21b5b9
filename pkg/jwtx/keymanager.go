package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/silaprtnw01/webtoon-be-normal-design/pkg/cryptox"
)

// KeyManager holds the independent signing material for the two token
// classes and the verifiers that go with them.
type KeyManager struct {
	Access  Signer
	Refresh Signer

	AccessVerifier  *Verifier
	RefreshVerifier *Verifier
}

// KeyManagerOptions configures a KeyManager.
type KeyManagerOptions struct {
	// Algorithm specifies which signing algorithm to use: "HS256" or "EdDSA".
	Algorithm string

	// Issuer is the issuer claim (iss) stamped and validated on every token.
	Issuer string

	// AccessSecret and RefreshSecret are the HS256 secrets.
	AccessSecret  string
	RefreshSecret string

	// AccessKeyPEM and RefreshKeyPEM are Ed25519 PKCS8 keys for EdDSA. An
	// empty value generates an ephemeral key.
	AccessKeyPEM  []byte
	RefreshKeyPEM []byte

	Leeway time.Duration
	Now    func() time.Time
}

// NewKeyManager builds signers and verifiers for both token classes.
func NewKeyManager(opts KeyManagerOptions) (*KeyManager, error) {
	if opts.Issuer == "" {
		return nil, errors.New("jwtx: Issuer is required")
	}

	var access, refresh Signer
	var err error

	switch opts.Algorithm {
	case AlgorithmHS256, "":
		if access, err = NewSignerHS256("access", []byte(opts.AccessSecret)); err != nil {
			return nil, fmt.Errorf("access signer: %w", err)
		}
		if refresh, err = NewSignerHS256("refresh", []byte(opts.RefreshSecret)); err != nil {
			return nil, fmt.Errorf("refresh signer: %w", err)
		}
	case AlgorithmEdDSA:
		if access, err = edDSAFromPEM("access", opts.AccessKeyPEM); err != nil {
			return nil, fmt.Errorf("access signer: %w", err)
		}
		if refresh, err = edDSAFromPEM("refresh", opts.RefreshKeyPEM); err != nil {
			return nil, fmt.Errorf("refresh signer: %w", err)
		}
	default:
		return nil, fmt.Errorf("jwtx: unsupported algorithm %q", opts.Algorithm)
	}

	return NewKeyManagerFromSigners(access, refresh, VerifyOptions{
		Issuer: opts.Issuer,
		Leeway: opts.Leeway,
		Now:    opts.Now,
	})
}

// NewKeyManagerFromSigners wires already constructed signers.
func NewKeyManagerFromSigners(access, refresh Signer, vopts VerifyOptions) (*KeyManager, error) {
	if access == nil || refresh == nil {
		return nil, errNilSigner
	}
	if err := access.Validate(); err != nil {
		return nil, err
	}
	if err := refresh.Validate(); err != nil {
		return nil, err
	}
	if SharesKey(access, refresh) {
		return nil, errors.New("jwtx: access and refresh tokens must use different keys")
	}

	return &KeyManager{
		Access:          access,
		Refresh:         refresh,
		AccessVerifier:  NewVerifier(access, vopts),
		RefreshVerifier: NewVerifier(refresh, vopts),
	}, nil
}

func edDSAFromPEM(kid string, pemKey []byte) (Signer, error) {
	if len(pemKey) == 0 {
		generated, err := cryptox.GenerateEd25519Key()
		if err != nil {
			return nil, err
		}
		pemKey = generated
	}
	return NewSignerEdDSA(kid, pemKey)
}
