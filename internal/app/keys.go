package app

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/silaprtnw01/webtoon-be-normal-design/pkg/cryptox"
	"github.com/silaprtnw01/webtoon-be-normal-design/pkg/jwtx"
)

// InitAuthKeys creates the KeyManager for the configured algorithm.
//
// Algorithms:
//   - "HS256": access and refresh tokens are signed with two distinct
//     shared secrets taken from the environment.
//   - "EdDSA": each token class has its own Ed25519 key. A configured key
//     file is loaded, or created on first start. Without a key file the key
//     is generated in memory and every token dies with the process.
func InitAuthKeys(cfg Config, logger *slog.Logger) (*jwtx.KeyManager, error) {
	opts := jwtx.KeyManagerOptions{
		Algorithm: cfg.Algorithm,
		Issuer:    cfg.Issuer,
	}

	switch cfg.Algorithm {
	case jwtx.AlgorithmEdDSA:
		access, err := loadKeyPEM(cfg.AccessKeyFile)
		if err != nil {
			return nil, fmt.Errorf("access key: %w", err)
		}
		refresh, err := loadKeyPEM(cfg.RefreshKeyFile)
		if err != nil {
			return nil, fmt.Errorf("refresh key: %w", err)
		}
		opts.AccessKeyPEM, opts.RefreshKeyPEM = access, refresh

		if access == nil || refresh == nil {
			logger.Warn("ephemeral signing key in use, tokens will not survive a restart")
		}
	default:
		opts.AccessSecret = cfg.AccessSecret
		opts.RefreshSecret = cfg.RefreshSecret
	}

	keys, err := jwtx.NewKeyManager(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize key manager: %w", err)
	}

	logger.Info("signing keys loaded",
		"algorithm", cfg.Algorithm,
		"issuer", cfg.Issuer,
		"access_kid", keys.Access.KID(),
		"refresh_kid", keys.Refresh.KID(),
	)
	return keys, nil
}

// loadKeyPEM returns the PEM at path, creating the key first when the file
// does not exist. An empty path yields nil.
func loadKeyPEM(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	if _, err := cryptox.LoadOrCreateEd25519Key(path); err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}
