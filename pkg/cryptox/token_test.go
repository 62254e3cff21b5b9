package cryptox_test

import (
	"encoding/base64"
	"testing"

	"github.com/silaprtnw01/webtoon-be-normal-design/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestGenerateToken(t *testing.T) {
	tests := []struct {
		name   string
		size   int
		length int
	}{
		{"128 bit", cryptox.TokenSize128, 22},
		{"256 bit", cryptox.TokenSize256, 43},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok, err := cryptox.GenerateToken(tt.size)
			require.NoError(t, err)
			require.Len(t, tok, tt.length)

			raw, err := base64.RawURLEncoding.DecodeString(tok)
			require.NoError(t, err)
			require.Len(t, raw, tt.size)
		})
	}

	_, err := cryptox.GenerateToken(0)
	require.Error(t, err)
}

func TestEqualTokens(t *testing.T) {
	require.True(t, cryptox.EqualTokens("abc", "abc"))
	require.False(t, cryptox.EqualTokens("abc", "abd"))
	require.False(t, cryptox.EqualTokens("abc", ""))
}
