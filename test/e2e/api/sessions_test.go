package api_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/silaprtnw01/webtoon-be-normal-design/pkg/authsdk"
)

func TestSessionsListAndRevoke(t *testing.T) {
	client := setupAPIContainer(t)
	ctx := t.Context()

	phone := registerUser(t, client, "reader@example.com")

	laptopClient := authsdk.NewSDKClient(client.BaseURL)
	laptopClient.DeviceID = "laptop-1"
	laptop, err := laptopClient.Login(ctx, authsdk.LoginRequest{Email: "reader@example.com", Password: userPassword})
	require.NoError(t, err)

	sessions, err := phone.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	var current, other authsdk.SessionItem
	for _, s := range sessions {
		if s.Current {
			current = s
		} else {
			other = s
		}
	}
	require.NotEmpty(t, current.ID)
	require.Equal(t, "laptop-1", other.DeviceID)

	require.NoError(t, phone.RevokeSession(ctx, other.ID))

	err = laptop.Refresh(ctx)
	require.Error(t, err, "revoked session cannot refresh")

	// Unknown ids are ignored.
	require.NoError(t, phone.RevokeSession(ctx, "01J00000000000000000000000"))
}

func TestRevokeOtherSessions(t *testing.T) {
	client := setupAPIContainer(t)
	ctx := t.Context()

	current := registerUser(t, client, "reader@example.com")
	var others []*authsdk.Session
	for range 2 {
		s, err := client.Login(ctx, authsdk.LoginRequest{Email: "reader@example.com", Password: userPassword})
		require.NoError(t, err)
		others = append(others, s)
	}

	n, err := current.RevokeOtherSessions(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	for _, s := range others {
		require.Error(t, s.Refresh(ctx))
	}
	require.NoError(t, current.Refresh(ctx))
}
