package credentials_test

import (
	"testing"
	"time"

	"github.com/mycoding/go-session/credentials"
	"github.com/mycoding/go-session/credentials/backendfake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) (*credentials.Store, *backendfake.FakeBackend, *time.Time) {
	t.Helper()

	now := testNow
	backend := backendfake.NewFakeBackend()
	store := credentials.NewStore(backend, credentials.WithNowTime(func() time.Time { return now }))
	return store, backend, &now
}

func TestSetTokensRoundTrip(t *testing.T) {
	store, backend, _ := newTestStore(t)

	store.SetTokens(credentials.Pair{
		AccessToken:  "access-abc",
		RefreshToken: "refresh-xyz",
		ExpiresIn:    3600,
	})

	require.Equal(t, "access-abc", store.GetAccessToken())
	require.Equal(t, "refresh-xyz", store.GetRefreshToken())
	require.Equal(t, time.Hour, store.TimeUntilExpiry())

	entries := backend.Snapshot()
	require.Len(t, entries, 3)
	assert.Equal(t, "access-abc", entries["mycoding_access_token"])
	assert.Equal(t, "refresh-xyz", entries["mycoding_refresh_token"])
	assert.NotEmpty(t, entries["mycoding_token_expiry"])
}

func TestClearTokensIsIdempotent(t *testing.T) {
	store, backend, _ := newTestStore(t)

	store.SetTokens(credentials.Pair{AccessToken: "a", RefreshToken: "r", ExpiresIn: 60})
	store.ClearTokens()
	afterFirst := backend.Snapshot()

	store.ClearTokens()
	afterSecond := backend.Snapshot()

	require.Equal(t, afterFirst, afterSecond)
	require.Empty(t, store.GetAccessToken())
	require.Empty(t, store.GetRefreshToken())
	require.False(t, store.HasValidToken())
}

func TestHasValidToken(t *testing.T) {
	store, _, now := newTestStore(t)

	require.False(t, store.HasValidToken(), "empty store must not report a valid token")

	store.SetTokens(credentials.Pair{AccessToken: "a", RefreshToken: "r", ExpiresIn: 60})
	require.True(t, store.HasValidToken())
	require.False(t, store.IsTokenExpired())

	// Tokens still present but past their expiry.
	*now = now.Add(61 * time.Second)
	require.NotEmpty(t, store.GetAccessToken())
	require.True(t, store.IsTokenExpired())
	require.False(t, store.HasValidToken())
	require.Equal(t, time.Duration(0), store.TimeUntilExpiry())

	store.ClearTokens()
	require.False(t, store.HasValidToken())
}

func TestExpiryUnknownCountsAsExpired(t *testing.T) {
	store, _, _ := newTestStore(t)

	require.True(t, store.IsTokenExpired())
	require.Equal(t, time.Duration(0), store.TimeUntilExpiry())
}

func TestBackendFailuresAreSwallowed(t *testing.T) {
	store, backend, _ := newTestStore(t)

	backend.FailStores = true
	store.SetTokens(credentials.Pair{AccessToken: "a", RefreshToken: "r", ExpiresIn: 60})
	store.ClearTokens()

	backend.FailLoads = true
	require.Empty(t, store.GetAccessToken())
	require.Empty(t, store.GetRefreshToken())
	require.True(t, store.IsTokenExpired())
	require.False(t, store.HasValidToken())
	require.Equal(t, time.Duration(0), store.TimeUntilExpiry())
}

func TestFileBackendRoundTrip(t *testing.T) {
	path := t.TempDir() + "/credentials.json"
	backend := credentials.NewFileBackend(path)

	entries, err := backend.Load()
	require.NoError(t, err)
	require.Empty(t, entries)

	require.NoError(t, backend.Store(map[string]string{"k": "v"}))
	entries, err = backend.Load()
	require.NoError(t, err)
	require.Equal(t, map[string]string{"k": "v"}, entries)

	store := credentials.NewStore(backend)
	store.SetTokens(credentials.Pair{AccessToken: "a", RefreshToken: "r", ExpiresIn: 3600})
	require.Equal(t, "a", store.GetAccessToken())
	require.True(t, store.HasValidToken())
}
