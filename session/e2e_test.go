package session_test

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/easybase/go-portal-auth/authclient"
	"github.com/easybase/go-portal-auth/devserver"
	autherrors "github.com/easybase/go-portal-auth/internal/errors"
	"github.com/easybase/go-portal-auth/session"
	"github.com/easybase/go-portal-auth/storage"
	"github.com/easybase/go-portal-auth/users"
)

// End-to-end coverage: a real Store driving a real Client against the
// in-memory dev backend.

func startBackend(t *testing.T) *httptest.Server {
	t.Helper()
	backend := devserver.New([]byte("e2e-signing-key"))
	require.NoError(t, backend.AddAccount(devserver.Account{
		UserID:      "user-1",
		Email:       "a@x.com",
		UserName:    "alice",
		TenantID:    "tenant-1",
		Authorities: []users.AuthorityType{users.AuthorityUser},
	}, "secret"))

	httpServer := httptest.NewServer(backend)
	t.Cleanup(httpServer.Close)
	return httpServer
}

func newStoreAndClient(t *testing.T, backendURL string, options ...session.Option) (*session.Store, *authclient.Client) {
	t.Helper()
	var store *session.Store
	client := authclient.New(backendURL, authclient.WithTokenProvider(func() string {
		if store == nil {
			return ""
		}
		return store.AccessToken()
	}))
	store = session.New(client, options...)
	t.Cleanup(func() { _ = store.Close() })
	return store, client
}

func TestEndToEndLoginLifecycle(t *testing.T) {
	backend := startBackend(t)
	store, client := newStoreAndClient(t, backend.URL)

	t.Run("login installs the full session", func(t *testing.T) {
		require.NoError(t, store.Login(context.Background(), "alice", "secret"))

		snapshot := store.Snapshot()
		require.True(t, snapshot.IsAuthenticated)
		require.False(t, snapshot.IsLoading)
		require.Nil(t, snapshot.Error)
		require.NotNil(t, snapshot.User)
		require.Equal(t, "a@x.com", snapshot.User.Email)
		require.Equal(t, "tenant-1", snapshot.User.TenantID)
		require.NotEmpty(t, snapshot.AccessToken)
		require.NotEmpty(t, snapshot.RefreshToken)
		require.NotEmpty(t, snapshot.SessionID)
	})

	t.Run("store token authenticates session management calls", func(t *testing.T) {
		sessions, err := client.Sessions(context.Background())
		require.NoError(t, err)
		require.Len(t, sessions, 1)
		require.True(t, sessions[0].Current)
		require.Equal(t, store.Snapshot().SessionID, sessions[0].SessionID)
	})

	t.Run("refresh rotates the token pair in place", func(t *testing.T) {
		before := store.Snapshot()
		require.NoError(t, store.RefreshTokens(context.Background()))

		after := store.Snapshot()
		require.True(t, after.IsAuthenticated)
		require.Equal(t, before.SessionID, after.SessionID)
		require.NotEqual(t, before.RefreshToken, after.RefreshToken)
		require.Equal(t, "a@x.com", after.User.Email)
	})

	t.Run("logout revokes the session server-side", func(t *testing.T) {
		refreshToken := store.Snapshot().RefreshToken
		store.Logout(context.Background())

		snapshot := store.Snapshot()
		require.False(t, snapshot.IsAuthenticated)
		require.Nil(t, snapshot.User)
		require.Empty(t, snapshot.AccessToken)

		_, err := client.RefreshToken(context.Background(), refreshToken)
		require.ErrorIs(t, err, autherrors.ErrInvalidRefreshToken)
	})
}

func TestEndToEndBadCredentials(t *testing.T) {
	backend := startBackend(t)
	store, _ := newStoreAndClient(t, backend.URL)

	err := store.Login(context.Background(), "alice", "not-the-password")
	require.ErrorIs(t, err, autherrors.ErrInvalidCredentials)

	snapshot := store.Snapshot()
	require.False(t, snapshot.IsAuthenticated)
	require.NotNil(t, snapshot.Error)
	require.Equal(t, "AUTH_FAILED", snapshot.Error.Code)
	require.Equal(t, 401, snapshot.Error.Status)
}

func TestEndToEndRestartRehydrates(t *testing.T) {
	backend := startBackend(t)
	store := storage.NewMemoryStore()

	first, _ := newStoreAndClient(t, backend.URL, session.WithStorage(store))
	require.NoError(t, first.Login(context.Background(), "alice", "secret"))
	sessionID := first.Snapshot().SessionID
	require.NoError(t, first.Close())

	// A new store over the same storage picks the session back up and the
	// rehydrated tokens still work against the backend.
	second, _ := newStoreAndClient(t, backend.URL, session.WithStorage(store))
	require.True(t, second.IsAuthenticated())
	require.Equal(t, sessionID, second.Snapshot().SessionID)
	require.Equal(t, "a@x.com", second.Snapshot().User.Email)

	require.NoError(t, second.RefreshTokens(context.Background()))
	require.True(t, second.IsAuthenticated())
}
