package authclient_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/easybase/go-portal-auth/authclient"
	autherrors "github.com/easybase/go-portal-auth/internal/errors"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func TestLogin(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			require.Equal(t, authclient.DefaultBasePath+"/login", r.URL.Path)

			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Equal(t, "admin", body["userName"])
			require.Equal(t, "secret", body["password"])

			json.NewEncoder(w).Encode(authclient.TokenResponse{
				AccessToken:  "a.b.c",
				RefreshToken: "r1",
				SessionID:    "s1",
				ExpiresIn:    3600,
				TokenType:    "Bearer",
			})
		})

		client := authclient.New(server.URL)
		response, err := client.Login(context.Background(), "admin", "secret")
		require.NoError(t, err)
		require.Equal(t, "a.b.c", response.AccessToken)
		require.Equal(t, "r1", response.RefreshToken)
		require.Equal(t, "s1", response.SessionID)
		require.EqualValues(t, 3600, response.ExpiresIn)
	})

	t.Run("401 maps to invalid credentials", func(t *testing.T) {
		server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"message": "bad credentials", "code": "AUTH_FAILED"})
		})

		client := authclient.New(server.URL)
		_, err := client.Login(context.Background(), "admin", "wrong")
		require.ErrorIs(t, err, autherrors.ErrInvalidCredentials)

		var authErr *autherrors.AuthError
		require.ErrorAs(t, err, &authErr)
		require.Equal(t, "bad credentials", authErr.Message)
		require.Equal(t, "AUTH_FAILED", authErr.Code)
		require.Equal(t, http.StatusUnauthorized, authErr.Status)
	})

	t.Run("500 maps to server error", func(t *testing.T) {
		server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})

		client := authclient.New(server.URL)
		_, err := client.Login(context.Background(), "admin", "secret")
		require.ErrorIs(t, err, autherrors.ErrServer)
	})

	t.Run("unreachable host maps to network error", func(t *testing.T) {
		client := authclient.New("http://127.0.0.1:1", authclient.WithTimeout(200*time.Millisecond))
		_, err := client.Login(context.Background(), "admin", "secret")
		require.ErrorIs(t, err, autherrors.ErrNetwork)
	})
}

func TestRefreshToken(t *testing.T) {
	t.Run("400 maps to invalid refresh token", func(t *testing.T) {
		server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, authclient.DefaultBasePath+"/refresh", r.URL.Path)
			w.WriteHeader(http.StatusBadRequest)
		})

		client := authclient.New(server.URL)
		_, err := client.RefreshToken(context.Background(), "stale")
		require.ErrorIs(t, err, autherrors.ErrInvalidRefreshToken)
	})
}

func TestBearerAttachment(t *testing.T) {
	var seenAuthorization string
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		seenAuthorization = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode([]authclient.Session{})
	})

	t.Run("well-formed token attached", func(t *testing.T) {
		client := authclient.New(server.URL, authclient.WithTokenProvider(func() string { return "aaa.bbb.ccc" }))
		_, err := client.Sessions(context.Background())
		require.NoError(t, err)
		require.Equal(t, "Bearer aaa.bbb.ccc", seenAuthorization)
	})

	t.Run("malformed token never attached", func(t *testing.T) {
		client := authclient.New(server.URL, authclient.WithTokenProvider(func() string { return "not-a-jwt" }))
		_, err := client.Sessions(context.Background())
		require.NoError(t, err)
		require.Empty(t, seenAuthorization)
	})

	t.Run("empty token never attached", func(t *testing.T) {
		client := authclient.New(server.URL, authclient.WithTokenProvider(func() string { return "" }))
		_, err := client.Sessions(context.Background())
		require.NoError(t, err)
		require.Empty(t, seenAuthorization)
	})
}

func TestSessions(t *testing.T) {
	created := time.Now().UTC().Truncate(time.Second)
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		json.NewEncoder(w).Encode([]authclient.Session{
			{SessionID: "s1", UserID: "user-1", CreatedAt: created, Current: true},
			{SessionID: "s2", UserID: "user-1", CreatedAt: created},
		})
	})

	client := authclient.New(server.URL)
	sessions, err := client.Sessions(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	require.Equal(t, "s1", sessions[0].SessionID)
	require.True(t, sessions[0].Current)
}

func TestRevokeSession(t *testing.T) {
	t.Run("revokes by id", func(t *testing.T) {
		var seenPath, seenMethod string
		server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			seenPath, seenMethod = r.URL.Path, r.Method
			w.WriteHeader(http.StatusNoContent)
		})

		client := authclient.New(server.URL)
		require.NoError(t, client.RevokeSession(context.Background(), "s2"))
		require.Equal(t, http.MethodDelete, seenMethod)
		require.Equal(t, authclient.DefaultBasePath+"/sessions/s2", seenPath)
	})

	t.Run("404 maps to session not found", func(t *testing.T) {
		server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})

		client := authclient.New(server.URL)
		err := client.RevokeSession(context.Background(), "missing")
		require.ErrorIs(t, err, autherrors.ErrSessionNotFound)
	})
}

func TestRevokeAllSessions(t *testing.T) {
	var seenPath string
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		seenPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	})

	client := authclient.New(server.URL)
	require.NoError(t, client.RevokeAllSessions(context.Background()))
	require.Equal(t, authclient.DefaultBasePath+"/sessions/revoke-all", seenPath)
}

func TestBasePathOverride(t *testing.T) {
	var seenPath string
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		seenPath = r.URL.Path
		json.NewEncoder(w).Encode(authclient.TokenResponse{})
	})

	client := authclient.New(server.URL, authclient.WithBasePath("/api/auth"))
	_, err := client.Login(context.Background(), "admin", "secret")
	require.NoError(t, err)
	require.Equal(t, "/api/auth/login", seenPath)
}
