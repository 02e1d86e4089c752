package token_test

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/easybase/go-portal-auth/token"
)

const testSigningKey = "test-signing-key-1234"

func signedToken(t *testing.T, claims jwtlib.MapClaims) string {
	t.Helper()
	raw, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte(testSigningKey))
	require.NoError(t, err)
	return raw
}

func fixedClock(t *testing.T, now time.Time) {
	t.Helper()
	token.NowTimeFunc = func() time.Time { return now }
	t.Cleanup(func() { token.NowTimeFunc = time.Now })
}

func TestDecode(t *testing.T) {
	now := time.Now()

	t.Run("full claim set", func(t *testing.T) {
		raw := signedToken(t, jwtlib.MapClaims{
			"sub":         "user-1",
			"email":       "admin@easybase.io",
			"userName":    "admin",
			"tenantId":    "tenant-1",
			"authorities": []string{"SUPER_ADMIN", "USER"},
			"sid":         "session-1",
			"exp":         now.Add(time.Hour).Unix(),
			"iat":         now.Unix(),
			"department":  "platform",
		})

		claims, ok := token.Decode(raw)
		require.True(t, ok)
		require.Equal(t, "user-1", claims.Subject)
		require.Equal(t, "admin@easybase.io", claims.Email)
		require.Equal(t, "admin", claims.UserName)
		require.Equal(t, "tenant-1", claims.TenantID)
		require.Equal(t, []string{"SUPER_ADMIN", "USER"}, claims.Authorities)
		require.Equal(t, "session-1", claims.SessionID)
		require.Equal(t, now.Add(time.Hour).Unix(), claims.ExpiresAt.Unix())
		require.Equal(t, "platform", claims.Extra["department"])
	})

	t.Run("missing subject rejects", func(t *testing.T) {
		raw := signedToken(t, jwtlib.MapClaims{"exp": now.Add(time.Hour).Unix()})
		_, ok := token.Decode(raw)
		require.False(t, ok)
	})

	t.Run("missing expiry rejects", func(t *testing.T) {
		raw := signedToken(t, jwtlib.MapClaims{"sub": "user-1"})
		_, ok := token.Decode(raw)
		require.False(t, ok)
	})

	t.Run("malformed input", func(t *testing.T) {
		for _, raw := range []string{"", "garbage", "a.b", "a.b.c.d", "!!!.###.$$$"} {
			_, ok := token.Decode(raw)
			require.False(t, ok, "expected decode failure for %q", raw)
		}
	})

	t.Run("truncated token", func(t *testing.T) {
		raw := signedToken(t, jwtlib.MapClaims{"sub": "user-1", "exp": now.Add(time.Hour).Unix()})
		_, ok := token.Decode(raw[:len(raw)/2])
		require.False(t, ok)
	})
}

func TestIsExpired(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	fixedClock(t, now)

	t.Run("expiry equal to now is expired", func(t *testing.T) {
		raw := signedToken(t, jwtlib.MapClaims{"sub": "user-1", "exp": now.Unix()})
		require.True(t, token.IsExpired(raw))
	})

	t.Run("one second of life left", func(t *testing.T) {
		raw := signedToken(t, jwtlib.MapClaims{"sub": "user-1", "exp": now.Add(time.Second).Unix()})
		require.False(t, token.IsExpired(raw))
	})

	t.Run("past expiry", func(t *testing.T) {
		raw := signedToken(t, jwtlib.MapClaims{"sub": "user-1", "exp": now.Add(-time.Hour).Unix()})
		require.True(t, token.IsExpired(raw))
	})

	t.Run("undecodable counts as expired", func(t *testing.T) {
		require.True(t, token.IsExpired("not-a-token"))
	})
}

func TestIsExpiringSoon(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	fixedClock(t, now)

	t.Run("inside buffer", func(t *testing.T) {
		raw := signedToken(t, jwtlib.MapClaims{"sub": "user-1", "exp": now.Add(119 * time.Second).Unix()})
		require.True(t, token.IsExpiringSoon(raw, 120*time.Second))
	})

	t.Run("outside buffer", func(t *testing.T) {
		raw := signedToken(t, jwtlib.MapClaims{"sub": "user-1", "exp": now.Add(121 * time.Second).Unix()})
		require.False(t, token.IsExpiringSoon(raw, 120*time.Second))
	})

	t.Run("undecodable counts as expiring", func(t *testing.T) {
		require.True(t, token.IsExpiringSoon("???", time.Minute))
	})
}

func TestExpiry(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	raw := signedToken(t, jwtlib.MapClaims{"sub": "user-1", "exp": now.Add(time.Hour).Unix()})
	expiry, ok := token.Expiry(raw)
	require.True(t, ok)
	require.Equal(t, now.Add(time.Hour).Unix(), expiry.Unix())

	_, ok = token.Expiry("broken")
	require.False(t, ok)
}

func TestUserFromToken(t *testing.T) {
	now := time.Now()

	t.Run("maps claims to user", func(t *testing.T) {
		raw := signedToken(t, jwtlib.MapClaims{
			"sub":         "user-1",
			"email":       "admin@easybase.io",
			"userName":    "admin",
			"tenantId":    "tenant-1",
			"authorities": []string{"TENANT_ADMIN"},
			"exp":         now.Add(time.Hour).Unix(),
		})

		user := token.UserFromToken(raw)
		require.NotNil(t, user)
		require.Equal(t, "user-1", user.UserID)
		require.Equal(t, "admin@easybase.io", user.Email)
		require.Equal(t, "admin", user.UserName)
		require.Equal(t, "tenant-1", user.TenantID)
		require.True(t, user.HasAuthority("tenant_admin"))
	})

	t.Run("userName falls back to email", func(t *testing.T) {
		raw := signedToken(t, jwtlib.MapClaims{
			"sub":   "user-1",
			"email": "admin@easybase.io",
			"exp":   now.Add(time.Hour).Unix(),
		})

		user := token.UserFromToken(raw)
		require.NotNil(t, user)
		require.Equal(t, "admin@easybase.io", user.UserName)
	})

	t.Run("undecodable token yields nil", func(t *testing.T) {
		require.Nil(t, token.UserFromToken("nope"))
	})
}

func TestIsValidFormat(t *testing.T) {
	require.True(t, token.IsValidFormat("aaa.bbb.ccc"))
	require.False(t, token.IsValidFormat(""))
	require.False(t, token.IsValidFormat("aaa.bbb"))
	require.False(t, token.IsValidFormat("aaa.bbb.ccc.ddd"))
	require.False(t, token.IsValidFormat("aaa..ccc"))
}
