// Package token inspects opaque bearer-token strings without verifying their
// signatures. The portal backend is the only party that can verify a token;
// the client only needs to read claims to derive the operator identity and
// answer expiry questions, so every function here parses unverified and treats
// malformed input as "expired"/"undecodable" rather than returning an error.
package token

import (
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/easybase/go-portal-auth/users"
)

// NowTimeFunc is the clock used for expiry checks (injectable for testing).
var NowTimeFunc = time.Now

// Decode parses the token payload into Claims. The second return value is
// false for malformed, truncated or claim-incomplete tokens; Decode never
// panics or returns an error.
func Decode(rawToken string) (*Claims, bool) {
	if !IsValidFormat(rawToken) {
		return nil, false
	}

	parsed, _, err := jwtlib.NewParser().ParseUnverified(rawToken, jwtlib.MapClaims{})
	if err != nil {
		return nil, false
	}

	mapClaims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, false
	}

	return claimsFromMap(mapClaims)
}

// IsExpired reports whether the token's expiry is at or before the current
// time. Undecodable tokens count as expired.
func IsExpired(rawToken string) bool {
	claims, ok := Decode(rawToken)
	if !ok {
		return true
	}
	return !claims.ExpiresAt.After(NowTimeFunc())
}

// IsExpiringSoon reports whether the token expires within the given buffer.
// Undecodable tokens count as expiring.
func IsExpiringSoon(rawToken string, buffer time.Duration) bool {
	claims, ok := Decode(rawToken)
	if !ok {
		return true
	}
	return claims.ExpiresAt.Sub(NowTimeFunc()) < buffer
}

// Expiry returns the token's expiry time; ok is false when the token cannot
// be decoded.
func Expiry(rawToken string) (expiry time.Time, ok bool) {
	claims, decoded := Decode(rawToken)
	if !decoded {
		return time.Time{}, false
	}
	return claims.ExpiresAt, true
}

// UserFromToken maps the token's claims onto the portal User shape. Returns
// nil when the claims cannot be decoded.
func UserFromToken(rawToken string) *users.User {
	claims, ok := Decode(rawToken)
	if !ok {
		return nil
	}

	userName := claims.UserName
	if userName == "" {
		userName = claims.Email
	}

	return &users.User{
		UserID:      claims.Subject,
		Email:       claims.Email,
		UserName:    userName,
		TenantID:    claims.TenantID,
		Authorities: claims.Authorities,
		Metadata:    claims.Extra,
	}
}

// IsValidFormat performs the basic three-segment JWT shape check. Tokens
// failing this check are never attached to outgoing requests.
func IsValidFormat(rawToken string) bool {
	if rawToken == "" {
		return false
	}
	parts := strings.Split(rawToken, ".")
	if len(parts) != 3 {
		return false
	}
	for _, part := range parts {
		if part == "" {
			return false
		}
	}
	return true
}
