package token

import (
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/easybase/go-portal-auth/internal/utils"
)

// Claims represents the decoded payload of a portal access token. Subject and
// ExpiresAt are mandatory - a token missing either is treated as undecodable.
// Everything else is optional and backend-dependent.
type Claims struct {
	Subject     string         // "sub" - unique user ID
	Email       string         // "email"
	UserName    string         // "userName" - display/login name
	TenantID    string         // "tenantId"
	Authorities []string       // "authorities" - granted portal authorities
	SessionID   string         // "sid" - server-side session handle, when present
	ExpiresAt   time.Time      // "exp"
	IssuedAt    time.Time      // "iat", zero when absent
	Extra       map[string]any // any claims not mapped above
}

// wellKnownClaims are the claim names mapped onto Claims fields; anything else
// lands in Extra.
var wellKnownClaims = map[string]struct{}{
	"sub": {}, "email": {}, "userName": {}, "tenantId": {},
	"authorities": {}, "sid": {}, "exp": {}, "iat": {},
}

func claimsFromMap(mapClaims jwtlib.MapClaims) (*Claims, bool) {
	sub, _ := mapClaims["sub"].(string)
	exp, expOK := mapClaims["exp"].(float64)
	if sub == "" || !expOK {
		return nil, false
	}

	claims := &Claims{
		Subject:   sub,
		ExpiresAt: utils.UnixTime(exp),
	}

	claims.Email, _ = mapClaims["email"].(string)
	claims.UserName, _ = mapClaims["userName"].(string)
	claims.TenantID, _ = mapClaims["tenantId"].(string)
	claims.SessionID, _ = mapClaims["sid"].(string)

	if iat, ok := mapClaims["iat"].(float64); ok {
		claims.IssuedAt = utils.UnixTime(iat)
	}
	if rawAuthorities, ok := mapClaims["authorities"].([]any); ok {
		claims.Authorities = utils.ToStringSlice(rawAuthorities)
	}

	for name, value := range mapClaims {
		if _, known := wellKnownClaims[name]; known {
			continue
		}
		if claims.Extra == nil {
			claims.Extra = make(map[string]any)
		}
		claims.Extra[name] = value
	}

	return claims, true
}
