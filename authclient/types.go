package authclient

import "time"

// TokenResponse is returned by the login and refresh endpoints.
type TokenResponse struct {
	AccessToken  string `json:"accessToken"`  // Short-lived JWT bearer credential
	RefreshToken string `json:"refreshToken"` // Opaque credential used only to mint new access tokens
	SessionID    string `json:"sessionId"`    // Server-side session handle, used for explicit revocation
	ExpiresIn    int64  `json:"expiresIn"`    // Access token lifetime hint, seconds
	TokenType    string `json:"tokenType"`    // Always "Bearer"
}

// Session describes one server-tracked login instance of the current user,
// as returned by the sessions endpoint. Each session is independently
// revocable.
type Session struct {
	SessionID  string    `json:"sessionId"`
	UserID     string    `json:"userId"`
	TenantID   string    `json:"tenantId,omitempty"`
	IPAddress  string    `json:"ipAddress,omitempty"`
	UserAgent  string    `json:"userAgent,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
	Current    bool      `json:"current,omitempty"`
}

type loginRequest struct {
	UserName string `json:"userName"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type logoutRequest struct {
	SessionID string `json:"sessionId,omitempty"`
}

type errorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}
