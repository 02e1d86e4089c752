package devserver

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/easybase/go-portal-auth/authclient"
	"github.com/easybase/go-portal-auth/users"
)

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

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var request loginRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "malformed request body")
		return
	}

	if !s.limiter(request.UserName).Allow() {
		writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many login attempts")
		return
	}

	s.mu.Lock()
	account, ok := s.accounts[request.UserName]
	s.mu.Unlock()

	if !ok || !users.CheckPasswordHash(request.Password, account.PasswordHash) {
		s.log.Debug().Str("userName", request.UserName).Msg("login rejected")
		writeError(w, http.StatusUnauthorized, "AUTH_FAILED", "invalid credentials")
		return
	}

	now := time.Now()
	record := &sessionRecord{
		ID:        uuid.New().String(),
		UserID:    account.UserID,
		TenantID:  account.TenantID,
		IPAddress: remoteIP(r),
		UserAgent: r.UserAgent(),
		CreatedAt: now,
		ExpiresAt: now.Add(s.refreshTTL),
	}

	response, err := s.issueTokens(account, record)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "TOKEN_ERROR", "failed to issue tokens")
		return
	}

	s.mu.Lock()
	s.sessions[record.ID] = record
	s.mu.Unlock()

	s.log.Info().Str("userName", account.UserName).Str("sessionId", record.ID).Msg("login succeeded")
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var request refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "malformed request body")
		return
	}

	claims, err := s.verifyToken(request.RefreshToken)
	if err != nil || claims["type"] != "refresh" {
		writeError(w, http.StatusUnauthorized, "INVALID_REFRESH_TOKEN", "invalid refresh token")
		return
	}

	sessionID, _ := claims["sid"].(string)
	tokenID, _ := claims["jti"].(string)

	// Validity check and rotation happen under one lock so two concurrent
	// refreshes of the same token cannot both pass the jti comparison.
	s.mu.Lock()
	record, ok := s.sessions[sessionID]
	valid := ok && !record.Revoked && record.RefreshTokenID == tokenID
	var account Account
	if valid {
		account, valid = s.accountByID(record.UserID)
	}
	var response *authclient.TokenResponse
	if valid {
		// Rotation: issuing a new pair invalidates the presented refresh token.
		response, err = s.issueTokens(account, record)
	}
	s.mu.Unlock()

	if !valid {
		writeError(w, http.StatusUnauthorized, "INVALID_REFRESH_TOKEN", "refresh token revoked or rotated")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "TOKEN_ERROR", "failed to issue tokens")
		return
	}

	s.log.Debug().Str("sessionId", record.ID).Msg("tokens refreshed")
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var request logoutRequest
	_ = json.NewDecoder(r.Body).Decode(&request)

	if request.SessionID != "" {
		s.mu.Lock()
		if record, ok := s.sessions[request.SessionID]; ok {
			record.Revoked = true
		}
		s.mu.Unlock()
		s.log.Info().Str("sessionId", request.SessionID).Msg("session logged out")
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	claims, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	userID, _ := claims["sub"].(string)
	currentSessionID, _ := claims["sid"].(string)

	s.mu.Lock()
	sessions := make([]authclient.Session, 0)
	for _, record := range s.sessions {
		if record.UserID != userID || record.Revoked {
			continue
		}
		sessions = append(sessions, authclient.Session{
			SessionID: record.ID,
			UserID:    record.UserID,
			TenantID:  record.TenantID,
			IPAddress: record.IPAddress,
			UserAgent: record.UserAgent,
			CreatedAt: record.CreatedAt,
			ExpiresAt: record.ExpiresAt,
			Current:   record.ID == currentSessionID,
		})
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleRevokeSession(w http.ResponseWriter, r *http.Request) {
	claims, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	userID, _ := claims["sub"].(string)
	sessionID := r.PathValue("id")

	s.mu.Lock()
	record, ok := s.sessions[sessionID]
	owned := ok && record.UserID == userID && !record.Revoked
	if owned {
		record.Revoked = true
	}
	s.mu.Unlock()

	if !owned {
		writeError(w, http.StatusNotFound, "SESSION_NOT_FOUND", "session not found")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRevokeAll(w http.ResponseWriter, r *http.Request) {
	claims, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	userID, _ := claims["sub"].(string)

	s.mu.Lock()
	for _, record := range s.sessions {
		if record.UserID == userID {
			record.Revoked = true
		}
	}
	s.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

// issueTokens mints a new access/refresh pair for the session and rotates the
// session's refresh token ID. Caller holds s.mu whenever record is already
// published via s.sessions.
func (s *Server) issueTokens(account Account, record *sessionRecord) (*authclient.TokenResponse, error) {
	now := time.Now()
	refreshTokenID := uuid.New().String()

	accessToken, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.MapClaims{
		"sub":         account.UserID,
		"email":       account.Email,
		"userName":    account.UserName,
		"tenantId":    account.TenantID,
		"authorities": account.Authorities,
		"sid":         record.ID,
		"jti":         uuid.New().String(),
		"iat":         now.Unix(),
		"exp":         now.Add(s.accessTTL).Unix(),
	}).SignedString(s.signingKey)
	if err != nil {
		return nil, err
	}

	refreshToken, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.MapClaims{
		"sub":  account.UserID,
		"type": "refresh",
		"sid":  record.ID,
		"jti":  refreshTokenID,
		"iat":  now.Unix(),
		"exp":  now.Add(s.refreshTTL).Unix(),
	}).SignedString(s.signingKey)
	if err != nil {
		return nil, err
	}

	record.RefreshTokenID = refreshTokenID

	return &authclient.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		SessionID:    record.ID,
		ExpiresIn:    int64(s.accessTTL / time.Second),
		TokenType:    "Bearer",
	}, nil
}

// verifyToken parses and verifies a token signed by this server.
func (s *Server) verifyToken(rawToken string) (jwtlib.MapClaims, error) {
	parsed, err := jwtlib.Parse(rawToken, func(t *jwtlib.Token) (any, error) {
		return s.signingKey, nil
	}, jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		if err == nil {
			err = jwtlib.ErrTokenUnverifiable
		}
		return nil, err
	}
	claims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, jwtlib.ErrTokenInvalidClaims
	}
	return claims, nil
}

// authenticate extracts and verifies the bearer token, writing a 401 when it
// is missing or invalid.
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) (jwtlib.MapClaims, bool) {
	authorization := r.Header.Get("Authorization")
	rawToken, found := strings.CutPrefix(authorization, "Bearer ")
	if !found {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
		return nil, false
	}

	claims, err := s.verifyToken(rawToken)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid bearer token")
		return nil, false
	}
	return claims, true
}

// accountByID finds an account by user ID. Caller holds s.mu.
func (s *Server) accountByID(userID string) (Account, bool) {
	for _, account := range s.accounts {
		if account.UserID == userID {
			return account, true
		}
	}
	return Account{}, false
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"message": message, "code": code})
}
