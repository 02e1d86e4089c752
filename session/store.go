// Package session owns the client-side authentication state of one portal
// context: the current token set and operator identity, login/logout/refresh
// orchestration, the periodic self-check that refreshes tokens before they
// expire, and the broadcast wiring that keeps sibling stores converged.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/easybase/go-portal-auth/authclient"
	"github.com/easybase/go-portal-auth/broadcast"
	autherrors "github.com/easybase/go-portal-auth/internal/errors"
	"github.com/easybase/go-portal-auth/storage"
	"github.com/easybase/go-portal-auth/token"
	"github.com/easybase/go-portal-auth/users"
)

const (
	// DefaultCheckInterval is how often the store re-evaluates token validity.
	DefaultCheckInterval = 5 * time.Minute

	// DefaultWarningBuffer is the window before expiry in which the store
	// raises the session warning so the UI can prompt the operator.
	DefaultWarningBuffer = 120 * time.Second

	// DefaultRefreshBuffer is the window before expiry in which the store
	// refreshes proactively in the background.
	DefaultRefreshBuffer = 300 * time.Second
)

// API is the auth API surface the store depends on. *authclient.Client
// satisfies it; tests substitute a fake.
type API interface {
	Login(ctx context.Context, userName, password string) (*authclient.TokenResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (*authclient.TokenResponse, error)
	Logout(ctx context.Context, sessionID string) error
}

var _ API = (*authclient.Client)(nil)

// Snapshot is a consistent read of the store's state. All fields were
// observed under the same lock; no snapshot ever shows a half-updated
// session.
type Snapshot struct {
	User            *users.User
	AccessToken     string
	RefreshToken    string
	SessionID       string
	IsAuthenticated bool
	IsLoading       bool
	Error           *autherrors.AuthError
	SessionWarning  bool
}

// refreshCall is the shared outcome of one in-flight refresh. Concurrent
// callers wait on done and read err instead of issuing a second network call.
type refreshCall struct {
	done chan struct{}
	err  error
}

// Store is the session auth store. Construct one per portal context with New;
// all state lives on the instance so tests can run independent stores side by
// side.
type Store struct {
	api           API
	channel       broadcast.Channel
	storage       storage.Store
	log           zerolog.Logger
	checkInterval time.Duration
	warningBuffer time.Duration
	refreshBuffer time.Duration

	mu              sync.Mutex
	user            *users.User
	accessToken     string
	refreshToken    string
	sessionID       string
	isAuthenticated bool
	isLoading       bool
	authErr         *autherrors.AuthError
	sessionWarning  bool

	// generation changes on every install and clear; refresh results carrying
	// a stale generation are discarded so a refresh that raced a logout can
	// never resurrect a cleared session.
	generation uint64

	refresh     *refreshCall
	checkerStop chan struct{}
}

// Option modifies a Store during construction.
type Option func(*Store)

// WithChannel sets the cross-context broadcast channel.
func WithChannel(channel broadcast.Channel) Option {
	return func(s *Store) { s.channel = channel }
}

// WithStorage sets the durable storage the session is persisted to.
func WithStorage(store storage.Store) Option {
	return func(s *Store) { s.storage = store }
}

// WithLogger sets the store logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Store) { s.log = log }
}

// WithCheckInterval overrides the periodic self-check interval.
func WithCheckInterval(interval time.Duration) Option {
	return func(s *Store) { s.checkInterval = interval }
}

// WithWarningBuffer overrides the session warning window.
func WithWarningBuffer(buffer time.Duration) Option {
	return func(s *Store) { s.warningBuffer = buffer }
}

// WithRefreshBuffer overrides the proactive refresh window.
func WithRefreshBuffer(buffer time.Duration) Option {
	return func(s *Store) { s.refreshBuffer = buffer }
}

// New constructs a store, rehydrates any persisted session and subscribes to
// the broadcast channel. Rehydration reports the session as authenticated
// whenever both tokens are present; expiry is evaluated on the next check.
func New(api API, options ...Option) *Store {
	s := &Store{
		api:           api,
		channel:       broadcast.Noop{},
		storage:       storage.NewMemoryStore(),
		log:           zerolog.Nop(),
		checkInterval: DefaultCheckInterval,
		warningBuffer: DefaultWarningBuffer,
		refreshBuffer: DefaultRefreshBuffer,
	}

	for _, opt := range options {
		opt(s)
	}

	s.rehydrate()
	s.channel.OnMessage(s.handleBroadcast)

	return s
}

// Snapshot returns a consistent copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		User:            s.user,
		AccessToken:     s.accessToken,
		RefreshToken:    s.refreshToken,
		SessionID:       s.sessionID,
		IsAuthenticated: s.isAuthenticated,
		IsLoading:       s.isLoading,
		Error:           s.authErr,
		SessionWarning:  s.sessionWarning,
	}
}

// IsAuthenticated reports whether the store currently holds a session.
func (s *Store) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isAuthenticated
}

// AccessToken returns the current access token, or "" when anonymous. Handed
// to authclient.WithTokenProvider so requests carry the live credential.
func (s *Store) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessToken
}

// Login authenticates the operator. On success the full session is installed
// atomically, the refresh is broadcast and the periodic self-check starts.
// On failure the session is cleared, the error recorded and returned so the
// UI can display it.
func (s *Store) Login(ctx context.Context, userName, password string) error {
	s.mu.Lock()
	s.isLoading = true
	s.authErr = nil
	s.mu.Unlock()

	response, err := s.api.Login(ctx, userName, password)
	if err != nil {
		s.failLogin(err)
		return err
	}

	user := token.UserFromToken(response.AccessToken)
	if user == nil {
		err := autherrors.NewAuthError(autherrors.ErrDecode, "failed to decode user information from token", "", 0)
		s.failLogin(err)
		return err
	}

	s.mu.Lock()
	s.installLocked(user, response)
	s.isLoading = false
	s.mu.Unlock()

	s.persist()
	s.publishTokens(response)
	s.startChecker()

	s.log.Info().Str("user", user.DisplayName()).Msg("login succeeded")
	return nil
}

// Logout revokes the server-side session best-effort and always clears local
// state. An API failure is logged and swallowed - logout must never leave the
// operator stuck authenticated.
func (s *Store) Logout(ctx context.Context) {
	s.mu.Lock()
	sessionID := s.sessionID
	s.mu.Unlock()

	if sessionID != "" {
		if err := s.api.Logout(ctx, sessionID); err != nil {
			s.log.Error().Err(err).Msg("logout API call failed, clearing local state anyway")
		}
	}

	s.stopChecker()
	s.channel.Publish(broadcast.Message{Type: broadcast.TypeLogout})
	s.clearSession()
}

// RefreshTokens exchanges the refresh token for a new token set. Concurrent
// calls are deduplicated: while one refresh is in flight every caller waits
// for and shares its outcome, so N simultaneous callers produce exactly one
// network call. On failure the whole session is cleared and the error
// returned.
func (s *Store) RefreshTokens(ctx context.Context) error {
	s.mu.Lock()
	refreshToken := s.refreshToken
	if refreshToken == "" {
		s.mu.Unlock()
		s.ClearAuth()
		return nil
	}

	if s.refresh != nil {
		call := s.refresh
		s.mu.Unlock()
		<-call.done
		return call.err
	}

	call := &refreshCall{done: make(chan struct{})}
	s.refresh = call
	generation := s.generation
	s.mu.Unlock()

	call.err = s.doRefresh(ctx, refreshToken, generation)

	// Release the in-flight marker before waking waiters so a follow-up call
	// can start a fresh refresh.
	s.mu.Lock()
	s.refresh = nil
	s.mu.Unlock()
	close(call.done)

	return call.err
}

// doRefresh performs the actual network call. generation pins the session the
// refresh was started for; if a logout or clear happened in the meantime the
// result is discarded.
func (s *Store) doRefresh(ctx context.Context, refreshToken string, generation uint64) error {
	response, err := s.api.RefreshToken(ctx, refreshToken)
	if err != nil {
		s.log.Error().Err(err).Msg("token refresh failed")
		s.clearIfGeneration(generation)
		return err
	}

	user := token.UserFromToken(response.AccessToken)
	if user == nil {
		err := autherrors.NewAuthError(autherrors.ErrDecode, "failed to decode user information from token", "", 0)
		s.log.Error().Err(err).Msg("token refresh returned an undecodable access token")
		s.clearIfGeneration(generation)
		return err
	}

	s.mu.Lock()
	if s.generation != generation {
		s.mu.Unlock()
		s.log.Debug().Msg("discarding refresh result for a session cleared in the meantime")
		return nil
	}
	s.installLocked(user, response)
	s.mu.Unlock()

	s.persist()
	s.publishTokens(response)
	return nil
}

// CheckAuth is the periodic self-check. It clears dead sessions, refreshes
// expired access tokens while the refresh token still lives, maintains the
// session warning and triggers a proactive background refresh near expiry.
func (s *Store) CheckAuth(ctx context.Context) {
	s.mu.Lock()
	accessToken, refreshToken := s.accessToken, s.refreshToken
	s.mu.Unlock()

	if accessToken == "" || refreshToken == "" {
		s.ClearAuth()
		return
	}

	if token.IsExpired(accessToken) {
		if token.IsExpired(refreshToken) {
			// Nothing left to refresh with; skip the network round trip.
			s.ClearAuth()
			return
		}
		if err := s.RefreshTokens(ctx); err != nil {
			s.log.Warn().Err(err).Msg("refresh of expired access token failed")
		}
		return
	}

	s.mu.Lock()
	s.sessionWarning = token.IsExpiringSoon(accessToken, s.warningBuffer)
	s.mu.Unlock()

	if token.IsExpiringSoon(accessToken, s.refreshBuffer) && !token.IsExpired(refreshToken) {
		// Fire and forget; RefreshTokens handles failure by clearing the
		// session, nothing further surfaces to the UI.
		go func() {
			if err := s.RefreshTokens(context.Background()); err != nil {
				s.log.Warn().Err(err).Msg("background token refresh failed")
			}
		}()
	}
}

// ClearAuth stops the periodic check and resets the session without calling
// the network. Sibling stores are told to log out as well.
func (s *Store) ClearAuth() {
	s.stopChecker()
	if cleared := s.clearSession(); cleared {
		s.channel.Publish(broadcast.Message{Type: broadcast.TypeLogout})
	}
}

// ClearError resets only the recorded error.
func (s *Store) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authErr = nil
}

// InitializeAuth runs one self-check over the rehydrated session and starts
// the periodic checker when the store comes out of it still authenticated.
func (s *Store) InitializeAuth(ctx context.Context) {
	s.CheckAuth(ctx)
	if s.IsAuthenticated() {
		s.startChecker()
	}
}

// Close stops the periodic check and detaches from the broadcast channel.
// The session itself is left intact for the next start.
func (s *Store) Close() error {
	s.stopChecker()
	return s.channel.Close()
}

// installLocked atomically replaces the whole session. Caller holds s.mu.
func (s *Store) installLocked(user *users.User, response *authclient.TokenResponse) {
	s.user = user
	s.accessToken = response.AccessToken
	s.refreshToken = response.RefreshToken
	s.sessionID = response.SessionID
	s.isAuthenticated = true
	s.authErr = nil
	s.sessionWarning = false
	s.generation++
}

// clearSessionLocked resets every identity and token field together so no
// reader can ever observe partial state. Caller holds s.mu.
func (s *Store) clearSessionLocked() (hadSession bool) {
	hadSession = s.accessToken != "" || s.refreshToken != "" || s.user != nil || s.sessionID != ""
	s.user = nil
	s.accessToken = ""
	s.refreshToken = ""
	s.sessionID = ""
	s.isAuthenticated = false
	s.isLoading = false
	s.sessionWarning = false
	s.generation++
	return hadSession
}

func (s *Store) clearSession() bool {
	s.mu.Lock()
	hadSession := s.clearSessionLocked()
	s.authErr = nil
	s.mu.Unlock()
	s.persist()
	return hadSession
}

// clearIfGeneration clears the session only when it is still the one the
// failed refresh belonged to.
func (s *Store) clearIfGeneration(generation uint64) {
	s.mu.Lock()
	if s.generation != generation {
		s.mu.Unlock()
		return
	}
	s.clearSessionLocked()
	s.authErr = nil
	s.mu.Unlock()

	s.persist()
	s.stopChecker()
	s.channel.Publish(broadcast.Message{Type: broadcast.TypeLogout})
}

// failLogin clears the session and records err for the UI.
func (s *Store) failLogin(err error) {
	s.stopChecker()
	s.mu.Lock()
	s.clearSessionLocked()
	s.authErr = asAuthError(err)
	s.mu.Unlock()
	s.persist()
}

// rehydrate restores a previously persisted session. Both tokens present
// means authenticated, independent of expiry - the first self-check sorts
// that out.
func (s *Store) rehydrate() {
	state, err := s.storage.Load()
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to load persisted session")
		return
	}
	if state == nil || state.AccessToken == "" || state.RefreshToken == "" {
		return
	}

	user := state.User
	if user == nil {
		user = token.UserFromToken(state.AccessToken)
	}
	if user == nil {
		// Tokens without a recoverable identity violate the session
		// invariant; start anonymous instead.
		return
	}

	s.mu.Lock()
	s.user = user
	s.accessToken = state.AccessToken
	s.refreshToken = state.RefreshToken
	s.sessionID = state.SessionID
	s.isAuthenticated = true
	s.generation++
	s.mu.Unlock()
}

// persist writes the durable subset of the session (or clears it when the
// session is gone). Persistence failures are logged, never fatal.
func (s *Store) persist() {
	s.mu.Lock()
	state := &storage.State{
		AccessToken:  s.accessToken,
		RefreshToken: s.refreshToken,
		SessionID:    s.sessionID,
		User:         s.user,
	}
	empty := s.accessToken == "" && s.refreshToken == ""
	s.mu.Unlock()

	var err error
	if empty {
		err = s.storage.Clear()
	} else {
		err = s.storage.Save(state)
	}
	if err != nil {
		s.log.Error().Err(err).Msg("failed to persist session state")
	}
}

func (s *Store) publishTokens(response *authclient.TokenResponse) {
	s.channel.Publish(broadcast.Message{
		Type:         broadcast.TypeTokenRefreshed,
		AccessToken:  response.AccessToken,
		RefreshToken: response.RefreshToken,
		SessionID:    response.SessionID,
	})
}

// handleBroadcast applies messages from sibling stores. Inbound transitions
// never rebroadcast, so two stores can't ping-pong each other.
func (s *Store) handleBroadcast(msg broadcast.Message) {
	switch msg.Type {
	case broadcast.TypeLogout:
		s.stopChecker()
		s.clearSession()

	case broadcast.TypeTokenRefreshed:
		user := token.UserFromToken(msg.AccessToken)
		if user == nil {
			// Stale or corrupt broadcast; ignore.
			s.log.Debug().Msg("ignoring token broadcast with undecodable access token")
			return
		}
		s.mu.Lock()
		s.installLocked(user, &authclient.TokenResponse{
			AccessToken:  msg.AccessToken,
			RefreshToken: msg.RefreshToken,
			SessionID:    msg.SessionID,
		})
		s.mu.Unlock()
		s.persist()
	}
}

// startChecker launches the periodic self-check. A restart replaces the
// running checker rather than stacking a second one.
func (s *Store) startChecker() {
	stop := make(chan struct{})

	s.mu.Lock()
	if s.checkerStop != nil {
		close(s.checkerStop)
	}
	s.checkerStop = stop
	interval := s.checkInterval
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.CheckAuth(context.Background())
			}
		}
	}()
}

func (s *Store) stopChecker() {
	s.mu.Lock()
	if s.checkerStop != nil {
		close(s.checkerStop)
		s.checkerStop = nil
	}
	s.mu.Unlock()
}

// asAuthError normalizes any failure into the AuthError shape the UI renders.
func asAuthError(err error) *autherrors.AuthError {
	var authErr *autherrors.AuthError
	if autherrors.As(err, &authErr) {
		return authErr
	}
	return autherrors.NewAuthError(err, err.Error(), "", 0)
}
