// Package devserver is an in-memory stand-in for the EasyBase auth backend.
// It implements the auth API surface the SDK consumes (login, refresh,
// logout, session management) and backs the CLI demo and end-to-end tests.
// Not meant for production use: accounts and sessions live in process memory.
package devserver

import (
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/easybase/go-portal-auth/authclient"
	"github.com/easybase/go-portal-auth/users"
)

const (
	// DefaultAccessTTL matches the backend's short-lived access tokens.
	DefaultAccessTTL = time.Hour
	// DefaultRefreshTTL matches the backend's refresh token lifetime.
	DefaultRefreshTTL = 24 * time.Hour
)

// Account is one operator the dev server will authenticate.
type Account struct {
	UserID       string
	Email        string
	UserName     string
	TenantID     string
	Authorities  []users.AuthorityType
	PasswordHash string
}

// sessionRecord is one server-tracked login instance.
type sessionRecord struct {
	ID             string
	UserID         string
	TenantID       string
	IPAddress      string
	UserAgent      string
	CreatedAt      time.Time
	ExpiresAt      time.Time
	RefreshTokenID string // jti of the currently valid refresh token (rotation)
	Revoked        bool
}

// Server implements the auth API over in-memory state.
type Server struct {
	mux        *http.ServeMux
	signingKey []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	basePath   string
	log        zerolog.Logger

	mu       sync.Mutex
	accounts map[string]Account // keyed by userName
	sessions map[string]*sessionRecord
	limiters map[string]*rate.Limiter // per-userName login throttle
}

// Option modifies a Server during construction.
type Option func(*Server)

// WithAccessTTL overrides the access token lifetime.
func WithAccessTTL(ttl time.Duration) Option {
	return func(s *Server) { s.accessTTL = ttl }
}

// WithRefreshTTL overrides the refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) Option {
	return func(s *Server) { s.refreshTTL = ttl }
}

// WithBasePath overrides the auth API mount point.
func WithBasePath(basePath string) Option {
	return func(s *Server) { s.basePath = basePath }
}

// WithLogger sets the server logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Server) { s.log = log }
}

// New creates a dev auth server signing tokens with signingKey.
func New(signingKey []byte, options ...Option) *Server {
	s := &Server{
		mux:        http.NewServeMux(),
		signingKey: signingKey,
		accessTTL:  DefaultAccessTTL,
		refreshTTL: DefaultRefreshTTL,
		basePath:   authclient.DefaultBasePath,
		log:        zerolog.Nop(),
		accounts:   make(map[string]Account),
		sessions:   make(map[string]*sessionRecord),
		limiters:   make(map[string]*rate.Limiter),
	}

	for _, opt := range options {
		opt(s)
	}

	s.initRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) initRoutes() {
	s.mux.HandleFunc("POST "+s.basePath+"/login", s.handleLogin)
	s.mux.HandleFunc("POST "+s.basePath+"/refresh", s.handleRefresh)
	s.mux.HandleFunc("POST "+s.basePath+"/logout", s.handleLogout)
	s.mux.HandleFunc("GET "+s.basePath+"/sessions", s.handleListSessions)
	s.mux.HandleFunc("DELETE "+s.basePath+"/sessions/{id}", s.handleRevokeSession)
	s.mux.HandleFunc("POST "+s.basePath+"/sessions/revoke-all", s.handleRevokeAll)
}

// AddAccount registers an operator account with a bcrypt-hashed password.
func (s *Server) AddAccount(account Account, password string) error {
	hash, err := users.HashPassword(password)
	if err != nil {
		return err
	}
	account.PasswordHash = hash

	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[account.UserName] = account
	return nil
}

// limiter returns the login throttle for userName, creating it on first use.
// Five attempts, refilling one per second.
func (s *Server) limiter(userName string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	limiter, ok := s.limiters[userName]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(time.Second), 5)
		s.limiters[userName] = limiter
	}
	return limiter
}
