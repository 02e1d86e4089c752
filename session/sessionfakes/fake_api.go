// Package sessionfakes provides a hand-rolled fake of the session.API
// contract for tests.
package sessionfakes

import (
	"context"
	"errors"
	"sync"

	"github.com/easybase/go-portal-auth/authclient"
)

// FakeAPI implements session.API with injectable behavior and call counters.
type FakeAPI struct {
	mu sync.Mutex

	LoginFunc        func(ctx context.Context, userName, password string) (*authclient.TokenResponse, error)
	RefreshTokenFunc func(ctx context.Context, refreshToken string) (*authclient.TokenResponse, error)
	LogoutFunc       func(ctx context.Context, sessionID string) error

	loginCalls   int
	refreshCalls int
	logoutCalls  int

	logoutSessionIDs []string
}

// NewFakeAPI creates a fake whose operations fail until behavior is injected.
func NewFakeAPI() *FakeAPI {
	return &FakeAPI{}
}

func (f *FakeAPI) Login(ctx context.Context, userName, password string) (*authclient.TokenResponse, error) {
	f.mu.Lock()
	f.loginCalls++
	fn := f.LoginFunc
	f.mu.Unlock()

	if fn == nil {
		return nil, errors.New("FakeAPI: LoginFunc not set")
	}
	return fn(ctx, userName, password)
}

func (f *FakeAPI) RefreshToken(ctx context.Context, refreshToken string) (*authclient.TokenResponse, error) {
	f.mu.Lock()
	f.refreshCalls++
	fn := f.RefreshTokenFunc
	f.mu.Unlock()

	if fn == nil {
		return nil, errors.New("FakeAPI: RefreshTokenFunc not set")
	}
	return fn(ctx, refreshToken)
}

func (f *FakeAPI) Logout(ctx context.Context, sessionID string) error {
	f.mu.Lock()
	f.logoutCalls++
	f.logoutSessionIDs = append(f.logoutSessionIDs, sessionID)
	fn := f.LogoutFunc
	f.mu.Unlock()

	if fn == nil {
		return nil
	}
	return fn(ctx, sessionID)
}

func (f *FakeAPI) LoginCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loginCalls
}

func (f *FakeAPI) RefreshCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshCalls
}

func (f *FakeAPI) LogoutCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logoutCalls
}

func (f *FakeAPI) LogoutSessionIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.logoutSessionIDs...)
}
