package session

import (
	"context"

	"golang.org/x/oauth2"

	autherrors "github.com/easybase/go-portal-auth/internal/errors"
	"github.com/easybase/go-portal-auth/token"
)

// TokenSource exposes the store as an oauth2.TokenSource so generated API
// clients can consume the live session directly. Token returns the current
// access token, refreshing it first when it is expired or about to expire;
// the refresh shares the store's deduplication.
func (s *Store) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &storeTokenSource{ctx: ctx, store: s}
}

type storeTokenSource struct {
	ctx   context.Context
	store *Store
}

func (ts *storeTokenSource) Token() (*oauth2.Token, error) {
	snapshot := ts.store.Snapshot()
	if !snapshot.IsAuthenticated {
		return nil, autherrors.ErrNotAuthenticated
	}

	if token.IsExpired(snapshot.AccessToken) || token.IsExpiringSoon(snapshot.AccessToken, ts.store.warningBuffer) {
		if err := ts.store.RefreshTokens(ts.ctx); err != nil {
			return nil, autherrors.Wrapf(err, "[TokenSource] refresh failed")
		}
		snapshot = ts.store.Snapshot()
		if !snapshot.IsAuthenticated {
			return nil, autherrors.ErrNotAuthenticated
		}
	}

	expiry, _ := token.Expiry(snapshot.AccessToken)
	return &oauth2.Token{
		AccessToken:  snapshot.AccessToken,
		RefreshToken: snapshot.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       expiry,
	}, nil
}
