// Package storage persists the durable subset of a session across process
// restarts, the way the portal persists its auth store under the
// "auth-storage" localStorage key. Runtime-only fields (isAuthenticated,
// isLoading, error, sessionWarning) are never persisted; they are recomputed
// on rehydration.
package storage

import (
	"github.com/easybase/go-portal-auth/users"
)

// StorageKey is the well-known name of the persisted record.
const StorageKey = "auth-storage"

// State is the durable subset of a session.
type State struct {
	AccessToken  string      `json:"accessToken,omitempty"`
	RefreshToken string      `json:"refreshToken,omitempty"`
	SessionID    string      `json:"sessionId,omitempty"`
	User         *users.User `json:"user,omitempty"`
}

// envelope matches the portal's persisted layout: {"state": {...}}.
type envelope struct {
	State State `json:"state"`
}

// Store loads and saves the durable session subset.
type Store interface {
	// Load returns the persisted state, or nil when nothing is persisted.
	Load() (*State, error)

	// Save replaces the persisted state.
	Save(state *State) error

	// Clear removes the persisted state.
	Clear() error
}
