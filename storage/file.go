package storage

import (
	"encoding/json"
	"os"
	"path/filepath"

	autherrors "github.com/easybase/go-portal-auth/internal/errors"
)

// DefaultFilePath returns the default location of the persisted session file.
func DefaultFilePath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".easybase", StorageKey+".json")
}

// FileStore persists the session state as a JSON file. Writes go through a
// temp file and rename so a crash never leaves a half-written record.
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed store at path; an empty path uses the
// default location.
func NewFileStore(path string) *FileStore {
	if path == "" {
		path = DefaultFilePath()
	}
	return &FileStore{path: path}
}

// Load reads the persisted state. A missing file is not an error - it simply
// means no session was persisted.
func (fs *FileStore) Load() (*State, error) {
	data, err := os.ReadFile(fs.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, autherrors.Wrapf(err, "[FileStore.Load] read %s", fs.path)
	}

	var record envelope
	if err := json.Unmarshal(data, &record); err != nil {
		// A corrupt record is equivalent to no record; the operator just
		// logs in again.
		return nil, nil
	}

	return &record.State, nil
}

// Save writes the state atomically with owner-only permissions, since it
// contains live credentials.
func (fs *FileStore) Save(state *State) error {
	if state == nil {
		return fs.Clear()
	}

	data, err := json.MarshalIndent(envelope{State: *state}, "", "  ")
	if err != nil {
		return autherrors.Wrapf(err, "[FileStore.Save] marshal state")
	}

	dir := filepath.Dir(fs.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return autherrors.Wrapf(err, "[FileStore.Save] create %s", dir)
	}

	tmp, err := os.CreateTemp(dir, StorageKey+"-*.tmp")
	if err != nil {
		return autherrors.Wrapf(err, "[FileStore.Save] create temp file")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return autherrors.Wrapf(err, "[FileStore.Save] write temp file")
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return autherrors.Wrapf(err, "[FileStore.Save] chmod temp file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return autherrors.Wrapf(err, "[FileStore.Save] close temp file")
	}

	if err := os.Rename(tmpName, fs.path); err != nil {
		os.Remove(tmpName)
		return autherrors.Wrapf(err, "[FileStore.Save] rename into place")
	}

	return nil
}

// Clear removes the persisted state. Clearing an absent record is a no-op.
func (fs *FileStore) Clear() error {
	if err := os.Remove(fs.path); err != nil && !os.IsNotExist(err) {
		return autherrors.Wrapf(err, "[FileStore.Clear] remove %s", fs.path)
	}
	return nil
}

var _ Store = (*FileStore)(nil)
