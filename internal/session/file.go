package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileStore keeps one JSON file per key in a directory.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (f *FileStore) path(key string) string {
	return filepath.Join(f.dir, key+".json")
}

func (f *FileStore) Save(_ context.Context, s Session) error {
	if err := os.MkdirAll(f.dir, 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	if err := f.write(KeyCurrentUser, s.User); err != nil {
		return err
	}
	return f.write(KeyAuthToken, s.Token)
}

func (f *FileStore) write(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	tmp := f.path(key) + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return os.Rename(tmp, f.path(key))
}

func (f *FileStore) Load(_ context.Context) (Session, error) {
	var s Session
	raw, err := os.ReadFile(f.path(KeyCurrentUser))
	if errors.Is(err, fs.ErrNotExist) {
		return Session{}, ErrNoSession
	}
	if err != nil {
		return Session{}, fmt.Errorf("read %s: %w", KeyCurrentUser, err)
	}
	if err := json.Unmarshal(raw, &s.User); err != nil {
		return Session{}, fmt.Errorf("decode %s: %w", KeyCurrentUser, err)
	}
	if raw, err := os.ReadFile(f.path(KeyAuthToken)); err == nil {
		_ = json.Unmarshal(raw, &s.Token)
	}
	if s.User.ID == "" {
		return Session{}, ErrNoSession
	}
	return s, nil
}

func (f *FileStore) Clear(_ context.Context) error {
	for _, key := range []string{KeyCurrentUser, KeyAuthToken} {
		if err := os.Remove(f.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", key, err)
		}
	}
	return nil
}
