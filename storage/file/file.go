// Package file provides a flat-file implementation of storage.Repository.
//
// Records are laid out as one directory per scope under the data root, with
// one JSON file per key. Each record lives in its own file, so a corrupt or
// truncated write for one account never affects another account's records.
package file

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/jmcleod/gatehouse/storage"
)

// Store implements storage.Repository on top of a directory tree.
type Store struct {
	root string
}

var _ storage.Repository = (*Store)(nil)

// NewStore returns a Store rooted at the given data directory. The directory
// itself is created lazily on first write.
func NewStore(root string) *Store {
	return &Store{root: root}
}

func (s *Store) path(scope, key string) (string, error) {
	if err := validName(scope); err != nil {
		return "", fmt.Errorf("invalid scope %q: %w", scope, err)
	}
	if err := validName(key); err != nil {
		return "", fmt.Errorf("invalid key %q: %w", key, err)
	}
	return filepath.Join(s.root, scope, key+".json"), nil
}

// validName rejects anything that could escape the scope directory or
// collide with hidden files. Scopes and keys are canonical lower-case
// identifiers; emails never appear as keys.
func validName(name string) error {
	if name == "" {
		return errors.New("empty name")
	}
	if name[0] == '.' {
		return errors.New("leading dot")
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '.' || r == '_' || r == '-' || r == '@' || r == '+':
		default:
			return fmt.Errorf("forbidden character %q", r)
		}
	}
	return nil
}

func (s *Store) Put(scope, key string, v any) error {
	p, err := s.path(scope, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		return fmt.Errorf("creating %s container: %w", scope, err)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s/%s: %w", scope, key, err)
	}
	if err := os.WriteFile(p, data, 0o600); err != nil {
		return fmt.Errorf("writing %s/%s: %w", scope, key, err)
	}
	return nil
}

func (s *Store) Get(scope, key string, v any) error {
	p, err := s.path(scope, key)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s/%s: %w", scope, key, storage.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("reading %s/%s: %w", scope, key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%s/%s: %w", scope, key, storage.ErrCorrupt)
	}
	return nil
}

func (s *Store) Delete(scope, key string) error {
	p, err := s.path(scope, key)
	if err != nil {
		return err
	}
	err = os.Remove(p)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s/%s: %w", scope, key, storage.ErrNotFound)
	}
	return err
}
