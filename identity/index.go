package identity

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jmcleod/gatehouse/internal/util"
	"github.com/jmcleod/gatehouse/storage"
)

const (
	scopeIndex = "index"
	indexKey   = "accounts"
)

// Index is the global email-to-username map enforcing uniqueness of both.
// The backing repository offers no transactional update, so every mutation
// re-reads the whole map, tests uniqueness, and flushes it back under a
// mutex. The mutex is the single-writer serialization point: without it two
// concurrent registrations could both pass the uniqueness check before
// either write lands.
type Index struct {
	mu   sync.Mutex
	repo storage.Repository
}

// NewIndex returns an Index over the given repository. The map is created
// empty on first write; a missing index record reads as empty.
func NewIndex(repo storage.Repository) *Index {
	return &Index{repo: repo}
}

func (ix *Index) load() (map[string]string, error) {
	m := make(map[string]string)
	err := ix.repo.Get(scopeIndex, indexKey, &m)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("loading account index: %w", err)
	}
	return m, nil
}

// Resolve maps a login identifier to a canonical username. Identifiers
// without '@' are treated as already being usernames and skip the lookup.
func (ix *Index) Resolve(login string) (string, error) {
	if !strings.Contains(login, "@") {
		return util.CanonicalKey(login), nil
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	m, err := ix.load()
	if err != nil {
		return "", err
	}
	username, ok := m[util.CanonicalKey(login)]
	if !ok {
		return "", ErrNotFound
	}
	return username, nil
}

// Bind records the email-to-username mapping for a new account. It fails
// with ErrConflict if the email is already a key or the username already
// appears as a value. Entries are never removed.
func (ix *Index) Bind(email, username string) error {
	email = util.CanonicalKey(email)
	username = util.CanonicalKey(username)
	ix.mu.Lock()
	defer ix.mu.Unlock()
	m, err := ix.load()
	if err != nil {
		return err
	}
	if _, ok := m[email]; ok {
		return ErrConflict
	}
	for _, existing := range m {
		if existing == username {
			return ErrConflict
		}
	}
	m[email] = username
	if err := ix.repo.Put(scopeIndex, indexKey, m); err != nil {
		return fmt.Errorf("flushing account index: %w", err)
	}
	return nil
}
