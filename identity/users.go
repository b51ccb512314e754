package identity

import (
	"errors"
	"fmt"

	"github.com/jmcleod/gatehouse/internal/util"
	"github.com/jmcleod/gatehouse/storage"
)

const scopeUsers = "users"

// UserStore persists per-account credential records, keyed by canonical
// username.
type UserStore struct {
	repo storage.Repository
}

// NewUserStore returns a UserStore over the given repository.
func NewUserStore(repo storage.Repository) *UserStore {
	return &UserStore{repo: repo}
}

// Create writes a new record. It fails with ErrConflict if a record already
// exists at the record's username.
func (s *UserStore) Create(rec UserRecord) error {
	var existing UserRecord
	err := s.repo.Get(scopeUsers, rec.Username, &existing)
	if err == nil {
		return fmt.Errorf("%s: %w", rec.Username, ErrConflict)
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	return s.repo.Put(scopeUsers, rec.Username, &rec)
}

// Get loads the record for the given username.
func (s *UserStore) Get(username string) (*UserRecord, error) {
	var rec UserRecord
	err := s.repo.Get(scopeUsers, util.CanonicalKey(username), &rec)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", username, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// SetPasswordHash replaces the stored password hash for the account.
func (s *UserStore) SetPasswordHash(username, hash string) error {
	rec, err := s.Get(username)
	if err != nil {
		return err
	}
	rec.PasswordHash = hash
	return s.repo.Put(scopeUsers, rec.Username, rec)
}

// Apply overwrites the record's optional profile fields with the patch's
// present fields and persists the result. The username is the record's
// immutable storage key: a patch naming a different username is rejected
// with ErrUsernameImmutable rather than silently leaving the index and the
// stored record out of sync.
func (s *UserStore) Apply(username string, patch ProfilePatch) (*UserRecord, error) {
	rec, err := s.Get(username)
	if err != nil {
		return nil, err
	}
	if patch.Username != nil && util.CanonicalKey(*patch.Username) != rec.Username {
		return nil, ErrUsernameImmutable
	}
	if patch.Email != nil {
		rec.Email = util.CanonicalKey(*patch.Email)
	}
	if patch.Avatar != nil {
		rec.Avatar = *patch.Avatar
	}
	if err := s.repo.Put(scopeUsers, rec.Username, rec); err != nil {
		return nil, err
	}
	return rec, nil
}
