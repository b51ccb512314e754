package identity

import (
	"crypto/subtle"
	"errors"
	"time"

	"github.com/jmcleod/gatehouse/internal/util"
	"github.com/jmcleod/gatehouse/storage"
)

const (
	scopeSessions = "sessions"

	// TokenLength is the length of issued session tokens, drawn from the
	// 62-symbol alphanumeric alphabet.
	TokenLength = 32
)

// SessionStore persists each account's single active session token.
type SessionStore struct {
	repo storage.Repository
	ttl  time.Duration // 0 means sessions never expire
	now  func() time.Time
}

// NewSessionStore returns a SessionStore over the given repository.
// A ttl of 0 disables expiry, matching the default contract.
func NewSessionStore(repo storage.Repository, ttl time.Duration, now func() time.Time) *SessionStore {
	if now == nil {
		now = time.Now
	}
	return &SessionStore{repo: repo, ttl: ttl, now: now}
}

// Issue generates a fresh token and persists it as the account's sole valid
// session, replacing any prior token.
func (s *SessionStore) Issue(username string) (string, error) {
	token, err := util.RandomToken(TokenLength)
	if err != nil {
		return "", err
	}
	rec := SessionRecord{Token: token, IssuedAt: s.now()}
	if err := s.repo.Put(scopeSessions, util.CanonicalKey(username), &rec); err != nil {
		return "", err
	}
	return token, nil
}

// Validate reports whether token is the account's most recently issued
// session token and, when a TTL is configured, still fresh. A missing
// session is not an error, just invalid.
func (s *SessionStore) Validate(username, token string) (bool, error) {
	var rec SessionRecord
	err := s.repo.Get(scopeSessions, util.CanonicalKey(username), &rec)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if s.ttl > 0 && s.now().Sub(rec.IssuedAt) > s.ttl {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(rec.Token), []byte(token)) == 1, nil
}
