package identity

import (
	"crypto/subtle"
	"errors"
	"time"

	"github.com/jmcleod/gatehouse/internal/util"
	"github.com/jmcleod/gatehouse/storage"
)

const (
	scopeOTP = "otp"

	// CodeLength is the number of digits in a reset challenge code.
	// Collisions across accounts are allowed; the code only proves
	// ownership of the email the challenge was sent to.
	CodeLength = 4

	// ChallengeWindow is how long a challenge stays redeemable after issue.
	ChallengeWindow = 2 * time.Hour
)

// ChallengeStore persists each account's current password-reset challenge.
type ChallengeStore struct {
	repo storage.Repository
	now  func() time.Time
}

// NewChallengeStore returns a ChallengeStore over the given repository.
func NewChallengeStore(repo storage.Repository, now func() time.Time) *ChallengeStore {
	if now == nil {
		now = time.Now
	}
	return &ChallengeStore{repo: repo, now: now}
}

// Issue generates a fresh numeric code and persists it, stamped with the
// current time, replacing any prior challenge for the account.
func (s *ChallengeStore) Issue(username string) (string, error) {
	code, err := util.RandomDigits(CodeLength)
	if err != nil {
		return "", err
	}
	ch := Challenge{Code: code, IssuedAt: s.now()}
	if err := s.repo.Put(scopeOTP, util.CanonicalKey(username), &ch); err != nil {
		return "", err
	}
	return code, nil
}

// Redeem reports whether code matches the account's current challenge within
// its freshness window. A valid challenge is marked consumed before success
// is reported, so the same code cannot be redeemed twice. Expired,
// mismatched, consumed, or absent challenges are not errors, just invalid.
func (s *ChallengeStore) Redeem(username, code string) (bool, error) {
	key := util.CanonicalKey(username)
	var ch Challenge
	err := s.repo.Get(scopeOTP, key, &ch)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if ch.Consumed {
		return false, nil
	}
	if s.now().Sub(ch.IssuedAt) >= ChallengeWindow {
		return false, nil
	}
	if subtle.ConstantTimeCompare([]byte(ch.Code), []byte(code)) != 1 {
		return false, nil
	}
	ch.Consumed = true
	if err := s.repo.Put(scopeOTP, key, &ch); err != nil {
		return false, err
	}
	return true, nil
}
