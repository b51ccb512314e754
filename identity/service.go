// Package identity implements the credential and session persistence core:
// account records, the email-to-username index, session tokens, and one-time
// passcode reset challenges, all over a storage.Repository.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"

	"github.com/jmcleod/gatehouse/internal/util"
	"github.com/jmcleod/gatehouse/storage"
)

// DefaultMinClientVersion is the oldest client version accepted at login.
const DefaultMinClientVersion = "0.1.0"

// Sender dispatches a reset code to an account's email address. Delivery
// failure fails the reset request; the persisted challenge is not retried.
type Sender interface {
	SendOTP(ctx context.Context, code, username, email string) error
}

// Service orchestrates the stores to implement registration, login, profile
// access, and the password-reset flow.
type Service struct {
	users      *UserStore
	sessions   *SessionStore
	challenges *ChallengeStore
	index      *Index
	sender     Sender
	minVersion *semver.Version
	sessionTTL time.Duration
	now        func() time.Time

	// regMu serializes registrations; see Register.
	regMu sync.Mutex
}

// Option configures the Service.
type Option func(*Service)

// WithSender sets the OTP delivery collaborator. Without one, reset
// requests fail with ErrDeliveryFailed.
func WithSender(s Sender) Option {
	return func(svc *Service) { svc.sender = s }
}

// WithSessionTTL makes issued sessions expire after d. The default of 0
// means sessions stay valid until superseded by a new login.
func WithSessionTTL(d time.Duration) Option {
	return func(svc *Service) { svc.sessionTTL = d }
}

// WithMinClientVersion overrides the minimum client version accepted at login.
func WithMinClientVersion(v *semver.Version) Option {
	return func(svc *Service) { svc.minVersion = v }
}

// WithClock overrides the time source. Used by tests to age challenges and
// sessions.
func WithClock(now func() time.Time) Option {
	return func(svc *Service) { svc.now = now }
}

// New creates a Service over the given repository.
func New(repo storage.Repository, opts ...Option) *Service {
	svc := &Service{
		minVersion: semver.MustParse(DefaultMinClientVersion),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	svc.users = NewUserStore(repo)
	svc.sessions = NewSessionStore(repo, svc.sessionTTL, svc.now)
	svc.challenges = NewChallengeStore(repo, svc.now)
	svc.index = NewIndex(repo)
	return svc
}

// Register creates an account and issues its first session. The user record
// is written before the index entry: a crash between the two leaves an
// orphan record with no index binding, never an index entry pointing at a
// missing record.
func (svc *Service) Register(ctx context.Context, username, email, password string) (Grant, error) {
	username = util.CanonicalKey(username)
	email = util.CanonicalKey(email)
	if password == "" {
		return Grant{}, fmt.Errorf("password must not be empty: %w", ErrInvalidInput)
	}
	if err := validUsername(username); err != nil {
		return Grant{}, err
	}
	// Index resolution keys off '@'; an address without one could never be
	// resolved back to this account.
	if !strings.Contains(email, "@") {
		return Grant{}, fmt.Errorf("malformed email address: %w", ErrInvalidInput)
	}

	hash, err := util.HashPassword(password)
	if err != nil {
		return Grant{}, err
	}

	// The existence check, record write, and index bind are not atomic
	// against the repository; serialize registrations so two concurrent
	// claims on one username cannot both pass the check and have the
	// loser's record land after the winner's.
	svc.regMu.Lock()
	defer svc.regMu.Unlock()

	if _, err := svc.users.Get(username); err == nil {
		return Grant{}, fmt.Errorf("%s: %w", username, ErrConflict)
	} else if !errors.Is(err, ErrNotFound) {
		return Grant{}, err
	}
	// Cheap pre-check so an email collision is caught before the record
	// write; the authoritative uniqueness test is Bind below.
	if _, err := svc.index.Resolve(email); err == nil {
		return Grant{}, fmt.Errorf("%s: %w", email, ErrConflict)
	} else if !errors.Is(err, ErrNotFound) {
		return Grant{}, err
	}

	rec := UserRecord{
		Username:     username,
		ID:           uuid.NewString(),
		PasswordHash: hash,
		Email:        email,
		CreatedAt:    svc.now().UTC(),
	}
	if err := svc.users.Create(rec); err != nil {
		return Grant{}, err
	}
	if err := svc.index.Bind(email, username); err != nil {
		return Grant{}, err
	}

	token, err := svc.sessions.Issue(username)
	if err != nil {
		return Grant{}, err
	}
	return Grant{Username: username, Token: token}, nil
}

// Login authenticates by username or email and issues a new session token,
// invalidating any prior one. Unknown accounts and wrong passwords are
// indistinguishable to the caller. The client version gate applies
// independently of credential correctness.
func (svc *Service) Login(ctx context.Context, login, password, clientVersion string) (Grant, error) {
	v, err := semver.NewVersion(clientVersion)
	if err != nil || v.LessThan(svc.minVersion) {
		return Grant{}, ErrVersionRejected
	}

	username, err := svc.index.Resolve(login)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Grant{}, ErrInvalidCredentials
		}
		return Grant{}, err
	}
	// A name no backend would accept as a key cannot name an account.
	if validUsername(username) != nil {
		return Grant{}, ErrInvalidCredentials
	}
	rec, err := svc.users.Get(username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Grant{}, ErrInvalidCredentials
		}
		return Grant{}, err
	}
	ok, err := util.VerifyPassword(password, rec.PasswordHash)
	if err != nil {
		return Grant{}, err
	}
	if !ok {
		return Grant{}, ErrInvalidCredentials
	}

	token, err := svc.sessions.Issue(username)
	if err != nil {
		return Grant{}, err
	}
	return Grant{Username: username, Token: token}, nil
}

// Profile returns the account's public profile after validating the session
// token.
func (svc *Service) Profile(ctx context.Context, username, token string) (*Profile, error) {
	if err := svc.authorize(username, token); err != nil {
		return nil, err
	}
	rec, err := svc.users.Get(username)
	if err != nil {
		return nil, err
	}
	return rec.profile(), nil
}

// UpdateProfile applies the patch to the account's record and returns the
// updated public profile. Present fields overwrite, absent fields keep
// their prior value; the username itself cannot change.
func (svc *Service) UpdateProfile(ctx context.Context, username, token string, patch ProfilePatch) (*Profile, error) {
	if err := svc.authorize(username, token); err != nil {
		return nil, err
	}
	rec, err := svc.users.Apply(username, patch)
	if err != nil {
		return nil, err
	}
	return rec.profile(), nil
}

// RequestReset issues a fresh reset challenge for the account registered
// under email and dispatches the code through the Sender. The challenge
// replaces any prior one even if delivery then fails.
func (svc *Service) RequestReset(ctx context.Context, email string) error {
	username, err := svc.index.Resolve(email)
	if err != nil {
		return err
	}
	if validUsername(username) != nil {
		return ErrNotFound
	}
	code, err := svc.challenges.Issue(username)
	if err != nil {
		return err
	}
	if svc.sender == nil {
		return ErrDeliveryFailed
	}
	if err := svc.sender.SendOTP(ctx, code, username, util.CanonicalKey(email)); err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	return nil
}

// VerifyReset redeems the account's current challenge. When the code matches
// within its window the password hash is replaced and true is returned; an
// expired, mismatched, or already-consumed code returns false with no error
// and leaves the stored password untouched.
func (svc *Service) VerifyReset(ctx context.Context, email, code, newPassword string) (bool, error) {
	username, err := svc.index.Resolve(email)
	if err != nil {
		return false, err
	}
	if validUsername(username) != nil {
		return false, ErrNotFound
	}
	ok, err := svc.challenges.Redeem(username, code)
	if err != nil || !ok {
		return false, err
	}
	hash, err := util.HashPassword(newPassword)
	if err != nil {
		return false, err
	}
	if err := svc.users.SetPasswordHash(username, hash); err != nil {
		return false, err
	}
	return true, nil
}

func (svc *Service) authorize(username, token string) error {
	if validUsername(util.CanonicalKey(username)) != nil {
		return ErrInvalidSession
	}
	ok, err := svc.sessions.Validate(username, token)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidSession
	}
	return nil
}
