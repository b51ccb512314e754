package identity_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/gatehouse/identity"
	"github.com/jmcleod/gatehouse/storage"
	"github.com/jmcleod/gatehouse/storage/file"
	"github.com/jmcleod/gatehouse/storage/memory"
)

const currentVersion = "1.0.0"

type captureSender struct {
	codes []string
	to    []string
	err   error
}

func (s *captureSender) SendOTP(_ context.Context, code, username, email string) error {
	if s.err != nil {
		return s.err
	}
	s.codes = append(s.codes, code)
	s.to = append(s.to, email)
	return nil
}

func (s *captureSender) lastCode(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, s.codes, "no code was dispatched")
	return s.codes[len(s.codes)-1]
}

type testClock struct {
	now time.Time
}

func (c *testClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestService(t *testing.T, opts ...identity.Option) (*identity.Service, *captureSender, *testClock) {
	t.Helper()
	sender := &captureSender{}
	clock := &testClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	opts = append([]identity.Option{
		identity.WithSender(sender),
		identity.WithClock(func() time.Time { return clock.now }),
	}, opts...)
	return identity.New(memory.NewStore(), opts...), sender, clock
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := t.Context()

	grant, err := svc.Register(ctx, "Alice", "A@X.com", "pw1")
	require.NoError(t, err)
	assert.Equal(t, "alice", grant.Username)
	assert.Len(t, grant.Token, identity.TokenLength)

	// Login by username.
	grant, err = svc.Login(ctx, "alice", "pw1", currentVersion)
	require.NoError(t, err)
	assert.Equal(t, "alice", grant.Username)
	assert.Len(t, grant.Token, identity.TokenLength)

	// Login by email resolves through the index.
	grant, err = svc.Login(ctx, "a@x.com", "pw1", currentVersion)
	require.NoError(t, err)
	assert.Equal(t, "alice", grant.Username)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := t.Context()

	_, err := svc.Register(ctx, "alice", "a@x.com", "pw1")
	require.NoError(t, err)

	_, wrongPassword := svc.Login(ctx, "alice", "nope", currentVersion)
	_, unknownUser := svc.Login(ctx, "mallory", "nope", currentVersion)
	_, unknownEmail := svc.Login(ctx, "ghost@x.com", "nope", currentVersion)

	for _, err := range []error{wrongPassword, unknownUser, unknownEmail} {
		assert.ErrorIs(t, err, identity.ErrInvalidCredentials)
	}
}

func TestRegisterConflicts(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := t.Context()

	_, err := svc.Register(ctx, "alice", "a@x.com", "pw1")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "bob", "a@x.com", "pw2")
	assert.ErrorIs(t, err, identity.ErrConflict, "duplicate email")

	_, err = svc.Register(ctx, "alice", "b@x.com", "pw2")
	assert.ErrorIs(t, err, identity.ErrConflict, "duplicate username")

	_, err = svc.Register(ctx, "ALICE", "c@x.com", "pw2")
	assert.ErrorIs(t, err, identity.ErrConflict, "case-variant username")

	_, err = svc.Register(ctx, "bob", "b@x.com", "pw2")
	assert.NoError(t, err, "distinct email and username")
}

func TestLoginVersionGate(t *testing.T) {
	svc, _, _ := newTestService(t, identity.WithMinClientVersion(semver.MustParse("0.5.0")))
	ctx := t.Context()

	_, err := svc.Register(ctx, "alice", "a@x.com", "pw1")
	require.NoError(t, err)

	_, err = svc.Login(ctx, "alice", "pw1", "0.4.9")
	assert.ErrorIs(t, err, identity.ErrVersionRejected)

	_, err = svc.Login(ctx, "alice", "pw1", "not-a-version")
	assert.ErrorIs(t, err, identity.ErrVersionRejected)

	// The gate applies independently of credential correctness.
	_, err = svc.Login(ctx, "alice", "wrong", "0.0.1")
	assert.ErrorIs(t, err, identity.ErrVersionRejected)

	_, err = svc.Login(ctx, "alice", "pw1", "0.5.0")
	assert.NoError(t, err)
}

func TestNewLoginInvalidatesPriorToken(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := t.Context()

	first, err := svc.Register(ctx, "alice", "a@x.com", "pw1")
	require.NoError(t, err)

	second, err := svc.Login(ctx, "alice", "pw1", currentVersion)
	require.NoError(t, err)
	require.NotEqual(t, first.Token, second.Token)

	_, err = svc.Profile(ctx, "alice", first.Token)
	assert.ErrorIs(t, err, identity.ErrInvalidSession)

	profile, err := svc.Profile(ctx, "alice", second.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice", profile.Username)
}

func TestProfileRetrieval(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := t.Context()

	grant, err := svc.Register(ctx, "alice", "a@x.com", "pw1")
	require.NoError(t, err)

	profile, err := svc.Profile(ctx, "alice", grant.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice", profile.Username)
	assert.Equal(t, "a@x.com", profile.Email)
	assert.Empty(t, profile.Avatar)

	// Idempotent absent intervening updates.
	again, err := svc.Profile(ctx, "alice", grant.Token)
	require.NoError(t, err)
	assert.Equal(t, profile, again)

	_, err = svc.Profile(ctx, "alice", "bogus-token")
	assert.ErrorIs(t, err, identity.ErrInvalidSession)
}

func TestUpdateProfile(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := t.Context()

	grant, err := svc.Register(ctx, "alice", "a@x.com", "pw1")
	require.NoError(t, err)

	avatar := "avatars/42"
	profile, err := svc.UpdateProfile(ctx, "alice", grant.Token, identity.ProfilePatch{Avatar: &avatar})
	require.NoError(t, err)
	assert.Equal(t, avatar, profile.Avatar)
	assert.Equal(t, "a@x.com", profile.Email, "absent fields keep their prior value")

	email := "new@x.com"
	profile, err = svc.UpdateProfile(ctx, "alice", grant.Token, identity.ProfilePatch{Email: &email})
	require.NoError(t, err)
	assert.Equal(t, "new@x.com", profile.Email)
	assert.Equal(t, avatar, profile.Avatar)

	// The username is the immutable storage key.
	rename := "alicia"
	_, err = svc.UpdateProfile(ctx, "alice", grant.Token, identity.ProfilePatch{Username: &rename})
	assert.ErrorIs(t, err, identity.ErrUsernameImmutable)

	// Restating the current username is allowed.
	same := "Alice"
	_, err = svc.UpdateProfile(ctx, "alice", grant.Token, identity.ProfilePatch{Username: &same})
	assert.NoError(t, err)
}

func TestResetFlow(t *testing.T) {
	svc, sender, _ := newTestService(t)
	ctx := t.Context()

	_, err := svc.Register(ctx, "alice", "a@x.com", "pw1")
	require.NoError(t, err)

	require.NoError(t, svc.RequestReset(ctx, "a@x.com"))
	code := sender.lastCode(t)
	assert.Len(t, code, identity.CodeLength)

	// Wrong code is a soft fail and leaves the password untouched.
	verified, err := svc.VerifyReset(ctx, "a@x.com", wrongCode(code), "pw2")
	require.NoError(t, err)
	assert.False(t, verified)
	_, err = svc.Login(ctx, "alice", "pw1", currentVersion)
	assert.NoError(t, err, "old password still valid after invalid attempt")

	verified, err = svc.VerifyReset(ctx, "a@x.com", code, "pw2")
	require.NoError(t, err)
	assert.True(t, verified)

	_, err = svc.Login(ctx, "alice", "pw2", currentVersion)
	assert.NoError(t, err, "new password accepted")
	_, err = svc.Login(ctx, "alice", "pw1", currentVersion)
	assert.ErrorIs(t, err, identity.ErrInvalidCredentials, "old password rejected")

	// A consumed code cannot be replayed within its window.
	verified, err = svc.VerifyReset(ctx, "a@x.com", code, "pw3")
	require.NoError(t, err)
	assert.False(t, verified)
	_, err = svc.Login(ctx, "alice", "pw2", currentVersion)
	assert.NoError(t, err)
}

func TestResetExpiry(t *testing.T) {
	svc, sender, clock := newTestService(t)
	ctx := t.Context()

	_, err := svc.Register(ctx, "alice", "a@x.com", "pw1")
	require.NoError(t, err)

	require.NoError(t, svc.RequestReset(ctx, "a@x.com"))
	code := sender.lastCode(t)

	clock.advance(identity.ChallengeWindow + time.Second)
	verified, err := svc.VerifyReset(ctx, "a@x.com", code, "pw2")
	require.NoError(t, err)
	assert.False(t, verified, "correct code past the window is invalid")

	// A fresh request supersedes the stale challenge.
	require.NoError(t, svc.RequestReset(ctx, "a@x.com"))
	verified, err = svc.VerifyReset(ctx, "a@x.com", sender.lastCode(t), "pw2")
	require.NoError(t, err)
	assert.True(t, verified)
}

func TestResetUnknownEmail(t *testing.T) {
	svc, _, _ := newTestService(t)
	err := svc.RequestReset(t.Context(), "ghost@x.com")
	assert.ErrorIs(t, err, identity.ErrNotFound)

	_, err = svc.VerifyReset(t.Context(), "ghost@x.com", "0000", "pw2")
	assert.ErrorIs(t, err, identity.ErrNotFound)
}

func TestResetDeliveryFailure(t *testing.T) {
	svc, sender, _ := newTestService(t)
	ctx := t.Context()

	_, err := svc.Register(ctx, "alice", "a@x.com", "pw1")
	require.NoError(t, err)

	sender.err = errors.New("smtp down")
	err = svc.RequestReset(ctx, "a@x.com")
	assert.ErrorIs(t, err, identity.ErrDeliveryFailed)
}

func TestSessionTTL(t *testing.T) {
	svc, _, clock := newTestService(t, identity.WithSessionTTL(time.Hour))
	ctx := t.Context()

	grant, err := svc.Register(ctx, "alice", "a@x.com", "pw1")
	require.NoError(t, err)

	_, err = svc.Profile(ctx, "alice", grant.Token)
	require.NoError(t, err)

	clock.advance(2 * time.Hour)
	_, err = svc.Profile(ctx, "alice", grant.Token)
	assert.ErrorIs(t, err, identity.ErrInvalidSession)
}

func TestRegisterRejectsUnsafeUsernames(t *testing.T) {
	// Every backend must report the same typed rejection; none of these
	// names may reach a backend as a key and fail with an opaque error.
	backends := map[string]storage.Repository{
		"memory": memory.NewStore(),
		"file":   file.NewStore(t.TempDir()),
	}
	for name, repo := range backends {
		t.Run(name, func(t *testing.T) {
			svc := identity.New(repo, identity.WithSender(&captureSender{}))
			ctx := t.Context()

			for _, username := range []string{"a b", "a/b", `a\b`, "a@b", "..", ""} {
				_, err := svc.Register(ctx, username, "ab@x.com", "pw1")
				assert.ErrorIs(t, err, identity.ErrInvalidInput, "username %q", username)
			}

			_, err := svc.Register(ctx, "alice", "not-an-address", "pw1")
			assert.ErrorIs(t, err, identity.ErrInvalidInput, "email without @")

			_, err = svc.Register(ctx, "alice", "a@x.com", "")
			assert.ErrorIs(t, err, identity.ErrInvalidInput, "empty password")

			// The same names stay typed on the read paths too.
			_, err = svc.Login(ctx, "a b", "pw1", currentVersion)
			assert.ErrorIs(t, err, identity.ErrInvalidCredentials)
			_, err = svc.Profile(ctx, "a b", "some-token")
			assert.ErrorIs(t, err, identity.ErrInvalidSession)
		})
	}
}

func TestConcurrentRegistrationSameUsername(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	const attempts = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []string
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			password := fmt.Sprintf("pw-%d", i)
			email := fmt.Sprintf("alice%d@x.com", i)
			if _, err := svc.Register(ctx, "alice", email, password); err == nil {
				mu.Lock()
				winners = append(winners, password)
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	require.Len(t, winners, 1, "exactly one concurrent claim on a username may succeed")
	_, err := svc.Login(ctx, "alice", winners[0], currentVersion)
	assert.NoError(t, err, "winning record survives the losing attempts")
}

// wrongCode returns a 4-digit code guaranteed to differ from code.
func wrongCode(code string) string {
	if code == "0000" {
		return "0001"
	}
	return "0000"
}
