package identity

import "errors"

var (
	// ErrNotFound indicates no account exists for the given identifier.
	ErrNotFound = errors.New("account not found")
	// ErrInvalidInput indicates a request field failed validation before any
	// state was touched. The username charset is checked here, not in the
	// storage backend, so the outcome is the same on every backend.
	ErrInvalidInput = errors.New("invalid username or email")
	// ErrConflict indicates the username or email is already registered.
	ErrConflict = errors.New("username or email already associated with an account")
	// ErrInvalidCredentials covers both unknown username and wrong password,
	// so callers cannot distinguish which field was wrong.
	ErrInvalidCredentials = errors.New("incorrect username or password for this account")
	// ErrInvalidSession indicates a missing, superseded, or expired session token.
	ErrInvalidSession = errors.New("incorrect authentication key")
	// ErrVersionRejected indicates the client version is below the published minimum.
	ErrVersionRejected = errors.New("please update application version")
	// ErrUsernameImmutable indicates a profile update attempted to change the username.
	ErrUsernameImmutable = errors.New("username cannot be changed")
	// ErrDeliveryFailed indicates the OTP could not be dispatched to the account email.
	ErrDeliveryFailed = errors.New("failed to send one-time passcode")
)
