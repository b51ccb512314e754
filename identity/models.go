package identity

import "time"

// UserRecord is the durable per-account identity record. Username is the
// canonical lower-case key; ID is an opaque unique identifier generated at
// creation and never reused.
type UserRecord struct {
	Username     string    `json:"username"`
	ID           string    `json:"id"`
	PasswordHash string    `json:"password_hash"`
	Email        string    `json:"email,omitempty"`
	Avatar       string    `json:"avatar,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// SessionRecord holds an account's single active bearer token. A new login
// overwrites it, invalidating the prior token.
type SessionRecord struct {
	Token    string    `json:"token"`
	IssuedAt time.Time `json:"issued_at"`
}

// Challenge is an account's current password-reset challenge. It is
// overwritten by every reset request and marked consumed after a successful
// verification so the same code cannot be replayed within its window.
type Challenge struct {
	Code     string    `json:"code"`
	IssuedAt time.Time `json:"issued_at"`
	Consumed bool      `json:"consumed,omitempty"`
}

// Profile is the public view of a UserRecord, safe to return to clients.
type Profile struct {
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
}

// ProfilePatch carries optional profile field updates; nil fields retain
// their prior value.
type ProfilePatch struct {
	Username *string
	Email    *string
	Avatar   *string
}

// Grant is the result of a successful registration or login.
type Grant struct {
	Username string
	Token    string
}

func (r *UserRecord) profile() *Profile {
	return &Profile{
		Username: r.Username,
		Email:    r.Email,
		Avatar:   r.Avatar,
	}
}
