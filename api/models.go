package api

// RegisterRequest is the JSON body for POST /register.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=32"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginRequest is the JSON body for POST /login. Username also accepts the
// account's email address.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	Version  string `json:"version" validate:"required"`
}

// SessionResponse is returned from POST /register and POST /login.
type SessionResponse struct {
	SessionKey string `json:"session_key"`
	Username   string `json:"username"`
}

// UserDataRequest is the JSON body for POST /user_data.
type UserDataRequest struct {
	Username   string `json:"username" validate:"required"`
	SessionKey string `json:"session_key" validate:"required"`
}

// UserDataUpdateRequest is the JSON body for POST /update_user_data. Absent
// fields keep their prior value; new_username is accepted for wire
// compatibility but must match the current username.
type UserDataUpdateRequest struct {
	Username    string  `json:"username" validate:"required"`
	SessionKey  string  `json:"session_key" validate:"required"`
	NewUsername *string `json:"new_username,omitempty"`
	Email       *string `json:"email,omitempty" validate:"omitempty,email"`
	Avatar      *string `json:"avatar,omitempty"`
}

// ResetRequest is the JSON body for POST /reset_request.
type ResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// CheckOTPRequest is the JSON body for POST /check_otp.
type CheckOTPRequest struct {
	Email    string `json:"email" validate:"required,email"`
	OTP      string `json:"otp" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// StatusResponse carries a one-word outcome for operations with no payload.
type StatusResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is returned for all error cases.
type ErrorResponse struct {
	Error string `json:"error"`
}
