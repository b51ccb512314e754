package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/jmcleod/gatehouse/identity"
)

// maxBodySize bounds request bodies; every payload here is a handful of
// short strings.
const maxBodySize = 16 << 10

// decodeValid decodes the JSON body into T and runs struct validation.
// On failure it writes the 400 response itself and returns false.
func decodeValid[T any](a *API, w http.ResponseWriter, r *http.Request) (T, bool) {
	var req T
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return req, false
	}
	if err := a.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return req, false
	}
	return req, true
}

// Health handles GET /health.
func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// Register handles POST /register.
func (a *API) Register(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeValid[RegisterRequest](a, w, r)
	if !ok {
		return
	}
	grant, err := a.svc.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		a.audit.logFailure(AuditRegisterFailure, r, "registration rejected")
		mapError(w, err)
		return
	}
	a.audit.logEvent(AuditRegister, r, grant.Username)
	writeJSON(w, http.StatusOK, SessionResponse{SessionKey: grant.Token, Username: grant.Username})
}

// Login handles POST /login.
func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)
	if !a.limiter.allow(ip) {
		a.audit.logFailure(AuditLoginRateLimited, r, "rate limited", slog.String("client_ip", ip))
		writeError(w, http.StatusTooManyRequests, "too many login attempts")
		return
	}
	req, ok := decodeValid[LoginRequest](a, w, r)
	if !ok {
		return
	}
	grant, err := a.svc.Login(r.Context(), req.Username, req.Password, req.Version)
	if err != nil {
		a.audit.logFailure(AuditLoginFailure, r, "login rejected")
		mapError(w, err)
		return
	}
	a.audit.logEvent(AuditLoginSuccess, r, grant.Username)
	writeJSON(w, http.StatusOK, SessionResponse{SessionKey: grant.Token, Username: grant.Username})
}

// UserData handles POST /user_data.
func (a *API) UserData(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeValid[UserDataRequest](a, w, r)
	if !ok {
		return
	}
	profile, err := a.svc.Profile(r.Context(), req.Username, req.SessionKey)
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// UpdateUserData handles POST /update_user_data.
func (a *API) UpdateUserData(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeValid[UserDataUpdateRequest](a, w, r)
	if !ok {
		return
	}
	patch := identity.ProfilePatch{
		Username: req.NewUsername,
		Email:    req.Email,
		Avatar:   req.Avatar,
	}
	profile, err := a.svc.UpdateProfile(r.Context(), req.Username, req.SessionKey, patch)
	if err != nil {
		mapError(w, err)
		return
	}
	a.audit.logEvent(AuditProfileUpdated, r, profile.Username)
	writeJSON(w, http.StatusOK, profile)
}

// ResetRequest handles POST /reset_request.
func (a *API) ResetRequest(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeValid[ResetRequest](a, w, r)
	if !ok {
		return
	}
	if err := a.svc.RequestReset(r.Context(), req.Email); err != nil {
		mapError(w, err)
		return
	}
	a.audit.log(AuditResetRequested, r)
	writeJSON(w, http.StatusOK, StatusResponse{Status: "otp sent"})
}

// CheckOTP handles POST /check_otp. An expired or mismatched code is a
// normal "invalid" result, not an error.
func (a *API) CheckOTP(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeValid[CheckOTPRequest](a, w, r)
	if !ok {
		return
	}
	verified, err := a.svc.VerifyReset(r.Context(), req.Email, req.OTP, req.Password)
	if err != nil {
		mapError(w, err)
		return
	}
	if !verified {
		a.audit.log(AuditResetInvalid, r)
		writeJSON(w, http.StatusOK, StatusResponse{Status: "invalid"})
		return
	}
	a.audit.log(AuditResetVerified, r)
	writeJSON(w, http.StatusOK, StatusResponse{Status: "verified"})
}
