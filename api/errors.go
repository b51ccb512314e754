package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jmcleod/gatehouse/identity"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// mapError translates domain failures into status codes. Storage faults fall
// through to a generic 500 so internal detail never reaches the caller.
func mapError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, identity.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, identity.ErrInvalidInput.Error())
	case errors.Is(err, identity.ErrConflict):
		writeError(w, http.StatusConflict, identity.ErrConflict.Error())
	case errors.Is(err, identity.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, identity.ErrInvalidCredentials.Error())
	case errors.Is(err, identity.ErrInvalidSession):
		writeError(w, http.StatusUnauthorized, identity.ErrInvalidSession.Error())
	case errors.Is(err, identity.ErrVersionRejected):
		writeError(w, http.StatusUpgradeRequired, identity.ErrVersionRejected.Error())
	case errors.Is(err, identity.ErrUsernameImmutable):
		writeError(w, http.StatusBadRequest, identity.ErrUsernameImmutable.Error())
	case errors.Is(err, identity.ErrNotFound):
		writeError(w, http.StatusNotFound, identity.ErrNotFound.Error())
	case errors.Is(err, identity.ErrDeliveryFailed):
		writeError(w, http.StatusBadGateway, identity.ErrDeliveryFailed.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
