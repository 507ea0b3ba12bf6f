package apiutil

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/codr1/crease/internal/api/authz"
	"github.com/codr1/crease/internal/cricket"
)

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func DecodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return cricket.Validation("missing request body")
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return cricket.Validation("missing request body")
		}
		return &cricket.Error{Kind: cricket.KindValidation, Message: fmt.Sprintf("invalid JSON body: %v", err), Cause: err}
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return cricket.Validation("invalid JSON body")
	}
	return nil
}

func WriteJSON(w http.ResponseWriter, status int, payload any) error {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	if err := encoder.Encode(payload); err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err := w.Write(buf.Bytes())
	return err
}

// StatusFor maps an error to its HTTP status code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, authz.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, authz.ErrForbidden):
		return http.StatusForbidden
	}
	switch cricket.KindOf(err) {
	case cricket.KindValidation:
		return http.StatusBadRequest
	case cricket.KindForbidden:
		return http.StatusForbidden
	case cricket.KindNotFound:
		return http.StatusNotFound
	case cricket.KindConflict:
		return http.StatusConflict
	case cricket.KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes err as an ErrorResponse. Unclassified errors are logged
// and reported with a generic message.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	logger := log.Ctx(r.Context())
	status := StatusFor(err)
	resp := ErrorResponse{Error: err.Error(), Kind: string(cricket.KindOf(err))}

	switch status {
	case http.StatusUnauthorized:
		resp = ErrorResponse{Error: "Unauthorized"}
		logger.Warn().Err(err).Msg("Request denied: unauthenticated")
	case http.StatusForbidden:
		if errors.Is(err, authz.ErrForbidden) {
			resp = ErrorResponse{Error: "Forbidden", Kind: string(cricket.KindForbidden)}
		}
		logger.Warn().Err(err).Msg("Request denied: forbidden")
	case http.StatusServiceUnavailable:
		logger.Warn().Err(err).Msg("Request failed: storage busy")
	case http.StatusInternalServerError:
		resp = ErrorResponse{Error: "Internal Server Error"}
		logger.Error().Err(err).Msg("Request failed")
	}

	if writeErr := WriteJSON(w, status, resp); writeErr != nil {
		logger.Error().Err(writeErr).Msg("Failed to write error response")
	}
}

// RequireCaller writes a 401 and returns false when the request carries no caller.
func RequireCaller(w http.ResponseWriter, r *http.Request) (*authz.Caller, bool) {
	caller, err := authz.RequireCaller(r.Context())
	if err != nil {
		WriteError(w, r, err)
		return nil, false
	}
	return caller, true
}
