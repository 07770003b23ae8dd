package ipc

import (
	"encoding/json"
	stdliberrors "errors"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "github.com/odvcencio/glint/pkg/errors"
)

const maxBodyBytesSmall int64 = 64 << 10

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any, maxBytes int64, allowEOF bool) (int, error) {
	if r == nil || r.Body == nil {
		if allowEOF {
			return 0, nil
		}
		return http.StatusBadRequest, fmt.Errorf("request body required")
	}
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if allowEOF && stdliberrors.Is(err, io.EOF) {
			return 0, nil
		}
		var maxErr *http.MaxBytesError
		if stdliberrors.As(err, &maxErr) {
			return http.StatusRequestEntityTooLarge, fmt.Errorf("request body too large (max %d bytes)", maxBytes)
		}
		return http.StatusBadRequest, err
	}
	return 0, nil
}

// respondJSON sends a JSON response with appropriate headers.
func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}

type errorResponse struct {
	Error     string `json:"error"`
	Status    int    `json:"status"`
	Code      string `json:"code,omitempty"`
	Message   string `json:"message"`
	Details   string `json:"details,omitempty"`
	Timestamp string `json:"timestamp"`
}

// respondError sends a structured JSON error response.
func respondError(w http.ResponseWriter, status int, err error) {
	response := errorResponse{
		Status:    status,
		Message:   http.StatusText(status),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	var appErr *apperrors.Error
	if stdliberrors.As(err, &appErr) {
		response.Code = string(appErr.Code)
		if appErr.Message != "" {
			response.Message = appErr.Message
		}
		response.Details = appErr.Error()
	} else if err != nil {
		response.Message = err.Error()
	}
	response.Error = response.Message
	respondJSON(w, status, response)
}

// statusFor maps an error code to an HTTP status.
func statusFor(err error) int {
	switch apperrors.GetCode(err) {
	case apperrors.ErrCodeInvalidInput, apperrors.ErrCodeInvalidGeometry:
		return http.StatusBadRequest
	case apperrors.ErrCodeModuleNotFound, apperrors.ErrCodeContextNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeContextLimit:
		return http.StatusTooManyRequests
	case apperrors.ErrCodeNoApplication, apperrors.ErrCodeDependency, apperrors.ErrCodeLoadFailed:
		return http.StatusUnprocessableEntity
	case apperrors.ErrCodeBoundary:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
