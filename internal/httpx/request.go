package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
)

// DecodeJSON reads the request body into dst and writes the error response
// itself when that fails. An empty body is accepted only when optional is set.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any, optional bool) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || (optional && errors.Is(err, io.EOF)) {
		return true
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		JSONError(w, r, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body too large", nil)
		return false
	}
	JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body", nil)
	return false
}

// Validate runs the struct validator and answers 400 with the field details
// on failure.
func Validate(w http.ResponseWriter, r *http.Request, v any) bool {
	if details := ValidateStruct(v); len(details) > 0 {
		JSONError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid input", details)
		return false
	}
	return true
}

// ClientIP prefers the first X-Forwarded-For hop over the socket address.
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// InternalError answers 500 with the generic envelope.
func InternalError(w http.ResponseWriter, r *http.Request) {
	JSONError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", nil)
}

// Unauthorized answers 401 with msg, or a generic message when msg is empty.
func Unauthorized(w http.ResponseWriter, r *http.Request, msg string) {
	if msg == "" {
		msg = "Unauthorized"
	}
	JSONError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", msg, nil)
}
