package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"

	"lrc-editor-go/audio"
	"lrc-editor-go/export"
	"lrc-editor-go/ingest"
	"lrc-editor-go/logcolors"
	"lrc-editor-go/lrc"
	"lrc-editor-go/middleware"
	"lrc-editor-go/session"

	log "github.com/sirupsen/logrus"
)

// APIResponse handles consistent header setting and JSON responses.
// It centralizes the logic for setting X-Auth-Mode, X-Cache-Status,
// X-RateLimit-Type and X-Session-Revision based on request context.
type APIResponse struct {
	w           http.ResponseWriter
	r           *http.Request
	cacheStatus string
	revision    *uint64
}

// ErrorResponse is the JSON body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// Respond creates a response helper from request context
func Respond(w http.ResponseWriter, r *http.Request) *APIResponse {
	return &APIResponse{w: w, r: r}
}

// SetCacheStatus sets the X-Cache-Status header value
func (a *APIResponse) SetCacheStatus(status string) *APIResponse {
	a.cacheStatus = status
	return a
}

// SetRevision sets the X-Session-Revision header value
func (a *APIResponse) SetRevision(rev uint64) *APIResponse {
	a.revision = &rev
	return a
}

// writeHeaders sets all standard headers based on context
func (a *APIResponse) writeHeaders(contentType string) {
	a.w.Header().Set("Content-Type", contentType)

	if a.cacheStatus != "" {
		a.w.Header().Set("X-Cache-Status", a.cacheStatus)
	}
	if a.revision != nil {
		a.w.Header().Set("X-Session-Revision", strconv.FormatUint(*a.revision, 10))
	}

	if middleware.Authenticated(a.r.Context()) {
		a.w.Header().Set("X-Auth-Mode", "authenticated")
	}

	if tier := middleware.RateLimitTier(a.r.Context()); tier != "" {
		a.w.Header().Set("X-RateLimit-Type", tier)
	}
}

// JSON writes headers and encodes data as JSON (200 OK)
func (a *APIResponse) JSON(data interface{}) error {
	return a.Status(http.StatusOK, data)
}

// Status writes headers and encodes data as JSON with the given status code
func (a *APIResponse) Status(statusCode int, data interface{}) error {
	a.writeHeaders("application/json")
	a.w.WriteHeader(statusCode)
	return json.NewEncoder(a.w).Encode(data)
}

// Error writes headers, sets status code, and encodes error response
func (a *APIResponse) Error(statusCode int, data interface{}) error {
	return a.Status(statusCode, data)
}

// Fail maps err to a status code and writes it as an ErrorResponse
func (a *APIResponse) Fail(err error) error {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Errorf("%s %s %s failed: %v", logcolors.LogServer, a.r.Method, a.r.URL.Path, err)
	} else {
		log.Debugf("%s %s %s rejected: %v", logcolors.LogServer, a.r.Method, a.r.URL.Path, err)
	}

	body := ErrorResponse{Error: err.Error()}
	var se *session.Error
	if errors.As(err, &se) {
		body.Kind = se.Kind.String()
	}
	return a.Error(status, body)
}

// Download writes data as an attachment
func (a *APIResponse) Download(contentType, fileName string, data []byte) error {
	a.writeHeaders(contentType)
	a.w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": fileName}))
	a.w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	a.w.WriteHeader(http.StatusOK)
	_, err := a.w.Write(data)
	return err
}

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ingest.ErrInvalidFileSelection),
		errors.Is(err, ingest.ErrMismatchedPrefix),
		errors.Is(err, lrc.ErrMalformedLRC),
		errors.Is(err, audio.ErrMixdownDecode):
		return http.StatusUnprocessableEntity
	case errors.Is(err, export.ErrNothingToExport),
		errors.Is(err, export.ErrNoAudio):
		return http.StatusConflict
	case errors.Is(err, export.ErrExportFailure):
		return http.StatusInternalServerError
	}

	var badRequest *requestError
	if errors.As(err, &badRequest) {
		return http.StatusBadRequest
	}

	switch session.KindOf(err) {
	case session.KindInvalid:
		return http.StatusBadRequest
	case session.KindNotFound:
		return http.StatusNotFound
	case session.KindConflict, session.KindStale:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// requestError marks malformed request input
type requestError struct {
	err error
}

func (e *requestError) Error() string { return "invalid request: " + e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }

func badRequest(format string, args ...interface{}) error {
	return &requestError{err: fmt.Errorf(format, args...)}
}
