// Package response writes API responses: JSON bodies on success, RFC 7807
// problem documents on error, always with the request id echoed for
// correlation.
package response

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/trafficlens/trafficlens/internal/api/middleware"
	"github.com/trafficlens/trafficlens/internal/api/models"
)

// writeBody writes a JSON body with the given status. A nil body writes
// headers only.
func writeBody(w http.ResponseWriter, r *http.Request, status int, body interface{}) {
	if requestID := middleware.GetRequestID(r.Context()); requestID != "" {
		w.Header().Set("X-Request-Id", requestID)
	}
	if body != nil {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// JSON writes a 2xx JSON response.
func JSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	writeBody(w, r, status, data)
}

// Created writes a 201 response, with a Location header when the resource
// path is known.
func Created(w http.ResponseWriter, r *http.Request, location string, data interface{}) {
	if location != "" {
		w.Header().Set("Location", location)
	}
	writeBody(w, r, http.StatusCreated, data)
}

// Accepted writes a 202 response for work that continues in the
// background, with a Location header pointing at where to watch it.
func Accepted(w http.ResponseWriter, r *http.Request, location string, data interface{}) {
	if location != "" {
		w.Header().Set("Location", location)
	}
	writeBody(w, r, http.StatusAccepted, data)
}

// NoContent writes a 204 response.
func NoContent(w http.ResponseWriter, r *http.Request) {
	writeBody(w, r, http.StatusNoContent, nil)
}

// Error writes a problem document, filling in the request path as the
// problem instance.
func Error(w http.ResponseWriter, r *http.Request, problem *models.Problem) {
	problem.Instance = r.URL.Path
	problem.Write(w)
}

// BadRequest writes a 400 problem document carrying field errors.
func BadRequest(w http.ResponseWriter, r *http.Request, detail string, errors []models.FieldError) {
	Error(w, r, models.NewBadRequest(requestID(r), detail, errors))
}

// Unauthorized writes a 401 problem document.
func Unauthorized(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewUnauthorized(requestID(r), detail))
}

// NotFound writes a 404 problem document.
func NotFound(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewNotFound(requestID(r), detail))
}

// Conflict writes a 409 problem document.
func Conflict(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewConflict(requestID(r), detail))
}

// InternalError writes a 500 problem document.
func InternalError(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewInternalError(requestID(r), detail))
}

// ServiceUnavailable writes a 503 problem document.
func ServiceUnavailable(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewServiceUnavailable(requestID(r), detail))
}

// RateLimitInfo carries the X-RateLimit response headers for a 429.
type RateLimitInfo struct {
	// Limit is the window's request budget.
	Limit int
	// Remaining is the unused budget in the current window.
	Remaining int
	// ResetAt is the Unix timestamp when the window resets.
	ResetAt int64
	// RetryAfter is the seconds a client should wait before retrying.
	RetryAfter int
}

// TooManyRequests writes a 429 problem document.
func TooManyRequests(w http.ResponseWriter, r *http.Request, detail string) {
	TooManyRequestsWithInfo(w, r, detail, nil)
}

// TooManyRequestsWithInfo writes a 429 problem document together with the
// standard rate-limit headers.
func TooManyRequestsWithInfo(w http.ResponseWriter, r *http.Request, detail string, info *RateLimitInfo) {
	if info != nil {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetAt, 10))
		if info.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(info.RetryAfter))
		}
	}
	Error(w, r, models.NewTooManyRequests(requestID(r), detail))
}

func requestID(r *http.Request) string {
	return middleware.GetRequestID(r.Context())
}
