package response_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/trafficlens/trafficlens/internal/api/middleware"
	"github.com/trafficlens/trafficlens/internal/api/models"
	"github.com/trafficlens/trafficlens/internal/api/response"
)

// taggedRequest builds a request whose context has passed through the
// RequestID middleware.
func taggedRequest(t *testing.T, method, path string) *http.Request {
	t.Helper()

	var tagged *http.Request
	handler := middleware.RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		tagged = r
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(method, path, http.NoBody))
	return tagged
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) models.Problem {
	t.Helper()

	var problem models.Problem
	if err := json.NewDecoder(rec.Body).Decode(&problem); err != nil {
		t.Fatalf("failed to decode problem document: %v", err)
	}
	return problem
}

func TestJSON_SetsHeaders(t *testing.T) {
	req := taggedRequest(t, http.MethodGet, "/v1/areas")
	rec := httptest.NewRecorder()

	response.JSON(rec, req, http.StatusOK, map[string]string{"message": "hello"})

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("X-Request-Id header missing")
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
}

func TestJSON_NoRequestIDWithoutMiddleware(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/areas", http.NoBody)
	rec := httptest.NewRecorder()

	response.JSON(rec, req, http.StatusOK, map[string]string{"message": "hello"})

	if id := rec.Header().Get("X-Request-Id"); id != "" {
		t.Errorf("X-Request-Id = %q, want empty when context carries no id", id)
	}
}

func TestJSON_NilBodyWritesNothing(t *testing.T) {
	req := taggedRequest(t, http.MethodGet, "/v1/areas")
	rec := httptest.NewRecorder()

	response.JSON(rec, req, http.StatusOK, nil)

	if rec.Body.Len() != 0 {
		t.Errorf("body = %q, want empty for nil data", rec.Body.String())
	}
}

func TestJSON_EchoesCallerRequestID(t *testing.T) {
	var tagged *http.Request
	handler := middleware.RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		tagged = r
	}))
	req := httptest.NewRequest(http.MethodGet, "/v1/areas", http.NoBody)
	req.Header.Set("X-Request-Id", "req_from_client")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	rec := httptest.NewRecorder()
	response.JSON(rec, tagged, http.StatusOK, map[string]string{"status": "ok"})

	if id := rec.Header().Get("X-Request-Id"); id != "req_from_client" {
		t.Errorf("X-Request-Id = %q, want the caller's id echoed", id)
	}
}

func TestCreated_SetsLocation(t *testing.T) {
	req := taggedRequest(t, http.MethodPost, "/v1/areas")
	rec := httptest.NewRecorder()

	response.Created(rec, req, "/v1/areas/area_123", map[string]string{"id": "area_123"})

	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/v1/areas/area_123" {
		t.Errorf("Location = %q, want /v1/areas/area_123", loc)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("X-Request-Id header missing")
	}
}

func TestAccepted_SetsLocation(t *testing.T) {
	req := taggedRequest(t, http.MethodPost, "/v1/areas/area_1/training/start")
	rec := httptest.NewRecorder()

	response.Accepted(rec, req, "/v1/training", map[string]string{"status": "pending"})

	if rec.Code != http.StatusAccepted {
		t.Errorf("status = %d, want 202", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/v1/training" {
		t.Errorf("Location = %q, want /v1/training", loc)
	}
}

func TestNoContent_EmptyBody(t *testing.T) {
	req := taggedRequest(t, http.MethodDelete, "/v1/areas/area_1")
	rec := httptest.NewRecorder()

	response.NoContent(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("body = %q, want empty", rec.Body.String())
	}
}

func TestBadRequest_CarriesFieldErrorsAndInstance(t *testing.T) {
	req := taggedRequest(t, http.MethodPost, "/v1/areas")
	rec := httptest.NewRecorder()

	response.BadRequest(rec, req, "validation failed", []models.FieldError{
		{Field: "name", Message: "is required"},
	})

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}

	problem := decodeProblem(t, rec)
	if problem.TraceID == "" {
		t.Error("traceId missing from problem document")
	}
	if problem.Instance != "/v1/areas" {
		t.Errorf("instance = %q, want /v1/areas", problem.Instance)
	}
	if len(problem.Errors) != 1 || problem.Errors[0].Field != "name" {
		t.Errorf("errors = %+v, want the name field error", problem.Errors)
	}
}

func TestErrorHelpers_StatusCodes(t *testing.T) {
	tests := []struct {
		name  string
		write func(w http.ResponseWriter, r *http.Request)
		want  int
	}{
		{"unauthorized", func(w http.ResponseWriter, r *http.Request) {
			response.Unauthorized(w, r, "invalid token")
		}, http.StatusUnauthorized},
		{"not found", func(w http.ResponseWriter, r *http.Request) {
			response.NotFound(w, r, "area not found")
		}, http.StatusNotFound},
		{"conflict", func(w http.ResponseWriter, r *http.Request) {
			response.Conflict(w, r, "an area with this name already exists")
		}, http.StatusConflict},
		{"internal error", func(w http.ResponseWriter, r *http.Request) {
			response.InternalError(w, r, "something went wrong")
		}, http.StatusInternalServerError},
		{"service unavailable", func(w http.ResponseWriter, r *http.Request) {
			response.ServiceUnavailable(w, r, "store unreachable")
		}, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := taggedRequest(t, http.MethodGet, "/v1/areas")
			rec := httptest.NewRecorder()

			tt.write(rec, req)

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			problem := decodeProblem(t, rec)
			if problem.Status != tt.want {
				t.Errorf("problem status = %d, want %d", problem.Status, tt.want)
			}
			if problem.TraceID == "" {
				t.Error("traceId missing from problem document")
			}
		})
	}
}

func TestTooManyRequestsWithInfo_SetsRateLimitHeaders(t *testing.T) {
	req := taggedRequest(t, http.MethodGet, "/v1/areas")
	rec := httptest.NewRecorder()

	response.TooManyRequestsWithInfo(rec, req, "rate limit exceeded", &response.RateLimitInfo{
		Limit:      100,
		Remaining:  0,
		ResetAt:    1704067200,
		RetryAfter: 60,
	})

	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rec.Code)
	}

	want := map[string]string{
		"X-RateLimit-Limit":     "100",
		"X-RateLimit-Remaining": "0",
		"X-RateLimit-Reset":     "1704067200",
		"Retry-After":           "60",
	}
	for name, value := range want {
		if got := rec.Header().Get(name); got != value {
			t.Errorf("%s = %q, want %q", name, got, value)
		}
	}

	problem := decodeProblem(t, rec)
	if problem.Status != http.StatusTooManyRequests {
		t.Errorf("problem status = %d, want 429", problem.Status)
	}
}

func TestTooManyRequests_NoHeadersWithoutInfo(t *testing.T) {
	req := taggedRequest(t, http.MethodGet, "/v1/areas")
	rec := httptest.NewRecorder()

	response.TooManyRequests(rec, req, "rate limit exceeded")

	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rec.Code)
	}
	for _, name := range []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"} {
		if got := rec.Header().Get(name); got != "" {
			t.Errorf("%s = %q, want unset", name, got)
		}
	}
}
