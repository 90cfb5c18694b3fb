package middleware

import (
	"net/http"
	"strings"

	"github.com/trafficlens/trafficlens/internal/api/models"
)

// ContentTypeJSON defaults the response Content-Type to application/json.
// Handlers that already set a type keep theirs.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", "application/json")
		}
		next.ServeHTTP(w, r)
	})
}

// RequireJSON rejects bodied requests whose Content-Type is not JSON.
// Requests without a Content-Type pass, so body-less control endpoints
// stay callable with a bare POST.
func RequireJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !mayHaveBody(r.Method) {
			next.ServeHTTP(w, r)
			return
		}

		if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
			models.NewProblem(
				"https://api.trafficlens.dev/problems/unsupported-media-type",
				"Unsupported media type",
				http.StatusUnsupportedMediaType,
				GetRequestID(r.Context()),
			).
				WithDetail("Content-Type must be application/json").
				WithInstance(r.URL.Path).
				Write(w)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func mayHaveBody(method string) bool {
	return method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch
}
