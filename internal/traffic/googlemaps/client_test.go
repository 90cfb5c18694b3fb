package googlemaps

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/trafficlens/trafficlens/internal/grid"
	"github.com/trafficlens/trafficlens/internal/traffic"
)

const directionsOKBody = `{
	"status": "OK",
	"routes": [
		{
			"summary": "S100",
			"legs": [
				{
					"distance": {"value": 1800, "text": "1.8 km"},
					"duration": {"value": 240, "text": "4 mins"},
					"duration_in_traffic": {"value": 300, "text": "5 mins"}
				}
			]
		}
	]
}`

var (
	testOrigin      = grid.Coordinate{Lat: 52.3676, Lon: 4.9041}
	testDestination = grid.Coordinate{Lat: 52.3702, Lon: 4.9041}
)

func TestClient_Estimate_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if r.URL.Path != "/maps/api/directions/json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("key") != "mock123" {
			t.Errorf("expected key 'mock123', got %q", q.Get("key"))
		}
		if q.Get("mode") != "driving" {
			t.Errorf("expected mode 'driving', got %q", q.Get("mode"))
		}
		if q.Get("departure_time") != "now" {
			t.Errorf("expected departure_time 'now', got %q", q.Get("departure_time"))
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(directionsOKBody))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{
		APIKey:     "mock123",
		BaseURL:    server.URL,
		HTTPClient: server.Client(),
		Logger:     zerolog.Nop(),
	})

	est, err := client.Estimate(context.Background(), testOrigin, testDestination)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !est.Available {
		t.Fatal("expected available estimate")
	}
	// duration_in_traffic (300s) wins over duration (240s).
	if est.TravelTime != 300*time.Second {
		t.Errorf("expected travel time 300s, got %v", est.TravelTime)
	}
	if est.DistanceMeters != 1800 {
		t.Errorf("expected distance 1800m, got %f", est.DistanceMeters)
	}
	// 1800m in 300s = 6 m/s = 21.6 km/h.
	if est.SpeedKMH < 21.5 || est.SpeedKMH > 21.7 {
		t.Errorf("expected speed ~21.6 km/h, got %f", est.SpeedKMH)
	}
}

func TestClient_Estimate_FallsBackToPlainDuration(t *testing.T) {
	body := `{
		"status": "OK",
		"routes": [{"legs": [{"distance": {"value": 900}, "duration": {"value": 90}}]}]
	}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(body))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{
		APIKey:     "mock123",
		BaseURL:    server.URL,
		HTTPClient: server.Client(),
		Logger:     zerolog.Nop(),
	})

	est, err := client.Estimate(context.Background(), testOrigin, testDestination)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !est.Available {
		t.Fatal("expected available estimate")
	}
	if est.TravelTime != 90*time.Second {
		t.Errorf("expected travel time 90s, got %v", est.TravelTime)
	}
}

func TestClient_Estimate_StatusMapping(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantErr     error
		unavailable bool
	}{
		{
			name:        "zero results is not an error",
			body:        `{"status": "ZERO_RESULTS", "routes": []}`,
			unavailable: true,
		},
		{
			name:        "empty routes is not an error",
			body:        `{"status": "OK", "routes": []}`,
			unavailable: true,
		},
		{
			name:        "zero duration is not usable",
			body:        `{"status": "OK", "routes": [{"legs": [{"distance": {"value": 500}, "duration": {"value": 0}}]}]}`,
			unavailable: true,
		},
		{
			name:    "over query limit",
			body:    `{"status": "OVER_QUERY_LIMIT", "routes": []}`,
			wantErr: traffic.ErrRateLimited,
		},
		{
			name:    "request denied",
			body:    `{"status": "REQUEST_DENIED", "error_message": "The provided API key is invalid.", "routes": []}`,
			wantErr: traffic.ErrUnauthorized,
		},
		{
			name:    "invalid request",
			body:    `{"status": "INVALID_REQUEST", "routes": []}`,
			wantErr: traffic.ErrInvalidCoordinates,
		},
		{
			name:    "unknown error",
			body:    `{"status": "UNKNOWN_ERROR", "routes": []}`,
			wantErr: traffic.ErrUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewClient(ClientConfig{
				APIKey:     "mock123",
				BaseURL:    server.URL,
				HTTPClient: server.Client(),
				Logger:     zerolog.Nop(),
			})

			est, err := client.Estimate(context.Background(), testOrigin, testDestination)

			if tt.wantErr != nil {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				var trafficErr *traffic.Error
				if !errors.As(err, &trafficErr) {
					t.Fatalf("expected traffic.Error, got %T", err)
				}
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, trafficErr.Err)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.unavailable && est.Available {
				t.Error("expected unavailable estimate")
			}
		})
	}
}

func TestClient_Estimate_HTTPErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{name: "forbidden", status: http.StatusForbidden, wantErr: traffic.ErrUnauthorized},
		{name: "unauthorized", status: http.StatusUnauthorized, wantErr: traffic.ErrUnauthorized},
		{name: "too many requests", status: http.StatusTooManyRequests, wantErr: traffic.ErrRateLimited},
		{name: "server error", status: http.StatusInternalServerError, wantErr: traffic.ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			client := NewClient(ClientConfig{
				APIKey:     "mock123",
				BaseURL:    server.URL,
				HTTPClient: server.Client(),
				Logger:     zerolog.Nop(),
			})

			_, err := client.Estimate(context.Background(), testOrigin, testDestination)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestClient_Estimate_InvalidCoordinates(t *testing.T) {
	client := NewClient(ClientConfig{
		APIKey: "mock123",
		Logger: zerolog.Nop(),
	})

	tests := []struct {
		name        string
		origin      grid.Coordinate
		destination grid.Coordinate
	}{
		{
			name:        "origin latitude out of range",
			origin:      grid.Coordinate{Lat: 91.0, Lon: 4.9},
			destination: testDestination,
		},
		{
			name:        "destination longitude out of range",
			origin:      testOrigin,
			destination: grid.Coordinate{Lat: 52.0, Lon: -181.0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.Estimate(context.Background(), tt.origin, tt.destination)
			if !errors.Is(err, traffic.ErrInvalidCoordinates) {
				t.Errorf("expected ErrInvalidCoordinates, got %v", err)
			}
		})
	}
}

func TestClient_Estimate_FatalClassification(t *testing.T) {
	deniedErr := &traffic.Error{
		Provider: ProviderName,
		Code:     statusRequestDenied,
		Message:  "denied",
		Err:      traffic.ErrUnauthorized,
	}
	if !traffic.IsFatal(deniedErr) {
		t.Error("REQUEST_DENIED should be fatal")
	}

	transientErr := &traffic.Error{
		Provider: ProviderName,
		Code:     "SERVER_503",
		Message:  "unavailable",
		Err:      traffic.ErrUnavailable,
	}
	if traffic.IsFatal(transientErr) {
		t.Error("a transient outage should not be fatal")
	}
}

func TestClient_Name(t *testing.T) {
	client := NewClient(ClientConfig{APIKey: "test", Logger: zerolog.Nop()})
	if client.Name() != ProviderName {
		t.Errorf("expected %s, got %s", ProviderName, client.Name())
	}
}
