// Package googlemaps provides a traffic estimator backed by the Google
// Maps Directions API with live traffic (departure_time=now).
package googlemaps

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/trafficlens/trafficlens/internal/grid"
	"github.com/trafficlens/trafficlens/internal/provider/resilience"
	"github.com/trafficlens/trafficlens/internal/traffic"
)

const (
	// ProviderName identifies this traffic provider.
	ProviderName = "googlemaps"

	// DefaultBaseURL is the Google Maps API base URL.
	DefaultBaseURL = "https://maps.googleapis.com"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 10 * time.Second
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the Directions client.
type ClientConfig struct {
	// APIKey is the Google Maps API key (required).
	APIKey string

	// BaseURL is the API base URL (optional, defaults to the public API).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient HTTPDoer

	// Timeout is the request timeout (optional, defaults to 10s).
	Timeout time.Duration

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is a Directions API traffic estimator.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

var _ traffic.Estimator = (*Client)(nil)

// NewClient creates a new Directions client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(ProviderName)
		clientCfg.Timeout = timeout
		clientCfg.Registry = cfg.Registry
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// Estimate samples current driving conditions between two points. The
// request asks for departure_time=now so duration_in_traffic reflects live
// congestion; plain duration is the fallback when the API omits it.
func (c *Client) Estimate(ctx context.Context, origin, destination grid.Coordinate) (traffic.Estimate, error) {
	if err := validateCoordinate(origin); err != nil {
		return traffic.Estimate{}, &traffic.Error{
			Provider: ProviderName,
			Code:     "INVALID_ORIGIN",
			Message:  "invalid origin coordinates",
			Err:      traffic.ErrInvalidCoordinates,
		}
	}
	if err := validateCoordinate(destination); err != nil {
		return traffic.Estimate{}, &traffic.Error{
			Provider: ProviderName,
			Code:     "INVALID_DESTINATION",
			Message:  "invalid destination coordinates",
			Err:      traffic.ErrInvalidCoordinates,
		}
	}

	query := url.Values{}
	query.Set("origin", fmt.Sprintf("%f,%f", origin.Lat, origin.Lon))
	query.Set("destination", fmt.Sprintf("%f,%f", destination.Lat, destination.Lon))
	query.Set("mode", "driving")
	query.Set("departure_time", "now")
	query.Set("key", c.apiKey)

	reqURL := c.baseURL + "/maps/api/directions/json?" + query.Encode()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return traffic.Estimate{}, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return traffic.Estimate{}, &traffic.Error{
			Provider: ProviderName,
			Code:     "REQUEST_FAILED",
			Message:  "failed to reach traffic provider",
			Err:      traffic.ErrUnavailable,
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return traffic.Estimate{}, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return traffic.Estimate{}, c.handleHTTPError(resp.StatusCode)
	}

	var dirResp directionsResponse
	if err := json.Unmarshal(respBody, &dirResp); err != nil {
		return traffic.Estimate{}, fmt.Errorf("decoding response: %w", err)
	}

	return c.toEstimate(&dirResp)
}

// toEstimate maps the API status plus leg metrics to a domain estimate.
func (c *Client) toEstimate(resp *directionsResponse) (traffic.Estimate, error) {
	switch resp.Status {
	case statusOK:
		// fall through to leg extraction below
	case statusZeroResults, statusNotFound:
		// No drivable segment between the points. Not an error: the route
		// is recorded as unavailable and sampling continues.
		return traffic.Estimate{Available: false}, nil
	case statusOverQueryLimit:
		return traffic.Estimate{}, &traffic.Error{
			Provider: ProviderName,
			Code:     resp.Status,
			Message:  "API quota exhausted",
			Err:      traffic.ErrRateLimited,
		}
	case statusRequestDenied:
		return traffic.Estimate{}, &traffic.Error{
			Provider: ProviderName,
			Code:     resp.Status,
			Message:  deniedMessage(resp.ErrorMessage),
			Err:      traffic.ErrUnauthorized,
		}
	case statusInvalidRequest:
		return traffic.Estimate{}, &traffic.Error{
			Provider: ProviderName,
			Code:     resp.Status,
			Message:  "directions request rejected",
			Err:      traffic.ErrInvalidCoordinates,
		}
	default:
		// UNKNOWN_ERROR and anything unrecognised: treat as transient.
		return traffic.Estimate{}, &traffic.Error{
			Provider: ProviderName,
			Code:     resp.Status,
			Message:  "traffic provider returned an unexpected status",
			Err:      traffic.ErrUnavailable,
		}
	}

	if len(resp.Routes) == 0 || len(resp.Routes[0].Legs) == 0 {
		return traffic.Estimate{Available: false}, nil
	}

	leg := resp.Routes[0].Legs[0]
	seconds := leg.Duration.Value
	if leg.DurationInTraffic != nil && leg.DurationInTraffic.Value > 0 {
		seconds = leg.DurationInTraffic.Value
	}
	if seconds <= 0 || leg.Distance.Value <= 0 {
		return traffic.Estimate{Available: false}, nil
	}

	est := traffic.Estimate{
		SpeedKMH:       leg.Distance.Value / seconds * 3.6,
		TravelTime:     time.Duration(seconds * float64(time.Second)),
		DistanceMeters: leg.Distance.Value,
		Available:      true,
	}

	c.logger.Debug().
		Float64("speed_kmh", est.SpeedKMH).
		Float64("distance_m", est.DistanceMeters).
		Dur("travel_time", est.TravelTime).
		Msg("received traffic estimate")

	return est, nil
}

// handleHTTPError maps non-200 transport statuses to domain errors.
func (c *Client) handleHTTPError(statusCode int) error {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return &traffic.Error{
			Provider: ProviderName,
			Code:     fmt.Sprintf("HTTP_%d", statusCode),
			Message:  "API rate limit exceeded",
			Err:      traffic.ErrRateLimited,
		}
	case statusCode == http.StatusForbidden || statusCode == http.StatusUnauthorized:
		return &traffic.Error{
			Provider: ProviderName,
			Code:     fmt.Sprintf("HTTP_%d", statusCode),
			Message:  "API access denied, check key configuration",
			Err:      traffic.ErrUnauthorized,
		}
	case statusCode >= 500:
		return &traffic.Error{
			Provider: ProviderName,
			Code:     fmt.Sprintf("SERVER_%d", statusCode),
			Message:  "traffic provider is temporarily unavailable",
			Err:      traffic.ErrUnavailable,
		}
	default:
		return &traffic.Error{
			Provider: ProviderName,
			Code:     fmt.Sprintf("HTTP_%d", statusCode),
			Message:  fmt.Sprintf("traffic provider returned status %d", statusCode),
			Err:      traffic.ErrUnavailable,
		}
	}
}

func deniedMessage(apiMessage string) string {
	if apiMessage != "" {
		return apiMessage
	}
	return "API request denied, check key configuration"
}

// validateCoordinate checks if a coordinate is within valid ranges.
func validateCoordinate(c grid.Coordinate) error {
	if c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("latitude %f out of range [-90, 90]", c.Lat)
	}
	if c.Lon < -180 || c.Lon > 180 {
		return fmt.Errorf("longitude %f out of range [-180, 180]", c.Lon)
	}
	return nil
}
