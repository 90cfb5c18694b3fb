package googlemaps

// directionsResponse represents the Directions API response envelope.
// The API reports most failures through Status with HTTP 200.
type directionsResponse struct {
	Status       string            `json:"status"`
	ErrorMessage string            `json:"error_message,omitempty"`
	Routes       []directionsRoute `json:"routes"`
}

// directionsRoute is a single route alternative.
type directionsRoute struct {
	Summary string          `json:"summary,omitempty"`
	Legs    []directionsLeg `json:"legs"`
}

// directionsLeg is one leg of a route. Requests here have no waypoints, so
// a route has exactly one leg.
type directionsLeg struct {
	Distance          textValue  `json:"distance"`
	Duration          textValue  `json:"duration"`
	DurationInTraffic *textValue `json:"duration_in_traffic,omitempty"`
}

// textValue is the API's unit pair: a machine value with display text.
type textValue struct {
	Value float64 `json:"value"`
	Text  string  `json:"text,omitempty"`
}

// Directions API status codes relevant to error mapping.
const (
	statusOK             = "OK"
	statusZeroResults    = "ZERO_RESULTS"
	statusNotFound       = "NOT_FOUND"
	statusOverQueryLimit = "OVER_QUERY_LIMIT"
	statusRequestDenied  = "REQUEST_DENIED"
	statusInvalidRequest = "INVALID_REQUEST"
	statusUnknownError   = "UNKNOWN_ERROR"
)
