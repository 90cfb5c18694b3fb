package models

// RouteSample is the sampled traffic state of a single grid route.
type RouteSample struct {
	RouteID           string  `json:"routeId"`
	SpeedKMH          float64 `json:"speedKmh"`
	TravelTimeSeconds float64 `json:"travelTimeSeconds"`
	DistanceMeters    float64 `json:"distanceMeters"`
	Available         bool    `json:"available"`
}

// Snapshot represents one timestamped sampling of an area's routes.
// Samples are included only when a single snapshot is requested.
type Snapshot struct {
	AreaID      string        `json:"areaId"`
	Seq         int           `json:"seq"`
	CapturedAt  Timestamp     `json:"capturedAt"`
	AvgSpeedKMH float64       `json:"avgSpeedKmh"`
	MinSpeedKMH float64       `json:"minSpeedKmh"`
	MaxSpeedKMH float64       `json:"maxSpeedKmh"`
	SampleCount int           `json:"sampleCount"`
	RouteCount  int           `json:"routeCount"`
	Available   bool          `json:"available"`
	Samples     []RouteSample `json:"samples,omitempty"`
}

// PagedSnapshots represents a paginated list of snapshots, newest first.
type PagedSnapshots struct {
	Items []Snapshot        `json:"items"`
	Meta  PagedResponseMeta `json:"meta"`
}
