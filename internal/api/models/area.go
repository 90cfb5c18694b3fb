package models

// Area represents a monitored area.
type Area struct {
	ID              string      `json:"id"`
	Name            string      `json:"name"`
	Bounds          BoundingBox `json:"bounds"`
	Resolution      int         `json:"resolution"`
	PointCount      int         `json:"pointCount"`
	RouteCount      int         `json:"routeCount"`
	GridPolyline    string      `json:"gridPolyline,omitempty"`
	NetworkRef      *string     `json:"networkRef,omitempty"`
	Status          AreaStatus  `json:"status"`
	DurationDays    int         `json:"durationDays"`
	IntervalMinutes int         `json:"intervalMinutes"`
	TargetCount     int         `json:"targetCount"`
	CreatedAt       Timestamp   `json:"createdAt"`
	UpdatedAt       Timestamp   `json:"updatedAt"`
}

// AreaCreateRequest is the request body for creating an area.
type AreaCreateRequest struct {
	Name            string      `json:"name" validate:"required,min=1,max=80"`
	Bounds          BoundingBox `json:"bounds" validate:"required"`
	Resolution      int         `json:"resolution" validate:"required,gte=2,lte=30"`
	DurationDays    int         `json:"durationDays" validate:"required,gte=1"`
	IntervalMinutes int         `json:"intervalMinutes" validate:"required,gte=1"`
	NetworkRef      *string     `json:"networkRef,omitempty"`
}

// AreaStats summarizes an area's collection progress.
type AreaStats struct {
	AreaID    string     `json:"areaId"`
	Status    AreaStatus `json:"status"`
	Collected int        `json:"collected"`
	Target    int        `json:"target"`
	Remaining int        `json:"remaining"`
	Latest    *Snapshot  `json:"latest,omitempty"`
}

// PagedAreas represents a paginated list of areas.
type PagedAreas struct {
	Items []Area            `json:"items"`
	Meta  PagedResponseMeta `json:"meta"`
}
