// Package models provides request and response models for the
// TrafficLens API.
package models

import (
	"bytes"
	"time"
)

// BoundingBox is a geographic bounding box. North must exceed South and
// East must exceed West.
type BoundingBox struct {
	South float64 `json:"south" validate:"required,gte=-90,lte=90"`
	West  float64 `json:"west" validate:"required,gte=-180,lte=180"`
	North float64 `json:"north" validate:"required,gte=-90,lte=90"`
	East  float64 `json:"east" validate:"required,gte=-180,lte=180"`
}

// AreaStatus is an area's position in its collection lifecycle.
type AreaStatus string

const (
	AreaStatusCreated   AreaStatus = "created"
	AreaStatusTraining  AreaStatus = "training"
	AreaStatusPaused    AreaStatus = "paused"
	AreaStatusCompleted AreaStatus = "completed"
	AreaStatusFailed    AreaStatus = "failed"
)

// PagedResponseMeta carries pagination metadata on list responses.
type PagedResponseMeta struct {
	Limit      int     `json:"limit"`
	NextCursor *string `json:"nextCursor,omitempty"`
}

// HealthStatus is a health probe verdict.
type HealthStatus string

const (
	HealthStatusOK       HealthStatus = "OK"
	HealthStatusDegraded HealthStatus = "DEGRADED"
	HealthStatusFail     HealthStatus = "FAIL"
)

// Timestamp renders time.Time as RFC 3339 in JSON.
type Timestamp time.Time

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Time(t).Format(time.RFC3339) + `"`), nil
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	parsed, err := time.Parse(`"`+time.RFC3339+`"`, string(data))
	if err != nil {
		return err
	}
	*t = Timestamp(parsed)
	return nil
}

// Time returns the underlying time.Time.
func (t Timestamp) Time() time.Time {
	return time.Time(t)
}
