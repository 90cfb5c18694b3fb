package models

// TrainingRun describes the collection run currently active in this process.
type TrainingRun struct {
	AreaID    string    `json:"areaId"`
	Collected int       `json:"collected"`
	Target    int       `json:"target"`
	StartedAt Timestamp `json:"startedAt"`
}

// TrainingStatus is the response for the active-run query.
type TrainingStatus struct {
	Active bool         `json:"active"`
	Run    *TrainingRun `json:"run,omitempty"`
}
