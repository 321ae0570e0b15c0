package domain

import "time"

// JobStatus is the lifecycle state of an analysis job.
type JobStatus string

// Job statuses.
const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
	JobCancelled  JobStatus = "cancelled"
)

// IsTerminal returns true if the job will not change state again.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// Stage is a step of the analysis pipeline.
type Stage string

// Pipeline stages in execution order.
const (
	StageExtract   Stage = "extract"
	StageSplit     Stage = "split"
	StageContext   Stage = "context"
	StageAnalyze   Stage = "analyze"
	StageAggregate Stage = "aggregate"
	StageSave      Stage = "save"
)

// Job tracks one analysis run.
type Job struct {
	// ID is the analysis id the job produces.
	ID string `json:"id"`

	DocumentID string    `json:"document_id,omitempty"`
	UserID     string    `json:"user_id,omitempty"`
	Status     JobStatus `json:"status"`
	Stage      Stage     `json:"stage,omitempty"`

	// Percent is overall progress in [0,100].
	Percent int    `json:"percent"`
	Message string `json:"message,omitempty"`

	// Error holds the failure message when Status is failed.
	Error string `json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Progress is a point-in-time progress report for a job.
type Progress struct {
	Stage   Stage  `json:"stage"`
	Percent int    `json:"percent"`
	Message string `json:"message,omitempty"`
}

// EventType classifies outbound job events.
type EventType string

// Event types.
const (
	EventProgress  EventType = "progress"
	EventCompleted EventType = "completed"
	EventFailed    EventType = "failed"
	EventCancelled EventType = "cancelled"
)

// Event is an outbound notification about a job.
type Event struct {
	Type       EventType          `json:"type"`
	AnalysisID string             `json:"analysis_id"`
	Progress   *Progress          `json:"progress,omitempty"`
	Overall    *OverallCompliance `json:"overall,omitempty"`
	Error      string             `json:"error,omitempty"`
	At         time.Time          `json:"at"`
}
