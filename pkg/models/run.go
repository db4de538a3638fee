package models

import "time"

// RunStatus represents the outcome of a benchmark run
type RunStatus string

const (
	StatusCompleted RunStatus = "completed" // All requests finished, some may have failed
	StatusAborted   RunStatus = "aborted"   // Run cancelled before all requests finished
)

// Run is a persisted summary of a benchmark run. The full per-request
// report is stored alongside it as a JSON document.
type Run struct {
	ID       string    `json:"id"`
	Model    string    `json:"model"`
	Endpoint string    `json:"endpoint"`
	Status   RunStatus `json:"status"`

	// Aggregate figures
	TotalRequests     int     `json:"total_requests"`
	TotalFailures     int     `json:"total_failures"`
	PromptTokens      int     `json:"prompt_tokens"`
	CompletionTokens  int     `json:"completion_tokens"`
	TotalTokens       int     `json:"total_tokens"`
	DurationSeconds   float64 `json:"duration_seconds"`
	RequestsPerSecond float64 `json:"requests_per_second"`

	// Timestamps
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// ListRunsRequest holds query parameters for listing runs
type ListRunsRequest struct {
	Model  string `form:"model"`
	Limit  int    `form:"limit,default=50" binding:"min=1,max=500"`
	Offset int    `form:"offset" binding:"min=0"`
}
