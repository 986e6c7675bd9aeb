package types

import "time"

// JobResult reports the outcome of one job after a processing attempt.
// Result reflects the job's status after the attempt: a job that failed
// but still has attempts remaining reports "pending".
type JobResult struct {
	ID       string `json:"id"`
	PublicID string `json:"public_id"`
	Result   string `json:"result"` // ok | pending | failed
	Error    string `json:"error,omitempty"`
}

// ProcessReport summarises one batch-processing run
type ProcessReport struct {
	Processed int         `json:"processed"`
	Results   []JobResult `json:"results"`
}

// EnqueueRequest registers deletion intents for a set of asset URLs
// and/or already-resolved public ids
type EnqueueRequest struct {
	ImageURLs []string `json:"image_urls,omitempty"`
	PublicIDs []string `json:"public_ids,omitempty"`
	ProductID string   `json:"product_id,omitempty"`
}

// DirectDeletion records the per-id outcome of a synchronous fallback
// deletion, taken when the job table is unavailable
type DirectDeletion struct {
	PublicID string `json:"public_id"`
	Result   string `json:"result"`
	Error    string `json:"error,omitempty"`
}

// EnqueueResponse reports how many deletion intents were registered.
// When Queued is false the Direct entries carry the fallback outcomes.
type EnqueueResponse struct {
	Queued bool             `json:"queued"`
	Count  int              `json:"count"`
	Direct []DirectDeletion `json:"direct,omitempty"`
}

// JobView is the admin-facing representation of a stored delete job
type JobView struct {
	ID        string    `json:"id"`
	PublicID  string    `json:"public_id,omitempty"`
	ImageURLs []string  `json:"image_urls,omitempty"`
	ProductID string    `json:"product_id,omitempty"`
	Status    string    `json:"status"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"last_error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListJobsResponse wraps a page of job records
type ListJobsResponse struct {
	Jobs []JobView `json:"jobs"`
}

// PendingResponse reports the number of jobs awaiting processing
type PendingResponse struct {
	Pending int `json:"pending"`
}

// PruneResponse reports how many terminal job rows were removed
type PruneResponse struct {
	Pruned int64 `json:"pruned"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

// HealthResponse represents a health check response
type HealthResponse struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Version     string    `json:"version"`
	PendingJobs int       `json:"pending_jobs"`
}
