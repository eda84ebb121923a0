// Package refresh recomputes the derived monthly rollups after statement
// writes. It runs outside the write path: intake publishes a job and moves
// on, and a refresh failure is logged, never propagated.
package refresh

import (
	"context"
	"time"
)

// JobStatus represents the current status of a refresh job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed after its retries.
	JobStatusFailed JobStatus = "failed"
)

// Job asks for the rollups of one company (and the triggering account) to be
// recomputed.
type Job struct {
	JobID          string    `json:"job_id"`
	OrganizationID string    `json:"organization_id"`
	CompanyID      string    `json:"company_id"`
	AccountID      string    `json:"account_id,omitempty"`
	Status         JobStatus `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	Error          string    `json:"error,omitempty"`
	RetryCount     int       `json:"retry_count"`
	MaxRetries     int       `json:"max_retries"`
}

// Publisher defines the interface for publishing refresh jobs.
// This abstraction allows for different queue implementations.
type Publisher interface {
	// PublishRefresh enqueues a rollup refresh job.
	PublishRefresh(ctx context.Context, job *Job) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer defines the interface for consuming refresh jobs.
type Consumer interface {
	// Start begins consuming jobs; the handler is called for each job.
	Start(ctx context.Context, handler Handler) error

	// Stop stops consuming and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// Handler processes one refresh job. A returned error requests a retry.
type Handler func(ctx context.Context, job *Job) error
