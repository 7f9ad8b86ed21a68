package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/subhatanay/expenseapp/internal/ingest"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeSync represents one user's ingestion pass.
	JobTypeSync JobType = "sync"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed.
	JobStatusFailed JobStatus = "failed"
	// JobStatusRetrying indicates the job failed and is being retried.
	JobStatusRetrying JobStatus = "retrying"
	// JobStatusSkipped indicates the handler declined the job, e.g. because
	// a pass for the same user was already running.
	JobStatusSkipped JobStatus = "skipped"
)

// Trigger records what enqueued a sync job.
type Trigger string

const (
	TriggerSchedule Trigger = "schedule"
	TriggerAPI      Trigger = "api"
	TriggerCLI      Trigger = "cli"
)

// ErrSkip is returned (possibly wrapped) by a handler that declines a job.
// The job is marked skipped and not retried.
var ErrSkip = errors.New("job skipped")

// SyncJob represents one ingestion pass for one user.
type SyncJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	// UserID is the user whose sources are synced.
	UserID string `json:"user_id"`

	// Trigger is what enqueued the job.
	Trigger Trigger `json:"trigger"`

	// Status is the current status of the job.
	Status JobStatus `json:"status"`

	// Result holds the pass counters once the job completed.
	Result *ingest.Result `json:"result,omitempty"`

	// CreatedAt is when the job was created.
	CreatedAt time.Time `json:"created_at"`

	// StartedAt is when the job started processing.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when the job completed (success or failure).
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`

	// RetryCount is the number of times this job has been retried.
	RetryCount int `json:"retry_count"`

	// MaxRetries is the maximum number of retries allowed.
	MaxRetries int `json:"max_retries"`
}

// Job is a generic interface for all job types.
type Job interface {
	// GetID returns the unique job identifier.
	GetID() string

	// GetType returns the job type.
	GetType() JobType

	// GetStatus returns the current job status.
	GetStatus() JobStatus
}

// GetID implements the Job interface.
func (j *SyncJob) GetID() string {
	return j.JobID
}

// GetType implements the Job interface.
func (j *SyncJob) GetType() JobType {
	return JobTypeSync
}

// GetStatus implements the Job interface.
func (j *SyncJob) GetStatus() JobStatus {
	return j.Status
}

// Publisher defines the interface for publishing jobs to a queue.
type Publisher interface {
	// PublishSync publishes a sync job.
	PublishSync(ctx context.Context, job *SyncJob) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer defines the interface for consuming jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	// The handler function is called for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler is a function that processes a job.
// It should return an error if the job failed and should be retried.
type JobHandler func(ctx context.Context, job Job) error

// JobStore defines the interface for storing and retrieving job status.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *SyncJob) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (*SyncJob, error)

	// ListJobs retrieves jobs with optional filtering, newest first.
	ListJobs(ctx context.Context, filter JobFilter) ([]*SyncJob, error)

	// UpdateJobStatus updates the status of a job.
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	// UserID filters jobs by user.
	UserID string

	// Status filters jobs by status.
	Status JobStatus

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}

// SyncHandler adapts a sync function into a JobHandler. The pass result is
// stored on the job; ingest.ErrSyncInProgress becomes ErrSkip.
func SyncHandler(sync func(ctx context.Context, userID string) (ingest.Result, error)) JobHandler {
	return func(ctx context.Context, job Job) error {
		sj, ok := job.(*SyncJob)
		if !ok {
			return errors.Join(ErrSkip, errors.New("unsupported job type "+string(job.GetType())))
		}
		res, err := sync(ctx, sj.UserID)
		sj.Result = &res
		if errors.Is(err, ingest.ErrSyncInProgress) {
			return errors.Join(ErrSkip, err)
		}
		return err
	}
}
