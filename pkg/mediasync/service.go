package mediasync

import (
	"context"

	"github.com/google/uuid"
)

// Service is the synchronization pipeline. The cycle methods are the entry
// points an external scheduler invokes on fixed intervals; they own no timer
// state and never overlap is guaranteed by the caller running each cycle
// sequentially. Per-record failures are isolated: one record's failure never
// aborts the remaining batch.
type Service interface {
	// CreateJob registers a new hosting relationship for an asset. The job
	// starts in StatusNotUploaded and is picked up by the next upload cycle.
	CreateJob(ctx context.Context, req CreateJobRequest) (*MediaJob, error)

	// GetJob retrieves a job by id.
	GetJob(ctx context.Context, id uuid.UUID) (*MediaJob, error)

	// MarkForDeletion transitions a job to StatusDeleted so the next
	// deletion cycle finalizes it.
	MarkForDeletion(ctx context.Context, id uuid.UUID) (*MediaJob, error)

	// RunUploadCycle dispatches pending uploads: it self-heals local jobs
	// stuck behind a dead encoder, enforces the local concurrency cap and
	// applies the upload retry policy.
	RunUploadCycle(ctx context.Context) (*CycleResult, error)

	// RunStatusPollCycle asks providers for the current status of in-flight
	// jobs and applies the resulting transitions.
	RunStatusPollCycle(ctx context.Context) (*CycleResult, error)

	// RunDeletionCycle finalizes jobs marked deleted: provider delete, then
	// removal of the local record. Idempotent across invocations.
	RunDeletionCycle(ctx context.Context) (*CycleResult, error)

	// StartDuplicateRecovery re-submits a job whose provider signalled a
	// likely duplicate and starts the bounded confirmation workflow.
	StartDuplicateRecovery(ctx context.Context, jobID uuid.UUID) (*RecoveryResult, error)

	// ContinueUploadStatusCheck runs one confirmation attempt of the
	// duplicate-recovery workflow. The caller reschedules it with the
	// returned NextAttempt while the result is pending; once attempt reaches
	// the configured cap the check fails with ErrMaxAttemptsExceeded.
	ContinueUploadStatusCheck(ctx context.Context, jobID uuid.UUID, previousID string, attempt int) (*RecoveryResult, error)

	// CompleteLocalEncode is the completion signal of the local encoder: it
	// moves a local job to a terminal state once its encode finished.
	CompleteLocalEncode(ctx context.Context, jobID uuid.UUID, result EncodeResult, encodeErr error) (*MediaJob, error)
}

// CreateJobRequest contains parameters for registering a hosting relationship.
type CreateJobRequest struct {
	MediaID uuid.UUID
	Host    Host
}

// CycleResult contains statistics about one cycle invocation.
type CycleResult struct {
	// Processed is the number of jobs that took a transition this cycle
	Processed int

	// Failed is the number of jobs whose processing failed and was left for
	// a later cycle
	Failed int

	// Skipped is the number of jobs deliberately not touched (denylist,
	// concurrency cap, untracked, still processing)
	Skipped int

	// FailedIDs contains the ids of jobs that failed processing
	FailedIDs []uuid.UUID
}

// RecoveryResult is the outcome of one duplicate-recovery step.
type RecoveryResult struct {
	Job     *MediaJob
	Info    *MediaInfo
	Verdict Verdict

	// NextAttempt is the attempt counter the caller passes to the next
	// ContinueUploadStatusCheck invocation. Only meaningful while Verdict
	// is VerdictPending.
	NextAttempt int
}
