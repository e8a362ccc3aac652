package mediasync

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// StartDuplicateRecovery re-submits a job whose provider signalled a likely
// duplicate. The provider id from before the re-submission is remembered so
// the confirmation workflow can restore it when the provider confirms the
// asset is the same one. YouTube runs its duplicate check asynchronously,
// which is why the confirmation happens in a separate bounded loop instead
// of inline.
func (s *service) StartDuplicateRecovery(ctx context.Context, jobID uuid.UUID) (*RecoveryResult, error) {
	job, err := s.repo.GetJob(ctx, jobID)
	if err != nil {
		return nil, &JobError{JobID: jobID, Op: "duplicate_recovery", Err: err}
	}

	provider, err := s.provider(job.Host)
	if err != nil {
		return nil, &JobError{JobID: jobID, Op: "duplicate_recovery", Err: err}
	}
	checker, ok := provider.(DuplicateChecker)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRecoveryNotSupported, job.Host)
	}

	media, err := s.media.ResolveMedia(ctx, job.MediaID)
	if err != nil {
		return nil, &JobError{JobID: jobID, Op: "duplicate_recovery", Err: err}
	}

	previousID := job.ProviderJobID

	job.Status = StatusProcessing
	if err := s.saveJob(ctx, job); err != nil {
		return nil, &JobError{JobID: jobID, Op: "duplicate_recovery", Err: err}
	}

	info, err := provider.Upload(ctx, UploadRequest{
		Kind:        media.Kind,
		FilePath:    media.FilePath,
		Title:       media.Title,
		Description: media.Description,
		Tags:        media.Tags,
	})
	if err != nil {
		job.Status = StatusNotUploaded
		if saveErr := s.saveJob(ctx, job); saveErr != nil {
			s.logger.Error("failed to revert job after recovery upload failure", "job_id", job.ID, "err", saveErr)
		}
		return nil, &JobError{JobID: jobID, Op: "duplicate_recovery", Err: err}
	}

	job.ProviderJobID = info.ID
	job.Status = StatusEncoding
	if err := s.saveJob(ctx, job); err != nil {
		return nil, &JobError{JobID: jobID, Op: "duplicate_recovery", Err: err}
	}

	current, err := provider.GetInfo(ctx, job.ProviderJobID)
	if err != nil {
		return nil, &JobError{JobID: jobID, Op: "duplicate_recovery", Err: err}
	}

	return s.evaluateUploadCheck(ctx, job, checker, current, previousID, 0)
}

// ContinueUploadStatusCheck runs one confirmation attempt against the
// previously remembered provider id. While the verdict is pending the
// caller reschedules with the returned NextAttempt; attempt values reaching
// the configured cap fail with ErrMaxAttemptsExceeded and must not be
// rescheduled.
func (s *service) ContinueUploadStatusCheck(ctx context.Context, jobID uuid.UUID, previousID string, attempt int) (*RecoveryResult, error) {
	if attempt >= s.maxCheckAttempts {
		return nil, fmt.Errorf("%w: job %s after %d attempts", ErrMaxAttemptsExceeded, jobID, attempt)
	}

	job, err := s.repo.GetJob(ctx, jobID)
	if err != nil {
		return nil, &JobError{JobID: jobID, Op: "upload_status_check", Err: err}
	}

	provider, err := s.provider(job.Host)
	if err != nil {
		return nil, &JobError{JobID: jobID, Op: "upload_status_check", Err: err}
	}
	checker, ok := provider.(DuplicateChecker)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRecoveryNotSupported, job.Host)
	}

	info, err := provider.GetInfo(ctx, job.ProviderJobID)
	if errors.Is(err, ErrRemoteNotFound) {
		info = &MediaInfo{ID: job.ProviderJobID, Status: StatusDeleted}
	} else if err != nil {
		return nil, &JobError{JobID: jobID, Op: "upload_status_check", Err: err}
	}

	return s.evaluateUploadCheck(ctx, job, checker, info, previousID, attempt)
}

// evaluateUploadCheck applies one duplicate verdict to the job.
func (s *service) evaluateUploadCheck(ctx context.Context, job *MediaJob, checker DuplicateChecker, info *MediaInfo, previousID string, attempt int) (*RecoveryResult, error) {
	verdict, err := checker.CheckUploadStatus(ctx, info, previousID)
	if err != nil {
		return nil, &JobError{JobID: job.ID, Op: "upload_status_check", Err: err}
	}

	result := &RecoveryResult{Job: job, Info: info, Verdict: verdict}

	switch verdict {
	case VerdictPending:
		result.NextAttempt = attempt + 1
		return result, nil

	case VerdictDuplicate:
		// the re-submission was the same asset; keep the original id
		s.logger.Info("duplicate confirmed, restoring provider id",
			"job_id", job.ID, "provider_job_id", previousID)
		job.ProviderJobID = previousID
		job.Status = StatusOK
		job.StatusMessage = ""
		if err := s.saveJob(ctx, job); err != nil {
			return nil, &JobError{JobID: job.ID, Op: "upload_status_check", Err: err}
		}
		return result, nil

	default:
		s.applyInfo(job, info)
		if err := s.saveJob(ctx, job); err != nil {
			return nil, &JobError{JobID: job.ID, Op: "upload_status_check", Err: err}
		}
		return result, nil
	}
}
