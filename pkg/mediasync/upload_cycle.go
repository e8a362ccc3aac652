package mediasync

import (
	"context"
	"errors"
	"fmt"
)

// RunUploadCycle finds not-yet-uploaded jobs and dispatches them to their
// providers. Local jobs are gated by the encoder health check and the
// concurrency cap; remote jobs are persisted in StatusSending before the
// network call so a concurrent invocation cannot double-submit them.
func (s *service) RunUploadCycle(ctx context.Context) (*CycleResult, error) {
	result := &CycleResult{}

	if _, ok := s.providers[HostLocal]; ok {
		s.healLocalJobs(ctx)
	}

	jobs, err := s.repo.ListJobsByStatus(ctx, StatusNotUploaded)
	if err != nil {
		return result, fmt.Errorf("failed to list pending jobs: %w", err)
	}

	for _, job := range jobs {
		if s.denied(job.ID) {
			result.Skipped++
			continue
		}

		provider, err := s.provider(job.Host)
		if err != nil {
			s.logger.Error("upload dispatch skipped", "job_id", job.ID, "host", job.Host, "err", err)
			result.Skipped++
			continue
		}

		media, err := s.media.ResolveMedia(ctx, job.MediaID)
		if errors.Is(err, ErrMediaNotFound) {
			if err := s.markOrphaned(ctx, job); err != nil {
				s.recordFailure(result, job, "orphan cleanup", err)
				continue
			}
			result.Processed++
			continue
		}
		if err != nil {
			s.recordFailure(result, job, "media lookup", err)
			continue
		}

		inFlight, err := s.hasInFlightSibling(ctx, job)
		if err != nil {
			s.recordFailure(result, job, "sibling job lookup", err)
			continue
		}
		if inFlight {
			s.logger.Warn("upload held back, sibling job is in flight",
				"job_id", job.ID, "media_id", job.MediaID, "host", job.Host)
			result.Skipped++
			continue
		}

		if job.Host == HostLocal {
			inProcess, err := s.repo.CountJobs(ctx, HostLocal, StatusProcessing)
			if err != nil {
				s.recordFailure(result, job, "local capacity check", err)
				continue
			}
			if s.localMaxParallel > 0 && inProcess >= s.localMaxParallel {
				result.Skipped++
				continue
			}
		}

		s.dispatchUpload(ctx, job, provider, media, result)
	}

	return result, nil
}

// hasInFlightSibling reports whether another job for the same media and host
// already has an upload in motion. Such a sibling holds the implicit lock;
// dispatching alongside it would double-submit the asset.
func (s *service) hasInFlightSibling(ctx context.Context, job *MediaJob) (bool, error) {
	siblings, err := s.repo.ListJobsByMedia(ctx, job.MediaID)
	if err != nil {
		return false, err
	}
	for _, sibling := range siblings {
		if sibling.ID != job.ID && sibling.Host == job.Host && isInFlightStatus(sibling.Status) {
			return true, nil
		}
	}
	return false, nil
}

// healLocalJobs resets local jobs stuck in StatusProcessing when the
// encoding worker is no longer running. Without this, a worker crash would
// strand jobs in processing forever.
func (s *service) healLocalJobs(ctx context.Context) {
	if s.health == nil {
		return
	}

	alive, err := s.health.Alive(ctx)
	if err != nil {
		s.logger.Error("encoder health check failed", "err", err)
	}
	if alive && err == nil {
		return
	}

	n, err := s.repo.ResetJobs(ctx, HostLocal, StatusProcessing, StatusNotUploaded)
	if err != nil {
		s.logger.Error("failed to reset stuck local jobs", "err", err)
		return
	}
	if n > 0 {
		s.logger.Warn("encoder is down, reset stuck local jobs", "count", n)
	}
}

// dispatchUpload performs one upload submission and applies the retry
// policy on failure.
func (s *service) dispatchUpload(ctx context.Context, job *MediaJob, provider Provider, media *MediaRef, result *CycleResult) {
	job.Status = StatusSending
	if err := s.saveJob(ctx, job); err != nil {
		s.recordFailure(result, job, "mark sending", err)
		return
	}

	info, err := provider.Upload(ctx, UploadRequest{
		Kind:        media.Kind,
		FilePath:    media.FilePath,
		Title:       media.Title,
		Description: media.Description,
		Tags:        media.Tags,
	})
	if err != nil {
		s.logger.Error("upload failed", "job_id", job.ID, "host", job.Host, "media_id", media.ID, "err", err)
		if job.Retries < maxUploadRetries {
			job.Retries++
			job.Status = StatusNotUploaded
		} else {
			job.Status = StatusError
			job.StatusMessage = uploadErrorMessage
		}
		if err := s.saveJob(ctx, job); err != nil {
			s.logger.Error("failed to persist upload failure", "job_id", job.ID, "err", err)
		}
		result.Failed++
		result.FailedIDs = append(result.FailedIDs, job.ID)
		return
	}

	s.logger.Info("uploaded media", "job_id", job.ID, "host", job.Host, "provider_job_id", info.ID)
	job.ProviderJobID = info.ID
	job.Status = StatusProcessing
	if err := s.saveJob(ctx, job); err != nil {
		s.recordFailure(result, job, "persist upload", err)
		return
	}
	result.Processed++
}

func (s *service) recordFailure(result *CycleResult, job *MediaJob, op string, err error) {
	s.logger.Error("cycle step failed", "op", op, "job_id", job.ID, "err", err)
	result.Failed++
	result.FailedIDs = append(result.FailedIDs, job.ID)
}
