package mediasync

import (
	"context"
	"errors"
	"fmt"
)

// RunStatusPollCycle asks providers for the current status of in-flight
// jobs. Local jobs report completion through CompleteLocalEncode and are not
// polled; neither are jobs without a provider id, jobs carrying the
// untracked sentinel, or denylisted jobs. A lookup failure leaves the job
// unchanged so the next cycle retries it naturally.
func (s *service) RunStatusPollCycle(ctx context.Context) (*CycleResult, error) {
	result := &CycleResult{}

	jobs, err := s.repo.ListJobsByStatus(ctx, StatusProcessing)
	if err != nil {
		return result, fmt.Errorf("failed to list in-flight jobs: %w", err)
	}

	for _, job := range jobs {
		if job.Host == HostLocal || job.ProviderJobID == "" ||
			job.ProviderJobID == UntrackedProviderJobID || s.denied(job.ID) {
			result.Skipped++
			continue
		}

		if _, err := s.media.ResolveMedia(ctx, job.MediaID); errors.Is(err, ErrMediaNotFound) {
			if err := s.markOrphaned(ctx, job); err != nil {
				s.recordFailure(result, job, "orphan cleanup", err)
				continue
			}
			result.Processed++
			continue
		} else if err != nil {
			s.recordFailure(result, job, "media lookup", err)
			continue
		}

		provider, err := s.provider(job.Host)
		if err != nil {
			s.recordFailure(result, job, "provider lookup", err)
			continue
		}

		info, err := provider.GetInfo(ctx, job.ProviderJobID)
		if errors.Is(err, ErrRemoteNotFound) {
			job.Status = StatusDeleted
			job.StatusMessage = "removed on provider"
			if err := s.saveJob(ctx, job); err != nil {
				s.recordFailure(result, job, "persist remote removal", err)
				continue
			}
			result.Processed++
			continue
		}
		if err != nil {
			s.recordFailure(result, job, "status lookup", err)
			continue
		}

		if !s.applyInfo(job, info) {
			// still processing, poll again next cycle
			result.Skipped++
			continue
		}

		if err := s.saveJob(ctx, job); err != nil {
			s.recordFailure(result, job, "persist status", err)
			continue
		}
		result.Processed++
	}

	return result, nil
}
