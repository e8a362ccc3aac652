package mediasync

import (
	"context"
	"errors"
	"fmt"
)

// RunDeletionCycle finalizes jobs marked deleted. The provider delete runs
// first; a provider without delete support counts as success. Remote
// failures leave the record for the next sweep, retried without a cap since
// deletion is not time-sensitive.
func (s *service) RunDeletionCycle(ctx context.Context) (*CycleResult, error) {
	result := &CycleResult{}

	jobs, err := s.repo.ListJobsByStatus(ctx, StatusDeleted)
	if err != nil {
		return result, fmt.Errorf("failed to list deleted jobs: %w", err)
	}

	for _, job := range jobs {
		if s.denied(job.ID) {
			result.Skipped++
			continue
		}

		if job.ProviderJobID != "" && job.ProviderJobID != UntrackedProviderJobID {
			provider, err := s.provider(job.Host)
			if err != nil {
				s.recordFailure(result, job, "provider lookup", err)
				continue
			}
			if err := provider.Delete(ctx, job.ProviderJobID); err != nil && !errors.Is(err, ErrDeleteNotSupported) {
				s.recordFailure(result, job, "provider delete", err)
				continue
			}
		}

		if err := s.repo.DeleteJob(ctx, job.ID); err != nil {
			s.recordFailure(result, job, "remove record", err)
			continue
		}
		s.logger.Info("purged deleted media job", "job_id", job.ID, "host", job.Host)
		result.Processed++
	}

	return result, nil
}
