package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/virgula/mediasync/pkg/mediasync"
)

// Repository implements mediasync.Repository and mediasync.MediaResolver
// using in-memory storage. Intended for tests and single-process setups.
type Repository struct {
	mu    sync.RWMutex
	jobs  map[uuid.UUID]*mediasync.MediaJob
	media map[uuid.UUID]*mediasync.MediaRef
}

// New creates a new in-memory repository
func New() *Repository {
	return &Repository{
		jobs:  make(map[uuid.UUID]*mediasync.MediaJob),
		media: make(map[uuid.UUID]*mediasync.MediaRef),
	}
}

// Job operations

func (r *Repository) CreateJob(ctx context.Context, job *mediasync.MediaJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Create a copy to avoid external modifications
	jobCopy := *job
	r.jobs[job.ID] = &jobCopy

	return nil
}

func (r *Repository) GetJob(ctx context.Context, id uuid.UUID) (*mediasync.MediaJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, exists := r.jobs[id]
	if !exists {
		return nil, mediasync.ErrJobNotFound
	}

	// Return a copy to prevent external modifications
	jobCopy := *job
	return &jobCopy, nil
}

func (r *Repository) UpdateJob(ctx context.Context, job *mediasync.MediaJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[job.ID]; !exists {
		return mediasync.ErrJobNotFound
	}

	jobCopy := *job
	r.jobs[job.ID] = &jobCopy

	return nil
}

func (r *Repository) DeleteJob(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[id]; !exists {
		return mediasync.ErrJobNotFound
	}
	delete(r.jobs, id)

	return nil
}

func (r *Repository) GetJobByProviderJobID(ctx context.Context, host mediasync.Host, providerJobID string) (*mediasync.MediaJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, job := range r.jobs {
		if job.Host == host && job.ProviderJobID == providerJobID {
			jobCopy := *job
			return &jobCopy, nil
		}
	}

	return nil, mediasync.ErrJobNotFound
}

func (r *Repository) ListJobsByStatus(ctx context.Context, status mediasync.JobStatus) ([]*mediasync.MediaJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*mediasync.MediaJob
	for _, job := range r.jobs {
		if job.Status == status {
			jobCopy := *job
			result = append(result, &jobCopy)
		}
	}

	// Oldest first so stalled jobs are retried before fresh ones
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return result, nil
}

func (r *Repository) ListJobsByMedia(ctx context.Context, mediaID uuid.UUID) ([]*mediasync.MediaJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*mediasync.MediaJob
	for _, job := range r.jobs {
		if job.MediaID == mediaID {
			jobCopy := *job
			result = append(result, &jobCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return result, nil
}

func (r *Repository) CountJobs(ctx context.Context, host mediasync.Host, status mediasync.JobStatus) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, job := range r.jobs {
		if job.Host == host && job.Status == status {
			count++
		}
	}

	return count, nil
}

func (r *Repository) ResetJobs(ctx context.Context, host mediasync.Host, from, to mediasync.JobStatus) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, job := range r.jobs {
		if job.Host == host && job.Status == from {
			job.Status = to
			count++
		}
	}

	return count, nil
}

// Media operations

// SetMedia registers a media asset so jobs can resolve it.
func (r *Repository) SetMedia(media *mediasync.MediaRef) {
	r.mu.Lock()
	defer r.mu.Unlock()

	mediaCopy := *media
	r.media[media.ID] = &mediaCopy
}

// RemoveMedia drops a media asset, orphaning any jobs that reference it.
func (r *Repository) RemoveMedia(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.media, id)
}

func (r *Repository) ResolveMedia(ctx context.Context, id uuid.UUID) (*mediasync.MediaRef, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	media, exists := r.media[id]
	if !exists {
		return nil, mediasync.ErrMediaNotFound
	}

	mediaCopy := *media
	return &mediaCopy, nil
}
