package mediasync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const (
	// maxUploadRetries bounds the upload retry ladder per job.
	maxUploadRetries = 3

	// defaultCheckStatusMaxAttempts bounds the duplicate-recovery
	// confirmation loop.
	defaultCheckStatusMaxAttempts = 50
)

// uploadErrorMessage is the fixed diagnostic stored when the retry ladder is
// exhausted.
const uploadErrorMessage = "Error on upload"

// service implements the Service interface
type service struct {
	repo      Repository
	media     MediaResolver
	providers map[Host]Provider
	store     BlobStore
	health    EncoderHealth
	logger    *slog.Logger

	blacklist        map[uuid.UUID]struct{}
	localMaxParallel int
	maxCheckAttempts int
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the job repository for the service
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repo = repo
	}
}

// WithMediaResolver sets the media lookup collaborator
func WithMediaResolver(resolver MediaResolver) Option {
	return func(s *service) {
		s.media = resolver
	}
}

// WithProvider registers a hosting provider under its host identifier
func WithProvider(p Provider) Option {
	return func(s *service) {
		if s.providers == nil {
			s.providers = make(map[Host]Provider)
		}
		s.providers[p.Host()] = p
	}
}

// WithBlobStore sets the store holding locally encoded renditions
func WithBlobStore(store BlobStore) Option {
	return func(s *service) {
		s.store = store
	}
}

// WithEncoderHealth sets the health check for the local encoding worker
func WithEncoderHealth(health EncoderHealth) Option {
	return func(s *service) {
		s.health = health
	}
}

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// WithBlacklist sets the job ids excluded from all automatic processing
func WithBlacklist(ids []uuid.UUID) Option {
	return func(s *service) {
		s.blacklist = make(map[uuid.UUID]struct{}, len(ids))
		for _, id := range ids {
			s.blacklist[id] = struct{}{}
		}
	}
}

// WithLocalMaxParallel caps concurrently processing local jobs. Zero
// disables the cap.
func WithLocalMaxParallel(n int) Option {
	return func(s *service) {
		s.localMaxParallel = n
	}
}

// WithCheckStatusMaxAttempts caps the duplicate-recovery confirmation loop
func WithCheckStatusMaxAttempts(n int) Option {
	return func(s *service) {
		s.maxCheckAttempts = n
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		providers:        make(map[Host]Provider),
		blacklist:        make(map[uuid.UUID]struct{}),
		localMaxParallel: 1,
		maxCheckAttempts: defaultCheckStatusMaxAttempts,
	}

	for _, option := range options {
		option(s)
	}

	if s.repo == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.media == nil {
		return nil, fmt.Errorf("media resolver is required")
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	return s, nil
}

func (s *service) CreateJob(ctx context.Context, req CreateJobRequest) (*MediaJob, error) {
	if _, ok := s.providers[req.Host]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotRegistered, req.Host)
	}
	if _, err := s.media.ResolveMedia(ctx, req.MediaID); err != nil {
		return nil, fmt.Errorf("media lookup failed: %w", err)
	}

	// One active job per media and host: a second record would race the
	// first through the upload pipeline and double-submit the asset.
	siblings, err := s.repo.ListJobsByMedia(ctx, req.MediaID)
	if err != nil {
		return nil, fmt.Errorf("sibling job lookup failed: %w", err)
	}
	for _, sibling := range siblings {
		if sibling.Host == req.Host && !isTerminalStatus(sibling.Status) {
			return nil, fmt.Errorf("%w: job %s is %s", ErrJobAlreadyActive, sibling.ID, sibling.Status)
		}
	}

	now := time.Now().UTC()
	job := &MediaJob{
		ID:        uuid.New(),
		MediaID:   req.MediaID,
		Host:      req.Host,
		Status:    StatusNotUploaded,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.CreateJob(ctx, job); err != nil {
		return nil, &JobError{JobID: job.ID, Op: "create", Err: err}
	}

	return job, nil
}

func (s *service) GetJob(ctx context.Context, id uuid.UUID) (*MediaJob, error) {
	job, err := s.repo.GetJob(ctx, id)
	if err != nil {
		return nil, &JobError{JobID: id, Op: "get", Err: err}
	}
	return job, nil
}

func (s *service) MarkForDeletion(ctx context.Context, id uuid.UUID) (*MediaJob, error) {
	job, err := s.repo.GetJob(ctx, id)
	if err != nil {
		return nil, &JobError{JobID: id, Op: "mark_for_deletion", Err: err}
	}

	job.Status = StatusDeleted
	job.StatusMessage = ""
	if err := s.saveJob(ctx, job); err != nil {
		return nil, &JobError{JobID: id, Op: "mark_for_deletion", Err: err}
	}
	return job, nil
}

func (s *service) CompleteLocalEncode(ctx context.Context, jobID uuid.UUID, result EncodeResult, encodeErr error) (*MediaJob, error) {
	job, err := s.repo.GetJob(ctx, jobID)
	if err != nil {
		return nil, &JobError{JobID: jobID, Op: "complete_local_encode", Err: err}
	}

	if encodeErr != nil {
		job.Status = StatusError
		job.StatusMessage = encodeErr.Error()
	} else {
		job.Status = StatusOK
		job.StatusMessage = ""
		if s.store != nil && result.ObjectKey != "" {
			url, err := s.store.GetDownloadURL(ctx, result.ObjectKey, "")
			if err != nil {
				s.logger.Warn("download url lookup failed for encoded media",
					"job_id", job.ID, "object_key", result.ObjectKey, "err", err)
			} else {
				job.URL = url
			}
		}
	}

	if err := s.saveJob(ctx, job); err != nil {
		return nil, &JobError{JobID: jobID, Op: "complete_local_encode", Err: err}
	}
	return job, nil
}

// denied reports whether the job id is on the operator denylist.
func (s *service) denied(id uuid.UUID) bool {
	_, ok := s.blacklist[id]
	return ok
}

// provider resolves the registered provider for a job's host.
func (s *service) provider(host Host) (Provider, error) {
	p, ok := s.providers[host]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotRegistered, host)
	}
	return p, nil
}

// saveJob persists a job, stamping UpdatedAt and enforcing the provider-id
// invariant.
func (s *service) saveJob(ctx context.Context, job *MediaJob) error {
	if !validJobStatus(job.Status) {
		return fmt.Errorf("%w: %s", ErrInvalidJobStatus, job.Status)
	}
	if err := requireProviderJobID(job); err != nil {
		return err
	}
	job.UpdatedAt = time.Now().UTC()
	return s.repo.UpdateJob(ctx, job)
}

// markOrphaned queues an orphaned job (source asset gone) for the deletion
// sweeper instead of retrying it forever.
func (s *service) markOrphaned(ctx context.Context, job *MediaJob) error {
	job.Status = StatusDeleted
	job.StatusMessage = "source media no longer exists"
	return s.saveJob(ctx, job)
}

// applyInfo maps a normalized provider response onto a job. It returns true
// when the job took a transition.
func (s *service) applyInfo(job *MediaJob, info *MediaInfo) bool {
	switch info.Status {
	case StatusOK:
		job.Status = StatusOK
		job.StatusMessage = info.StatusMessage
		job.Embed = info.Embed
		job.URL = info.URL
		job.Thumbnail = info.Thumbnail
		return true
	case StatusProcessing:
		return false
	case StatusDeleted:
		job.Status = StatusDeleted
		job.StatusMessage = info.StatusMessage
		return true
	default:
		job.Status = StatusError
		job.StatusMessage = info.StatusMessage
		return true
	}
}
