package mediasync

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// Provider defines the capability set of one hosting backend. Implementations
// normalize provider-native status vocabularies into the JobStatus taxonomy.
type Provider interface {
	// Host returns the host identifier this provider serves.
	Host() Host

	// Authenticate validates that required credentials are configured and
	// establishes a session where the backend needs one. It is safe to call
	// before every operation. A missing credential fails with a ConfigError.
	Authenticate(ctx context.Context) error

	// Upload submits the asset and returns the provider-assigned identifier
	// and initial status. Implementations append SentinelTag to the tag list.
	// Callers must not assume partial completion on failure.
	Upload(ctx context.Context, req UploadRequest) (*MediaInfo, error)

	// GetInfo queries the current status of a previously uploaded asset.
	// The returned status is one of ok/processing/deleted/error; unknown
	// provider-native codes classify as error. When the provider reports the
	// asset does not exist, GetInfo fails with ErrRemoteNotFound.
	GetInfo(ctx context.Context, providerJobID string) (*MediaInfo, error)

	// Delete removes the asset from the provider. Providers without a delete
	// capability fail with ErrDeleteNotSupported, which callers treat as
	// success-equivalent.
	Delete(ctx context.Context, providerJobID string) error
}

// DuplicateChecker is implemented by providers that reject duplicate
// submissions silently or asynchronously and therefore need a confirmation
// workflow after re-upload.
type DuplicateChecker interface {
	// CheckUploadStatus compares the state of a re-submitted asset against
	// the provider id remembered before re-submission and decides whether
	// the new submission is a genuine duplicate.
	CheckUploadStatus(ctx context.Context, info *MediaInfo, previousID string) (Verdict, error)
}

// UploadRequest carries the asset and metadata for one upload submission.
type UploadRequest struct {
	Kind        MediaKind
	FilePath    string
	Title       string
	Description string
	Tags        []string
}

// Repository defines the interface for media job persistence. Updates are
// atomic per record; no further locking is required by the service.
type Repository interface {
	CreateJob(ctx context.Context, job *MediaJob) error
	GetJob(ctx context.Context, id uuid.UUID) (*MediaJob, error)
	UpdateJob(ctx context.Context, job *MediaJob) error
	DeleteJob(ctx context.Context, id uuid.UUID) error

	// GetJobByProviderJobID finds the job a provider-assigned id belongs to.
	GetJobByProviderJobID(ctx context.Context, host Host, providerJobID string) (*MediaJob, error)

	// ListJobsByStatus returns all jobs currently in the given status.
	ListJobsByStatus(ctx context.Context, status JobStatus) ([]*MediaJob, error)

	// ListJobsByMedia returns all jobs tracking the given media asset.
	ListJobsByMedia(ctx context.Context, mediaID uuid.UUID) ([]*MediaJob, error)

	// CountJobs counts jobs for a host in a given status.
	CountJobs(ctx context.Context, host Host, status JobStatus) (int, error)

	// ResetJobs moves every job of a host from one status to another and
	// returns the number of jobs moved.
	ResetJobs(ctx context.Context, host Host, from, to JobStatus) (int, error)
}

// MediaResolver looks up the source asset a job references. The asset is
// owned by an external collaborator; resolution failing with
// ErrMediaNotFound means the job is orphaned.
type MediaResolver interface {
	ResolveMedia(ctx context.Context, id uuid.UUID) (*MediaRef, error)
}

// EmbedRenderer produces embed snippets for assets whose provider does not
// supply a usable one (audio on UOLMais). The core never renders markup
// itself.
type EmbedRenderer interface {
	RenderEmbed(ctx context.Context, kind MediaKind, providerJobID string) (string, error)
}

// EncoderHealth reports whether the local encoding worker process is alive.
type EncoderHealth interface {
	Alive(ctx context.Context) (bool, error)
}

// BlobStore defines the interface for storing locally encoded renditions.
type BlobStore interface {
	// Upload stores content under the given key
	Upload(ctx context.Context, objectKey string, reader io.Reader) error

	// Download retrieves content stored under the given key
	Download(ctx context.Context, objectKey string) (io.ReadCloser, error)

	// Delete removes the content stored under the given key
	Delete(ctx context.Context, objectKey string) error

	// GetDownloadURL returns a URL for downloading content
	GetDownloadURL(ctx context.Context, objectKey string, downloadFilename string) (string, error)
}
