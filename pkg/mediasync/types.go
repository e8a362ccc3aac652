package mediasync

import (
	"time"

	"github.com/google/uuid"
)

// Host identifies the hosting backend a media job targets.
type Host string

// Host constants (typed).
const (
	HostLocal   Host = "local"
	HostUOLMais Host = "uolmais"
	HostYouTube Host = "youtube"
)

// JobStatus is the domain type for media job lifecycle states.
type JobStatus string

// Job status constants (typed).
const (
	StatusNotUploaded JobStatus = "not_uploaded"
	StatusSending     JobStatus = "sending"
	StatusProcessing  JobStatus = "processing"
	StatusEncoding    JobStatus = "encoding"
	StatusOK          JobStatus = "ok"
	StatusDeleted     JobStatus = "deleted"
	StatusError       JobStatus = "error"
)

// MediaKind distinguishes the asset types providers accept.
type MediaKind string

// Media kind constants (typed).
const (
	KindVideo MediaKind = "video"
	KindAudio MediaKind = "audio"
)

// SentinelTag is appended to every caller-supplied tag list before upload.
// Downstream consumers filter on it; the value must not change.
const SentinelTag = "virgula"

// UntrackedProviderJobID marks a job that is intentionally not polled.
const UntrackedProviderJobID = "NONE"

// AppendSentinelTag returns tags with SentinelTag appended. The input slice
// is not modified.
func AppendSentinelTag(tags []string) []string {
	out := make([]string, 0, len(tags)+1)
	out = append(out, tags...)
	return append(out, SentinelTag)
}

// MediaJob tracks one media asset's relationship to one hosting backend.
//
// ProviderJobID is the identifier assigned by the provider after upload; it
// is empty until the first successful submission. Retries counts failed
// upload attempts and only ever increases.
type MediaJob struct {
	ID            uuid.UUID `json:"id"`
	MediaID       uuid.UUID `json:"media_id"`
	Host          Host      `json:"host"`
	ProviderJobID string    `json:"provider_job_id,omitempty"`
	Status        JobStatus `json:"status"`
	StatusMessage string    `json:"status_message,omitempty"`
	Retries       int       `json:"retries"`

	// Enrichment fields populated from the provider on terminal success.
	Embed     string `json:"embed,omitempty"`
	URL       string `json:"url,omitempty"`
	Thumbnail string `json:"thumbnail,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MediaRef is a weak reference to the source asset a job uploads. Jobs look
// it up through a MediaResolver; the asset itself is owned elsewhere.
type MediaRef struct {
	ID          uuid.UUID `json:"id"`
	Kind        MediaKind `json:"kind"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	FilePath    string    `json:"file_path"`
}

// MediaInfo is the normalized response from a provider query. It is
// transient and never persisted as-is. Status is always one of StatusOK,
// StatusProcessing, StatusDeleted or StatusError.
type MediaInfo struct {
	ID            string    `json:"id"`
	Title         string    `json:"title,omitempty"`
	Description   string    `json:"description,omitempty"`
	Thumbnail     string    `json:"thumbnail,omitempty"`
	Tags          []string  `json:"tags,omitempty"`
	Embed         string    `json:"embed,omitempty"`
	URL           string    `json:"url,omitempty"`
	Status        JobStatus `json:"status"`
	StatusMessage string    `json:"status_message,omitempty"`
}

// Verdict is the outcome of a duplicate-detection check against a
// previously submitted provider id.
type Verdict string

// Verdict constants (typed).
const (
	// VerdictPending means the provider has not finished evaluating the
	// re-submission; the check must run again later.
	VerdictPending Verdict = "pending"

	// VerdictDuplicate means the re-submission was rejected as a duplicate
	// of the previously submitted asset; the original id should be kept.
	VerdictDuplicate Verdict = "duplicate"

	// VerdictDistinct means the re-submission was accepted as a new asset.
	VerdictDistinct Verdict = "distinct"
)

// EncodeResult describes the output of a finished local encode.
type EncodeResult struct {
	// ObjectKey locates the encoded rendition in the blob store.
	ObjectKey string `json:"object_key"`
}
