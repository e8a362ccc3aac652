// Package youtube implements the mediasync.Provider for YouTube. YouTube
// has no fixed numeric status table: an entry without an upload fault is ok,
// a fault payload is an error with a message, and a missing video is
// reported distinctly. YouTube also rejects duplicate submissions
// asynchronously, so the provider implements mediasync.DuplicateChecker.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/virgula/mediasync/pkg/mediasync"
)

// uploadCategory is the fixed category every upload is filed under.
const uploadCategory = "Entertainment"

// VideoEntry is the provider-native description of one video.
type VideoEntry struct {
	ID          string
	Title       string
	Description string
	Thumbnail   string
	Keywords    string // comma-joined
	EmbedCode   string
	PlayerURL   string

	// Fault is set while the upload is rejected or still failing; nil means
	// the video is live.
	Fault *UploadFault
}

// UploadFault describes a rejected or failed upload.
type UploadFault struct {
	Name    string
	Message string
}

// Submission carries one video upload.
type Submission struct {
	FilePath    string
	Title       string
	Description string
	Category    string
	Keywords    string // comma-joined
}

// API is the opaque YouTube wire client.
type API interface {
	// Login establishes a session. It may fail softly with
	// mediasync.ErrAuthUnconfirmed when the service answers 403 to the
	// session check; callers proceed without a confirmed session.
	Login(ctx context.Context, email, password, developerKey string) error

	InsertVideo(ctx context.Context, sub Submission) (*VideoEntry, error)

	// GetVideo fails with mediasync.ErrRemoteNotFound when the video does
	// not exist.
	GetVideo(ctx context.Context, videoID string) (*VideoEntry, error)

	// CheckUploadStatus returns the pending fault for a video, nil once the
	// upload has settled cleanly.
	CheckUploadStatus(ctx context.Context, videoID string) (*UploadFault, error)
}

// Config holds the YouTube credentials.
type Config struct {
	Email        string
	Password     string
	DeveloperKey string
}

// Provider implements mediasync.Provider and mediasync.DuplicateChecker for
// YouTube.
type Provider struct {
	api    API
	cfg    Config
	logger *slog.Logger
}

// New creates a YouTube provider over the given wire client.
func New(cfg Config, api API, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{api: api, cfg: cfg, logger: logger}
}

func (p *Provider) Host() mediasync.Host {
	return mediasync.HostYouTube
}

func (p *Provider) Authenticate(ctx context.Context) error {
	if p.cfg.Email == "" {
		return &mediasync.ConfigError{Setting: "YOUTUBE_AUTH_EMAIL"}
	}
	if p.cfg.Password == "" {
		return &mediasync.ConfigError{Setting: "YOUTUBE_AUTH_PASSWORD"}
	}
	if p.cfg.DeveloperKey == "" {
		return &mediasync.ConfigError{Setting: "YOUTUBE_DEVELOPER_KEY"}
	}

	err := p.api.Login(ctx, p.cfg.Email, p.cfg.Password, p.cfg.DeveloperKey)
	if errors.Is(err, mediasync.ErrAuthUnconfirmed) {
		// proceed without a confirmed session
		p.logger.Warn("youtube session not confirmed, proceeding", "err", err)
		return nil
	}
	if err != nil {
		return &mediasync.ProviderError{Host: p.Host(), Op: "authenticate", Err: err}
	}
	return nil
}

func (p *Provider) Upload(ctx context.Context, req mediasync.UploadRequest) (*mediasync.MediaInfo, error) {
	if err := p.Authenticate(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", mediasync.ErrUploadFailed, err)
	}

	tags := mediasync.AppendSentinelTag(req.Tags)
	entry, err := p.api.InsertVideo(ctx, Submission{
		FilePath:    req.FilePath,
		Title:       req.Title,
		Description: req.Description,
		Category:    uploadCategory,
		Keywords:    strings.Join(tags, ","),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", mediasync.ErrUploadFailed, err)
	}

	return infoFromEntry(entry), nil
}

func (p *Provider) GetInfo(ctx context.Context, videoID string) (*mediasync.MediaInfo, error) {
	if err := p.Authenticate(ctx); err != nil {
		return nil, err
	}

	entry, err := p.api.GetVideo(ctx, videoID)
	if errors.Is(err, mediasync.ErrRemoteNotFound) {
		return nil, fmt.Errorf("%w: video %s", mediasync.ErrRemoteNotFound, videoID)
	}
	if err != nil {
		return nil, &mediasync.ProviderError{Host: p.Host(), Op: "get_info", Err: err}
	}

	return infoFromEntry(entry), nil
}

// Delete is not available through the upload API.
func (p *Provider) Delete(ctx context.Context, videoID string) error {
	return mediasync.ErrDeleteNotSupported
}

// CheckUploadStatus decides whether a re-submitted video was silently
// rejected as a duplicate of previousID.
func (p *Provider) CheckUploadStatus(ctx context.Context, info *mediasync.MediaInfo, previousID string) (mediasync.Verdict, error) {
	switch {
	case info.Status == mediasync.StatusProcessing:
		return mediasync.VerdictPending, nil
	case info.Status == mediasync.StatusError && previousID != "" && isDuplicateMessage(info.StatusMessage):
		return mediasync.VerdictDuplicate, nil
	default:
		return mediasync.VerdictDistinct, nil
	}
}

// infoFromEntry normalizes a provider entry. A fault naming an unfinished
// state maps to processing, any other fault to error.
func infoFromEntry(entry *VideoEntry) *mediasync.MediaInfo {
	info := &mediasync.MediaInfo{
		ID:          entry.ID,
		Title:       entry.Title,
		Description: entry.Description,
		Thumbnail:   entry.Thumbnail,
		Tags:        splitKeywords(entry.Keywords),
		Embed:       entry.EmbedCode,
		URL:         entry.PlayerURL,
	}

	switch {
	case entry.Fault == nil:
		info.Status = mediasync.StatusOK
	case strings.EqualFold(entry.Fault.Name, "processing"):
		info.Status = mediasync.StatusProcessing
		info.StatusMessage = entry.Fault.Message
	default:
		info.Status = mediasync.StatusError
		info.StatusMessage = entry.Fault.Message
	}

	return info
}

func isDuplicateMessage(msg string) bool {
	return strings.Contains(strings.ToLower(msg), "duplicate")
}

func splitKeywords(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, t := range parts {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
