// Package uolmais implements the mediasync.Provider for the UOLMais hosting
// service. Status normalization follows the fixed UOLMais code tables;
// the wire protocol itself sits behind the API interface.
package uolmais

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/virgula/mediasync/pkg/mediasync"
)

// UOLMais status code tables. These mappings are contractual; changing them
// breaks compatibility with existing UOLMais media.
var (
	successCodes    = map[int]bool{10: true}
	processingCodes = map[int]bool{0: true, 1: true, 2: true, 3: true, 6: true, 11: true, 12: true, 13: true, 30: true, 31: true, 32: true, 33: true}
	removedCodes    = map[int]bool{20: true, 21: true, 22: true}
)

// audioMediaType is the UOLMais media-type marker for audio assets.
const audioMediaType = "P"

// RawInfo is the provider-native description of one media asset.
type RawInfo struct {
	Status            int
	StatusDescription string
	Title             string
	Description       string
	ThumbLarge        string
	Tags              string
	EmbedCode         string
	URL               string
	MediaType         string
}

// Submission carries one upload to the UOLMais backend.
type Submission struct {
	FilePath    string
	PublishedAt time.Time
	Title       string
	Description string
	Tags        string // comma-joined
	Visibility  string
	Comments    string
	Hot         bool
}

// API is the opaque UOLMais wire client.
type API interface {
	Authenticate(ctx context.Context, username, password string) error
	UploadVideo(ctx context.Context, sub Submission) (string, error)
	UploadAudio(ctx context.Context, sub Submission) (string, error)
	PrivateInfo(ctx context.Context, mediaID string) (*RawInfo, error)
	Remove(ctx context.Context, mediaID string) error
}

// Config holds the UOLMais credentials.
type Config struct {
	Username string
	Password string
}

// Provider implements mediasync.Provider for UOLMais.
type Provider struct {
	api    API
	cfg    Config
	embeds mediasync.EmbedRenderer
	tz     *time.Location
}

// New creates a UOLMais provider over the given wire client. The embed
// renderer produces snippets for audio assets; video assets use the embed
// code UOLMais returns.
func New(cfg Config, api API, embeds mediasync.EmbedRenderer) *Provider {
	tz, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		// publish timestamps degrade to UTC when tzdata is unavailable
		tz = time.UTC
	}
	return &Provider{api: api, cfg: cfg, embeds: embeds, tz: tz}
}

func (p *Provider) Host() mediasync.Host {
	return mediasync.HostUOLMais
}

func (p *Provider) Authenticate(ctx context.Context) error {
	if p.cfg.Username == "" {
		return &mediasync.ConfigError{Setting: "UOLMAIS_USERNAME"}
	}
	if p.cfg.Password == "" {
		return &mediasync.ConfigError{Setting: "UOLMAIS_PASSWORD"}
	}

	if err := p.api.Authenticate(ctx, p.cfg.Username, p.cfg.Password); err != nil {
		return &mediasync.ProviderError{Host: p.Host(), Op: "authenticate", Err: err}
	}
	return nil
}

func (p *Provider) Upload(ctx context.Context, req mediasync.UploadRequest) (*mediasync.MediaInfo, error) {
	if err := p.Authenticate(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", mediasync.ErrUploadFailed, err)
	}

	tags := mediasync.AppendSentinelTag(req.Tags)
	sub := Submission{
		FilePath:    req.FilePath,
		PublishedAt: time.Now().In(p.tz),
		Title:       req.Title,
		Description: req.Description,
		Tags:        strings.Join(tags, ","),
		Visibility:  "anyone",
		Comments:    "none",
		Hot:         false,
	}

	var mediaID string
	var err error
	switch req.Kind {
	case mediasync.KindAudio:
		mediaID, err = p.api.UploadAudio(ctx, sub)
	default:
		mediaID, err = p.api.UploadVideo(ctx, sub)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", mediasync.ErrUploadFailed, err)
	}

	return p.GetInfo(ctx, mediaID)
}

// UploadVideo submits a video asset.
func (p *Provider) UploadVideo(ctx context.Context, filePath, title, description string, tags []string) (*mediasync.MediaInfo, error) {
	return p.Upload(ctx, mediasync.UploadRequest{
		Kind: mediasync.KindVideo, FilePath: filePath,
		Title: title, Description: description, Tags: tags,
	})
}

// UploadAudio submits an audio asset.
func (p *Provider) UploadAudio(ctx context.Context, filePath, title, description string, tags []string) (*mediasync.MediaInfo, error) {
	return p.Upload(ctx, mediasync.UploadRequest{
		Kind: mediasync.KindAudio, FilePath: filePath,
		Title: title, Description: description, Tags: tags,
	})
}

func (p *Provider) GetInfo(ctx context.Context, mediaID string) (*mediasync.MediaInfo, error) {
	if err := p.Authenticate(ctx); err != nil {
		return nil, err
	}

	raw, err := p.api.PrivateInfo(ctx, mediaID)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: media %s", mediasync.ErrRemoteNotFound, mediaID)
		}
		return nil, &mediasync.ProviderError{Host: p.Host(), Op: "get_info", Err: err}
	}

	info := &mediasync.MediaInfo{
		ID:            mediaID,
		Status:        classify(raw.Status),
		StatusMessage: raw.StatusDescription,
	}

	if info.Status == mediasync.StatusOK {
		embed := raw.EmbedCode
		if raw.MediaType == audioMediaType {
			embed, err = p.embeds.RenderEmbed(ctx, mediasync.KindAudio, mediaID)
			if err != nil {
				return nil, &mediasync.ProviderError{Host: p.Host(), Op: "render_embed", Err: err}
			}
		}

		info.Title = raw.Title
		info.Description = raw.Description
		info.Thumbnail = raw.ThumbLarge
		info.Tags = splitTags(raw.Tags)
		info.Embed = embed
		info.URL = raw.URL
	}

	return info, nil
}

func (p *Provider) Delete(ctx context.Context, mediaID string) error {
	if err := p.Authenticate(ctx); err != nil {
		return err
	}

	if err := p.api.Remove(ctx, mediaID); err != nil {
		if isNotFound(err) {
			// already gone, nothing to remove
			return nil
		}
		return &mediasync.ProviderError{Host: p.Host(), Op: "delete", Err: err}
	}
	return nil
}

// classify maps a UOLMais status code onto the normalized taxonomy. Codes
// outside every table classify as error.
func classify(code int) mediasync.JobStatus {
	switch {
	case successCodes[code]:
		return mediasync.StatusOK
	case processingCodes[code]:
		return mediasync.StatusProcessing
	case removedCodes[code]:
		return mediasync.StatusDeleted
	default:
		return mediasync.StatusError
	}
}

func splitTags(raw string) []string {
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
