// Package local implements the mediasync.Provider for the local encoding
// pipeline. Uploads hand the asset to an Encoder which works asynchronously;
// completion is signalled back through Service.CompleteLocalEncode rather
// than by status polling.
package local

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/virgula/mediasync/pkg/mediasync"
)

// Encoder starts asynchronous encodes of local media files.
type Encoder interface {
	// Start begins encoding and returns immediately with the identifier of
	// the started encode. The encoder reports completion through the
	// callback it was constructed with.
	Start(ctx context.Context, req EncodeRequest) (string, error)
}

// EncodeRequest describes one encode.
type EncodeRequest struct {
	ID       string
	Kind     mediasync.MediaKind
	FilePath string
	Title    string
}

// Provider implements mediasync.Provider for the local host.
type Provider struct {
	encoder Encoder
	store   mediasync.BlobStore
}

// New creates the local provider. The store holds finished renditions and
// serves their deletion.
func New(encoder Encoder, store mediasync.BlobStore) *Provider {
	return &Provider{encoder: encoder, store: store}
}

func (p *Provider) Host() mediasync.Host {
	return mediasync.HostLocal
}

// Authenticate is a no-op: the local pipeline needs no credentials.
func (p *Provider) Authenticate(ctx context.Context) error {
	return nil
}

func (p *Provider) Upload(ctx context.Context, req mediasync.UploadRequest) (*mediasync.MediaInfo, error) {
	id := uuid.NewString()
	encodeID, err := p.encoder.Start(ctx, EncodeRequest{
		ID:       id,
		Kind:     req.Kind,
		FilePath: req.FilePath,
		Title:    req.Title,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", mediasync.ErrUploadFailed, err)
	}

	return &mediasync.MediaInfo{
		ID:     encodeID,
		Status: mediasync.StatusProcessing,
	}, nil
}

// GetInfo is not meaningful for the local host: the poller never selects
// local jobs, completion arrives through CompleteLocalEncode.
func (p *Provider) GetInfo(ctx context.Context, encodeID string) (*mediasync.MediaInfo, error) {
	return nil, &mediasync.ProviderError{
		Host: p.Host(), Op: "get_info",
		Err: fmt.Errorf("local encodes are not polled"),
	}
}

// Delete removes the encoded rendition from the blob store.
func (p *Provider) Delete(ctx context.Context, encodeID string) error {
	if p.store == nil {
		return mediasync.ErrDeleteNotSupported
	}
	if err := p.store.Delete(ctx, ObjectKey(encodeID)); err != nil {
		return &mediasync.ProviderError{Host: p.Host(), Op: "delete", Err: err}
	}
	return nil
}

// ObjectKey locates an encode's output rendition in the blob store.
func ObjectKey(encodeID string) string {
	return "encoded/" + encodeID
}
