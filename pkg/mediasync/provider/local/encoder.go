package local

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/virgula/mediasync/pkg/mediasync"
)

// CompletionFunc receives the outcome of one finished encode. The server
// wires it to Service.CompleteLocalEncode.
type CompletionFunc func(ctx context.Context, encodeID string, result mediasync.EncodeResult, err error)

// ExecEncoder runs ffmpeg and stores the finished rendition in a blob store.
type ExecEncoder struct {
	FFmpegPath string
	WorkDir    string

	store    mediasync.BlobStore
	onDone   CompletionFunc
	logger   *slog.Logger
	videoExt string
	audioExt string

	mu     sync.Mutex
	active map[string]struct{}
}

// NewExecEncoder creates an encoder shelling out to ffmpeg.
func NewExecEncoder(ffmpegPath, workDir string, store mediasync.BlobStore, onDone CompletionFunc, logger *slog.Logger) *ExecEncoder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecEncoder{
		FFmpegPath: ffmpegPath,
		WorkDir:    workDir,
		store:      store,
		onDone:     onDone,
		logger:     logger,
		videoExt:   ".mp4",
		audioExt:   ".mp3",
		active:     make(map[string]struct{}),
	}
}

func (e *ExecEncoder) track(encodeID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.active[encodeID] = struct{}{}
}

func (e *ExecEncoder) untrack(encodeID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.active, encodeID)
}

// Running reports whether the worker currently owns the encode.
func (e *ExecEncoder) Running(encodeID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.active[encodeID]
	return ok
}

func (e *ExecEncoder) activeCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.active)
}

func (e *ExecEncoder) Start(ctx context.Context, req EncodeRequest) (string, error) {
	if _, err := os.Stat(req.FilePath); err != nil {
		return "", fmt.Errorf("source file unavailable: %w", err)
	}
	if err := os.MkdirAll(e.WorkDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create work directory: %w", err)
	}

	e.track(req.ID)

	// the encode keeps running after the upload cycle's context ends
	go e.run(context.Background(), req)

	return req.ID, nil
}

func (e *ExecEncoder) run(ctx context.Context, req EncodeRequest) {
	defer e.untrack(req.ID)
	ext := e.videoExt
	if req.Kind == mediasync.KindAudio {
		ext = e.audioExt
	}
	outPath := filepath.Join(e.WorkDir, req.ID+ext)
	defer os.Remove(outPath)

	cmd := exec.CommandContext(ctx, e.FFmpegPath, "-y", "-i", req.FilePath, outPath)
	if out, err := cmd.CombinedOutput(); err != nil {
		e.logger.Error("encode failed", "encode_id", req.ID, "err", err, "output", string(out))
		e.complete(ctx, req.ID, mediasync.EncodeResult{}, fmt.Errorf("ffmpeg failed: %w", err))
		return
	}

	file, err := os.Open(outPath)
	if err != nil {
		e.complete(ctx, req.ID, mediasync.EncodeResult{}, fmt.Errorf("failed to open rendition: %w", err))
		return
	}
	defer file.Close()

	key := ObjectKey(req.ID)
	if err := e.store.Upload(ctx, key, file); err != nil {
		e.complete(ctx, req.ID, mediasync.EncodeResult{}, fmt.Errorf("failed to store rendition: %w", err))
		return
	}

	e.logger.Info("encode finished", "encode_id", req.ID, "object_key", key)
	e.complete(ctx, req.ID, mediasync.EncodeResult{ObjectKey: key}, nil)
}

func (e *ExecEncoder) complete(ctx context.Context, encodeID string, result mediasync.EncodeResult, err error) {
	if e.onDone != nil {
		e.onDone(ctx, encodeID, result, err)
	}
}

// Health wraps a process check so the worker counts as alive while it owns
// any in-flight encode. ffmpeg runs for only part of an encode; between the
// transcode and the rendition upload no process matches, and a bare process
// check would report a live worker as dead.
func (e *ExecEncoder) Health(next mediasync.EncoderHealth) mediasync.EncoderHealth {
	return workerHealth{encoder: e, next: next}
}

type workerHealth struct {
	encoder *ExecEncoder
	next    mediasync.EncoderHealth
}

func (h workerHealth) Alive(ctx context.Context) (bool, error) {
	if h.encoder.activeCount() > 0 {
		return true, nil
	}
	if h.next == nil {
		return false, nil
	}
	return h.next.Alive(ctx)
}

// ProcessHealth implements mediasync.EncoderHealth by checking whether a
// process matching Name is running.
type ProcessHealth struct {
	Name string
}

func (h ProcessHealth) Alive(ctx context.Context) (bool, error) {
	if h.Name == "" {
		return false, fmt.Errorf("encoder process name is not configured")
	}

	err := exec.CommandContext(ctx, "pgrep", "-f", h.Name).Run()
	if err == nil {
		return true, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		// pgrep exits 1 when no process matched
		return false, nil
	}
	return false, fmt.Errorf("process lookup failed: %w", err)
}
