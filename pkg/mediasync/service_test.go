package mediasync_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/virgula/mediasync/pkg/mediasync"
	"github.com/virgula/mediasync/pkg/mediasync/repo/memory"
)

// fakeProvider is a scriptable hosting backend for tests.
type fakeProvider struct {
	host mediasync.Host

	uploadInfo *mediasync.MediaInfo
	uploadErr  error
	uploads    int

	infoByID map[string]*mediasync.MediaInfo
	infoErr  error

	deleteErr error
	deletes   []string

	verdicts   []mediasync.Verdict
	verdictErr error
	checks     int
}

func (p *fakeProvider) Host() mediasync.Host { return p.host }

func (p *fakeProvider) Authenticate(ctx context.Context) error { return nil }

func (p *fakeProvider) Upload(ctx context.Context, req mediasync.UploadRequest) (*mediasync.MediaInfo, error) {
	p.uploads++
	if p.uploadErr != nil {
		return nil, p.uploadErr
	}
	if p.uploadInfo != nil {
		return p.uploadInfo, nil
	}
	return &mediasync.MediaInfo{ID: fmt.Sprintf("remote-%d", p.uploads), Status: mediasync.StatusProcessing}, nil
}

func (p *fakeProvider) GetInfo(ctx context.Context, providerJobID string) (*mediasync.MediaInfo, error) {
	if p.infoErr != nil {
		return nil, p.infoErr
	}
	if info, ok := p.infoByID[providerJobID]; ok {
		return info, nil
	}
	return &mediasync.MediaInfo{ID: providerJobID, Status: mediasync.StatusProcessing}, nil
}

func (p *fakeProvider) Delete(ctx context.Context, providerJobID string) error {
	p.deletes = append(p.deletes, providerJobID)
	return p.deleteErr
}

func (p *fakeProvider) CheckUploadStatus(ctx context.Context, info *mediasync.MediaInfo, previousID string) (mediasync.Verdict, error) {
	if p.verdictErr != nil {
		return "", p.verdictErr
	}
	verdict := p.verdicts[p.checks]
	if p.checks < len(p.verdicts)-1 {
		p.checks++
	}
	return verdict, nil
}

// fakeHealth reports a fixed encoder liveness.
type fakeHealth struct {
	alive bool
	err   error
}

func (h fakeHealth) Alive(ctx context.Context) (bool, error) { return h.alive, h.err }

// fakeStore is a BlobStore stub returning canned download URLs.
type fakeStore struct {
	urls map[string]string
}

func (s fakeStore) Upload(ctx context.Context, objectKey string, reader io.Reader) error { return nil }
func (s fakeStore) Download(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	return nil, errors.New("not implemented")
}
func (s fakeStore) Delete(ctx context.Context, objectKey string) error { return nil }
func (s fakeStore) GetDownloadURL(ctx context.Context, objectKey string, downloadFilename string) (string, error) {
	url, ok := s.urls[objectKey]
	if !ok {
		return "", errors.New("object not found")
	}
	return url, nil
}

type testEnv struct {
	repo     *memory.Repository
	provider *fakeProvider
	local    *fakeProvider
	svc      mediasync.Service
}

func setupService(t *testing.T, extra ...mediasync.Option) *testEnv {
	t.Helper()

	env := &testEnv{
		repo:     memory.New(),
		provider: &fakeProvider{host: mediasync.HostUOLMais},
		local:    &fakeProvider{host: mediasync.HostLocal},
	}

	options := []mediasync.Option{
		mediasync.WithRepository(env.repo),
		mediasync.WithMediaResolver(env.repo),
		mediasync.WithProvider(env.provider),
		mediasync.WithProvider(env.local),
		mediasync.WithLogger(slog.Default()),
	}
	options = append(options, extra...)

	svc, err := mediasync.New(options...)
	require.NoError(t, err)
	env.svc = svc
	return env
}

func (e *testEnv) addMedia(t *testing.T) *mediasync.MediaRef {
	t.Helper()
	media := &mediasync.MediaRef{
		ID:       uuid.New(),
		Kind:     mediasync.KindVideo,
		Title:    "Test Video",
		FilePath: "/tmp/test.mp4",
	}
	e.repo.SetMedia(media)
	return media
}

func (e *testEnv) addJob(t *testing.T, host mediasync.Host, status mediasync.JobStatus, providerJobID string) *mediasync.MediaJob {
	t.Helper()
	media := e.addMedia(t)
	job := &mediasync.MediaJob{
		ID:            uuid.New(),
		MediaID:       media.ID,
		Host:          host,
		Status:        status,
		ProviderJobID: providerJobID,
	}
	require.NoError(t, e.repo.CreateJob(context.Background(), job))
	return job
}

func TestServiceCreation(t *testing.T) {
	repo := memory.New()

	tests := []struct {
		name        string
		options     []mediasync.Option
		expectError bool
	}{
		{
			name:        "no options should fail",
			options:     []mediasync.Option{},
			expectError: true,
		},
		{
			name: "repository alone should fail",
			options: []mediasync.Option{
				mediasync.WithRepository(repo),
			},
			expectError: true,
		},
		{
			name: "repository and resolver should succeed",
			options: []mediasync.Option{
				mediasync.WithRepository(repo),
				mediasync.WithMediaResolver(repo),
			},
			expectError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := mediasync.New(tt.options...)
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, svc)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, svc)
			}
		})
	}
}

func TestCreateJob(t *testing.T) {
	ctx := context.Background()
	env := setupService(t)

	t.Run("creates job in not_uploaded", func(t *testing.T) {
		media := env.addMedia(t)

		job, err := env.svc.CreateJob(ctx, mediasync.CreateJobRequest{
			MediaID: media.ID,
			Host:    mediasync.HostUOLMais,
		})
		require.NoError(t, err)
		assert.Equal(t, mediasync.StatusNotUploaded, job.Status)
		assert.Empty(t, job.ProviderJobID)
		assert.Zero(t, job.Retries)
	})

	t.Run("second active job for same media and host is rejected", func(t *testing.T) {
		media := env.addMedia(t)
		req := mediasync.CreateJobRequest{MediaID: media.ID, Host: mediasync.HostUOLMais}

		_, err := env.svc.CreateJob(ctx, req)
		require.NoError(t, err)

		_, err = env.svc.CreateJob(ctx, req)
		assert.ErrorIs(t, err, mediasync.ErrJobAlreadyActive)
	})

	t.Run("same media on another host is allowed", func(t *testing.T) {
		media := env.addMedia(t)

		_, err := env.svc.CreateJob(ctx, mediasync.CreateJobRequest{
			MediaID: media.ID,
			Host:    mediasync.HostUOLMais,
		})
		require.NoError(t, err)

		_, err = env.svc.CreateJob(ctx, mediasync.CreateJobRequest{
			MediaID: media.ID,
			Host:    mediasync.HostLocal,
		})
		assert.NoError(t, err)
	})

	t.Run("terminal job frees the slot", func(t *testing.T) {
		media := env.addMedia(t)
		req := mediasync.CreateJobRequest{MediaID: media.ID, Host: mediasync.HostUOLMais}

		job, err := env.svc.CreateJob(ctx, req)
		require.NoError(t, err)
		_, err = env.svc.MarkForDeletion(ctx, job.ID)
		require.NoError(t, err)

		_, err = env.svc.CreateJob(ctx, req)
		assert.NoError(t, err)
	})

	t.Run("unknown host fails", func(t *testing.T) {
		media := env.addMedia(t)

		_, err := env.svc.CreateJob(ctx, mediasync.CreateJobRequest{
			MediaID: media.ID,
			Host:    mediasync.Host("vimeo"),
		})
		assert.ErrorIs(t, err, mediasync.ErrProviderNotRegistered)
	})

	t.Run("unknown media fails", func(t *testing.T) {
		_, err := env.svc.CreateJob(ctx, mediasync.CreateJobRequest{
			MediaID: uuid.New(),
			Host:    mediasync.HostUOLMais,
		})
		assert.ErrorIs(t, err, mediasync.ErrMediaNotFound)
	})
}

func TestUploadCycle(t *testing.T) {
	ctx := context.Background()

	t.Run("successful upload moves job to processing", func(t *testing.T) {
		env := setupService(t)
		job := env.addJob(t, mediasync.HostUOLMais, mediasync.StatusNotUploaded, "")

		result, err := env.svc.RunUploadCycle(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Processed)
		assert.Zero(t, result.Failed)

		got, err := env.svc.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, mediasync.StatusProcessing, got.Status)
		assert.NotEmpty(t, got.ProviderJobID)
	})

	t.Run("failed upload increments retries and reverts", func(t *testing.T) {
		env := setupService(t)
		env.provider.uploadErr = errors.New("connection reset")
		job := env.addJob(t, mediasync.HostUOLMais, mediasync.StatusNotUploaded, "")

		result, err := env.svc.RunUploadCycle(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Failed)
		assert.Contains(t, result.FailedIDs, job.ID)

		got, err := env.svc.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, mediasync.StatusNotUploaded, got.Status)
		assert.Equal(t, 1, got.Retries)
	})

	t.Run("retry ladder exhausts into terminal error", func(t *testing.T) {
		env := setupService(t)
		env.provider.uploadErr = errors.New("connection reset")
		job := env.addJob(t, mediasync.HostUOLMais, mediasync.StatusNotUploaded, "")

		// three failures consume the retries, the fourth is terminal
		for i := 1; i <= 3; i++ {
			_, err := env.svc.RunUploadCycle(ctx)
			require.NoError(t, err)

			got, err := env.svc.GetJob(ctx, job.ID)
			require.NoError(t, err)
			assert.Equal(t, mediasync.StatusNotUploaded, got.Status)
			assert.Equal(t, i, got.Retries)
		}

		_, err := env.svc.RunUploadCycle(ctx)
		require.NoError(t, err)

		got, err := env.svc.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, mediasync.StatusError, got.Status)
		assert.Equal(t, "Error on upload", got.StatusMessage)
		assert.Equal(t, 3, got.Retries)

		// terminal jobs are not picked up again
		uploads := env.provider.uploads
		_, err = env.svc.RunUploadCycle(ctx)
		require.NoError(t, err)
		assert.Equal(t, uploads, env.provider.uploads)
	})

	t.Run("duplicate pending jobs submit only one upload", func(t *testing.T) {
		env := setupService(t)
		first := env.addJob(t, mediasync.HostUOLMais, mediasync.StatusNotUploaded, "")
		second := &mediasync.MediaJob{
			ID:        uuid.New(),
			MediaID:   first.MediaID,
			Host:      first.Host,
			Status:    mediasync.StatusNotUploaded,
			CreatedAt: first.CreatedAt.Add(time.Second),
		}
		require.NoError(t, env.repo.CreateJob(ctx, second))

		result, err := env.svc.RunUploadCycle(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, env.provider.uploads)
		assert.Equal(t, 1, result.Processed)
		assert.Equal(t, 1, result.Skipped)

		updated, err := env.repo.GetJob(ctx, second.ID)
		require.NoError(t, err)
		assert.Equal(t, mediasync.StatusNotUploaded, updated.Status)
	})

	t.Run("orphaned job is queued for deletion", func(t *testing.T) {
		env := setupService(t)
		job := env.addJob(t, mediasync.HostUOLMais, mediasync.StatusNotUploaded, "")
		env.repo.RemoveMedia(job.MediaID)

		result, err := env.svc.RunUploadCycle(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Processed)
		assert.Zero(t, env.provider.uploads)

		got, err := env.svc.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, mediasync.StatusDeleted, got.Status)
	})

	t.Run("denylisted job is never dispatched", func(t *testing.T) {
		repo := memory.New()
		provider := &fakeProvider{host: mediasync.HostUOLMais}
		media := &mediasync.MediaRef{ID: uuid.New(), Kind: mediasync.KindVideo, FilePath: "/tmp/a.mp4"}
		repo.SetMedia(media)
		job := &mediasync.MediaJob{
			ID:      uuid.New(),
			MediaID: media.ID,
			Host:    mediasync.HostUOLMais,
			Status:  mediasync.StatusNotUploaded,
		}
		require.NoError(t, repo.CreateJob(ctx, job))

		svc, err := mediasync.New(
			mediasync.WithRepository(repo),
			mediasync.WithMediaResolver(repo),
			mediasync.WithProvider(provider),
			mediasync.WithBlacklist([]uuid.UUID{job.ID}),
		)
		require.NoError(t, err)

		result, err := svc.RunUploadCycle(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Skipped)
		assert.Zero(t, provider.uploads)

		got, err := svc.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, mediasync.StatusNotUploaded, got.Status)
		assert.Zero(t, got.Retries)
	})

	t.Run("local capacity cap skips without queueing", func(t *testing.T) {
		env := setupService(t,
			mediasync.WithEncoderHealth(fakeHealth{alive: true}),
			mediasync.WithLocalMaxParallel(1),
		)
		env.addJob(t, mediasync.HostLocal, mediasync.StatusProcessing, "encode-1")
		pending := env.addJob(t, mediasync.HostLocal, mediasync.StatusNotUploaded, "")

		result, err := env.svc.RunUploadCycle(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Skipped)
		assert.Zero(t, env.local.uploads)

		got, err := env.svc.GetJob(ctx, pending.ID)
		require.NoError(t, err)
		assert.Equal(t, mediasync.StatusNotUploaded, got.Status)
	})

	t.Run("dead encoder resets stuck local jobs", func(t *testing.T) {
		env := setupService(t,
			mediasync.WithEncoderHealth(fakeHealth{alive: false}),
			mediasync.WithLocalMaxParallel(2),
		)
		stuck1 := env.addJob(t, mediasync.HostLocal, mediasync.StatusProcessing, "encode-1")
		stuck2 := env.addJob(t, mediasync.HostLocal, mediasync.StatusProcessing, "encode-2")

		_, err := env.svc.RunUploadCycle(ctx)
		require.NoError(t, err)

		for _, id := range []uuid.UUID{stuck1.ID, stuck2.ID} {
			got, err := env.svc.GetJob(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, mediasync.StatusNotUploaded, got.Status)
		}
	})
}

func TestStatusPollCycle(t *testing.T) {
	ctx := context.Background()

	t.Run("finished upload becomes ok with enrichment", func(t *testing.T) {
		env := setupService(t)
		job := env.addJob(t, mediasync.HostUOLMais, mediasync.StatusProcessing, "remote-1")
		env.provider.infoByID = map[string]*mediasync.MediaInfo{
			"remote-1": {
				ID:        "remote-1",
				Status:    mediasync.StatusOK,
				Embed:     "<iframe></iframe>",
				URL:       "https://example.com/watch/remote-1",
				Thumbnail: "https://example.com/thumb/remote-1.jpg",
			},
		}

		result, err := env.svc.RunStatusPollCycle(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Processed)

		got, err := env.svc.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, mediasync.StatusOK, got.Status)
		assert.Equal(t, "<iframe></iframe>", got.Embed)
		assert.Equal(t, "https://example.com/watch/remote-1", got.URL)
		assert.Equal(t, "https://example.com/thumb/remote-1.jpg", got.Thumbnail)
	})

	t.Run("still processing leaves job unchanged", func(t *testing.T) {
		env := setupService(t)
		job := env.addJob(t, mediasync.HostUOLMais, mediasync.StatusProcessing, "remote-1")

		result, err := env.svc.RunStatusPollCycle(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Skipped)

		got, err := env.svc.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, mediasync.StatusProcessing, got.Status)
	})

	t.Run("removed on provider becomes deleted", func(t *testing.T) {
		env := setupService(t)
		job := env.addJob(t, mediasync.HostUOLMais, mediasync.StatusProcessing, "remote-1")
		env.provider.infoByID = map[string]*mediasync.MediaInfo{
			"remote-1": {ID: "remote-1", Status: mediasync.StatusDeleted},
		}

		_, err := env.svc.RunStatusPollCycle(ctx)
		require.NoError(t, err)

		got, err := env.svc.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, mediasync.StatusDeleted, got.Status)
	})

	t.Run("missing remote asset becomes deleted", func(t *testing.T) {
		env := setupService(t)
		job := env.addJob(t, mediasync.HostUOLMais, mediasync.StatusProcessing, "remote-1")
		env.provider.infoErr = mediasync.ErrRemoteNotFound

		result, err := env.svc.RunStatusPollCycle(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Processed)

		got, err := env.svc.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, mediasync.StatusDeleted, got.Status)
	})

	t.Run("lookup failure leaves job for next cycle", func(t *testing.T) {
		env := setupService(t)
		job := env.addJob(t, mediasync.HostUOLMais, mediasync.StatusProcessing, "remote-1")
		env.provider.infoErr = errors.New("503 service unavailable")

		result, err := env.svc.RunStatusPollCycle(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Failed)

		got, err := env.svc.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, mediasync.StatusProcessing, got.Status)
	})

	t.Run("untracked sentinel and local jobs are skipped", func(t *testing.T) {
		env := setupService(t)
		env.addJob(t, mediasync.HostUOLMais, mediasync.StatusProcessing, mediasync.UntrackedProviderJobID)
		env.addJob(t, mediasync.HostLocal, mediasync.StatusProcessing, "encode-1")

		result, err := env.svc.RunStatusPollCycle(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, result.Skipped)
		assert.Zero(t, result.Processed)
	})

	t.Run("orphaned processing job is queued for deletion", func(t *testing.T) {
		env := setupService(t)
		job := env.addJob(t, mediasync.HostUOLMais, mediasync.StatusProcessing, "remote-1")
		env.repo.RemoveMedia(job.MediaID)

		_, err := env.svc.RunStatusPollCycle(ctx)
		require.NoError(t, err)

		got, err := env.svc.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, mediasync.StatusDeleted, got.Status)
	})
}

func TestDeletionCycle(t *testing.T) {
	ctx := context.Background()

	t.Run("deletes remotely then removes record", func(t *testing.T) {
		env := setupService(t)
		job := env.addJob(t, mediasync.HostUOLMais, mediasync.StatusDeleted, "remote-1")

		result, err := env.svc.RunDeletionCycle(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Processed)
		assert.Equal(t, []string{"remote-1"}, env.provider.deletes)

		_, err = env.svc.GetJob(ctx, job.ID)
		assert.ErrorIs(t, err, mediasync.ErrJobNotFound)
	})

	t.Run("second sweep is a no-op", func(t *testing.T) {
		env := setupService(t)
		env.addJob(t, mediasync.HostUOLMais, mediasync.StatusDeleted, "remote-1")

		_, err := env.svc.RunDeletionCycle(ctx)
		require.NoError(t, err)

		result, err := env.svc.RunDeletionCycle(ctx)
		require.NoError(t, err)
		assert.Zero(t, result.Processed)
		assert.Zero(t, result.Failed)
	})

	t.Run("never uploaded record skips the provider call", func(t *testing.T) {
		env := setupService(t)
		job := env.addJob(t, mediasync.HostUOLMais, mediasync.StatusDeleted, "")

		result, err := env.svc.RunDeletionCycle(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Processed)
		assert.Empty(t, env.provider.deletes)

		_, err = env.svc.GetJob(ctx, job.ID)
		assert.ErrorIs(t, err, mediasync.ErrJobNotFound)
	})

	t.Run("unsupported provider delete counts as success", func(t *testing.T) {
		env := setupService(t)
		env.provider.deleteErr = mediasync.ErrDeleteNotSupported
		job := env.addJob(t, mediasync.HostUOLMais, mediasync.StatusDeleted, "remote-1")

		result, err := env.svc.RunDeletionCycle(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Processed)

		_, err = env.svc.GetJob(ctx, job.ID)
		assert.ErrorIs(t, err, mediasync.ErrJobNotFound)
	})

	t.Run("remote failure leaves record for the next sweep", func(t *testing.T) {
		env := setupService(t)
		env.provider.deleteErr = errors.New("503 service unavailable")
		job := env.addJob(t, mediasync.HostUOLMais, mediasync.StatusDeleted, "remote-1")

		result, err := env.svc.RunDeletionCycle(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Failed)

		got, err := env.svc.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, mediasync.StatusDeleted, got.Status)

		// sweep succeeds once the provider recovers
		env.provider.deleteErr = nil
		result, err = env.svc.RunDeletionCycle(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Processed)
	})

	t.Run("denylisted record is not swept", func(t *testing.T) {
		repo := memory.New()
		provider := &fakeProvider{host: mediasync.HostUOLMais}
		media := &mediasync.MediaRef{ID: uuid.New(), Kind: mediasync.KindVideo, FilePath: "/tmp/a.mp4"}
		repo.SetMedia(media)
		job := &mediasync.MediaJob{
			ID:            uuid.New(),
			MediaID:       media.ID,
			Host:          mediasync.HostUOLMais,
			Status:        mediasync.StatusDeleted,
			ProviderJobID: "remote-1",
		}
		require.NoError(t, repo.CreateJob(ctx, job))

		svc, err := mediasync.New(
			mediasync.WithRepository(repo),
			mediasync.WithMediaResolver(repo),
			mediasync.WithProvider(provider),
			mediasync.WithBlacklist([]uuid.UUID{job.ID}),
		)
		require.NoError(t, err)

		result, err := svc.RunDeletionCycle(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Skipped)
		assert.Empty(t, provider.deletes)

		got, err := svc.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, mediasync.StatusDeleted, got.Status)
	})
}

func TestMarkForDeletion(t *testing.T) {
	ctx := context.Background()
	env := setupService(t)
	job := env.addJob(t, mediasync.HostUOLMais, mediasync.StatusOK, "remote-1")

	got, err := env.svc.MarkForDeletion(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, mediasync.StatusDeleted, got.Status)

	_, err = env.svc.MarkForDeletion(ctx, uuid.New())
	assert.ErrorIs(t, err, mediasync.ErrJobNotFound)
}

func TestCompleteLocalEncode(t *testing.T) {
	ctx := context.Background()

	t.Run("successful encode becomes ok with storage url", func(t *testing.T) {
		env := setupService(t, mediasync.WithBlobStore(fakeStore{
			urls: map[string]string{"encoded/abc": "https://cdn.example.com/encoded/abc"},
		}))
		job := env.addJob(t, mediasync.HostLocal, mediasync.StatusProcessing, "abc")

		got, err := env.svc.CompleteLocalEncode(ctx, job.ID, mediasync.EncodeResult{ObjectKey: "encoded/abc"}, nil)
		require.NoError(t, err)
		assert.Equal(t, mediasync.StatusOK, got.Status)
		assert.Equal(t, "https://cdn.example.com/encoded/abc", got.URL)
	})

	t.Run("failed encode becomes error", func(t *testing.T) {
		env := setupService(t)
		job := env.addJob(t, mediasync.HostLocal, mediasync.StatusProcessing, "abc")

		got, err := env.svc.CompleteLocalEncode(ctx, job.ID, mediasync.EncodeResult{}, errors.New("ffmpeg exited with code 1"))
		require.NoError(t, err)
		assert.Equal(t, mediasync.StatusError, got.Status)
		assert.Equal(t, "ffmpeg exited with code 1", got.StatusMessage)
	})
}

func TestDuplicateRecovery(t *testing.T) {
	ctx := context.Background()

	t.Run("duplicate confirmed restores previous id", func(t *testing.T) {
		env := setupService(t)
		env.provider.verdicts = []mediasync.Verdict{mediasync.VerdictDuplicate}
		job := env.addJob(t, mediasync.HostUOLMais, mediasync.StatusError, "old-id")

		result, err := env.svc.StartDuplicateRecovery(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, mediasync.VerdictDuplicate, result.Verdict)

		got, err := env.svc.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, mediasync.StatusOK, got.Status)
		assert.Equal(t, "old-id", got.ProviderJobID)
	})

	t.Run("pending verdict schedules next attempt", func(t *testing.T) {
		env := setupService(t)
		env.provider.verdicts = []mediasync.Verdict{mediasync.VerdictPending}
		job := env.addJob(t, mediasync.HostUOLMais, mediasync.StatusError, "old-id")

		result, err := env.svc.StartDuplicateRecovery(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, mediasync.VerdictPending, result.Verdict)
		assert.Equal(t, 1, result.NextAttempt)

		got, err := env.svc.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, mediasync.StatusEncoding, got.Status)
		assert.NotEqual(t, "old-id", got.ProviderJobID)
	})

	t.Run("distinct verdict applies provider state", func(t *testing.T) {
		env := setupService(t)
		env.provider.verdicts = []mediasync.Verdict{mediasync.VerdictDistinct}
		env.provider.uploadInfo = &mediasync.MediaInfo{ID: "new-id", Status: mediasync.StatusProcessing}
		env.provider.infoByID = map[string]*mediasync.MediaInfo{
			"new-id": {ID: "new-id", Status: mediasync.StatusOK, URL: "https://example.com/new-id"},
		}
		job := env.addJob(t, mediasync.HostUOLMais, mediasync.StatusError, "old-id")

		result, err := env.svc.StartDuplicateRecovery(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, mediasync.VerdictDistinct, result.Verdict)

		got, err := env.svc.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, mediasync.StatusOK, got.Status)
		assert.Equal(t, "new-id", got.ProviderJobID)
		assert.Equal(t, "https://example.com/new-id", got.URL)
	})

	t.Run("upload failure reverts to not_uploaded", func(t *testing.T) {
		env := setupService(t)
		env.provider.uploadErr = errors.New("connection reset")
		job := env.addJob(t, mediasync.HostUOLMais, mediasync.StatusError, "old-id")

		_, err := env.svc.StartDuplicateRecovery(ctx, job.ID)
		require.Error(t, err)

		got, err := env.svc.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, mediasync.StatusNotUploaded, got.Status)
		assert.Equal(t, "old-id", got.ProviderJobID)
	})

	t.Run("provider without duplicate checking is rejected", func(t *testing.T) {
		env := setupService(t)
		job := env.addJob(t, mediasync.HostLocal, mediasync.StatusError, "encode-1")

		_, err := env.svc.StartDuplicateRecovery(ctx, job.ID)
		assert.ErrorIs(t, err, mediasync.ErrRecoveryNotSupported)
	})
}

func TestContinueUploadStatusCheck(t *testing.T) {
	ctx := context.Background()

	t.Run("attempt cap raises without rescheduling", func(t *testing.T) {
		env := setupService(t, mediasync.WithCheckStatusMaxAttempts(50))
		job := env.addJob(t, mediasync.HostUOLMais, mediasync.StatusEncoding, "new-id")

		_, err := env.svc.ContinueUploadStatusCheck(ctx, job.ID, "old-id", 50)
		assert.ErrorIs(t, err, mediasync.ErrMaxAttemptsExceeded)
	})

	t.Run("attempt below cap still runs", func(t *testing.T) {
		env := setupService(t, mediasync.WithCheckStatusMaxAttempts(50))
		env.provider.verdicts = []mediasync.Verdict{mediasync.VerdictPending}
		job := env.addJob(t, mediasync.HostUOLMais, mediasync.StatusEncoding, "new-id")

		result, err := env.svc.ContinueUploadStatusCheck(ctx, job.ID, "old-id", 49)
		require.NoError(t, err)
		assert.Equal(t, mediasync.VerdictPending, result.Verdict)
		assert.Equal(t, 50, result.NextAttempt)
	})

	t.Run("vanished re-submission counts toward the verdict", func(t *testing.T) {
		env := setupService(t)
		env.provider.infoErr = mediasync.ErrRemoteNotFound
		env.provider.verdicts = []mediasync.Verdict{mediasync.VerdictDuplicate}
		job := env.addJob(t, mediasync.HostUOLMais, mediasync.StatusEncoding, "new-id")

		result, err := env.svc.ContinueUploadStatusCheck(ctx, job.ID, "old-id", 3)
		require.NoError(t, err)
		assert.Equal(t, mediasync.VerdictDuplicate, result.Verdict)

		got, err := env.svc.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, "old-id", got.ProviderJobID)
		assert.Equal(t, mediasync.StatusOK, got.Status)
	})
}
