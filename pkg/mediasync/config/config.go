// Package config assembles a mediasync.Service from declarative
// configuration, wiring repositories, storage backends and hosting
// providers.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/virgula/mediasync/pkg/mediasync"
	"github.com/virgula/mediasync/pkg/mediasync/embed"
	"github.com/virgula/mediasync/pkg/mediasync/provider/local"
	"github.com/virgula/mediasync/pkg/mediasync/provider/uolmais"
	"github.com/virgula/mediasync/pkg/mediasync/provider/youtube"
	memoryrepo "github.com/virgula/mediasync/pkg/mediasync/repo/memory"
	postgresrepo "github.com/virgula/mediasync/pkg/mediasync/repo/postgres"
	fsstorage "github.com/virgula/mediasync/pkg/mediasync/storage/fs"
	memorystorage "github.com/virgula/mediasync/pkg/mediasync/storage/memory"
	s3storage "github.com/virgula/mediasync/pkg/mediasync/storage/s3"
)

// Option applies configuration to a Config instance.
type Option func(*Config) error

// Load constructs a Config by applying the supplied options on top of
// library defaults.
func Load(opts ...Option) (*Config, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() Config {
	return Config{
		Engines:                []mediasync.Host{mediasync.HostLocal},
		LocalMaxParallel:       1,
		UploadInterval:         5 * time.Minute,
		PollInterval:           2 * time.Minute,
		DeleteInterval:         60 * time.Minute,
		CheckStatusMaxAttempts: 50,
		EncoderProcess:         "ffmpeg",
		EncoderWorkDir:         "./data/encodes",
		DatabaseType:           "memory",
		Storage: StorageConfig{
			Type: "memory",
		},
	}
}

// Config represents the full configuration of the synchronization service.
type Config struct {
	// Engines lists the enabled hosting backends
	Engines []mediasync.Host

	// Blacklist holds job ids excluded from all automatic processing
	Blacklist []uuid.UUID

	// LocalMaxParallel caps concurrently processing local jobs (0 = no cap)
	LocalMaxParallel int

	// Job intervals for the external scheduler
	UploadInterval time.Duration
	PollInterval   time.Duration
	DeleteInterval time.Duration

	// CheckStatusMaxAttempts bounds the duplicate-recovery confirmation loop
	CheckStatusMaxAttempts int

	// EncoderProcess is the process name health-checked before local dispatch
	EncoderProcess string

	// FFmpegPath and EncoderWorkDir configure the local encoder
	FFmpegPath     string
	EncoderWorkDir string

	// Database configuration
	DatabaseURL  string
	DatabaseType string // "memory", "postgres"
	DBSchema     string

	// Storage holds the blob store configuration for encoded renditions
	Storage StorageConfig

	// Provider credentials
	UOLMais uolmais.Config
	YouTube youtube.Config

	// AudioEmbedTemplate overrides the built-in audio embed snippet
	AudioEmbedTemplate string
}

// StorageConfig represents configuration for the rendition blob store
type StorageConfig struct {
	Type      string // "memory", "fs", "s3"
	BaseDir   string
	URLPrefix string

	S3Region          string
	S3Bucket          string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3Endpoint        string
	S3UsePathStyle    bool

	CreateBucketIfNotExist bool
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if len(c.Engines) == 0 {
		return errors.New("at least one engine is required")
	}
	for _, engine := range c.Engines {
		switch engine {
		case mediasync.HostLocal, mediasync.HostUOLMais, mediasync.HostYouTube:
		default:
			return fmt.Errorf("unknown engine: %s", engine)
		}
	}

	if c.UploadInterval <= 0 || c.PollInterval <= 0 || c.DeleteInterval <= 0 {
		return errors.New("job intervals must be positive")
	}
	if c.CheckStatusMaxAttempts <= 0 {
		return errors.New("check_status_max_attempts must be positive")
	}

	if c.DatabaseType != "memory" && c.DatabaseType != "postgres" {
		return errors.New("database_type must be 'memory' or 'postgres'")
	}
	if c.DatabaseType == "postgres" && c.DatabaseURL == "" {
		return errors.New("database_url is required when using postgres")
	}

	switch c.Storage.Type {
	case "memory":
	case "fs":
		if c.Storage.BaseDir == "" {
			return errors.New("storage base_dir is required for fs storage")
		}
	case "s3":
		if c.Storage.S3Bucket == "" {
			return errors.New("s3 bucket is required for s3 storage")
		}
	default:
		return fmt.Errorf("unsupported storage type: %s", c.Storage.Type)
	}

	return nil
}

// engineEnabled reports whether a host is listed in Engines.
func (c *Config) engineEnabled(host mediasync.Host) bool {
	for _, engine := range c.Engines {
		if engine == host {
			return true
		}
	}
	return false
}

// BuildService creates a Service instance from the configuration.
func (c *Config) BuildService(logger *slog.Logger) (mediasync.Service, error) {
	if logger == nil {
		logger = slog.Default()
	}

	repo, err := c.buildRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to build repository: %w", err)
	}

	store, err := c.buildStorageBackend()
	if err != nil {
		return nil, fmt.Errorf("failed to build storage backend: %w", err)
	}

	options := []mediasync.Option{
		mediasync.WithRepository(repo),
		mediasync.WithMediaResolver(repo),
		mediasync.WithBlobStore(store),
		mediasync.WithLogger(logger),
		mediasync.WithBlacklist(c.Blacklist),
		mediasync.WithLocalMaxParallel(c.LocalMaxParallel),
		mediasync.WithCheckStatusMaxAttempts(c.CheckStatusMaxAttempts),
	}

	// local encode completion is resolved back to a job once the service
	// exists
	relay := &encodeRelay{repo: repo, logger: logger}

	if c.engineEnabled(mediasync.HostLocal) {
		encoder := local.NewExecEncoder(c.FFmpegPath, c.EncoderWorkDir, store, relay.complete, logger)
		options = append(options,
			mediasync.WithProvider(local.New(encoder, store)),
			mediasync.WithEncoderHealth(encoder.Health(local.ProcessHealth{Name: c.EncoderProcess})),
		)
	}

	if c.engineEnabled(mediasync.HostUOLMais) {
		renderer, err := embed.NewTemplateRenderer(c.AudioEmbedTemplate)
		if err != nil {
			return nil, fmt.Errorf("failed to build embed renderer: %w", err)
		}
		options = append(options,
			mediasync.WithProvider(uolmais.New(c.UOLMais, uolmais.NewClient(), renderer)))
	}

	if c.engineEnabled(mediasync.HostYouTube) {
		options = append(options,
			mediasync.WithProvider(youtube.New(c.YouTube, youtube.NewClient(), logger)))
	}

	svc, err := mediasync.New(options...)
	if err != nil {
		return nil, err
	}
	relay.svc = svc

	return svc, nil
}

// jobRepository is the subset of persistence both repo implementations
// provide to BuildService.
type jobRepository interface {
	mediasync.Repository
	mediasync.MediaResolver
}

func (c *Config) buildRepository() (jobRepository, error) {
	switch c.DatabaseType {
	case "memory":
		return memoryrepo.New(), nil
	case "postgres":
		cfg, err := pgxpool.ParseConfig(c.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
		}
		schema := c.DBSchema
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			if schema == "" {
				return nil
			}
			_, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s", schema))
			return err
		}
		pool, err := pgxpool.NewWithConfig(context.Background(), cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create pgx pool: %w", err)
		}
		return postgresrepo.NewWithPool(pool), nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

func (c *Config) buildStorageBackend() (mediasync.BlobStore, error) {
	switch c.Storage.Type {
	case "memory":
		return memorystorage.New(), nil

	case "fs":
		return fsstorage.New(fsstorage.Config{
			BaseDir:   c.Storage.BaseDir,
			URLPrefix: c.Storage.URLPrefix,
		})

	case "s3":
		return s3storage.New(s3storage.Config{
			Region:                 c.Storage.S3Region,
			Bucket:                 c.Storage.S3Bucket,
			AccessKeyID:            c.Storage.S3AccessKeyID,
			SecretAccessKey:        c.Storage.S3SecretAccessKey,
			Endpoint:               c.Storage.S3Endpoint,
			UsePathStyle:           c.Storage.S3UsePathStyle,
			CreateBucketIfNotExist: c.Storage.CreateBucketIfNotExist,
		})

	default:
		return nil, fmt.Errorf("unsupported storage type: %s", c.Storage.Type)
	}
}

// PingPostgres verifies connectivity to Postgres and optionally sets
// search_path for the session.
func PingPostgres(databaseURL, schema string) error {
	if databaseURL == "" {
		return errors.New("database_url is required")
	}
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	if schema != "" {
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			_, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s", schema))
			return err
		}
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), cfg)
	if err != nil {
		return fmt.Errorf("failed to create pgx pool: %w", err)
	}
	defer pool.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// encodeRelay forwards encoder completions to the service, resolving the
// encode id back to its job.
type encodeRelay struct {
	repo   mediasync.Repository
	svc    mediasync.Service
	logger *slog.Logger
}

func (r *encodeRelay) complete(ctx context.Context, encodeID string, result mediasync.EncodeResult, encodeErr error) {
	if r.svc == nil {
		r.logger.Error("encode finished before service was ready", "encode_id", encodeID)
		return
	}

	job, err := r.repo.GetJobByProviderJobID(ctx, mediasync.HostLocal, encodeID)
	if err != nil {
		r.logger.Error("no job found for finished encode", "encode_id", encodeID, "err", err)
		return
	}

	if _, err := r.svc.CompleteLocalEncode(ctx, job.ID, result, encodeErr); err != nil {
		r.logger.Error("failed to record encode completion", "job_id", job.ID, "err", err)
	}
}
