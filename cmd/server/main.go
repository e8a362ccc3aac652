package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/virgula/mediasync/pkg/mediasync"
	"github.com/virgula/mediasync/pkg/mediasync/api"
	"github.com/virgula/mediasync/pkg/mediasync/config"
	"github.com/virgula/mediasync/pkg/mediasync/provider/uolmais"
	"github.com/virgula/mediasync/pkg/mediasync/provider/youtube"
)

type EnvConfig struct {
	Port string `env:"PORT" env-default:"8080"`

	Engines   []string `env:"MEDIA_ENGINES" env-separator:"," env-default:"local"`
	Blacklist []string `env:"MEDIA_BLACKLIST" env-separator:","`

	LocalMaxParallel       int           `env:"LOCAL_MAX_PARALLEL" env-default:"1"`
	UploadInterval         time.Duration `env:"UPLOAD_MEDIA_INTERVAL" env-default:"5m"`
	PollInterval           time.Duration `env:"UPDATE_MEDIAHOST_INTERVAL" env-default:"2m"`
	DeleteInterval         time.Duration `env:"DELETE_MEDIAHOST_INTERVAL" env-default:"60m"`
	CheckStatusMaxAttempts int           `env:"CHECK_STATUS_MAX_ATTEMPTS" env-default:"50"`

	EncoderProcess string `env:"ENCODER_PROCESS" env-default:"ffmpeg"`
	FFmpegPath     string `env:"FFMPEG_PATH" env-default:"ffmpeg"`
	EncoderWorkDir string `env:"ENCODER_WORK_DIR" env-default:"./data/encodes"`

	DatabaseType string `env:"DATABASE_TYPE" env-default:"memory"`
	DatabaseURL  string `env:"DATABASE_URL"`
	DBSchema     string `env:"DB_SCHEMA"`

	Storage StorageEnvConfig

	UOLMais UOLMaisEnvConfig
	YouTube YouTubeEnvConfig

	AudioEmbedTemplate string `env:"AUDIO_EMBED_TEMPLATE"`
}

type StorageEnvConfig struct {
	Type      string `env:"STORAGE_TYPE" env-default:"memory"`
	BaseDir   string `env:"STORAGE_FS_BASE_DIR" env-default:"./data/renditions"`
	URLPrefix string `env:"STORAGE_FS_URL_PREFIX"`

	S3Region          string `env:"AWS_S3_REGION" env-default:"us-east-1"`
	S3Bucket          string `env:"AWS_S3_BUCKET"`
	S3AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	S3Endpoint        string `env:"AWS_S3_ENDPOINT"`
	S3UsePathStyle    bool   `env:"AWS_S3_USE_PATH_STYLE" env-default:"false"`

	CreateBucketIfNotExist bool `env:"AWS_S3_CREATE_BUCKET" env-default:"false"`
}

type UOLMaisEnvConfig struct {
	Username string `env:"UOLMAIS_USERNAME"`
	Password string `env:"UOLMAIS_PASSWORD"`
}

type YouTubeEnvConfig struct {
	Email        string `env:"YOUTUBE_AUTH_EMAIL"`
	Password     string `env:"YOUTUBE_AUTH_PASSWORD"`
	DeveloperKey string `env:"YOUTUBE_DEVELOPER_KEY"`
}

func (e *EnvConfig) buildConfig() (*config.Config, error) {
	engines := make([]mediasync.Host, 0, len(e.Engines))
	for _, engine := range e.Engines {
		engines = append(engines, mediasync.Host(engine))
	}

	blacklist := make([]uuid.UUID, 0, len(e.Blacklist))
	for _, idStr := range e.Blacklist {
		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("invalid blacklist entry %q: %w", idStr, err)
		}
		blacklist = append(blacklist, id)
	}

	return config.Load(func(c *config.Config) error {
		c.Engines = engines
		c.Blacklist = blacklist
		c.LocalMaxParallel = e.LocalMaxParallel
		c.UploadInterval = e.UploadInterval
		c.PollInterval = e.PollInterval
		c.DeleteInterval = e.DeleteInterval
		c.CheckStatusMaxAttempts = e.CheckStatusMaxAttempts
		c.EncoderProcess = e.EncoderProcess
		c.FFmpegPath = e.FFmpegPath
		c.EncoderWorkDir = e.EncoderWorkDir
		c.DatabaseType = e.DatabaseType
		c.DatabaseURL = e.DatabaseURL
		c.DBSchema = e.DBSchema
		c.Storage = config.StorageConfig{
			Type:                   e.Storage.Type,
			BaseDir:                e.Storage.BaseDir,
			URLPrefix:              e.Storage.URLPrefix,
			S3Region:               e.Storage.S3Region,
			S3Bucket:               e.Storage.S3Bucket,
			S3AccessKeyID:          e.Storage.S3AccessKeyID,
			S3SecretAccessKey:      e.Storage.S3SecretAccessKey,
			S3Endpoint:             e.Storage.S3Endpoint,
			S3UsePathStyle:         e.Storage.S3UsePathStyle,
			CreateBucketIfNotExist: e.Storage.CreateBucketIfNotExist,
		}
		c.UOLMais = uolmais.Config{
			Username: e.UOLMais.Username,
			Password: e.UOLMais.Password,
		}
		c.YouTube = youtube.Config{
			Email:        e.YouTube.Email,
			Password:     e.YouTube.Password,
			DeveloperKey: e.YouTube.DeveloperKey,
		}
		c.AudioEmbedTemplate = e.AudioEmbedTemplate
		return nil
	})
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	var env EnvConfig
	if err := cleanenv.ReadEnv(&env); err != nil {
		slog.Error("Failed to read configuration", "err", err)
		os.Exit(1)
	}

	cfg, err := env.buildConfig()
	if err != nil {
		slog.Error("Failed to load configuration", "err", err)
		os.Exit(1)
	}

	if cfg.DatabaseType == "postgres" {
		if err := config.PingPostgres(cfg.DatabaseURL, cfg.DBSchema); err != nil {
			slog.Error("Failed to connect to database", "err", err)
			os.Exit(1)
		}
	}

	svc, err := cfg.BuildService(logger)
	if err != nil {
		slog.Error("Failed to build service", "err", err)
		os.Exit(1)
	}

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", env.Port),
		Handler: routes(svc),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// one loop per periodic job so runs of the same job never overlap
	var wg sync.WaitGroup
	runPeriodic(ctx, &wg, "upload", cfg.UploadInterval, svc.RunUploadCycle)
	runPeriodic(ctx, &wg, "poll", cfg.PollInterval, svc.RunStatusPollCycle)
	runPeriodic(ctx, &wg, "deletion", cfg.DeleteInterval, svc.RunDeletionCycle)

	// Start server in a goroutine
	go func() {
		slog.Info("Media sync server starting", "port", env.Port, "engines", env.Engines, "database", cfg.DatabaseType)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server error", "err", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	cancel()
	wg.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "err", err)
		os.Exit(1)
	}

	slog.Info("Server exiting")
}

func routes(svc mediasync.Service) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"status": "healthy"}`)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/jobs", api.NewJobsHandler(svc).Routes())
	})

	return r
}

func runPeriodic(ctx context.Context, wg *sync.WaitGroup, name string, interval time.Duration, cycle func(context.Context) (*mediasync.CycleResult, error)) {
	wg.Add(1)
	go func() {
		defer wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				result, err := cycle(ctx)
				if err != nil {
					slog.Error("Cycle failed", "job", name, "err", err)
					continue
				}
				slog.Info("Cycle finished", "job", name,
					"processed", result.Processed, "failed", result.Failed, "skipped", result.Skipped)
			}
		}
	}()
}
