package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/virgula/mediasync/pkg/mediasync"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements mediasync.Repository and mediasync.MediaResolver
// using PostgreSQL
type Repository struct {
	db DBTX
}

// New creates a new PostgreSQL repository
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// Error handling helper
func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("media job already exists")
		case "23503": // foreign_key_violation
			return fmt.Errorf("referenced record not found")
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

// Job operations

func (r *Repository) CreateJob(ctx context.Context, job *mediasync.MediaJob) error {
	query := `
		INSERT INTO media_job (
			id, media_id, host, provider_job_id, status, status_message,
			retries, embed, url, thumbnail, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.db.Exec(ctx, query,
		job.ID, job.MediaID, job.Host, job.ProviderJobID, job.Status,
		job.StatusMessage, job.Retries, job.Embed, job.URL, job.Thumbnail,
		job.CreatedAt, job.UpdatedAt)

	if err != nil {
		return r.handlePostgresError("create job", err)
	}

	return nil
}

func (r *Repository) GetJob(ctx context.Context, id uuid.UUID) (*mediasync.MediaJob, error) {
	query := `
		SELECT id, media_id, host, provider_job_id, status, status_message,
		       retries, embed, url, thumbnail, created_at, updated_at
		FROM media_job WHERE id = $1`

	var job mediasync.MediaJob
	err := r.db.QueryRow(ctx, query, id).Scan(
		&job.ID, &job.MediaID, &job.Host, &job.ProviderJobID, &job.Status,
		&job.StatusMessage, &job.Retries, &job.Embed, &job.URL, &job.Thumbnail,
		&job.CreatedAt, &job.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, mediasync.ErrJobNotFound
		}
		return nil, r.handlePostgresError("get job", err)
	}

	return &job, nil
}

func (r *Repository) UpdateJob(ctx context.Context, job *mediasync.MediaJob) error {
	query := `
		UPDATE media_job SET
			media_id = $2, host = $3, provider_job_id = $4, status = $5,
			status_message = $6, retries = $7, embed = $8, url = $9,
			thumbnail = $10, updated_at = $11
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		job.ID, job.MediaID, job.Host, job.ProviderJobID, job.Status,
		job.StatusMessage, job.Retries, job.Embed, job.URL, job.Thumbnail,
		job.UpdatedAt)

	if err != nil {
		return r.handlePostgresError("update job", err)
	}
	if tag.RowsAffected() == 0 {
		return mediasync.ErrJobNotFound
	}

	return nil
}

func (r *Repository) DeleteJob(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM media_job WHERE id = $1`, id)
	if err != nil {
		return r.handlePostgresError("delete job", err)
	}
	if tag.RowsAffected() == 0 {
		return mediasync.ErrJobNotFound
	}

	return nil
}

func (r *Repository) GetJobByProviderJobID(ctx context.Context, host mediasync.Host, providerJobID string) (*mediasync.MediaJob, error) {
	query := `
		SELECT id, media_id, host, provider_job_id, status, status_message,
		       retries, embed, url, thumbnail, created_at, updated_at
		FROM media_job WHERE host = $1 AND provider_job_id = $2`

	var job mediasync.MediaJob
	err := r.db.QueryRow(ctx, query, host, providerJobID).Scan(
		&job.ID, &job.MediaID, &job.Host, &job.ProviderJobID, &job.Status,
		&job.StatusMessage, &job.Retries, &job.Embed, &job.URL, &job.Thumbnail,
		&job.CreatedAt, &job.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, mediasync.ErrJobNotFound
		}
		return nil, r.handlePostgresError("get job by provider id", err)
	}

	return &job, nil
}

func (r *Repository) ListJobsByStatus(ctx context.Context, status mediasync.JobStatus) ([]*mediasync.MediaJob, error) {
	query := `
		SELECT id, media_id, host, provider_job_id, status, status_message,
		       retries, embed, url, thumbnail, created_at, updated_at
		FROM media_job WHERE status = $1
		ORDER BY created_at ASC`

	rows, err := r.db.Query(ctx, query, status)
	if err != nil {
		return nil, r.handlePostgresError("list jobs", err)
	}
	defer rows.Close()

	var jobs []*mediasync.MediaJob
	for rows.Next() {
		var job mediasync.MediaJob
		err := rows.Scan(
			&job.ID, &job.MediaID, &job.Host, &job.ProviderJobID, &job.Status,
			&job.StatusMessage, &job.Retries, &job.Embed, &job.URL, &job.Thumbnail,
			&job.CreatedAt, &job.UpdatedAt)
		if err != nil {
			return nil, r.handlePostgresError("scan job", err)
		}
		jobs = append(jobs, &job)
	}

	return jobs, rows.Err()
}

func (r *Repository) ListJobsByMedia(ctx context.Context, mediaID uuid.UUID) ([]*mediasync.MediaJob, error) {
	query := `
		SELECT id, media_id, host, provider_job_id, status, status_message,
		       retries, embed, url, thumbnail, created_at, updated_at
		FROM media_job WHERE media_id = $1
		ORDER BY created_at ASC`

	rows, err := r.db.Query(ctx, query, mediaID)
	if err != nil {
		return nil, r.handlePostgresError("list jobs by media", err)
	}
	defer rows.Close()

	var jobs []*mediasync.MediaJob
	for rows.Next() {
		var job mediasync.MediaJob
		err := rows.Scan(
			&job.ID, &job.MediaID, &job.Host, &job.ProviderJobID, &job.Status,
			&job.StatusMessage, &job.Retries, &job.Embed, &job.URL, &job.Thumbnail,
			&job.CreatedAt, &job.UpdatedAt)
		if err != nil {
			return nil, r.handlePostgresError("scan job", err)
		}
		jobs = append(jobs, &job)
	}

	return jobs, rows.Err()
}

func (r *Repository) CountJobs(ctx context.Context, host mediasync.Host, status mediasync.JobStatus) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM media_job WHERE host = $1 AND status = $2`,
		host, status).Scan(&count)
	if err != nil {
		return 0, r.handlePostgresError("count jobs", err)
	}

	return count, nil
}

func (r *Repository) ResetJobs(ctx context.Context, host mediasync.Host, from, to mediasync.JobStatus) (int, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE media_job SET status = $3, updated_at = NOW() WHERE host = $1 AND status = $2`,
		host, from, to)
	if err != nil {
		return 0, r.handlePostgresError("reset jobs", err)
	}

	return int(tag.RowsAffected()), nil
}

// Media operations

func (r *Repository) ResolveMedia(ctx context.Context, id uuid.UUID) (*mediasync.MediaRef, error) {
	query := `
		SELECT id, kind, title, description, tags, file_path
		FROM media WHERE id = $1 AND deleted_at IS NULL`

	var media mediasync.MediaRef
	err := r.db.QueryRow(ctx, query, id).Scan(
		&media.ID, &media.Kind, &media.Title, &media.Description,
		&media.Tags, &media.FilePath)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, mediasync.ErrMediaNotFound
		}
		return nil, r.handlePostgresError("resolve media", err)
	}

	return &media, nil
}
