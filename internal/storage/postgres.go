package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/faceanon/engine/internal/config"
	"github.com/faceanon/engine/internal/jobs"
)

// PostgresStore persists Job rows (status, input/output object keys, error
// message, timestamps) and per-job Identity rows (track ID → preview
// thumbnail object key).
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Jobs ---

func (s *PostgresStore) CreateJob(ctx context.Context, j *jobs.Job) error {
	j.ID = uuid.New()
	j.Status = jobs.StatusQueued
	if j.Metadata == nil {
		j.Metadata = json.RawMessage("{}")
	}
	blurIDs, err := json.Marshal(j.BlurIDs)
	if err != nil {
		return fmt.Errorf("marshal blur_ids: %w", err)
	}
	excludeIDs, err := json.Marshal(j.ExcludeIDs)
	if err != nil {
		return fmt.Errorf("marshal exclude_ids: %w", err)
	}
	return s.pool.QueryRow(ctx,
		`INSERT INTO jobs (id, mode, status, source_key, blur_ids, exclude_ids, shape, metadata)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING created_at, updated_at`,
		j.ID, j.Mode, j.Status, j.SourceKey, blurIDs, excludeIDs, j.Shape, j.Metadata,
	).Scan(&j.CreatedAt, &j.UpdatedAt)
}

func (s *PostgresStore) GetJob(ctx context.Context, id uuid.UUID) (*jobs.Job, error) {
	j := &jobs.Job{}
	var blurIDs, excludeIDs json.RawMessage
	err := s.pool.QueryRow(ctx,
		`SELECT id, mode, status, source_key, output_key, cache_key, blur_ids, exclude_ids, shape,
		        error_message, frames_total, frames_done, metadata, created_at, updated_at
		 FROM jobs WHERE id = $1`, id,
	).Scan(&j.ID, &j.Mode, &j.Status, &j.SourceKey, &j.OutputKey, &j.CacheKey, &blurIDs, &excludeIDs, &j.Shape,
		&j.ErrorMessage, &j.FramesTotal, &j.FramesDone, &j.Metadata, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	_ = json.Unmarshal(blurIDs, &j.BlurIDs)
	_ = json.Unmarshal(excludeIDs, &j.ExcludeIDs)
	return j, nil
}

func (s *PostgresStore) ListJobs(ctx context.Context) ([]jobs.Job, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, mode, status, source_key, output_key, cache_key, shape, error_message,
		        frames_total, frames_done, created_at, updated_at
		 FROM jobs ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []jobs.Job
	for rows.Next() {
		var j jobs.Job
		if err := rows.Scan(&j.ID, &j.Mode, &j.Status, &j.SourceKey, &j.OutputKey, &j.CacheKey, &j.Shape,
			&j.ErrorMessage, &j.FramesTotal, &j.FramesDone, &j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, j)
	}
	return out, nil
}

func (s *PostgresStore) UpdateJobStatus(ctx context.Context, id uuid.UUID, status jobs.Status, errMsg string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = $1, error_message = $2, updated_at = now() WHERE id = $3`,
		status, errMsg, id)
	return err
}

func (s *PostgresStore) UpdateJobProgress(ctx context.Context, id uuid.UUID, framesDone, framesTotal int) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE jobs SET frames_done = $1, frames_total = $2, updated_at = now() WHERE id = $3`,
		framesDone, framesTotal, id)
	return err
}

func (s *PostgresStore) SetJobOutput(ctx context.Context, id uuid.UUID, outputKey string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE jobs SET output_key = $1, updated_at = now() WHERE id = $2`, outputKey, id)
	return err
}

// SetJobCacheKey records where a preview job's per-frame detection cache
// was uploaded, so a later blur job on the same source can replay it
// instead of re-running inference.
func (s *PostgresStore) SetJobCacheKey(ctx context.Context, id uuid.UUID, cacheKey string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE jobs SET cache_key = $1, updated_at = now() WHERE id = $2`, cacheKey, id)
	return err
}

func (s *PostgresStore) DeleteJob(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM jobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job not found")
	}
	return nil
}

// --- Identities ---

func (s *PostgresStore) CreateIdentities(ctx context.Context, jobID uuid.UUID, identities []jobs.Identity) error {
	batch := &pgx.Batch{}
	for _, ident := range identities {
		batch.Queue(
			`INSERT INTO identities (job_id, track_id, thumbnail_key) VALUES ($1, $2, $3)
			 ON CONFLICT (job_id, track_id) DO UPDATE SET thumbnail_key = EXCLUDED.thumbnail_key`,
			jobID, ident.TrackID, ident.ThumbnailKey,
		)
	}
	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range identities {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert identity: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) ListIdentities(ctx context.Context, jobID uuid.UUID) ([]jobs.Identity, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT job_id, track_id, thumbnail_key, created_at FROM identities WHERE job_id = $1 ORDER BY track_id`,
		jobID)
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	defer rows.Close()

	var out []jobs.Identity
	for rows.Next() {
		var ident jobs.Identity
		if err := rows.Scan(&ident.JobID, &ident.TrackID, &ident.ThumbnailKey, &ident.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		out = append(out, ident)
	}
	return out, nil
}
