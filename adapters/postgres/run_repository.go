// Package postgres persists permutation runs and artefact annotations in
// PostgreSQL through sqlx.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"goephys/domain/core"
	"goephys/domain/ephys"
	"goephys/domain/perm"
	"goephys/ports"
)

// RunRepositoryImpl implements RunRepositoryPort for PostgreSQL
type RunRepositoryImpl struct {
	db *sqlx.DB
}

// NewRunRepository creates a new PostgreSQL run repository
func NewRunRepository(db *sqlx.DB) ports.RunRepositoryPort {
	return &RunRepositoryImpl{db: db}
}

// SaveRun stores a completed run, replacing any previous record with the
// same run ID
func (r *RunRepositoryImpl) SaveRun(ctx context.Context, record *perm.RunRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}
	nullsJSON, err := json.Marshal(record.Nulls)
	if err != nil {
		return fmt.Errorf("failed to marshal nulls: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO permutation_runs (
			id, seed, n_perms, workers, scheme, statistic,
			group_contrast, fl_contrast, cluster_threshold, fingerprint,
			observed, nulls, threshold, level, skipped, runtime_ms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, NOW())
		ON CONFLICT (id) DO UPDATE SET
			observed = EXCLUDED.observed,
			nulls = EXCLUDED.nulls,
			threshold = EXCLUDED.threshold,
			level = EXCLUDED.level,
			skipped = EXCLUDED.skipped,
			runtime_ms = EXCLUDED.runtime_ms`,
		record.Manifest.RunID.String(), record.Manifest.Seed, record.Manifest.NPerms,
		record.Manifest.Workers, string(record.Manifest.Scheme), string(record.Manifest.Statistic),
		record.Manifest.GroupContrast, record.Manifest.FLContrast, record.Manifest.ClusterThreshold,
		record.Manifest.Fingerprint.String(), record.Observed, nullsJSON,
		record.Threshold, record.Level, record.Skipped, record.RuntimeMs)

	return err
}

// GetRun loads one run by ID
func (r *RunRepositoryImpl) GetRun(ctx context.Context, runID core.RunID) (*perm.RunRecord, error) {
	row := r.db.QueryRowxContext(ctx, `
		SELECT id, seed, n_perms, workers, scheme, statistic,
			   group_contrast, fl_contrast, COALESCE(cluster_threshold, 0), fingerprint,
			   observed, nulls, threshold, level, skipped, runtime_ms, created_at
		FROM permutation_runs
		WHERE id = $1`, runID.String())

	record, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", core.ErrRunNotFound, runID)
	}
	return record, err
}

// ListRuns returns the most recent runs, newest first
func (r *RunRepositoryImpl) ListRuns(ctx context.Context, limit int) ([]*perm.RunRecord, error) {
	if limit < 1 {
		limit = 50
	}
	rows, err := r.db.QueryxContext(ctx, `
		SELECT id, seed, n_perms, workers, scheme, statistic,
			   group_contrast, fl_contrast, COALESCE(cluster_threshold, 0), fingerprint,
			   observed, nulls, threshold, level, skipped, runtime_ms, created_at
		FROM permutation_runs
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*perm.RunRecord
	for rows.Next() {
		record, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// SaveAnnotations stores annotations for a recording in append order
func (r *RunRepositoryImpl) SaveAnnotations(ctx context.Context, recordingID core.RecordingID, annotations []ephys.Annotation) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for i, a := range annotations {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO recording_annotations (recording_id, position, onset, duration, description, created_at)
			VALUES ($1, $2, $3, $4, $5, NOW())
			ON CONFLICT (recording_id, position) DO UPDATE SET
				onset = EXCLUDED.onset,
				duration = EXCLUDED.duration,
				description = EXCLUDED.description`,
			recordingID.String(), i, a.Onset, a.Duration, a.Description)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// rowScanner covers both QueryRowx and the rows iterator
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*perm.RunRecord, error) {
	var record perm.RunRecord
	var runID, scheme, statistic, fingerprint string
	var nullsJSON []byte
	var createdAt sql.NullTime

	err := row.Scan(
		&runID, &record.Manifest.Seed, &record.Manifest.NPerms, &record.Manifest.Workers,
		&scheme, &statistic, &record.Manifest.GroupContrast, &record.Manifest.FLContrast,
		&record.Manifest.ClusterThreshold, &fingerprint,
		&record.Observed, &nullsJSON, &record.Threshold, &record.Level,
		&record.Skipped, &record.RuntimeMs, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	record.Manifest.RunID = core.RunID(runID)
	record.Manifest.Scheme = perm.Scheme(scheme)
	record.Manifest.Statistic = perm.Statistic(statistic)
	record.Manifest.Fingerprint = core.ConfigHash(fingerprint)
	if createdAt.Valid {
		record.CreatedAt = core.NewTimestamp(createdAt.Time)
		record.Manifest.CreatedAt = record.CreatedAt
	}
	if len(nullsJSON) > 0 {
		if err := json.Unmarshal(nullsJSON, &record.Nulls); err != nil {
			return nil, fmt.Errorf("failed to unmarshal nulls: %w", err)
		}
	}
	return &record, nil
}
