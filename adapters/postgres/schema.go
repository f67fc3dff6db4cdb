package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// Schema is the results-store DDL bootstrapped by cmd/migrate
const Schema = `
CREATE TABLE IF NOT EXISTS permutation_runs (
	id                TEXT PRIMARY KEY,
	seed              BIGINT NOT NULL,
	n_perms           INTEGER NOT NULL,
	workers           INTEGER NOT NULL,
	scheme            TEXT NOT NULL,
	statistic         TEXT NOT NULL,
	group_contrast    INTEGER NOT NULL,
	fl_contrast       INTEGER NOT NULL,
	cluster_threshold DOUBLE PRECISION,
	fingerprint       TEXT NOT NULL,
	observed          DOUBLE PRECISION NOT NULL,
	nulls             JSONB NOT NULL,
	threshold         DOUBLE PRECISION NOT NULL,
	level             DOUBLE PRECISION NOT NULL,
	skipped           INTEGER NOT NULL DEFAULT 0,
	runtime_ms        BIGINT NOT NULL DEFAULT 0,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_permutation_runs_created_at
	ON permutation_runs (created_at DESC);

CREATE TABLE IF NOT EXISTS recording_annotations (
	recording_id TEXT NOT NULL,
	position     INTEGER NOT NULL,
	onset        DOUBLE PRECISION NOT NULL,
	duration     DOUBLE PRECISION NOT NULL,
	description  TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (recording_id, position)
);
`

// EnsureSchema creates the results tables when they do not exist
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, Schema)
	return err
}
