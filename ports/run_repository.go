package ports

import (
	"context"

	"goephys/domain/core"
	"goephys/domain/ephys"
	"goephys/domain/perm"
)

// RunRepositoryPort persists permutation runs and artefact annotations
type RunRepositoryPort interface {
	// SaveRun stores a completed run; saving the same run ID again
	// replaces the stored record
	SaveRun(ctx context.Context, record *perm.RunRecord) error

	// GetRun loads one run by ID, core.ErrRunNotFound when absent
	GetRun(ctx context.Context, runID core.RunID) (*perm.RunRecord, error)

	// ListRuns returns the most recent runs, newest first
	ListRuns(ctx context.Context, limit int) ([]*perm.RunRecord, error)

	// SaveAnnotations stores the artefact annotations detected on a recording
	SaveAnnotations(ctx context.Context, recordingID core.RecordingID, annotations []ephys.Annotation) error
}
