package perm

import (
	"goephys/domain/core"
)

// RunRecord is the persisted form of a completed permutation run: the
// manifest, the full null distribution in insertion order and the derived
// summary values.
type RunRecord struct {
	Manifest  Manifest       `json:"manifest"`
	Observed  float64        `json:"observed"`
	Nulls     []float64      `json:"nulls"`
	Threshold float64        `json:"threshold"`
	Level     float64        `json:"level"`
	Skipped   int            `json:"skipped"`
	RuntimeMs int64          `json:"runtime_ms"`
	CreatedAt core.Timestamp `json:"created_at"`
}

// Validate checks the record is storable
func (r *RunRecord) Validate() error {
	if err := r.Manifest.Validate(); err != nil {
		return err
	}
	if len(r.Nulls) == 0 {
		return core.NewValidationError("run_record", "nulls cannot be empty")
	}
	return nil
}
