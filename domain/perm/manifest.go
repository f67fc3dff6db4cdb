package perm

import (
	"goephys/domain/core"
)

// Manifest is the complete specification of a permutation run, recorded
// with its results so a run can be replayed and verified. Two runs with
// equal fingerprints and equal code produce byte-identical null
// distributions.
type Manifest struct {
	RunID            core.RunID      `json:"run_id"`
	Seed             int64           `json:"seed"`
	NPerms           int             `json:"n_perms"`
	Workers          int             `json:"workers"`
	Scheme           Scheme          `json:"scheme"`
	Statistic        Statistic       `json:"statistic"`
	GroupContrast    int             `json:"group_contrast"`
	FLContrast       int             `json:"fl_contrast"`
	ClusterThreshold float64         `json:"cluster_threshold,omitempty"`
	Fingerprint      core.ConfigHash `json:"fingerprint"`
	CreatedAt        core.Timestamp  `json:"created_at"`
}

// NewManifest fingerprints the run configuration. The worker count is
// recorded for bookkeeping but excluded from the fingerprint: results do
// not depend on it.
func NewManifest(runID core.RunID, seed int64, nPerms, workers int,
	scheme Scheme, statistic Statistic, groupContrast, flContrast int,
	clusterThreshold float64) Manifest {

	fingerprint := core.ComputeConfigHash(map[string]interface{}{
		"seed":              seed,
		"n_perms":           nPerms,
		"scheme":            string(scheme),
		"statistic":         string(statistic),
		"group_contrast":    groupContrast,
		"fl_contrast":       flContrast,
		"cluster_threshold": clusterThreshold,
	})

	return Manifest{
		RunID:            runID,
		Seed:             seed,
		NPerms:           nPerms,
		Workers:          workers,
		Scheme:           scheme,
		Statistic:        statistic,
		GroupContrast:    groupContrast,
		FLContrast:       flContrast,
		ClusterThreshold: clusterThreshold,
		Fingerprint:      fingerprint,
		CreatedAt:        core.Now(),
	}
}

// Validate checks the manifest is complete before a run starts
func (m Manifest) Validate() error {
	if core.ID(m.RunID).IsEmpty() {
		return core.NewValidationError("manifest", "run_id cannot be empty")
	}
	if m.NPerms < 1 {
		return core.NewValidationError("manifest", "n_perms must be positive")
	}
	if m.Workers < 1 {
		return core.NewValidationError("manifest", "workers must be positive")
	}
	if err := m.Scheme.Validate(); err != nil {
		return err
	}
	if err := m.Statistic.Validate(); err != nil {
		return err
	}
	if m.Statistic == StatClusterMass && m.ClusterThreshold <= 0 {
		return core.NewValidationError("manifest", "cluster_threshold must be positive for cluster-mass runs")
	}
	return nil
}
