package app

import (
	"context"
	"time"

	"goephys/domain/artefact"
	"goephys/domain/ephys"
	"goephys/internal"
	"goephys/internal/errors"
	"goephys/ports"
)

// ArtefactService orchestrates the rejection policies over one dataset
type ArtefactService struct {
	repository ports.RunRepositoryPort
	logger     *internal.Logger
}

// ArtefactRequest defines one artefact-detection pass
type ArtefactRequest struct {
	Recording *ephys.Recording
	// Epochs is optional; without it the epoch policy is a logged no-op
	Epochs *ephys.Epochs
	Picks  []ephys.Pick

	Channels bool
	Segments bool
	DropBad  bool

	ChannelOpts artefact.ChannelRejectOptions
	SegmentOpts artefact.SegmentRejectOptions
	EpochOpts   artefact.EpochRejectOptions

	// Persist stores the resulting annotations through the repository
	Persist bool
}

// ArtefactReport aggregates all policy outcomes for one dataset
type ArtefactReport struct {
	BadChannels   []string           `json:"bad_channels"`
	Annotations   []ephys.Annotation `json:"annotations"`
	DroppedEpochs int                `json:"dropped_epochs"`
	RuntimeMs     int64              `json:"runtime_ms"`
}

// NewArtefactService creates an artefact service. The repository may be nil
// when persistence is not configured.
func NewArtefactService(repository ports.RunRepositoryPort) *ArtefactService {
	return &ArtefactService{
		repository: repository,
		logger:     internal.DefaultLogger.With("artefact"),
	}
}

// Run applies the enabled policies per pick and aggregates the report. Each
// policy emits its one-line summary through the service logger.
func (s *ArtefactService) Run(ctx context.Context, req ArtefactRequest) (*ArtefactReport, error) {
	startTime := time.Now()
	if req.Recording == nil && (req.Channels || req.Segments) {
		return nil, errors.InvalidInput("channel and segment policies need a recording")
	}
	if len(req.Picks) == 0 {
		return nil, errors.InvalidInput("artefact request needs at least one pick")
	}

	report := &ArtefactReport{}
	for _, pick := range req.Picks {
		if req.Channels {
			chReport, err := artefact.RejectBadChannels(req.Recording, pick, req.ChannelOpts)
			if err != nil {
				return nil, errors.Wrapf(err, "bad channel detection failed for %s", pick)
			}
			s.logger.Info("%s", chReport.Summary())
		}

		if req.Segments {
			segReport, err := artefact.RejectBadSegments(req.Recording, pick, req.SegmentOpts)
			if err != nil {
				return nil, errors.Wrapf(err, "bad segment detection failed for %s", pick)
			}
			s.logger.Info("%s", segReport.Summary())
			if req.SegmentOpts.ZeroLog == nil && req.SegmentOpts.DetectZeros {
				s.logger.Info("Modality %s - no zero log found, skipping zeroed-segment detection", pick)
			}
			if segReport.ZeroLogErr != nil {
				s.logger.Warn("Modality %s - zero log unusable: %v", pick, segReport.ZeroLogErr)
			} else if req.SegmentOpts.ZeroLog != nil {
				s.logger.Info("%s", segReport.ZeroSummary())
			}
		}

		if req.DropBad {
			if req.Epochs == nil {
				s.logger.Info("Modality %s - no epochs present, skipping epoch rejection", pick)
			} else {
				epReport, err := artefact.DropBadEpochs(req.Epochs, pick, req.EpochOpts)
				if err != nil {
					return nil, errors.Wrapf(err, "bad epoch detection failed for %s", pick)
				}
				s.logger.Info("%s", epReport.Summary())
				report.DroppedEpochs += epReport.Dropped
			}
		}
	}

	if req.Recording != nil {
		report.BadChannels = append(report.BadChannels, req.Recording.Bads...)
		report.Annotations = append(report.Annotations, req.Recording.Annotations...)
	}
	report.RuntimeMs = time.Since(startTime).Milliseconds()

	if req.Persist && req.Recording != nil {
		if s.repository == nil {
			s.logger.Info("No repository configured, skipping annotation persistence")
		} else if err := s.repository.SaveAnnotations(ctx, req.Recording.ID, report.Annotations); err != nil {
			return nil, errors.WithCode(errors.CodeStorageError, err)
		}
	}
	return report, nil
}
