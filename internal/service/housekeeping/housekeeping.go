// Package housekeeping implements the deferred-deletion sweep: the separate
// actor that actually removes metaverse objects whose deletion-eligible date
// has passed, and clears out obsolete unjoined connector-space objects.
package housekeeping

import (
	"context"
	"log/slog"
	"time"

	"idsync/internal/domain"
)

// Service runs housekeeping sweeps on demand; Scheduler runs them on a cron.
type Service struct {
	metaverse domain.MetaverseRepository
	objects   domain.ObjectRepository
	systems   domain.ConnectedSystemRepository
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(metaverse domain.MetaverseRepository, objects domain.ObjectRepository, systems domain.ConnectedSystemRepository, logger *slog.Logger) *Service {
	return &Service{
		metaverse: metaverse,
		objects:   objects,
		systems:   systems,
		logger:    logger.With("component", "housekeeping"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SweepReport summarizes one housekeeping pass.
type SweepReport struct {
	MetaverseObjectsDeleted int64 `json:"metaverse_objects_deleted"`
	MetaverseObjectsKept    int64 `json:"metaverse_objects_kept"`
	ConnectorObjectsDeleted int64 `json:"connector_objects_deleted"`
}

// Sweep deletes metaverse objects whose deletion-eligible date has passed
// and that still have no joined connector-space object, then removes
// obsolete unjoined connector-space objects across all systems. The joined
// count is re-checked at deletion time; an object that was rejoined since
// being scheduled is kept.
func (s *Service) Sweep(ctx context.Context) (*SweepReport, error) {
	report := &SweepReport{}
	now := s.now()

	eligible, err := s.metaverse.ListDeletionEligible(ctx, now)
	if err != nil {
		return nil, err
	}
	for _, m := range eligible {
		joined, err := s.objects.ListByMetaverseObject(ctx, m.ID)
		if err != nil {
			return nil, err
		}
		if len(joined) > 0 {
			report.MetaverseObjectsKept++
			s.logger.Info("eligible object still joined, kept",
				"metaverse_object_id", m.ID, "joined", len(joined))
			continue
		}
		if err := s.metaverse.Delete(ctx, m.ID); err != nil {
			return nil, err
		}
		report.MetaverseObjectsDeleted++
		s.logger.Info("metaverse object deleted",
			"metaverse_object_id", m.ID, "object_type", m.ObjectType)
	}

	systems, err := s.systems.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, sys := range systems {
		n, err := s.objects.DeleteObsoleteUnjoined(ctx, sys.ID)
		if err != nil {
			return nil, err
		}
		report.ConnectorObjectsDeleted += n
	}

	s.logger.Info("sweep finished",
		"metaverse_deleted", report.MetaverseObjectsDeleted,
		"metaverse_kept", report.MetaverseObjectsKept,
		"connector_deleted", report.ConnectorObjectsDeleted)
	return report, nil
}
