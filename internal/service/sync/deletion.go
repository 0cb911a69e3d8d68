package sync

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"idsync/internal/domain"
)

// DeletionEngine maintains the disconnect/deletion bookkeeping on metaverse
// objects. It never deletes anything itself; the housekeeping pass is the
// only actor that removes metaverse objects.
type DeletionEngine struct {
	objects   domain.ObjectRepository
	metaverse domain.MetaverseRepository
	systems   domain.ConnectedSystemRepository
	logger    *slog.Logger
}

func NewDeletionEngine(objects domain.ObjectRepository, metaverse domain.MetaverseRepository, systems domain.ConnectedSystemRepository, logger *slog.Logger) *DeletionEngine {
	return &DeletionEngine{
		objects:   objects,
		metaverse: metaverse,
		systems:   systems,
		logger:    logger.With("component", "deletion-engine"),
	}
}

// Disconnect severs an obsoleted object's metaverse link: the link and join
// state are cleared, contributed attribute values are removed when the type
// policy asks for it, and disconnect bookkeeping runs if this was the last
// joined object.
func (d *DeletionEngine) Disconnect(ctx context.Context, o *domain.ConnectedSystemObject, now time.Time) error {
	if o.MetaverseObjectID == nil {
		return nil
	}
	mvoID := *o.MetaverseObjectID

	o.ClearJoin(now)
	if err := d.objects.Update(ctx, o); err != nil {
		return err
	}

	m, err := d.metaverse.GetByID(ctx, mvoID)
	if err != nil {
		return err
	}
	policy, err := d.policyFor(ctx, m.ObjectType)
	if err != nil {
		return err
	}

	if policy.RemoveContributedOnObsoletion {
		cs := domain.NewPendingChangeSet(m.ID)
		contributor := o.ConnectedSystemID
		for _, a := range m.Attributes {
			if a.ContributedBy != nil && *a.ContributedBy == contributor {
				cs.Remove(a)
			}
		}
		if err := d.metaverse.ApplyChangeSet(ctx, cs); err != nil {
			return err
		}
	}

	return d.HandleDisconnect(ctx, m, policy, now)
}

// HandleDisconnect applies the deletion rule after a join was broken. It
// only acts when the metaverse object's joined count has reached zero.
func (d *DeletionEngine) HandleDisconnect(ctx context.Context, m *domain.MetaverseObject, policy *domain.MetaverseTypePolicy, now time.Time) error {
	if policy.DeletionRule != domain.DeletionWhenLastDisconnected {
		return nil
	}
	joined, err := d.objects.ListByMetaverseObject(ctx, m.ID)
	if err != nil {
		return err
	}
	if len(joined) > 0 {
		return nil
	}

	t := now.UTC()
	m.LastDisconnectedAt = &t
	// No grace period means eligible right away, not never.
	eligible := t
	if policy.GracePeriodDays != nil {
		eligible = t.AddDate(0, 0, *policy.GracePeriodDays)
	}
	m.DeletionEligibleAt = &eligible
	if err := d.metaverse.Update(ctx, m); err != nil {
		return err
	}
	d.logger.Info("last connector disconnected", "metaverse_object_id", m.ID, "deletion_eligible_at", eligible)
	return nil
}

// HandleRejoin clears a pending disconnect when an object (re)joins a
// metaverse object that was awaiting deletion.
func (d *DeletionEngine) HandleRejoin(ctx context.Context, m *domain.MetaverseObject) error {
	if m.LastDisconnectedAt == nil && m.DeletionEligibleAt == nil {
		return nil
	}
	m.ClearDisconnect()
	return d.metaverse.Update(ctx, m)
}

// policyFor falls back to manual deletion for types without a configured
// policy.
func (d *DeletionEngine) policyFor(ctx context.Context, objectType string) (*domain.MetaverseTypePolicy, error) {
	policy, err := d.systems.GetMetaverseTypePolicy(ctx, objectType)
	if err != nil {
		var notFound *domain.NotFoundError
		if errors.As(err, &notFound) {
			return &domain.MetaverseTypePolicy{ObjectType: objectType, DeletionRule: domain.DeletionManual}, nil
		}
		return nil, err
	}
	return policy, nil
}
