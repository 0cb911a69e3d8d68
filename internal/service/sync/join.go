package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"idsync/internal/domain"
)

// JoinProjector decides, per connector-space object, whether it joins an
// existing metaverse object, projects a new one, or conflicts.
type JoinProjector struct {
	objects   domain.ObjectRepository
	metaverse domain.MetaverseRepository
	deletion  *DeletionEngine
	logger    *slog.Logger
}

func NewJoinProjector(objects domain.ObjectRepository, metaverse domain.MetaverseRepository, deletion *DeletionEngine, logger *slog.Logger) *JoinProjector {
	return &JoinProjector{
		objects:   objects,
		metaverse: metaverse,
		deletion:  deletion,
		logger:    logger.With("component", "join-projector"),
	}
}

// Evaluate runs the join/projection cascade for an unlinked object against
// the enabled import rules, in priority order. Provisioned objects keep
// their out-of-band link untouched. A refused join (the metaverse object
// already has a joined object from this system) is terminal for the object:
// it stays NotJoined and no projection follows.
func (j *JoinProjector) Evaluate(ctx context.Context, o *domain.ConnectedSystemObject, rules []*domain.SyncRule, now time.Time) error {
	if o.MetaverseObjectID != nil || o.JoinType == domain.JoinTypeProvisioned {
		return nil
	}

	for _, rule := range rules {
		if rule.ObjectType != o.ObjectType || !EvaluateScope(o, rule, domain.DirectionImport) {
			continue
		}

		match, err := j.findMatch(ctx, o, rule)
		if err != nil {
			return err
		}
		if match != nil {
			return j.join(ctx, o, match, now)
		}

		if rule.ProjectToMetaverse {
			return j.project(ctx, o, rule, now)
		}
	}
	return nil
}

// findMatch walks the rule's matching rules in order; the first one whose
// source values resolve to exactly one metaverse object wins. Zero or
// several candidates move on to the next matching rule.
func (j *JoinProjector) findMatch(ctx context.Context, o *domain.ConnectedSystemObject, rule *domain.SyncRule) (*domain.MetaverseObject, error) {
	for _, m := range rule.MatchingRules {
		candidates := make(map[string]*domain.MetaverseObject)
		for _, src := range m.SourceAttributes {
			for _, v := range o.ValuesOf(src) {
				found, err := j.metaverse.FindByAttribute(ctx, rule.MetaverseObjectType, m.TargetAttribute, v)
				if err != nil {
					return nil, err
				}
				for _, mvo := range found {
					candidates[mvo.ID] = mvo
				}
			}
		}
		if len(candidates) == 1 {
			for _, mvo := range candidates {
				return mvo, nil
			}
		}
	}
	return nil, nil
}

func (j *JoinProjector) join(ctx context.Context, o *domain.ConnectedSystemObject, m *domain.MetaverseObject, now time.Time) error {
	// One joined object per (connected system, metaverse object).
	existing, err := j.objects.JoinedFromSystem(ctx, m.ID, o.ConnectedSystemID)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return domain.NewObjectError(domain.ErrCouldNotJoinExistingJoin, o.ID, "",
			fmt.Sprintf("metaverse object %s already has a joined object from system %s", m.ID, o.ConnectedSystemID))
	}

	o.SetJoin(m.ID, domain.JoinTypeJoined, now)
	if err := j.objects.Update(ctx, o); err != nil {
		return err
	}
	if err := j.deletion.HandleRejoin(ctx, m); err != nil {
		return err
	}
	j.logger.Info("object joined", "object_id", o.ID, "metaverse_object_id", m.ID)
	return nil
}

func (j *JoinProjector) project(ctx context.Context, o *domain.ConnectedSystemObject, rule *domain.SyncRule, now time.Time) error {
	m, err := j.metaverse.Create(ctx, &domain.MetaverseObject{ObjectType: rule.MetaverseObjectType})
	if err != nil {
		return err
	}
	o.SetJoin(m.ID, domain.JoinTypeProjected, now)
	if err := j.objects.Update(ctx, o); err != nil {
		return err
	}
	j.logger.Info("object projected", "object_id", o.ID, "metaverse_object_id", m.ID, "rule", rule.Name)
	return nil
}
