package sync

import (
	"context"
	"log/slog"
	"time"

	"idsync/internal/domain"
)

// ExportReconciler closes the loop on queued outbound changes: after a
// fresh import, each pending export is compared against the live state of
// its target object.
type ExportReconciler struct {
	exports domain.PendingExportRepository
	logger  *slog.Logger
}

func NewExportReconciler(exports domain.PendingExportRepository, logger *slog.Logger) *ExportReconciler {
	return &ExportReconciler{
		exports: exports,
		logger:  logger.With("component", "export-reconciler"),
	}
}

// Reconcile checks every pending export against the object's freshly
// imported values. Fully confirmed exports are deleted. Anything less keeps
// the record with only the unconfirmed changes, bumps ErrorCount, and marks
// it ExportNotImported; the record is retried indefinitely.
func (r *ExportReconciler) Reconcile(ctx context.Context, o *domain.ConnectedSystemObject, now time.Time) error {
	pending, err := r.exports.GetByObject(ctx, o.ID)
	if err != nil {
		return err
	}

	for _, p := range pending {
		var remaining []domain.AttributeChange
		for _, c := range p.Changes {
			if !c.Satisfied(o) {
				remaining = append(remaining, c)
			}
		}

		if len(remaining) == 0 {
			if err := r.exports.Delete(ctx, p.ID); err != nil {
				return err
			}
			r.logger.Info("export confirmed", "export_id", p.ID, "object_id", o.ID)
			continue
		}

		t := now.UTC()
		p.Changes = remaining
		p.ErrorCount++
		p.Status = domain.ExportNotImported
		p.LastUpdated = &t
		if err := r.exports.Update(ctx, p); err != nil {
			return err
		}
		r.logger.Warn("export not (fully) imported",
			"export_id", p.ID, "object_id", o.ID,
			"remaining_changes", len(remaining), "error_count", p.ErrorCount)
	}
	return nil
}

// ExportPlanner evaluates export-direction rules for a joined object and
// queues the outbound changes that would bring the connected system in line
// with the metaverse.
type ExportPlanner struct {
	exports domain.PendingExportRepository
	logger  *slog.Logger
}

func NewExportPlanner(exports domain.PendingExportRepository, logger *slog.Logger) *ExportPlanner {
	return &ExportPlanner{
		exports: exports,
		logger:  logger.With("component", "export-planner"),
	}
}

// Plan diffs the metaverse object's values against the connector-space
// object's for each in-scope export rule and queues one pending export for
// the difference. Objects with an open pending export are skipped so
// unconfirmed changes are not queued twice.
func (p *ExportPlanner) Plan(ctx context.Context, o *domain.ConnectedSystemObject, m *domain.MetaverseObject, rules []*domain.SyncRule) error {
	open, err := p.exports.GetByObject(ctx, o.ID)
	if err != nil {
		return err
	}
	if len(open) > 0 {
		return nil
	}

	var changes []domain.AttributeChange
	for _, rule := range rules {
		if rule.ObjectType != o.ObjectType || !EvaluateScope(m, rule, domain.DirectionExport) {
			continue
		}
		for _, flow := range rule.AttributeFlows {
			changes = append(changes, planFlow(o, m, flow)...)
		}
	}
	if len(changes) == 0 {
		return nil
	}

	_, err = p.exports.Create(ctx, &domain.PendingExport{
		ConnectedSystemObjectID: o.ID,
		ChangeType:              domain.ExportUpdate,
		Changes:                 changes,
	})
	if err != nil {
		return err
	}
	p.logger.Info("export queued", "object_id", o.ID, "changes", len(changes))
	return nil
}

// planFlow flows metaverse source values to a connector-space target
// attribute: missing values become adds, surplus values removes. Reference
// values don't export; the target system only understands its own ids.
func planFlow(o *domain.ConnectedSystemObject, m *domain.MetaverseObject, flow domain.AttributeFlowRule) []domain.AttributeChange {
	var desired []domain.AttributeValue
	for _, src := range flow.SourceAttributes {
		for _, v := range m.ValuesOf(src) {
			if v.Kind() == domain.KindReference {
				continue
			}
			if !containsValue(desired, v) {
				desired = append(desired, v)
			}
		}
	}

	var changes []domain.AttributeChange
	for _, v := range desired {
		if !o.HasValue(flow.TargetAttribute, v) {
			changes = append(changes, domain.AttributeChange{
				Type: domain.AttributeAdd, Name: flow.TargetAttribute, Value: v,
			})
		}
	}
	for _, have := range o.ValuesOf(flow.TargetAttribute) {
		if !containsValue(desired, have) {
			changes = append(changes, domain.AttributeChange{
				Type: domain.AttributeRemove, Name: flow.TargetAttribute, Value: have,
			})
		}
	}
	return changes
}
