package sync

import (
	"context"

	"idsync/internal/domain"
)

// FlowProcessor computes the pending attribute changes a connector-space
// object implies for its metaverse object under one rule's flow mappings.
type FlowProcessor struct {
	objects domain.ObjectRepository
}

func NewFlowProcessor(objects domain.ObjectRepository) *FlowProcessor {
	return &FlowProcessor{objects: objects}
}

// Process diffs the object's current source values against what this system
// previously contributed to the metaverse object and stages the difference.
// Re-running against unchanged data stages nothing.
func (p *FlowProcessor) Process(ctx context.Context, o *domain.ConnectedSystemObject, m *domain.MetaverseObject, flows []domain.AttributeFlowRule, systemID string) (*domain.PendingChangeSet, error) {
	cs := domain.NewPendingChangeSet(m.ID)
	contributor := systemID

	for _, flow := range flows {
		desired, deferred, err := p.desiredValues(ctx, o, flow)
		if err != nil {
			return nil, err
		}
		if deferred {
			// The mapping carries a reference whose target has no metaverse
			// link yet; contribute nothing this pass and retry next run.
			continue
		}

		for _, v := range desired {
			if !m.HasValue(flow.TargetAttribute, v) {
				cs.Add(flow.TargetAttribute, v, &contributor)
			}
		}
		for _, have := range m.ContributedValues(flow.TargetAttribute, systemID) {
			if !containsValue(desired, have) {
				cs.Remove(domain.MetaverseAttribute{
					Name:          flow.TargetAttribute,
					Value:         have,
					ContributedBy: &contributor,
				})
			}
		}
	}
	return cs, nil
}

// desiredValues resolves a mapping's source values in declared order, with
// duplicates collapsed. Reference values flow as links to the referenced
// object's metaverse object; a reference whose target is unresolved or not
// yet linked defers the whole mapping.
func (p *FlowProcessor) desiredValues(ctx context.Context, o *domain.ConnectedSystemObject, flow domain.AttributeFlowRule) ([]domain.AttributeValue, bool, error) {
	var out []domain.AttributeValue
	for _, src := range flow.SourceAttributes {
		for _, v := range o.ValuesOf(src) {
			if v.Kind() == domain.KindReference {
				flowed, ok, err := p.referenceTarget(ctx, v)
				if err != nil {
					return nil, false, err
				}
				if !ok {
					return nil, true, nil
				}
				v = flowed
			}
			if !containsValue(out, v) {
				out = append(out, v)
			}
		}
	}
	return out, false, nil
}

func (p *FlowProcessor) referenceTarget(ctx context.Context, v domain.AttributeValue) (domain.AttributeValue, bool, error) {
	refID, resolved := v.ReferenceID()
	if !resolved {
		return domain.AttributeValue{}, false, nil
	}
	target, err := p.objects.GetByID(ctx, refID)
	if err != nil {
		return domain.AttributeValue{}, false, err
	}
	if target.MetaverseObjectID == nil {
		return domain.AttributeValue{}, false, nil
	}
	return domain.ResolvedReferenceValue(v.UnresolvedReference(), *target.MetaverseObjectID), true, nil
}

func containsValue(values []domain.AttributeValue, v domain.AttributeValue) bool {
	for _, have := range values {
		if have.Equal(v) {
			return true
		}
	}
	return false
}
