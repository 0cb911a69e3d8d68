package declarative

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"idsync/internal/domain"
)

// Applier reconciles a loaded DesiredState against the store. Apply is
// idempotent: systems and object types are created when missing, policies
// are upserted, and rules are created or updated by name.
type Applier struct {
	systems domain.ConnectedSystemRepository
	rules   domain.SyncRuleRepository
	logger  *slog.Logger
}

func NewApplier(systems domain.ConnectedSystemRepository, rules domain.SyncRuleRepository, logger *slog.Logger) *Applier {
	return &Applier{
		systems: systems,
		rules:   rules,
		logger:  logger.With("component", "declarative"),
	}
}

// ApplyReport counts what one Apply pass did.
type ApplyReport struct {
	SystemsCreated     int `json:"systems_created"`
	ObjectTypesCreated int `json:"object_types_created"`
	PoliciesApplied    int `json:"policies_applied"`
	RulesCreated       int `json:"rules_created"`
	RulesUpdated       int `json:"rules_updated"`
}

// Apply reconciles the desired state in order: systems first (rules resolve
// system names), then policies, then rules.
func (a *Applier) Apply(ctx context.Context, state *DesiredState) (*ApplyReport, error) {
	report := &ApplyReport{}

	for _, doc := range state.Systems {
		if err := a.applySystem(ctx, doc, report); err != nil {
			return nil, err
		}
	}
	for _, doc := range state.Policies {
		if err := a.applyPolicy(ctx, doc); err != nil {
			return nil, err
		}
		report.PoliciesApplied++
	}
	for _, doc := range state.Rules {
		if err := a.applyRule(ctx, doc, report); err != nil {
			return nil, err
		}
	}

	a.logger.Info("desired state applied",
		"systems_created", report.SystemsCreated,
		"object_types_created", report.ObjectTypesCreated,
		"policies_applied", report.PoliciesApplied,
		"rules_created", report.RulesCreated,
		"rules_updated", report.RulesUpdated)
	return report, nil
}

func (a *Applier) applySystem(ctx context.Context, doc ConnectedSystemDoc, report *ApplyReport) error {
	sys, err := a.systems.GetByName(ctx, doc.Name)
	if err != nil {
		var notFound *domain.NotFoundError
		if !errors.As(err, &notFound) {
			return err
		}
		sys, err = a.systems.Create(ctx, &domain.ConnectedSystem{
			Name:        doc.Name,
			Description: doc.Description,
		})
		if err != nil {
			return fmt.Errorf("system %s: %w", doc.Name, err)
		}
		report.SystemsCreated++
		a.logger.Info("connected system created", "system", doc.Name)
	}

	for _, ot := range doc.ObjectTypes {
		_, err := a.systems.GetObjectType(ctx, sys.ID, ot.Name)
		if err == nil {
			// Schema changes for existing types go through migration, not
			// apply.
			continue
		}
		var notFound *domain.NotFoundError
		if !errors.As(err, &notFound) {
			return err
		}

		schema := &domain.ObjectTypeSchema{
			ConnectedSystemID:   sys.ID,
			Name:                ot.Name,
			ExternalIDAttribute: ot.ExternalIDAttribute,
		}
		for _, attr := range ot.Attributes {
			schema.Attributes = append(schema.Attributes, domain.AttributeSchema{
				Name:        attr.Name,
				Kind:        domain.AttributeKind(attr.Kind),
				MultiValued: attr.MultiValued,
			})
		}
		if _, err := a.systems.CreateObjectType(ctx, schema); err != nil {
			return fmt.Errorf("system %s, object type %s: %w", doc.Name, ot.Name, err)
		}
		report.ObjectTypesCreated++
		a.logger.Info("object type created", "system", doc.Name, "object_type", ot.Name)
	}
	return nil
}

func (a *Applier) applyPolicy(ctx context.Context, doc MetaverseTypePolicyDoc) error {
	rule := domain.DeletionRule(doc.DeletionRule)
	if !rule.Valid() {
		return fmt.Errorf("policy %s: unknown deletion rule %q", doc.ObjectType, doc.DeletionRule)
	}
	return a.systems.UpsertMetaverseTypePolicy(ctx, &domain.MetaverseTypePolicy{
		ObjectType:                    doc.ObjectType,
		DeletionRule:                  rule,
		GracePeriodDays:               doc.GracePeriodDays,
		RemoveContributedOnObsoletion: doc.RemoveContributedOnObsoletion,
	})
}

func (a *Applier) applyRule(ctx context.Context, doc SyncRuleDoc, report *ApplyReport) error {
	sys, err := a.systems.GetByName(ctx, doc.System)
	if err != nil {
		return fmt.Errorf("rule %s: system %q: %w", doc.Name, doc.System, err)
	}
	rule, err := buildRule(doc, sys.ID)
	if err != nil {
		return err
	}

	existing, err := a.rules.GetByName(ctx, doc.Name)
	if err != nil {
		var notFound *domain.NotFoundError
		if !errors.As(err, &notFound) {
			return err
		}
		if _, err := a.rules.Create(ctx, rule); err != nil {
			return fmt.Errorf("rule %s: %w", doc.Name, err)
		}
		report.RulesCreated++
		a.logger.Info("sync rule created", "rule", doc.Name)
		return nil
	}

	rule.ID = existing.ID
	if err := a.rules.Update(ctx, rule); err != nil {
		return fmt.Errorf("rule %s: %w", doc.Name, err)
	}
	report.RulesUpdated++
	a.logger.Info("sync rule updated", "rule", doc.Name)
	return nil
}

// buildRule maps one rule document onto the domain type. Enabled defaults to
// true when omitted.
func buildRule(doc SyncRuleDoc, systemID string) (*domain.SyncRule, error) {
	rule := &domain.SyncRule{
		ConnectedSystemID:   systemID,
		Name:                doc.Name,
		Direction:           domain.RuleDirection(doc.Direction),
		Enabled:             doc.Enabled == nil || *doc.Enabled,
		ObjectType:          doc.ObjectType,
		MetaverseObjectType: doc.MetaverseObjectType,
		ProjectToMetaverse:  doc.ProjectToMetaverse,
		Priority:            doc.Priority,
	}
	for _, m := range doc.MatchingRules {
		rule.MatchingRules = append(rule.MatchingRules, domain.ObjectMatchingRule{
			SourceAttributes: m.SourceAttributes,
			TargetAttribute:  m.TargetAttribute,
		})
	}
	for _, f := range doc.AttributeFlows {
		rule.AttributeFlows = append(rule.AttributeFlows, domain.AttributeFlowRule{
			SourceAttributes: f.SourceAttributes,
			TargetAttribute:  f.TargetAttribute,
		})
	}
	for _, g := range doc.Scoping {
		group, err := buildScopeGroup(doc.Name, g)
		if err != nil {
			return nil, err
		}
		rule.Scoping = append(rule.Scoping, group)
	}
	return rule, nil
}

func buildScopeGroup(ruleName string, def ScopeGroupDef) (domain.ScopingCriteriaGroup, error) {
	group := domain.ScopingCriteriaGroup{
		Combinator: domain.GroupCombinator(def.Combinator),
	}
	if group.Combinator == "" {
		group.Combinator = domain.CombinatorAll
	}
	for _, c := range def.Criteria {
		kind := domain.AttributeKind(c.Kind)
		if c.Kind == "" {
			kind = domain.KindText
		}
		value, err := domain.ParseValue(kind, c.Value)
		if err != nil {
			return domain.ScopingCriteriaGroup{}, fmt.Errorf("rule %s: criterion %s: %w", ruleName, c.Attribute, err)
		}
		group.Criteria = append(group.Criteria, domain.ScopingCriterion{
			Attribute:  c.Attribute,
			Comparator: domain.Comparator(c.Comparator),
			Value:      value,
		})
	}
	for _, child := range def.Groups {
		sub, err := buildScopeGroup(ruleName, child)
		if err != nil {
			return domain.ScopingCriteriaGroup{}, err
		}
		group.Groups = append(group.Groups, sub)
	}
	return group, nil
}
