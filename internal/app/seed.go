package app

import (
	"context"
	"fmt"
	"log/slog"

	"idsync/internal/domain"
	"idsync/internal/service/sync"
)

// seedDemo populates an empty database with a demo HR system, a projection
// rule and a static connector so a fresh checkout has something to run
// against. Idempotent — checks if data already exists.
func seedDemo(ctx context.Context, a *App, logger *slog.Logger) error {
	existing, err := a.Systems.List(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		// Already seeded (or configured declaratively). Still bind a demo
		// connector to a known demo system so runs keep working.
		for _, s := range existing {
			if s.Name == "demo-hr" {
				a.Registry.Register(s.Name, demoConnector())
			}
		}
		return nil
	}

	sys, err := a.Systems.Create(ctx, &domain.ConnectedSystem{
		Name:        "demo-hr",
		Description: "Demo HR feed with a handful of people",
	})
	if err != nil {
		return fmt.Errorf("create demo system: %w", err)
	}

	if _, err := a.Systems.CreateObjectType(ctx, &domain.ObjectTypeSchema{
		ConnectedSystemID:   sys.ID,
		Name:                "person",
		ExternalIDAttribute: "employeeId",
		Attributes: []domain.AttributeSchema{
			{Name: "employeeId", Kind: domain.KindText},
			{Name: "displayName", Kind: domain.KindText},
			{Name: "mail", Kind: domain.KindText, MultiValued: true},
			{Name: "manager", Kind: domain.KindReference},
		},
	}); err != nil {
		return fmt.Errorf("create demo schema: %w", err)
	}

	if err := a.Systems.UpsertMetaverseTypePolicy(ctx, &domain.MetaverseTypePolicy{
		ObjectType:   "person",
		DeletionRule: domain.DeletionWhenLastDisconnected,
	}); err != nil {
		return fmt.Errorf("create demo policy: %w", err)
	}

	if _, err := a.Rules.Create(ctx, &domain.SyncRule{
		ConnectedSystemID:   sys.ID,
		Name:                "demo-hr-person-in",
		Direction:           domain.DirectionImport,
		Enabled:             true,
		ObjectType:          "person",
		MetaverseObjectType: "person",
		ProjectToMetaverse:  true,
		Priority:            1,
		MatchingRules: []domain.ObjectMatchingRule{
			{Order: 1, SourceAttributes: []string{"employeeId"}, TargetAttribute: "employeeId"},
		},
		AttributeFlows: []domain.AttributeFlowRule{
			{Order: 1, SourceAttributes: []string{"employeeId"}, TargetAttribute: "employeeId"},
			{Order: 2, SourceAttributes: []string{"displayName"}, TargetAttribute: "displayName"},
			{Order: 3, SourceAttributes: []string{"mail"}, TargetAttribute: "mail"},
			{Order: 4, SourceAttributes: []string{"manager"}, TargetAttribute: "manager"},
		},
	}); err != nil {
		return fmt.Errorf("create demo rule: %w", err)
	}

	a.Registry.Register(sys.Name, demoConnector())
	logger.Info("demo data seeded", "system", sys.Name)
	return nil
}

func demoConnector() domain.Connector {
	person := func(id, name, mail, manager string) domain.RawRecord {
		rec := domain.RawRecord{
			ObjectType: "person",
			ChangeType: domain.ChangeAdd,
			Attributes: []domain.RawAttribute{
				{Name: "employeeId", Kind: domain.KindText, Values: []string{id}},
				{Name: "displayName", Kind: domain.KindText, Values: []string{name}},
				{Name: "mail", Kind: domain.KindText, Values: []string{mail}},
			},
		}
		if manager != "" {
			rec.Attributes = append(rec.Attributes, domain.RawAttribute{
				Name: "manager", Kind: domain.KindReference, Values: []string{manager},
			})
		}
		return rec
	}
	return &sync.StaticConnector{Records: []domain.RawRecord{
		person("E1", "Ada King", "ada@example.com", ""),
		person("E2", "Grace Hopper", "grace@example.com", "E1"),
		person("E3", "Alan Turing", "alan@example.com", "E1"),
	}}
}
