package sync

import (
	"context"
	"io"
	"log/slog"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	internaldb "idsync/internal/db"
	"idsync/internal/db/repository"
	"idsync/internal/domain"
)

// harness wires a full engine against a real SQLite store with one seeded
// connected system (person objects keyed on employeeId) and a static
// connector.
type harness struct {
	engine    *Engine
	registry  *Registry
	connector *StaticConnector

	systems   *repository.ConnectedSystemRepo
	objects   *repository.ObjectRepo
	metaverse *repository.MetaverseRepo
	rules     *repository.SyncRuleRepo
	exports   *repository.PendingExportRepo
	runs      *repository.RunRepo

	system *domain.ConnectedSystem
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	writeDB, _ := internaldb.OpenTestSQLite(t)
	ctx := context.Background()

	h := &harness{
		systems:   repository.NewConnectedSystemRepo(writeDB),
		objects:   repository.NewObjectRepo(writeDB),
		metaverse: repository.NewMetaverseRepo(writeDB),
		rules:     repository.NewSyncRuleRepo(writeDB),
		exports:   repository.NewPendingExportRepo(writeDB),
		runs:      repository.NewRunRepo(writeDB),
		registry:  NewRegistry(),
		connector: &StaticConnector{},
	}

	sys, err := h.systems.Create(ctx, &domain.ConnectedSystem{Name: "hr"})
	require.NoError(t, err)
	h.system = sys
	h.registry.Register("hr", h.connector)

	_, err = h.systems.CreateObjectType(ctx, &domain.ObjectTypeSchema{
		ConnectedSystemID:   sys.ID,
		Name:                "person",
		ExternalIDAttribute: "employeeId",
		Attributes: []domain.AttributeSchema{
			{Name: "employeeId", Kind: domain.KindText},
			{Name: "displayName", Kind: domain.KindText},
			{Name: "mail", Kind: domain.KindText, MultiValued: true},
			{Name: "employeeType", Kind: domain.KindText},
			{Name: "hireDate", Kind: domain.KindDateTime},
			{Name: "badgeNumber", Kind: domain.KindNumber},
			{Name: "manager", Kind: domain.KindReference},
		},
	})
	require.NoError(t, err)

	h.engine = NewEngine(Deps{
		Systems:    h.systems,
		Objects:    h.objects,
		Metaverse:  h.metaverse,
		Rules:      h.rules,
		Exports:    h.exports,
		Runs:       h.runs,
		Connectors: h.registry,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return h
}

func (h *harness) profile(runType domain.RunType) domain.RunProfile {
	return domain.RunProfile{ConnectedSystemID: h.system.ID, RunType: runType, PageSize: 10}
}

// addImportRule creates an enabled import rule matching person objects on
// employeeId with projection and a displayName/mail flow.
func (h *harness) addImportRule(t *testing.T, name string, priority int, project bool) *domain.SyncRule {
	t.Helper()
	rule, err := h.rules.Create(context.Background(), &domain.SyncRule{
		ConnectedSystemID:   h.system.ID,
		Name:                name,
		Direction:           domain.DirectionImport,
		Enabled:             true,
		ObjectType:          "person",
		MetaverseObjectType: "person",
		ProjectToMetaverse:  project,
		Priority:            priority,
		MatchingRules: []domain.ObjectMatchingRule{
			{SourceAttributes: []string{"employeeId"}, TargetAttribute: "employeeId"},
		},
		AttributeFlows: []domain.AttributeFlowRule{
			{SourceAttributes: []string{"employeeId"}, TargetAttribute: "employeeId"},
			{SourceAttributes: []string{"displayName"}, TargetAttribute: "displayName"},
			{SourceAttributes: []string{"mail"}, TargetAttribute: "mail"},
		},
	})
	require.NoError(t, err)
	return rule
}

func personRecord(employeeID, displayName string, mails ...string) domain.RawRecord {
	attrs := []domain.RawAttribute{
		{Name: "employeeId", Kind: domain.KindText, Values: []string{employeeID}},
	}
	if displayName != "" {
		attrs = append(attrs, domain.RawAttribute{Name: "displayName", Kind: domain.KindText, Values: []string{displayName}})
	}
	if len(mails) > 0 {
		attrs = append(attrs, domain.RawAttribute{Name: "mail", Kind: domain.KindText, Values: mails})
	}
	return domain.RawRecord{ObjectType: "person", ChangeType: domain.ChangeAdd, Attributes: attrs}
}

func deleteRecord(employeeID string) domain.RawRecord {
	return domain.RawRecord{
		ObjectType: "person",
		ChangeType: domain.ChangeDelete,
		Attributes: []domain.RawAttribute{
			{Name: "employeeId", Kind: domain.KindText, Values: []string{employeeID}},
		},
	}
}

// importAndSync runs a full import followed by a full sync.
func (h *harness) importAndSync(t *testing.T, records ...domain.RawRecord) {
	t.Helper()
	ctx := context.Background()
	h.connector.Records = records
	_, err := h.engine.PerformFullImport(ctx, h.profile(domain.RunFullImport))
	require.NoError(t, err)
	_, err = h.engine.PerformFullSync(ctx, h.profile(domain.RunFullSync))
	require.NoError(t, err)
}

func (h *harness) getCSO(t *testing.T, employeeID string) *domain.ConnectedSystemObject {
	t.Helper()
	o, err := h.objects.FindByExternalID(context.Background(), h.system.ID, "person", employeeID)
	require.NoError(t, err)
	return o
}

func (h *harness) getMVO(t *testing.T, id string) *domain.MetaverseObject {
	t.Helper()
	m, err := h.metaverse.GetByID(context.Background(), id)
	require.NoError(t, err)
	return m
}
