package sync

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idsync/internal/domain"
)

func TestEngine_FullImportCreatesObjects(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.connector.Records = []domain.RawRecord{
		personRecord("E1", "Ada", "ada@example.com"),
		personRecord("E2", "Grace"),
	}
	run, err := h.engine.PerformFullImport(ctx, h.profile(domain.RunFullImport))
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCompleted, run.Status)
	assert.Equal(t, 2, run.ObjectsProcessed)
	assert.Equal(t, 0, run.ErrorCount)

	o := h.getCSO(t, "E1")
	assert.Equal(t, domain.StatusNormal, o.Status)
	assert.Equal(t, domain.JoinTypeNotJoined, o.JoinType)
	assert.Equal(t, "Ada", o.ValuesOf("displayName")[0].Text())
}

func TestEngine_ReimportUnchangedDoesNotTouch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.connector.Records = []domain.RawRecord{personRecord("E1", "Ada")}
	_, err := h.engine.PerformFullImport(ctx, h.profile(domain.RunFullImport))
	require.NoError(t, err)
	before := h.getCSO(t, "E1")

	_, err = h.engine.PerformFullImport(ctx, h.profile(domain.RunFullImport))
	require.NoError(t, err)

	after := h.getCSO(t, "E1")
	assert.Equal(t, before.LastUpdated, after.LastUpdated)
}

func TestEngine_ImportErrorsAreRecordedAndSkipped(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	bad := personRecord("E1", "Ada")
	bad.Attributes = append(bad.Attributes,
		domain.RawAttribute{Name: "shoeSize", Values: []string{"42"}})

	h.connector.Records = []domain.RawRecord{bad, personRecord("E2", "Grace")}
	run, err := h.engine.PerformFullImport(ctx, h.profile(domain.RunFullImport))
	require.NoError(t, err)

	// The bad record is skipped, the run itself completes.
	assert.Equal(t, domain.RunStatusCompleted, run.Status)
	assert.Equal(t, 2, run.ObjectsProcessed)
	assert.Equal(t, 1, run.ErrorCount)
	h.getCSO(t, "E2")

	items, err := h.runs.ListItems(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.NotNil(t, items[0].ErrorType)
	assert.Equal(t, domain.ErrUnexpectedAttribute, *items[0].ErrorType)
	assert.Equal(t, "shoeSize", items[0].AttributeName)
	assert.Nil(t, items[1].ErrorType)
}

func TestEngine_UnknownObjectTypeIsRecorded(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.connector.Records = []domain.RawRecord{{ObjectType: "printer", ChangeType: domain.ChangeAdd}}
	run, err := h.engine.PerformFullImport(ctx, h.profile(domain.RunFullImport))
	require.NoError(t, err)
	assert.Equal(t, 1, run.ErrorCount)
}

func TestEngine_ProjectionCreatesMetaverseObject(t *testing.T) {
	h := newHarness(t)
	h.addImportRule(t, "hr-person", 1, true)
	h.importAndSync(t, personRecord("E1", "Ada"))

	o := h.getCSO(t, "E1")
	assert.Equal(t, domain.JoinTypeProjected, o.JoinType)
	require.NotNil(t, o.MetaverseObjectID)

	m := h.getMVO(t, *o.MetaverseObjectID)
	assert.Equal(t, "person", m.ObjectType)
}

func TestEngine_MatchBeatsProjection(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	existing, err := h.metaverse.Create(ctx, &domain.MetaverseObject{ObjectType: "person"})
	require.NoError(t, err)
	cs := domain.NewPendingChangeSet(existing.ID)
	cs.Add("employeeId", domain.TextValue("E1"), nil)
	require.NoError(t, h.metaverse.ApplyChangeSet(ctx, cs))

	h.addImportRule(t, "hr-person", 1, true)
	h.importAndSync(t, personRecord("E1", "Ada"), personRecord("E2", "Grace"))

	// E1 matches the pre-existing metaverse object and joins it; projection
	// never runs for it. E2 has no match and projects.
	e1 := h.getCSO(t, "E1")
	assert.Equal(t, domain.JoinTypeJoined, e1.JoinType)
	assert.Equal(t, existing.ID, *e1.MetaverseObjectID)

	e2 := h.getCSO(t, "E2")
	assert.Equal(t, domain.JoinTypeProjected, e2.JoinType)
	assert.NotEqual(t, existing.ID, *e2.MetaverseObjectID)
}

func TestEngine_JoinConflictIsTerminal(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	existing, err := h.metaverse.Create(ctx, &domain.MetaverseObject{ObjectType: "person"})
	require.NoError(t, err)
	cs := domain.NewPendingChangeSet(existing.ID)
	cs.Add("mail", domain.TextValue("shared@example.com"), nil)
	require.NoError(t, h.metaverse.ApplyChangeSet(ctx, cs))

	// Match on mail: both records carry the shared address.
	_, err = h.rules.Create(ctx, &domain.SyncRule{
		ConnectedSystemID:   h.system.ID,
		Name:                "hr-person-by-mail",
		Direction:           domain.DirectionImport,
		Enabled:             true,
		ObjectType:          "person",
		MetaverseObjectType: "person",
		ProjectToMetaverse:  true,
		Priority:            1,
		MatchingRules: []domain.ObjectMatchingRule{
			{SourceAttributes: []string{"mail"}, TargetAttribute: "mail"},
		},
		AttributeFlows: []domain.AttributeFlowRule{
			{SourceAttributes: []string{"displayName"}, TargetAttribute: "displayName"},
		},
	})
	require.NoError(t, err)

	h.connector.Records = []domain.RawRecord{
		personRecord("E1", "Ada", "shared@example.com"),
		personRecord("E2", "Imposter", "shared@example.com"),
	}
	_, err = h.engine.PerformFullImport(ctx, h.profile(domain.RunFullImport))
	require.NoError(t, err)
	run, err := h.engine.PerformFullSync(ctx, h.profile(domain.RunFullSync))
	require.NoError(t, err)

	// First object in wins. The second conflicts, stays unjoined and is NOT
	// projected as a fallback.
	e1 := h.getCSO(t, "E1")
	assert.Equal(t, domain.JoinTypeJoined, e1.JoinType)
	assert.Equal(t, existing.ID, *e1.MetaverseObjectID)

	e2 := h.getCSO(t, "E2")
	assert.Equal(t, domain.JoinTypeNotJoined, e2.JoinType)
	assert.Nil(t, e2.MetaverseObjectID)

	assert.Equal(t, 1, run.ErrorCount)
	items, err := h.runs.ListItems(ctx, run.ID)
	require.NoError(t, err)
	var conflict *domain.RunItem
	for i := range items {
		if items[i].ErrorType != nil {
			conflict = &items[i]
		}
	}
	require.NotNil(t, conflict)
	assert.Equal(t, domain.ErrCouldNotJoinExistingJoin, *conflict.ErrorType)
	assert.Equal(t, e2.ID, conflict.ObjectID)
}

func TestEngine_RulePriorityDecidesProjection(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	fteScope := []domain.ScopingCriteriaGroup{{
		Combinator: domain.CombinatorAll,
		Criteria: []domain.ScopingCriterion{{
			Attribute: "employeeType", Comparator: domain.ComparatorEquals, Value: domain.TextValue("FTE"),
		}},
	}}
	for _, r := range []*domain.SyncRule{
		{
			ConnectedSystemID: h.system.ID, Name: "fte-rule", Direction: domain.DirectionImport,
			Enabled: true, ObjectType: "person", MetaverseObjectType: "person",
			ProjectToMetaverse: true, Priority: 1, Scoping: fteScope,
			MatchingRules: []domain.ObjectMatchingRule{{SourceAttributes: []string{"employeeId"}, TargetAttribute: "employeeId"}},
			AttributeFlows: []domain.AttributeFlowRule{{SourceAttributes: []string{"employeeId"}, TargetAttribute: "employeeId"}},
		},
		{
			ConnectedSystemID: h.system.ID, Name: "contractor-rule", Direction: domain.DirectionImport,
			Enabled: true, ObjectType: "person", MetaverseObjectType: "contractor",
			ProjectToMetaverse: true, Priority: 2,
			MatchingRules: []domain.ObjectMatchingRule{{SourceAttributes: []string{"employeeId"}, TargetAttribute: "employeeId"}},
			AttributeFlows: []domain.AttributeFlowRule{{SourceAttributes: []string{"employeeId"}, TargetAttribute: "employeeId"}},
		},
	} {
		_, err := h.rules.Create(ctx, r)
		require.NoError(t, err)
	}

	fte := personRecord("E1", "Ada")
	fte.Attributes = append(fte.Attributes,
		domain.RawAttribute{Name: "employeeType", Values: []string{"FTE"}})
	contractor := personRecord("E2", "Bob")
	contractor.Attributes = append(contractor.Attributes,
		domain.RawAttribute{Name: "employeeType", Values: []string{"Contractor"}})

	h.importAndSync(t, fte, contractor)

	// The first rule whose scope the object satisfies wins.
	m1 := h.getMVO(t, *h.getCSO(t, "E1").MetaverseObjectID)
	assert.Equal(t, "person", m1.ObjectType)
	m2 := h.getMVO(t, *h.getCSO(t, "E2").MetaverseObjectID)
	assert.Equal(t, "contractor", m2.ObjectType)
}

func TestEngine_ProvisionedObjectsAreLeftAlone(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addImportRule(t, "hr-person", 1, true)

	m, err := h.metaverse.Create(ctx, &domain.MetaverseObject{ObjectType: "person"})
	require.NoError(t, err)
	o, err := h.objects.Create(ctx, &domain.ConnectedSystemObject{
		ConnectedSystemID:   h.system.ID,
		ObjectType:          "person",
		ExternalIDAttribute: "employeeId",
		Attributes:          []domain.ObjectAttribute{{Name: "employeeId", Value: domain.TextValue("E1")}},
	})
	require.NoError(t, err)
	o.SetJoin(m.ID, domain.JoinTypeProvisioned, h.engine.now())
	require.NoError(t, h.objects.Update(ctx, o))

	_, err = h.engine.PerformFullSync(ctx, h.profile(domain.RunFullSync))
	require.NoError(t, err)

	got, err := h.objects.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JoinTypeProvisioned, got.JoinType)
	assert.Equal(t, m.ID, *got.MetaverseObjectID)
}

func TestEngine_ConnectorErrorFailsRun(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	boom := errors.New("directory unavailable")
	h.connector.Err = boom

	run, err := h.engine.PerformFullImport(ctx, h.profile(domain.RunFullImport))
	require.ErrorIs(t, err, boom)
	assert.Equal(t, domain.RunStatusFailed, run.Status)

	stored, err := h.runs.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusFailed, stored.Status)
}

// cancellingConnector cancels the run's context while handing records over,
// as if the caller gave up mid-run.
type cancellingConnector struct {
	cancel  context.CancelFunc
	records []domain.RawRecord
}

func (c *cancellingConnector) FullImport(ctx context.Context) ([]domain.RawRecord, error) {
	c.cancel()
	return c.records, nil
}

func (c *cancellingConnector) DeltaImport(ctx context.Context) ([]domain.RawRecord, error) {
	return c.FullImport(ctx)
}

func TestEngine_CancellationMarksRunCancelled(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h.registry.Register("hr", &cancellingConnector{
		cancel:  cancel,
		records: []domain.RawRecord{personRecord("E1", "Ada")},
	})

	run, err := h.engine.PerformFullImport(ctx, h.profile(domain.RunFullImport))
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, domain.RunStatusCancelled, run.Status)

	stored, err := h.runs.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCancelled, stored.Status)

	// The cancelled record was never imported.
	_, err = h.objects.FindByExternalID(context.Background(), h.system.ID, "person", "E1")
	var notFound *domain.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}
