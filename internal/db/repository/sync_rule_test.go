package repository

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internaldb "idsync/internal/db"
	"idsync/internal/domain"
)

func setupSyncRuleRepo(t *testing.T) (*SyncRuleRepo, *domain.ConnectedSystem, *sql.DB) {
	t.Helper()
	writeDB, _ := internaldb.OpenTestSQLite(t)
	sys, _ := seedSystem(t, writeDB, "hr")
	return NewSyncRuleRepo(writeDB), sys, writeDB
}

func TestSyncRuleRepo_CreateRoundTrip(t *testing.T) {
	repo, sys, _ := setupSyncRuleRepo(t)
	ctx := context.Background()

	rule, err := repo.Create(ctx, &domain.SyncRule{
		ConnectedSystemID:   sys.ID,
		Name:                "hr-person-in",
		Direction:           domain.DirectionImport,
		Enabled:             true,
		ObjectType:          "person",
		MetaverseObjectType: "person",
		ProjectToMetaverse:  true,
		Priority:            10,
		MatchingRules: []domain.ObjectMatchingRule{
			{Order: 0, SourceAttributes: []string{"employeeId"}, TargetAttribute: "employeeId"},
			{Order: 1, SourceAttributes: []string{"mail", "otherMail"}, TargetAttribute: "mail"},
		},
		AttributeFlows: []domain.AttributeFlowRule{
			{Order: 0, SourceAttributes: []string{"displayName"}, TargetAttribute: "displayName"},
		},
		Scoping: []domain.ScopingCriteriaGroup{
			{
				Combinator: domain.CombinatorAll,
				Criteria: []domain.ScopingCriterion{
					{Attribute: "employeeType", Comparator: domain.ComparatorEquals, Value: domain.TextValue("FTE")},
				},
				Groups: []domain.ScopingCriteriaGroup{
					{
						Combinator: domain.CombinatorAny,
						Criteria: []domain.ScopingCriterion{
							{Attribute: "dept", Comparator: domain.ComparatorStartsWith, Value: domain.TextValue("ENG")},
							{Attribute: "dept", Comparator: domain.ComparatorEquals, Value: domain.TextValue("IT")},
						},
					},
				},
			},
		},
	})
	require.NoError(t, err)
	require.NotEmpty(t, rule.ID)

	got, err := repo.GetByID(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, "hr-person-in", got.Name)
	assert.True(t, got.ProjectToMetaverse)

	require.Len(t, got.MatchingRules, 2)
	assert.Equal(t, []string{"employeeId"}, got.MatchingRules[0].SourceAttributes)
	assert.Equal(t, []string{"mail", "otherMail"}, got.MatchingRules[1].SourceAttributes)

	require.Len(t, got.AttributeFlows, 1)
	assert.Equal(t, "displayName", got.AttributeFlows[0].TargetAttribute)

	require.Len(t, got.Scoping, 1)
	top := got.Scoping[0]
	assert.Equal(t, domain.CombinatorAll, top.Combinator)
	require.Len(t, top.Criteria, 1)
	assert.Equal(t, domain.TextValue("FTE"), top.Criteria[0].Value)
	require.Len(t, top.Groups, 1)
	assert.Equal(t, domain.CombinatorAny, top.Groups[0].Combinator)
	assert.Len(t, top.Groups[0].Criteria, 2)
}

func TestSyncRuleRepo_ListEnabled(t *testing.T) {
	repo, sys, _ := setupSyncRuleRepo(t)
	ctx := context.Background()

	mk := func(name string, direction domain.RuleDirection, enabled bool, priority int) {
		t.Helper()
		_, err := repo.Create(ctx, &domain.SyncRule{
			ConnectedSystemID:   sys.ID,
			Name:                name,
			Direction:           direction,
			Enabled:             enabled,
			ObjectType:          "person",
			MetaverseObjectType: "person",
			Priority:            priority,
		})
		require.NoError(t, err)
	}

	mk("low", domain.DirectionImport, true, 20)
	mk("high", domain.DirectionImport, true, 1)
	mk("disabled", domain.DirectionImport, false, 0)
	mk("outbound", domain.DirectionExport, true, 5)

	rules, err := repo.ListEnabled(ctx, sys.ID, domain.DirectionImport)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "high", rules[0].Name)
	assert.Equal(t, "low", rules[1].Name)

	exports, err := repo.ListEnabled(ctx, sys.ID, domain.DirectionExport)
	require.NoError(t, err)
	require.Len(t, exports, 1)
	assert.Equal(t, "outbound", exports[0].Name)

	all, err := repo.ListBySystem(ctx, sys.ID)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestSyncRuleRepo_Validation(t *testing.T) {
	repo, sys, _ := setupSyncRuleRepo(t)
	ctx := context.Background()

	_, err := repo.Create(ctx, &domain.SyncRule{
		ConnectedSystemID:   sys.ID,
		Name:                "bad-projecting-export",
		Direction:           domain.DirectionExport,
		ObjectType:          "person",
		MetaverseObjectType: "person",
		ProjectToMetaverse:  true,
	})
	require.Error(t, err)
	var validation *domain.ValidationError
	assert.ErrorAs(t, err, &validation)
}

func TestSyncRuleRepo_Update(t *testing.T) {
	repo, sys, _ := setupSyncRuleRepo(t)
	ctx := context.Background()

	rule, err := repo.Create(ctx, &domain.SyncRule{
		ConnectedSystemID:   sys.ID,
		Name:                "mutable",
		Direction:           domain.DirectionImport,
		Enabled:             true,
		ObjectType:          "person",
		MetaverseObjectType: "person",
		MatchingRules: []domain.ObjectMatchingRule{
			{SourceAttributes: []string{"employeeId"}, TargetAttribute: "employeeId"},
		},
	})
	require.NoError(t, err)

	rule.Enabled = false
	rule.MatchingRules = []domain.ObjectMatchingRule{
		{SourceAttributes: []string{"mail"}, TargetAttribute: "mail"},
	}
	require.NoError(t, repo.Update(ctx, rule))

	got, err := repo.GetByID(ctx, rule.ID)
	require.NoError(t, err)
	assert.False(t, got.Enabled)
	require.Len(t, got.MatchingRules, 1)
	assert.Equal(t, "mail", got.MatchingRules[0].TargetAttribute)
}

func TestSyncRuleRepo_GetByName_NotFound(t *testing.T) {
	repo, _, _ := setupSyncRuleRepo(t)

	_, err := repo.GetByName(context.Background(), "ghost")
	require.Error(t, err)
	var notFound *domain.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}
