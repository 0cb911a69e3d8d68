package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idsync/internal/domain"
)

func personRuleRequest() syncRuleRequest {
	return syncRuleRequest{
		Name:                "hr-person-in",
		System:              "hr",
		Direction:           "import",
		ObjectType:          "person",
		MetaverseObjectType: "person",
		ProjectToMetaverse:  true,
		Priority:            1,
		MatchingRules: []MatchingRule{
			{Order: 1, SourceAttributes: []string{"employeeId"}, TargetAttribute: "employeeId"},
		},
		AttributeFlows: []AttributeFlow{
			{Order: 1, SourceAttributes: []string{"mail"}, TargetAttribute: "mail"},
		},
		Scoping: []ScopeGroup{{
			Combinator: "all",
			Criteria:   []Criterion{{Attribute: "employeeId", Comparator: "starts_with", Value: "E"}},
		}},
	}
}

func TestCreateSyncRule(t *testing.T) {
	f := newFixture(t)
	f.seedSystem(t, "hr")

	rec := f.do(t, http.MethodPost, "/sync-rules", personRuleRequest())
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeInto[SyncRule](t, rec)
	assert.NotEmpty(t, created.ID)
	assert.True(t, created.Enabled)
	require.Len(t, created.Scoping, 1)
	assert.Equal(t, "starts_with", created.Scoping[0].Criteria[0].Comparator)

	rec = f.do(t, http.MethodGet, "/sync-rules/hr-person-in", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created.ID, decodeInto[SyncRule](t, rec).ID)
}

func TestCreateSyncRule_UnknownSystem(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/sync-rules", personRuleRequest())
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateSyncRule_BadCriterionValue(t *testing.T) {
	f := newFixture(t)
	f.seedSystem(t, "hr")

	req := personRuleRequest()
	req.Scoping = []ScopeGroup{{
		Criteria: []Criterion{{Attribute: "grade", Comparator: "greater_than", Kind: "number", Value: "ten"}},
	}}
	rec := f.do(t, http.MethodPost, "/sync-rules", req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateSyncRule_ExportCannotProject(t *testing.T) {
	f := newFixture(t)
	f.seedSystem(t, "hr")

	req := personRuleRequest()
	req.Direction = "export"
	rec := f.do(t, http.MethodPost, "/sync-rules", req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateSyncRule(t *testing.T) {
	f := newFixture(t)
	f.seedSystem(t, "hr")
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/sync-rules", personRuleRequest()).Code)

	req := personRuleRequest()
	req.Priority = 7
	disabled := false
	req.Enabled = &disabled
	rec := f.do(t, http.MethodPut, "/sync-rules/hr-person-in", req)
	require.Equal(t, http.StatusOK, rec.Code)

	updated := decodeInto[SyncRule](t, rec)
	assert.Equal(t, 7, updated.Priority)
	assert.False(t, updated.Enabled)
}

func TestUpdateSyncRule_RenameIsRejected(t *testing.T) {
	f := newFixture(t)
	f.seedSystem(t, "hr")
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/sync-rules", personRuleRequest()).Code)

	req := personRuleRequest()
	req.Name = "something-else"
	rec := f.do(t, http.MethodPut, "/sync-rules/hr-person-in", req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListSyncRulesBySystem(t *testing.T) {
	f := newFixture(t)
	f.seedSystem(t, "hr")
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/sync-rules", personRuleRequest()).Code)

	second := personRuleRequest()
	second.Name = "hr-person-out"
	second.Direction = string(domain.DirectionExport)
	second.ProjectToMetaverse = false
	second.MatchingRules = nil
	second.Scoping = nil
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/sync-rules", second).Code)

	rec := f.do(t, http.MethodGet, "/systems/hr/sync-rules", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decodeInto[listPage[SyncRule]](t, rec)
	assert.Len(t, page.Data, 2)
}
