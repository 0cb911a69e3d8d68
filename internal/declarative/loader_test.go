package declarative

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

const systemYAML = `apiVersion: idsync/v1
kind: ConnectedSystem
name: hr
description: HR feed
objectTypes:
  - name: person
    externalIdAttribute: employeeId
    attributes:
      - name: employeeId
        kind: text
      - name: mail
        kind: text
        multiValued: true
      - name: manager
        kind: reference
`

const ruleYAML = `apiVersion: idsync/v1
kind: SyncRule
name: hr-person-in
system: hr
direction: import
objectType: person
metaverseObjectType: person
projectToMetaverse: true
priority: 1
scoping:
  - combinator: all
    criteria:
      - attribute: employeeType
        comparator: equals
        value: FTE
    groups:
      - combinator: any
        criteria:
          - attribute: badgeNumber
            comparator: greater_than
            kind: number
            value: "1000"
matchingRules:
  - sourceAttributes: [employeeId]
    targetAttribute: employeeId
attributeFlows:
  - sourceAttributes: [employeeId]
    targetAttribute: employeeId
  - sourceAttributes: [mail]
    targetAttribute: mail
`

const policyYAML = `apiVersion: idsync/v1
kind: MetaverseTypePolicy
objectType: person
deletionRule: when_last_connector_disconnected
gracePeriodDays: 30
removeContributedOnObsoletion: true
`

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "10-system.yaml", systemYAML)
	writeFile(t, dir, "20-policy.yaml", policyYAML)
	writeFile(t, dir, "30-rule.yaml", ruleYAML)
	writeFile(t, dir, "notes.txt", "ignored")

	state, err := LoadDirectory(dir)
	require.NoError(t, err)

	require.Len(t, state.Systems, 1)
	sys := state.Systems[0]
	assert.Equal(t, "hr", sys.Name)
	require.Len(t, sys.ObjectTypes, 1)
	assert.Equal(t, "employeeId", sys.ObjectTypes[0].ExternalIDAttribute)
	require.Len(t, sys.ObjectTypes[0].Attributes, 3)
	assert.True(t, sys.ObjectTypes[0].Attributes[1].MultiValued)

	require.Len(t, state.Policies, 1)
	assert.Equal(t, "when_last_connector_disconnected", state.Policies[0].DeletionRule)
	require.NotNil(t, state.Policies[0].GracePeriodDays)
	assert.Equal(t, 30, *state.Policies[0].GracePeriodDays)

	require.Len(t, state.Rules, 1)
	rule := state.Rules[0]
	assert.Equal(t, "hr-person-in", rule.Name)
	assert.True(t, rule.ProjectToMetaverse)
	require.Len(t, rule.Scoping, 1)
	require.Len(t, rule.Scoping[0].Groups, 1)
	assert.Equal(t, "number", rule.Scoping[0].Groups[0].Criteria[0].Kind)
}

func TestLoadDirectory_RejectsUnknownFields(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "system.yaml", `apiVersion: idsync/v1
kind: ConnectedSystem
name: hr
surprise: true
`)
	_, err := LoadDirectory(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "surprise")
}

func TestLoadDirectory_RejectsWrongAPIVersion(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "system.yaml", `apiVersion: idsync/v2
kind: ConnectedSystem
name: hr
`)
	_, err := LoadDirectory(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported apiVersion")
}

func TestLoadDirectory_RejectsUnknownKind(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "thing.yaml", `apiVersion: idsync/v1
kind: Gadget
name: x
`)
	_, err := LoadDirectory(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown kind "Gadget"`)
}

func TestLoadDirectory_MissingDirectory(t *testing.T) {
	_, err := LoadDirectory(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}
