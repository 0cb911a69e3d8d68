package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

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
matchingRules:
  - order: 1
    sourceAttributes: [employeeId]
    targetAttribute: employeeId
attributeFlows:
  - order: 1
    sourceAttributes: [mail]
    targetAttribute: mail
`

func writeFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "10-system.yaml"), []byte(systemYAML), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20-rule.yaml"), []byte(ruleYAML), 0o644))
	return dir
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func tempDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "cli.sqlite")
}

func TestApplyThenList(t *testing.T) {
	db := tempDB(t)
	dir := writeFixture(t)

	out, err := runCLI(t, "--db", db, "apply", "-f", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "1 system(s) created")
	assert.Contains(t, out, "1 rule(s) created")

	out, err = runCLI(t, "--db", db, "systems", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "hr")

	out, err = runCLI(t, "--db", db, "systems", "show", "hr")
	require.NoError(t, err)
	assert.Contains(t, out, "person")
	assert.Contains(t, out, "hr-person-in")
}

func TestApply_IsIdempotentAcrossInvocations(t *testing.T) {
	db := tempDB(t)
	dir := writeFixture(t)

	_, err := runCLI(t, "--db", db, "apply", "-f", dir)
	require.NoError(t, err)
	out, err := runCLI(t, "--db", db, "apply", "-f", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "0 system(s) created")
	assert.Contains(t, out, "1 rule(s) updated")
}

func TestApply_MissingDirFails(t *testing.T) {
	_, err := runCLI(t, "--db", tempDB(t), "apply", "-f", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}

func TestRunFullSync(t *testing.T) {
	db := tempDB(t)
	dir := writeFixture(t)
	_, err := runCLI(t, "--db", db, "apply", "-f", dir)
	require.NoError(t, err)

	out, err := runCLI(t, "--db", db, "run", "--system", "hr", "--type", "full_sync")
	require.NoError(t, err)
	assert.Contains(t, out, "completed")
	assert.Contains(t, out, "0 object(s) processed")
}

func TestRun_UnknownType(t *testing.T) {
	_, err := runCLI(t, "--db", tempDB(t), "run", "--system", "hr", "--type", "incremental")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown run type")
}

func TestRun_UnknownSystem(t *testing.T) {
	_, err := runCLI(t, "--db", tempDB(t), "run", "--system", "ghost", "--type", "full_sync")
	require.Error(t, err)
}

func TestHousekeep(t *testing.T) {
	out, err := runCLI(t, "--db", tempDB(t), "housekeep")
	require.NoError(t, err)
	assert.Contains(t, out, "Sweep:")
}

func TestAPIKeyLifecycle(t *testing.T) {
	db := tempDB(t)

	out, err := runCLI(t, "--db", db, "-o", "json", "apikey", "create", "--principal", "ops-bot")
	require.NoError(t, err)

	var created struct {
		ID        string `json:"id"`
		Principal string `json:"principal"`
		Key       string `json:"key"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &created))
	assert.Equal(t, "ops-bot", created.Principal)
	assert.NotEmpty(t, created.ID)
	assert.Contains(t, created.Key, "isk_")

	out, err = runCLI(t, "--db", db, "apikey", "delete", created.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted")

	_, err = runCLI(t, "--db", db, "apikey", "delete", created.ID)
	require.Error(t, err)
}
