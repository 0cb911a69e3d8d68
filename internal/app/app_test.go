package app

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idsync/internal/config"
	internaldb "idsync/internal/db"
	"idsync/internal/domain"
)

func newApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	writeDB, readDB := internaldb.OpenTestSQLite(t)
	a, err := New(context.Background(), Deps{
		Cfg:     cfg,
		WriteDB: writeDB,
		ReadDB:  readDB,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	return a
}

func TestNew_SeedsDemoDataInDevelopment(t *testing.T) {
	a := newApp(t, &config.Config{})
	ctx := context.Background()

	sys, err := a.Systems.GetByName(ctx, "demo-hr")
	require.NoError(t, err)

	_, err = a.Registry.For("demo-hr")
	require.NoError(t, err)

	// The seeded setup must survive a real run end to end.
	run, err := a.Engine.PerformFullImport(ctx, domain.RunProfile{
		ConnectedSystemID: sys.ID,
		RunType:           domain.RunFullImport,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCompleted, run.Status)
	assert.Equal(t, 3, run.ObjectsProcessed)
	assert.Equal(t, 0, run.ErrorCount)

	run, err = a.Engine.PerformFullSync(ctx, domain.RunProfile{
		ConnectedSystemID: sys.ID,
		RunType:           domain.RunFullSync,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCompleted, run.Status)

	people, total, err := a.Metaverse.List(ctx, "person", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, people, 3)
}

func TestNew_SkipsSeedInProduction(t *testing.T) {
	a := newApp(t, &config.Config{Env: "production"})

	_, err := a.Systems.GetByName(context.Background(), "demo-hr")
	require.Error(t, err)
}

func TestNew_AppliesDeclarativeDirectory(t *testing.T) {
	dir := t.TempDir()
	doc := `apiVersion: idsync/v1
kind: ConnectedSystem
name: hr
objectTypes:
  - name: person
    externalIdAttribute: employeeId
    attributes:
      - name: employeeId
        kind: text
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hr.yaml"), []byte(doc), 0o644))

	a := newApp(t, &config.Config{DeclarativeDir: dir})
	_, err := a.Systems.GetByName(context.Background(), "hr")
	require.NoError(t, err)
}

func TestNew_BadDeclarativeDirectoryFails(t *testing.T) {
	writeDB, readDB := internaldb.OpenTestSQLite(t)
	_, err := New(context.Background(), Deps{
		Cfg:     &config.Config{DeclarativeDir: filepath.Join(t.TempDir(), "missing")},
		WriteDB: writeDB,
		ReadDB:  readDB,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.Error(t, err)
}
