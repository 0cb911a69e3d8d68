// Package cli implements the idsync admin CLI. It operates directly on the
// database file, so it is meant for the machine the server runs on.
package cli

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"idsync/internal/app"
	"idsync/internal/config"
	internaldb "idsync/internal/db"
)

// Execute runs the CLI.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// env carries the per-invocation state shared by all subcommands.
type env struct {
	dbPath string
	output string

	app     *app.App
	writeDB *sql.DB
	readDB  *sql.DB
}

// open wires the application against the configured database file.
// Commands call it in their RunE, after flag parsing.
func (e *env) open(ctx context.Context) error {
	writeDB, readDB, err := internaldb.OpenSQLitePair(e.dbPath, 0)
	if err != nil {
		return err
	}
	if err := internaldb.RunMigrations(writeDB); err != nil {
		_ = writeDB.Close()
		_ = readDB.Close()
		return err
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := app.New(ctx, app.Deps{
		Cfg:     &config.Config{DBPath: e.dbPath, Env: "production"}, // no demo seed from the CLI
		WriteDB: writeDB,
		ReadDB:  readDB,
		Logger:  logger,
	})
	if err != nil {
		_ = writeDB.Close()
		_ = readDB.Close()
		return err
	}
	e.app = a
	e.writeDB = writeDB
	e.readDB = readDB
	return nil
}

func (e *env) close() {
	if e.writeDB != nil {
		_ = e.writeDB.Close()
	}
	if e.readDB != nil {
		_ = e.readDB.Close()
	}
}

func newRootCmd() *cobra.Command {
	e := &env{}

	rootCmd := &cobra.Command{
		Use:           "idsync",
		Short:         "Identity synchronization admin CLI",
		Long:          "Administer the identity synchronization engine: apply configuration, trigger runs, inspect state.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Accept underscores in flag names (--page_size works like --page-size).
	rootCmd.SetGlobalNormalizationFunc(func(f *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	rootCmd.PersistentFlags().StringVar(&e.dbPath, "db", envOr("IDSYNC_DB_PATH", "idsync.sqlite"), "Path to the SQLite database file")
	rootCmd.PersistentFlags().StringVarP(&e.output, "output", "o", "table", "Output format (table, json)")

	rootCmd.AddCommand(
		newApplyCmd(e),
		newSystemsCmd(e),
		newRunCmd(e),
		newHousekeepCmd(e),
		newAPIKeyCmd(e),
	)
	return rootCmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
