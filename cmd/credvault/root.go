package main

import (
	"os"

	"github.com/spf13/cobra"

	sqliteadapter "github.com/ericfisherdev/credvault/internal/adapter/driven/sqlite"
)

// newRootCmd builds the command tree. Commands other than serve and
// check-config only touch the database and need no secrets.
func newRootCmd() *cobra.Command {
	var dbPath string

	root := &cobra.Command{
		Use:   "credvault",
		Short: "Encrypted credential vault for project and client secrets",
		Long: `credvault stores third-party credentials encrypted at rest, gates every
disclosure behind a passphrase unlock and a short-lived token, and records
each disclosure in an append-only access log.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&dbPath, "db", defaultDBPath(), "path to the vault database (env CREDVAULT_DB_PATH)")

	openDB := func() (*sqliteadapter.DB, error) {
		return sqliteadapter.NewDB(dbPath)
	}

	root.AddCommand(
		newServeCmd(),
		newMigrateCmd(openDB),
		newAccessLogCmd(openDB),
		newScopesCmd(openDB),
		newCheckConfigCmd(),
	)

	return root
}

func defaultDBPath() string {
	if v := os.Getenv("CREDVAULT_DB_PATH"); v != "" {
		return v
	}
	return "credvault.db"
}
