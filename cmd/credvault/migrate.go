package main

import (
	"fmt"

	"github.com/spf13/cobra"

	sqliteadapter "github.com/ericfisherdev/credvault/internal/adapter/driven/sqlite"
)

type dbOpener func() (*sqliteadapter.DB, error)

func newMigrateCmd(openDB dbOpener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the vault database schema",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
				return err
			}
			return printVersion(cmd, db)
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back applied migrations",
		Long: `Roll back the given number of migrations. Rolling back the initial
migration drops every credential and access log row.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if steps <= 0 {
				return fmt.Errorf("--steps must be positive, got %d", steps)
			}

			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			if err := sqliteadapter.RollbackMigrations(db.Writer, steps); err != nil {
				return err
			}
			return printVersion(cmd, db)
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	version := &cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			return printVersion(cmd, db)
		},
	}

	cmd.AddCommand(up, down, version)
	return cmd
}

func printVersion(cmd *cobra.Command, db *sqliteadapter.DB) error {
	v, dirty, err := sqliteadapter.MigrationVersion(db.Writer)
	if err != nil {
		return err
	}

	switch {
	case v == 0:
		fmt.Fprintln(cmd.OutOrStdout(), "schema version: none")
	case dirty:
		fmt.Fprintf(cmd.OutOrStdout(), "schema version: %d (dirty)\n", v)
	default:
		fmt.Fprintf(cmd.OutOrStdout(), "schema version: %d\n", v)
	}
	return nil
}
