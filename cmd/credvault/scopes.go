package main

import (
	"fmt"

	"github.com/spf13/cobra"

	sqliteadapter "github.com/ericfisherdev/credvault/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/credvault/internal/domain/model"
)

// newScopesCmd manages the local scope registry used when no host API is
// configured.
func newScopesCmd(openDB dbOpener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scopes",
		Short: "Manage the local project and client registry",
	}

	var name string
	register := &cobra.Command{
		Use:   "register <Project|Client> <id>",
		Short: "Register a scope, or revive a deleted one",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			if err := sqliteadapter.NewScopeRepo(db).Register(cmd.Context(), model.ScopeType(args[0]), args[1], name); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered %s %s\n", args[0], args[1])
			return nil
		},
	}
	register.Flags().StringVar(&name, "name", "", "display name")

	del := &cobra.Command{
		Use:   "delete <Project|Client> <id>",
		Short: "Mark a scope deleted so no new credentials can be bound to it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			if err := sqliteadapter.NewScopeRepo(db).MarkDeleted(cmd.Context(), model.ScopeType(args[0]), args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s %s\n", args[0], args[1])
			return nil
		},
	}

	cmd.AddCommand(register, del)
	return cmd
}
