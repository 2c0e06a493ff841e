package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/credvault/internal/adapter/driven/crypto"
	"github.com/ericfisherdev/credvault/internal/config"
)

func newCheckConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-config",
		Short: "Validate CREDVAULT_* environment configuration without starting the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if _, err := crypto.DeriveMasterKey(cfg.MasterKey); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "configuration ok")
			fmt.Fprintf(out, "  listen_addr:  %s\n", cfg.ListenAddr)
			fmt.Fprintf(out, "  db_path:      %s\n", cfg.DBPath)
			fmt.Fprintf(out, "  unlock_rate:  %d/min\n", cfg.UnlockRate)
			fmt.Fprintf(out, "  log_level:    %s\n", cfg.LogLevel)
			if cfg.UsesScopeAPI() {
				fmt.Fprintf(out, "  scopes:       host api %s\n", cfg.ScopeAPIURL)
			} else {
				fmt.Fprintln(out, "  scopes:       local registry")
			}
			return nil
		},
	}
}
