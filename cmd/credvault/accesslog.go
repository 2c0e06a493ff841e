package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	sqliteadapter "github.com/ericfisherdev/credvault/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/credvault/internal/application"
)

type accessLogRow struct {
	ID       string `json:"id"`
	ViewedBy string `json:"viewed_by"`
	ViewedAt string `json:"viewed_at"`
	Reason   string `json:"reason"`
	SourceIP string `json:"source_ip"`
}

func newAccessLogCmd(openDB dbOpener) *cobra.Command {
	var (
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "access-log <credential-id>",
		Short: "List disclosures of a credential, newest first",
		Long: `List the access log of one credential, newest first. Each row records who
revealed the secret, when, from where and why.

Examples:
  credvault access-log 5f0c6d1e-8a51-4c52-9b55-0d2f1c3e7a10
  credvault access-log 5f0c6d1e-8a51-4c52-9b55-0d2f1c3e7a10 --limit 10 --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case limit <= 0:
				limit = application.DefaultAccessLogLimit
			case limit > application.MaxAccessLogLimit:
				limit = application.MaxAccessLogLimit
			}

			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			ctx := cmd.Context()
			if _, err := sqliteadapter.NewCredentialRepo(db).GetByID(ctx, args[0]); err != nil {
				return err
			}

			entries, err := sqliteadapter.NewAccessLogRepo(db).ListByCredential(ctx, args[0], limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				rows := make([]accessLogRow, 0, len(entries))
				for _, e := range entries {
					rows = append(rows, accessLogRow{
						ID:       e.ID,
						ViewedBy: e.ViewedBy,
						ViewedAt: e.ViewedAt.UTC().Format(time.RFC3339Nano),
						Reason:   e.Reason,
						SourceIP: e.SourceIP,
					})
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(rows)
			}

			if len(entries) == 0 {
				fmt.Fprintln(out, "no disclosures recorded")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "VIEWED AT\tVIEWED BY\tSOURCE IP\tREASON")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
					e.ViewedAt.UTC().Format(time.RFC3339), e.ViewedBy, e.SourceIP, e.Reason)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", application.DefaultAccessLogLimit, "maximum number of entries")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	return cmd
}
