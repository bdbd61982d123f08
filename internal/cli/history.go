package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/senbaris/tempdbcheck/internal/history"
	"github.com/senbaris/tempdbcheck/internal/reporter"
)

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var (
		server     string
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List stored reports or show one of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			store, err := history.Open(cfg.History.Driver, cfg.History.DSN)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			if err := store.CreateSchema(ctx); err != nil {
				return err
			}

			if len(args) == 1 {
				report, err := store.GetReport(ctx, args[0])
				if err != nil {
					return fmt.Errorf("run %s: %w", args[0], err)
				}
				if jsonOutput {
					return reporter.WriteJSON(cmd.OutOrStdout(), report)
				}
				fmt.Fprint(cmd.OutOrStdout(), reporter.RenderTable(report))
				return nil
			}

			rows, err := store.ListReports(ctx, server, limit)
			if err != nil {
				return err
			}
			if jsonOutput {
				return reporter.WriteHistoryJSON(cmd.OutOrStdout(), rows)
			}
			fmt.Fprint(cmd.OutOrStdout(), reporter.RenderHistory(rows))
			return nil
		},
	}

	cmd.Flags().StringVar(&server, "server", "", "Only list reports of this server")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of reports to list")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}
