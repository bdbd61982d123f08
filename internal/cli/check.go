package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/senbaris/tempdbcheck/internal/collector/mssql"
	"github.com/senbaris/tempdbcheck/internal/config"
	"github.com/senbaris/tempdbcheck/internal/history"
	"github.com/senbaris/tempdbcheck/internal/logger"
	"github.com/senbaris/tempdbcheck/internal/model"
	"github.com/senbaris/tempdbcheck/internal/reporter"
)

const checkTimeout = 2 * time.Minute

// connectServer opens the target instance. Tests replace it.
var connectServer = func(ctx context.Context, cfg *config.Config) (mssql.Target, error) {
	return mssql.NewMSSQLCollector(cfg).Connect(ctx)
}

func newCheckCmd(opts *rootOptions) *cobra.Command {
	var (
		server      string
		user        string
		password    string
		windowsAuth bool
		database    string
		trustCert   bool
		jsonOutput  bool
		ciMode      bool
		save        bool
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Evaluate tempdb best practice rules on a server",
		Long:  "Connect to a SQL Server instance, evaluate the tempdb rules in order and print one row per rule.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			if server != "" {
				host, instance, port := mssql.ParseServerName(server)
				cfg.MSSQL.Host, cfg.MSSQL.Instance, cfg.MSSQL.Port = host, instance, port
			}
			if user != "" {
				cfg.MSSQL.User = user
			}
			if password != "" {
				cfg.MSSQL.Pass = password
			}
			if cmd.Flags().Changed("windows-auth") {
				cfg.MSSQL.WindowsAuth = windowsAuth
			}
			if database != "" {
				cfg.MSSQL.Database = database
			}
			if cmd.Flags().Changed("trust-cert") {
				cfg.MSSQL.TrustCert = trustCert
			}
			cfg.Normalize()

			ctx, cancel := context.WithTimeout(cmd.Context(), checkTimeout)
			defer cancel()

			report, err := runCheck(ctx, cfg)
			if err != nil {
				return err
			}

			if jsonOutput {
				if err := reporter.WriteJSON(cmd.OutOrStdout(), report); err != nil {
					return err
				}
				if report.HasViolations {
					fmt.Fprintln(cmd.ErrOrStderr(), reporter.Summary(report))
				}
			} else {
				fmt.Fprint(cmd.OutOrStdout(), reporter.RenderTable(report))
			}

			if save {
				if err := saveReport(ctx, cfg, report); err != nil {
					return err
				}
			}

			if ciMode && report.HasViolations {
				return ErrViolations
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&server, "server", "", `Target server: host, host\instance or host,port`)
	cmd.Flags().StringVar(&user, "user", "", "SQL authentication user")
	cmd.Flags().StringVar(&password, "password", "", "SQL authentication password")
	cmd.Flags().BoolVar(&windowsAuth, "windows-auth", false, "Use integrated Windows authentication")
	cmd.Flags().StringVar(&database, "database", "", "Database to connect to (default master)")
	cmd.Flags().BoolVar(&trustCert, "trust-cert", true, "Trust the server certificate")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&ciMode, "ci", false, "CI mode: exit non-zero when any rule deviates")
	cmd.Flags().BoolVar(&save, "save", false, "Store the report in the history database")

	return cmd
}

// runCheck connects, evaluates and always closes the connection.
func runCheck(ctx context.Context, cfg *config.Config) (*model.Report, error) {
	target, err := connectServer(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := target.Close(); err != nil {
			logger.Warning("Bağlantı kapatılamadı: %v", err)
		}
	}()

	return mssql.CheckTempDB(ctx, target)
}

func saveReport(ctx context.Context, cfg *config.Config, report *model.Report) error {
	store, err := history.Open(cfg.History.Driver, cfg.History.DSN)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.CreateSchema(ctx); err != nil {
		return err
	}
	if err := store.SaveReport(ctx, report); err != nil {
		return err
	}
	logger.Info("Rapor kaydedildi: %s", report.RunID)
	return nil
}
