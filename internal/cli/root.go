package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/senbaris/tempdbcheck/internal/config"
	"github.com/senbaris/tempdbcheck/internal/logger"
)

var (
	version = "dev"
	commit  = "none"
)

// ErrViolations is returned by "check --ci" when at least one rule deviates
// from its recommendation.
var ErrViolations = errors.New("tempdb best practice violations found")

type rootOptions struct {
	configPath string
	logLevel   string
}

// loadConfig reads the config file and applies the log level. --loglevel
// overrides the configured level.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}

	level := cfg.Logging.Level
	if o.logLevel != "" {
		level = o.logLevel
	}
	logger.SetLevel(logger.ParseLevel(level))
	return cfg, nil
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "tempdbcheck",
		Short:         "Check SQL Server tempdb against best practices",
		Long:          "tempdbcheck inspects the tempdb configuration of a SQL Server instance and reports every rule that deviates from the recommended setting.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to "+config.DefaultFileName)
	cmd.PersistentFlags().StringVar(&opts.logLevel, "loglevel", "", "Log level: DEBUG, INFO, WARNING, ERROR")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newCheckCmd(opts))
	cmd.AddCommand(newHistoryCmd(opts))
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newServiceCmd(opts))
	return cmd
}

// NewRootCmdForTest returns the root command for testing.
func NewRootCmdForTest() *cobra.Command {
	return newRootCmd()
}

func Execute() error {
	return newRootCmd().Execute()
}
