package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"

	"github.com/senbaris/tempdbcheck/internal/agent"
	"github.com/senbaris/tempdbcheck/internal/config"
	"github.com/senbaris/tempdbcheck/internal/logger"
)

const serviceName = "TempDBCheck"

// configureWindowsEventLog is set on Windows and routes logs to the Event Log.
var configureWindowsEventLog func() bool

type program struct {
	mu    sync.Mutex
	agent *agent.Agent
	cfg   *config.Config
}

// Start agent'ı senkron oluşturur, Stop her zaman aynı örneği görür
func (p *program) Start(s service.Service) error {
	a := agent.NewAgent(p.cfg)

	p.mu.Lock()
	p.agent = a
	p.mu.Unlock()

	go p.run(a)
	return nil
}

func (p *program) run(a *agent.Agent) {
	logger.Info("tempdbcheck service starting... Platform: %s", runtime.GOOS)

	if err := a.Start(); err != nil {
		if errors.Is(err, agent.ErrStopped) {
			return
		}
		logger.Fatal("Agent could not start: %v", err)
	}
}

func (p *program) Stop(s service.Service) error {
	p.mu.Lock()
	a := p.agent
	p.mu.Unlock()

	if a != nil {
		a.Stop()
		logger.Info("Agent stopped.")
	}
	return nil
}

func newServiceCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "service <install|uninstall|start|stop|restart|run>",
		Short:     "Run tempdbcheck periodically as a system service",
		Args:      cobra.ExactArgs(1),
		ValidArgs: append(service.ControlAction[:], "run"),
		RunE: func(cmd *cobra.Command, args []string) error {
			action := strings.ToLower(args[0])
			if !isServiceAction(action) {
				return fmt.Errorf("unknown service action %q, valid: %s, run", action, strings.Join(service.ControlAction[:], ", "))
			}

			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			svcArgs, err := serviceArguments(opts)
			if err != nil {
				return err
			}

			prg := &program{cfg: cfg}
			s, err := service.New(prg, &service.Config{
				Name:        serviceName,
				DisplayName: "tempdb Best Practice Check",
				Description: "Periodically checks SQL Server tempdb configuration against best practices.",
				Arguments:   svcArgs,
			})
			if err != nil {
				return fmt.Errorf("failed to create service: %w", err)
			}

			if action != "run" {
				if err := service.Control(s, action); err != nil {
					return fmt.Errorf("service command failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "service %s: %s\n", serviceName, action)
				return nil
			}

			if !service.Interactive() {
				setupServiceLogging()
			}
			return s.Run()
		},
	}
}

func isServiceAction(action string) bool {
	if action == "run" {
		return true
	}
	for _, a := range service.ControlAction {
		if a == action {
			return true
		}
	}
	return false
}

// serviceArguments returns the command line the installed service is started with.
func serviceArguments(opts *rootOptions) ([]string, error) {
	args := []string{"service", "run"}
	if opts.configPath != "" {
		abs, err := filepath.Abs(opts.configPath)
		if err != nil {
			return nil, err
		}
		args = append(args, "--config", abs)
	}
	if opts.logLevel != "" {
		args = append(args, "--loglevel", opts.logLevel)
	}
	return args, nil
}

// setupServiceLogging Windows'ta önce Event Log'u, olmazsa exe yanındaki dosyayı kullanır
func setupServiceLogging() {
	if runtime.GOOS != "windows" {
		// Linux'ta stderr journald tarafından toplanır
		return
	}
	if configureWindowsEventLog != nil && configureWindowsEventLog() {
		return
	}
	setupFileLogging()
}
