package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/igtm/llm-coder/internal/agent"
	"github.com/igtm/llm-coder/internal/config"
	"github.com/igtm/llm-coder/internal/llm"
	"github.com/igtm/llm-coder/internal/version"
)

// Exit codes by failure class.
const (
	ExitOK            = 0
	ExitError         = 1
	ExitMaxIterations = 2
	ExitTransport     = 3
)

// Options holds global CLI options.
type Options struct {
	ConfigPath string
}

// NewRootCmd constructs the base CLI command tree.
func NewRootCmd() *cobra.Command {
	opts := &Options{}

	cmd := &cobra.Command{
		Use:           "llm-coder",
		Short:         "llm-coder CLI - autonomous coding agent",
		Version:       version.Full(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "Path to config file (default: ./"+config.DefaultConfigFile+")")

	cmd.AddCommand(NewAgentCmd(opts))
	cmd.AddCommand(NewLitellmCmd(opts))
	cmd.AddCommand(NewDoctorCmd(opts))
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command and maps typed failures to exit codes:
// 2 for an exhausted iteration budget, 3 for a fatal transport error, and
// 1 for configuration or other failures.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := NewRootCmd().ExecuteContext(ctx)
	if err == nil {
		return ExitOK
	}
	fmt.Fprintln(os.Stderr, err)
	return exitCode(err)
}

func exitCode(err error) int {
	if errors.Is(err, agent.ErrMaxIterations) {
		return ExitMaxIterations
	}
	var te *llm.TransportError
	if errors.As(err, &te) {
		return ExitTransport
	}
	return ExitError
}

// loadConfig wraps config loading with shared options.
func loadConfig(opts *Options) (*config.Settings, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
