package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/igtm/llm-coder/internal/tools"
)

// NewDoctorCmd returns a health-check command validating config and environment.
func NewDoctorCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Validate configuration and environment",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			guard, err := tools.NewGuard(cfg.AllowedDirs)
			if err != nil {
				return fmt.Errorf("resolve allowed directories: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config OK. Model: %s, max iterations: %d\n", cfg.Model, cfg.MaxIterations)

			fmt.Fprintln(out, "Allowed directories:")
			for _, dir := range guard.Dirs() {
				fmt.Fprintf(out, "  %s\n", dir)
			}

			fmt.Fprintf(out, "Checks: lint=%s format=%s test=%s\n",
				orNone(cfg.LintCommand), orNone(cfg.FormatCommand), orNone(cfg.TestCommand))

			names := make([]string, 0, len(cfg.Directories))
			for name := range cfg.Directories {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				d := cfg.Directories[name]
				fmt.Fprintf(out, "  [%s] path=%s lint=%s format=%s test=%s\n",
					name, d.Path, orNone(d.LintCommand), orNone(d.FormatCommand), orNone(d.TestCommand))
			}

			if cfg.APIKey != "" {
				fmt.Fprintln(out, "API key: configured")
			} else {
				fmt.Fprintln(out, "API key: not set (required for OpenAI-compatible models)")
			}
			if cfg.BaseURL != "" {
				fmt.Fprintf(out, "Base URL: %s\n", cfg.BaseURL)
			}
			return nil
		},
	}
}

func orNone(cmd string) string {
	if cmd == "" {
		return "(none)"
	}
	return cmd
}
