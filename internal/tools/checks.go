package tools

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// CheckKind distinguishes the configured check commands.
type CheckKind string

const (
	CheckLint   CheckKind = "lint"
	CheckFormat CheckKind = "format"
	CheckTest   CheckKind = "test"
)

// CheckCommand is one resolved check: what to run and where.
type CheckCommand struct {
	Kind       CheckKind
	Command    string
	WorkingDir string
}

// DirectoryOverride binds check commands to files under a path prefix. An
// override replaces the global commands wholesale for files it covers.
type DirectoryOverride struct {
	Path          string
	LintCommand   string
	FormatCommand string
	TestCommand   string
}

// CheckConfig carries the configured commands for a CheckRunner.
type CheckConfig struct {
	LintCommand   string
	FormatCommand string
	TestCommand   string
	Overrides     []DirectoryOverride
	Timeout       time.Duration
}

// CheckRunner resolves which lint/format/test commands apply to a set of
// touched paths and runs them through the executor.
type CheckRunner struct {
	executor  *Executor
	guard     *Guard
	cfg       CheckConfig
	overrides []DirectoryOverride
}

// NewCheckRunner builds a runner. Override paths are normalized the same
// way the guard normalizes its directories, then sorted longest-first so
// the most specific override wins.
func NewCheckRunner(executor *Executor, guard *Guard, cfg CheckConfig) (*CheckRunner, error) {
	overrides := make([]DirectoryOverride, 0, len(cfg.Overrides))
	for _, o := range cfg.Overrides {
		norm, err := normalizePath(o.Path)
		if err != nil {
			return nil, err
		}
		if real, err := filepath.EvalSymlinks(norm); err == nil {
			norm = real
		}
		o.Path = norm
		overrides = append(overrides, o)
	}
	sort.Slice(overrides, func(i, j int) bool {
		return len(overrides[i].Path) > len(overrides[j].Path)
	})

	return &CheckRunner{
		executor:  executor,
		guard:     guard,
		cfg:       cfg,
		overrides: overrides,
	}, nil
}

func (o DirectoryOverride) command(kind CheckKind) string {
	switch kind {
	case CheckLint:
		return o.LintCommand
	case CheckFormat:
		return o.FormatCommand
	case CheckTest:
		return o.TestCommand
	}
	return ""
}

func (c *CheckRunner) global(kind CheckKind) string {
	switch kind {
	case CheckLint:
		return c.cfg.LintCommand
	case CheckFormat:
		return c.cfg.FormatCommand
	case CheckTest:
		return c.cfg.TestCommand
	}
	return ""
}

var checkKinds = []CheckKind{CheckLint, CheckFormat, CheckTest}

// Resolve maps touched paths to the checks that must run for them. A path
// covered by an override runs that entry's commands from the override
// directory; an uncovered path runs the globals from the allowed directory
// containing it. Duplicate commands collapse to one.
func (c *CheckRunner) Resolve(paths []string) []CheckCommand {
	var out []CheckCommand
	seen := make(map[CheckCommand]struct{})

	add := func(cmd CheckCommand) {
		if cmd.Command == "" {
			return
		}
		if _, dup := seen[cmd]; dup {
			return
		}
		seen[cmd] = struct{}{}
		out = append(out, cmd)
	}

	for _, p := range paths {
		norm, err := normalizePath(p)
		if err != nil {
			continue
		}

		if o, ok := c.overrideFor(norm); ok {
			for _, kind := range checkKinds {
				add(CheckCommand{Kind: kind, Command: o.command(kind), WorkingDir: o.Path})
			}
			continue
		}

		dir, ok := c.guard.ContainingDir(norm)
		if !ok {
			continue
		}
		for _, kind := range checkKinds {
			add(CheckCommand{Kind: kind, Command: c.global(kind), WorkingDir: dir})
		}
	}
	return out
}

// CommandsFor resolves the commands of one kind for an explicit run. With
// dir set, only that directory's scope is consulted; otherwise every
// override plus the globals in each allowed directory.
func (c *CheckRunner) CommandsFor(kind CheckKind, dir string) []CheckCommand {
	var out []CheckCommand
	seen := make(map[CheckCommand]struct{})

	add := func(cmd CheckCommand) {
		if cmd.Command == "" {
			return
		}
		if _, dup := seen[cmd]; dup {
			return
		}
		seen[cmd] = struct{}{}
		out = append(out, cmd)
	}

	if dir != "" {
		norm, err := normalizePath(dir)
		if err != nil {
			return nil
		}
		if o, ok := c.overrideFor(norm); ok {
			add(CheckCommand{Kind: kind, Command: o.command(kind), WorkingDir: o.Path})
			return out
		}
		if scope, ok := c.guard.ContainingDir(norm); ok {
			add(CheckCommand{Kind: kind, Command: c.global(kind), WorkingDir: scope})
		}
		return out
	}

	for _, o := range c.overrides {
		add(CheckCommand{Kind: kind, Command: o.command(kind), WorkingDir: o.Path})
	}
	for _, d := range c.guard.Dirs() {
		add(CheckCommand{Kind: kind, Command: c.global(kind), WorkingDir: d})
	}
	return out
}

func (c *CheckRunner) overrideFor(path string) (DirectoryOverride, bool) {
	for _, o := range c.overrides {
		if pathWithin(path, o.Path) {
			return o, true
		}
	}
	return DirectoryOverride{}, false
}

// CheckOutcome is the result of one executed check.
type CheckOutcome struct {
	CheckCommand
	Result ExecResult
	Err    error
	Passed bool
}

// RunAll executes each resolved check and reports pass/fail. Failures,
// timeouts, and spawn errors are outcomes for the conversation, never
// fatal.
func (c *CheckRunner) RunAll(ctx context.Context, cmds []CheckCommand) []CheckOutcome {
	outcomes := make([]CheckOutcome, 0, len(cmds))
	for _, cmd := range cmds {
		res, err := c.executor.Run(ctx, cmd.Command, cmd.WorkingDir, c.cfg.Timeout)
		outcomes = append(outcomes, CheckOutcome{
			CheckCommand: cmd,
			Result:       res,
			Err:          err,
			Passed:       err == nil && res.ExitCode == 0 && !res.TimedOut,
		})
	}
	return outcomes
}

// FormatCheckOutcomes renders executed checks for the conversation.
func FormatCheckOutcomes(outcomes []CheckOutcome) string {
	var b strings.Builder
	for i, o := range outcomes {
		if i > 0 {
			b.WriteString("\n")
		}
		status := "passed"
		if !o.Passed {
			status = "failed"
		}
		fmt.Fprintf(&b, "%s check (%s) in %s: %s\n", o.Kind, o.Command, o.WorkingDir, status)
		if o.Err != nil {
			fmt.Fprintf(&b, "Error: %v\n", o.Err)
			continue
		}
		if o.Result.TimedOut {
			b.WriteString("Command timed out.\n")
		}
		b.WriteString(FormatExecResult(o.Result))
	}
	return b.String()
}

// CheckStatus tracks the last-known outcome of every check that ran,
// keyed by kind and working directory.
type CheckStatus struct {
	results map[string]bool
}

// NewCheckStatus builds an empty status table.
func NewCheckStatus() *CheckStatus {
	return &CheckStatus{results: make(map[string]bool)}
}

// Record stores the latest outcome for a check, replacing earlier runs of
// the same check.
func (s *CheckStatus) Record(cmd CheckCommand, passed bool) {
	s.results[string(cmd.Kind)+"\x00"+cmd.WorkingDir] = passed
}

// AllPassing reports whether no recorded check is currently failing.
// Vacuously true when nothing has run.
func (s *CheckStatus) AllPassing() bool {
	for _, passed := range s.results {
		if !passed {
			return false
		}
	}
	return true
}
