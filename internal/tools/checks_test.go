package tools

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestCheckRunner(t *testing.T, dir string, cfg CheckConfig) (*CheckRunner, string) {
	t.Helper()
	guard, err := NewGuard([]string{dir})
	requireNoError(t, err)
	runner, err := NewCheckRunner(&Executor{}, guard, cfg)
	requireNoError(t, err)
	real, err := filepath.EvalSymlinks(dir)
	requireNoError(t, err)
	return runner, real
}

func TestCheckRunnerResolveGlobals(t *testing.T) {
	dir := t.TempDir()
	runner, real := newTestCheckRunner(t, dir, CheckConfig{
		LintCommand: "golangci-lint run",
		TestCommand: "go test ./...",
	})

	cmds := runner.Resolve([]string{filepath.Join(real, "main.go")})
	if len(cmds) != 2 {
		t.Fatalf("expected lint+test, got %+v", cmds)
	}
	if cmds[0].Kind != CheckLint || cmds[0].WorkingDir != real {
		t.Fatalf("unexpected first command: %+v", cmds[0])
	}
	if cmds[1].Kind != CheckTest || cmds[1].Command != "go test ./..." {
		t.Fatalf("unexpected second command: %+v", cmds[1])
	}
}

func TestCheckRunnerResolveOverrideReplacesGlobals(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "py")
	requireNoError(t, os.Mkdir(sub, 0o755))

	runner, real := newTestCheckRunner(t, dir, CheckConfig{
		TestCommand: "go test ./...",
		Overrides: []DirectoryOverride{
			{Path: sub, LintCommand: "pylint ."},
		},
	})

	cmds := runner.Resolve([]string{filepath.Join(real, "py", "app.py")})
	if len(cmds) != 1 {
		t.Fatalf("override must replace globals wholesale, got %+v", cmds)
	}
	if cmds[0].Kind != CheckLint || cmds[0].Command != "pylint ." {
		t.Fatalf("unexpected command: %+v", cmds[0])
	}
	if cmds[0].WorkingDir != filepath.Join(real, "py") {
		t.Fatalf("unexpected working dir: %s", cmds[0].WorkingDir)
	}
}

func TestCheckRunnerLongestPrefixWins(t *testing.T) {
	dir := t.TempDir()
	outer := filepath.Join(dir, "svc")
	inner := filepath.Join(outer, "api")
	requireNoError(t, os.MkdirAll(inner, 0o755))

	runner, real := newTestCheckRunner(t, dir, CheckConfig{
		Overrides: []DirectoryOverride{
			{Path: outer, TestCommand: "outer-test"},
			{Path: inner, TestCommand: "inner-test"},
		},
	})

	cmds := runner.Resolve([]string{filepath.Join(real, "svc", "api", "handler.go")})
	if len(cmds) != 1 || cmds[0].Command != "inner-test" {
		t.Fatalf("expected the most specific override, got %+v", cmds)
	}
}

func TestCheckRunnerResolveDeduplicates(t *testing.T) {
	dir := t.TempDir()
	runner, real := newTestCheckRunner(t, dir, CheckConfig{LintCommand: "lint-it"})

	cmds := runner.Resolve([]string{
		filepath.Join(real, "a.go"),
		filepath.Join(real, "b.go"),
	})
	if len(cmds) != 1 {
		t.Fatalf("expected deduplicated commands, got %+v", cmds)
	}
}

func TestCheckRunnerCommandsForAllScopes(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "py")
	requireNoError(t, os.Mkdir(sub, 0o755))

	runner, real := newTestCheckRunner(t, dir, CheckConfig{
		TestCommand: "go test ./...",
		Overrides: []DirectoryOverride{
			{Path: sub, TestCommand: "pytest"},
		},
	})

	cmds := runner.CommandsFor(CheckTest, "")
	if len(cmds) != 2 {
		t.Fatalf("expected override + global scope, got %+v", cmds)
	}

	scoped := runner.CommandsFor(CheckTest, filepath.Join(real, "py"))
	if len(scoped) != 1 || scoped[0].Command != "pytest" {
		t.Fatalf("expected scoped override command, got %+v", scoped)
	}
}

func TestCheckRunnerRunAll(t *testing.T) {
	dir := t.TempDir()
	runner, real := newTestCheckRunner(t, dir, CheckConfig{})

	outcomes := runner.RunAll(context.Background(), []CheckCommand{
		{Kind: CheckLint, Command: "true", WorkingDir: real},
		{Kind: CheckTest, Command: "echo boom >&2; exit 1", WorkingDir: real},
	})
	if len(outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(outcomes))
	}
	if !outcomes[0].Passed {
		t.Fatalf("expected first check to pass: %+v", outcomes[0])
	}
	if outcomes[1].Passed || outcomes[1].Result.ExitCode != 1 {
		t.Fatalf("expected second check to fail: %+v", outcomes[1])
	}

	rendered := FormatCheckOutcomes(outcomes)
	if !strings.Contains(rendered, "passed") || !strings.Contains(rendered, "failed") {
		t.Fatalf("unexpected rendering:\n%s", rendered)
	}
	if !strings.Contains(rendered, "boom") {
		t.Fatalf("missing command output:\n%s", rendered)
	}
}

func TestCheckStatusTracksLastKnown(t *testing.T) {
	status := NewCheckStatus()
	if !status.AllPassing() {
		t.Fatalf("empty status must be vacuously passing")
	}

	cmd := CheckCommand{Kind: CheckTest, Command: "go test", WorkingDir: "/ws"}
	status.Record(cmd, false)
	if status.AllPassing() {
		t.Fatalf("expected failing status")
	}

	status.Record(cmd, true)
	if !status.AllPassing() {
		t.Fatalf("rerun must replace the failing record")
	}
}
