package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/igtm/llm-coder/internal/llm"
)

// ToolResult is the outcome of one dispatched tool call, ready to be
// appended to the conversation.
type ToolResult struct {
	Name      string
	CallID    string
	Output    string
	IsError   bool
	Truncated bool
	Mutated   bool
	Paths     []string
	Checks    []CheckOutcome
	Finished  bool
	Summary   string
}

type invocation struct {
	output   string
	paths    []string
	mutated  bool
	checks   []CheckOutcome
	finished bool
	summary  string
}

type handlerFunc func(ctx context.Context, raw json.RawMessage) (invocation, error)

type toolSpec struct {
	def llm.ToolDefinition
	run handlerFunc
}

// Registry holds every tool exposed to the model and dispatches calls to
// them. All filesystem access goes through the guard-backed Filesystem and
// all commands through the Executor.
type Registry struct {
	fs        *Filesystem
	executor  *Executor
	checks    *CheckRunner
	guard     *Guard
	logger    *zap.Logger
	maxOutput int
	tools     map[string]*toolSpec
	order     []string
}

// NewRegistry builds the full tool catalogue.
func NewRegistry(fs *Filesystem, executor *Executor, checks *CheckRunner, guard *Guard, logger *zap.Logger) (*Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	maxOutput := executor.MaxOutput
	if maxOutput <= 0 {
		maxOutput = DefaultMaxOutput
	}

	r := &Registry{
		fs:        fs,
		executor:  executor,
		checks:    checks,
		guard:     guard,
		logger:    logger,
		maxOutput: maxOutput,
		tools:     make(map[string]*toolSpec),
	}

	specs := []struct {
		name        string
		description string
		args        interface{}
		run         handlerFunc
	}{
		{"read_file", "Reads the contents of a file from the filesystem.", &ReadFileArgs{}, r.runReadFile},
		{"write_file", "Writes a file to the filesystem.", &WriteFileArgs{}, r.runWriteFile},
		{"edit_file", "Edits part of an existing file.", &EditFileArgs{}, r.runEditFile},
		{"list_directory", "Lists the files and folders inside a directory.", &ListDirectoryArgs{}, r.runListDirectory},
		{"directory_tree", "Returns a recursive tree of directories and files starting at the given path.", &DirectoryTreeArgs{}, r.runDirectoryTree},
		{"search_files", "Searches for files whose name matches a pattern.", &SearchFilesArgs{}, r.runSearchFiles},
		{"create_directory", "Creates a new directory.", &CreateDirectoryArgs{}, r.runCreateDirectory},
		{"get_file_info", "Returns detailed information about a file or directory.", &GetFileInfoArgs{}, r.runGetFileInfo},
		{"move_file", "Moves or renames a file within the allowed directories.", &MoveFileArgs{}, r.runMoveFile},
		{"execute_shell_command", "Executes the given shell command and returns its standard output and standard error. Use with caution.", &ShellCommandArgs{}, r.runShellCommand},
		{"run_lint", "Runs the configured lint command and reports its output.", &RunCheckArgs{}, r.runCheckTool(CheckLint)},
		{"run_format", "Runs the configured format command and reports its output.", &RunCheckArgs{}, r.runCheckTool(CheckFormat)},
		{"run_test", "Runs the configured test command and reports its output.", &RunCheckArgs{}, r.runCheckTool(CheckTest)},
		{"finish", "Marks the task as complete. Call this when the work is done and pass a summary of what was changed.", &FinishArgs{}, r.runFinish},
	}
	for _, s := range specs {
		params, err := parameterSchema(s.args)
		if err != nil {
			return nil, fmt.Errorf("tool %s: %w", s.name, err)
		}
		r.tools[s.name] = &toolSpec{
			def: llm.ToolDefinition{
				Type: "function",
				Function: llm.FunctionDefinition{
					Name:        s.name,
					Description: s.description,
					Parameters:  params,
				},
			},
			run: s.run,
		}
		r.order = append(r.order, s.name)
	}
	return r, nil
}

// Definitions returns the tool definitions in registration order, ready to
// attach to a chat request.
func (r *Registry) Definitions() []llm.ToolDefinition {
	defs := make([]llm.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].def)
	}
	return defs
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Checks exposes the check runner behind the registry.
func (r *Registry) Checks() *CheckRunner {
	return r.checks
}

// Dispatch executes one tool call and renders its outcome. Failures become
// error results for the conversation; nothing here is fatal to the run.
func (r *Registry) Dispatch(ctx context.Context, call llm.ToolCall) ToolResult {
	name := call.Function.Name
	res := ToolResult{Name: name, CallID: call.ID}

	spec, ok := r.tools[name]
	if !ok {
		r.logger.Warn("unknown tool requested", zap.String("tool", name))
		res.IsError = true
		res.Output = fmt.Sprintf("Error: tool '%s' not found or not executable", name)
		return res
	}

	start := time.Now()
	inv, err := spec.run(ctx, call.Function.Arguments)
	res.Paths = inv.paths
	res.Mutated = inv.mutated
	res.Checks = inv.checks
	res.Finished = inv.finished
	res.Summary = inv.summary

	if err != nil {
		res.IsError = true
		var argErr *argError
		var denied *DeniedError
		switch {
		case errors.As(err, &argErr):
			res.Output = fmt.Sprintf("Error: invalid arguments for tool '%s': %v", name, argErr.err)
		case errors.As(err, &denied):
			res.Output = "Error: " + denied.Error()
		default:
			res.Output = fmt.Sprintf("Error: an error occurred while executing tool '%s': %v", name, err)
		}
	} else {
		res.Output = inv.output
	}
	res.Output, res.Truncated = TruncateOutput(res.Output, r.maxOutput)

	r.logger.Debug("tool executed",
		zap.String("tool", name),
		zap.String("call_id", call.ID),
		zap.Bool("is_error", res.IsError),
		zap.Int("result_length", len(res.Output)),
		zap.Duration("duration", time.Since(start)),
	)
	return res
}

// argError marks a tool-argument decode or validation failure.
type argError struct {
	err error
}

func (e *argError) Error() string { return e.err.Error() }

func decodeArgs(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return &argError{err: err}
	}
	return nil
}

// ReadFileArgs are the arguments of the read_file tool.
type ReadFileArgs struct {
	Path string `json:"path" jsonschema:"description=Path of the file to read"`
}

// WriteFileArgs are the arguments of the write_file tool.
type WriteFileArgs struct {
	Path    string `json:"path" jsonschema:"description=Destination file path"`
	Content string `json:"content" jsonschema:"description=Content to write to the file"`
}

// EditFileArgs are the arguments of the edit_file tool.
type EditFileArgs struct {
	Path   string          `json:"path" jsonschema:"description=Path of the file to edit"`
	Edits  []EditOperation `json:"edits" jsonschema:"description=List of edits to apply in order"`
	DryRun bool            `json:"dryRun,omitempty" jsonschema:"description=If true only the diff is returned and nothing is written"`
}

// ListDirectoryArgs are the arguments of the list_directory tool.
type ListDirectoryArgs struct {
	Path string `json:"path" jsonschema:"description=Path of the directory to list"`
}

// DirectoryTreeArgs are the arguments of the directory_tree tool.
type DirectoryTreeArgs struct {
	Path string `json:"path" jsonschema:"description=Root directory of the tree"`
}

// SearchFilesArgs are the arguments of the search_files tool.
type SearchFilesArgs struct {
	Path            string   `json:"path" jsonschema:"description=Directory to start the search from"`
	Pattern         string   `json:"pattern" jsonschema:"description=Case-insensitive name pattern to look for"`
	ExcludePatterns []string `json:"excludePatterns,omitempty" jsonschema:"description=Glob patterns to exclude"`
}

// CreateDirectoryArgs are the arguments of the create_directory tool.
type CreateDirectoryArgs struct {
	Path string `json:"path" jsonschema:"description=Path of the directory to create"`
}

// GetFileInfoArgs are the arguments of the get_file_info tool.
type GetFileInfoArgs struct {
	Path string `json:"path" jsonschema:"description=Path of the file or directory to inspect"`
}

// MoveFileArgs are the arguments of the move_file tool.
type MoveFileArgs struct {
	Source      string `json:"source" jsonschema:"description=Path to move from"`
	Destination string `json:"destination" jsonschema:"description=Path to move to"`
}

// ShellCommandArgs are the arguments of the execute_shell_command tool.
type ShellCommandArgs struct {
	Command   string `json:"command" jsonschema:"description=Full shell command line to execute"`
	Timeout   int    `json:"timeout,omitempty" jsonschema:"description=Seconds before the command is killed,default=60"`
	Workspace string `json:"workspace,omitempty" jsonschema:"description=Directory to run the command in. Defaults to the current directory."`
}

// RunCheckArgs are the arguments of the run_lint/run_format/run_test tools.
type RunCheckArgs struct {
	Directory string `json:"directory,omitempty" jsonschema:"description=Directory whose configured command should run. Defaults to every configured scope."`
}

// FinishArgs are the arguments of the finish tool.
type FinishArgs struct {
	Summary string `json:"summary" jsonschema:"description=Summary of what was done and the result"`
}

func (r *Registry) runReadFile(_ context.Context, raw json.RawMessage) (invocation, error) {
	var args ReadFileArgs
	if err := decodeArgs(raw, &args); err != nil {
		return invocation{}, err
	}
	out, err := r.fs.ReadFile(args.Path)
	if err != nil {
		return invocation{}, err
	}
	return invocation{output: out}, nil
}

func (r *Registry) runWriteFile(_ context.Context, raw json.RawMessage) (invocation, error) {
	var args WriteFileArgs
	if err := decodeArgs(raw, &args); err != nil {
		return invocation{}, err
	}
	resolved, err := r.guard.Authorize(args.Path)
	if err != nil {
		return invocation{}, err
	}
	out, err := r.fs.WriteFile(args.Path, args.Content)
	if err != nil {
		return invocation{}, err
	}
	return invocation{output: out, paths: []string{resolved}, mutated: true}, nil
}

func (r *Registry) runEditFile(_ context.Context, raw json.RawMessage) (invocation, error) {
	var args EditFileArgs
	if err := decodeArgs(raw, &args); err != nil {
		return invocation{}, err
	}
	resolved, err := r.guard.Authorize(args.Path)
	if err != nil {
		return invocation{}, err
	}
	out, err := r.fs.EditFile(args.Path, args.Edits, args.DryRun)
	if err != nil {
		return invocation{}, err
	}
	inv := invocation{output: out}
	if !args.DryRun {
		inv.paths = []string{resolved}
		inv.mutated = true
	}
	return inv, nil
}

func (r *Registry) runListDirectory(_ context.Context, raw json.RawMessage) (invocation, error) {
	var args ListDirectoryArgs
	if err := decodeArgs(raw, &args); err != nil {
		return invocation{}, err
	}
	out, err := r.fs.ListDirectory(args.Path)
	if err != nil {
		return invocation{}, err
	}
	return invocation{output: out}, nil
}

func (r *Registry) runDirectoryTree(_ context.Context, raw json.RawMessage) (invocation, error) {
	var args DirectoryTreeArgs
	if err := decodeArgs(raw, &args); err != nil {
		return invocation{}, err
	}
	out, err := r.fs.DirectoryTree(args.Path)
	if err != nil {
		return invocation{}, err
	}
	return invocation{output: out}, nil
}

func (r *Registry) runSearchFiles(_ context.Context, raw json.RawMessage) (invocation, error) {
	var args SearchFilesArgs
	if err := decodeArgs(raw, &args); err != nil {
		return invocation{}, err
	}
	out, err := r.fs.SearchFiles(args.Path, args.Pattern, args.ExcludePatterns)
	if err != nil {
		return invocation{}, err
	}
	return invocation{output: out}, nil
}

func (r *Registry) runCreateDirectory(_ context.Context, raw json.RawMessage) (invocation, error) {
	var args CreateDirectoryArgs
	if err := decodeArgs(raw, &args); err != nil {
		return invocation{}, err
	}
	resolved, err := r.guard.Authorize(args.Path)
	if err != nil {
		return invocation{}, err
	}
	out, err := r.fs.CreateDirectory(args.Path)
	if err != nil {
		return invocation{}, err
	}
	return invocation{output: out, paths: []string{resolved}, mutated: true}, nil
}

func (r *Registry) runGetFileInfo(_ context.Context, raw json.RawMessage) (invocation, error) {
	var args GetFileInfoArgs
	if err := decodeArgs(raw, &args); err != nil {
		return invocation{}, err
	}
	out, err := r.fs.GetFileInfo(args.Path)
	if err != nil {
		return invocation{}, err
	}
	return invocation{output: out}, nil
}

func (r *Registry) runMoveFile(_ context.Context, raw json.RawMessage) (invocation, error) {
	var args MoveFileArgs
	if err := decodeArgs(raw, &args); err != nil {
		return invocation{}, err
	}
	src, err := r.guard.Authorize(args.Source)
	if err != nil {
		return invocation{}, err
	}
	dst, err := r.guard.Authorize(args.Destination)
	if err != nil {
		return invocation{}, err
	}
	out, err := r.fs.MoveFile(args.Source, args.Destination)
	if err != nil {
		return invocation{}, err
	}
	return invocation{output: out, paths: []string{src, dst}, mutated: true}, nil
}

func (r *Registry) runShellCommand(ctx context.Context, raw json.RawMessage) (invocation, error) {
	var args ShellCommandArgs
	if err := decodeArgs(raw, &args); err != nil {
		return invocation{}, err
	}

	workspace := ""
	var paths []string
	if args.Workspace != "" {
		resolved, err := r.guard.Authorize(args.Workspace)
		if err != nil {
			return invocation{}, err
		}
		workspace = resolved
		paths = []string{resolved}
	}

	timeout := time.Duration(args.Timeout) * time.Second
	res, err := r.executor.Run(ctx, args.Command, workspace, timeout)
	if err != nil {
		return invocation{paths: paths, mutated: true}, err
	}
	if res.TimedOut {
		seconds := args.Timeout
		if seconds <= 0 {
			seconds = int(r.executor.DefaultTimeout / time.Second)
		}
		if seconds <= 0 {
			seconds = 60
		}
		return invocation{
			output:  fmt.Sprintf("Command '%s' timed out after %d seconds.", args.Command, seconds),
			paths:   paths,
			mutated: true,
		}, nil
	}
	return invocation{output: FormatExecResult(res), paths: paths, mutated: true}, nil
}

func (r *Registry) runCheckTool(kind CheckKind) handlerFunc {
	return func(ctx context.Context, raw json.RawMessage) (invocation, error) {
		var args RunCheckArgs
		if err := decodeArgs(raw, &args); err != nil {
			return invocation{}, err
		}

		dir := ""
		var paths []string
		if args.Directory != "" {
			resolved, err := r.guard.Authorize(args.Directory)
			if err != nil {
				return invocation{}, err
			}
			dir = resolved
			paths = []string{resolved}
		}

		cmds := r.checks.CommandsFor(kind, dir)
		if len(cmds) == 0 {
			return invocation{output: fmt.Sprintf("No %s command is configured.", kind), paths: paths}, nil
		}
		outcomes := r.checks.RunAll(ctx, cmds)
		return invocation{output: FormatCheckOutcomes(outcomes), paths: paths, checks: outcomes}, nil
	}
}

func (r *Registry) runFinish(_ context.Context, raw json.RawMessage) (invocation, error) {
	var args FinishArgs
	if err := decodeArgs(raw, &args); err != nil {
		return invocation{}, err
	}
	summary := strings.TrimSpace(args.Summary)
	if summary == "" {
		summary = "Task is complete, but no summary was provided."
	}
	return invocation{output: "Task marked complete.", finished: true, summary: summary}, nil
}
