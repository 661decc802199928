package tools

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DeniedError reports a path that falls outside every allowed directory.
type DeniedError struct {
	Path    string
	Allowed []string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("access denied - path outside allowed directories: %s not in %s",
		e.Path, strings.Join(e.Allowed, ", "))
}

// Guard validates that filesystem operations stay inside a set of allowed
// directories. Symlinks are followed to their real targets so a link that
// points outside the allowed set is rejected even when the link itself
// lives inside it.
type Guard struct {
	dirs []string
}

// NewGuard constructs a guard for the given directories. Each directory is
// expanded, absolutized and resolved through symlinks. An empty list
// defaults to the current working directory.
func NewGuard(dirs []string) (*Guard, error) {
	if len(dirs) == 0 {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		dirs = []string{wd}
	}

	out := make([]string, 0, len(dirs))
	for _, d := range dirs {
		abs, err := normalizePath(d)
		if err != nil {
			return nil, fmt.Errorf("allowed directory %q: %w", d, err)
		}
		if real, err := filepath.EvalSymlinks(abs); err == nil {
			abs = real
		}
		out = append(out, abs)
	}
	return &Guard{dirs: out}, nil
}

// Dirs returns the normalized allowed directories.
func (g *Guard) Dirs() []string {
	out := make([]string, len(g.dirs))
	copy(out, g.dirs)
	return out
}

// Authorize validates requested against the allowed directories and returns
// the resolved absolute path. Paths that do not exist yet are resolved
// through their nearest existing ancestor so new files and directories can
// be created without a symlinked parent smuggling the write outside the
// allowed set.
func (g *Guard) Authorize(requested string) (string, error) {
	if strings.TrimSpace(requested) == "" {
		return "", fmt.Errorf("path is required")
	}
	abs, err := normalizePath(requested)
	if err != nil {
		return "", err
	}
	if !g.contains(abs) {
		return "", &DeniedError{Path: abs, Allowed: g.Dirs()}
	}

	real, err := filepath.EvalSymlinks(abs)
	if err == nil {
		if !g.contains(real) {
			return "", &DeniedError{Path: real, Allowed: g.Dirs()}
		}
		return real, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}

	// Walk up to the nearest existing ancestor, resolve it, then
	// re-attach the missing remainder.
	dir, rest := filepath.Dir(abs), filepath.Base(abs)
	for {
		real, err = filepath.EvalSymlinks(dir)
		if err == nil {
			break
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", &DeniedError{Path: abs, Allowed: g.Dirs()}
		}
		rest = filepath.Join(filepath.Base(dir), rest)
		dir = parent
	}
	if !g.contains(real) {
		return "", &DeniedError{Path: abs, Allowed: g.Dirs()}
	}
	return filepath.Join(real, rest), nil
}

// ContainingDir returns the allowed directory that holds path.
func (g *Guard) ContainingDir(path string) (string, bool) {
	for _, dir := range g.dirs {
		if pathWithin(path, dir) {
			return dir, true
		}
	}
	return "", false
}

func (g *Guard) contains(path string) bool {
	_, ok := g.ContainingDir(path)
	return ok
}

// pathWithin reports whether path equals dir or sits beneath it. The
// separator check keeps "/ws-evil" from matching a "/ws" prefix.
func pathWithin(path, dir string) bool {
	return path == dir || strings.HasPrefix(path, dir+string(os.PathSeparator))
}

func normalizePath(p string) (string, error) {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			p = filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	return filepath.Clean(abs), nil
}
