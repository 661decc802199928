package tools

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// Filesystem provides sandboxed file operations. Every path is authorized
// through the guard before it is touched, including entries discovered
// while listing or searching.
type Filesystem struct {
	guard *Guard
}

// NewFilesystem builds a filesystem tool backed by guard.
func NewFilesystem(guard *Guard) *Filesystem {
	return &Filesystem{guard: guard}
}

// ReadFile returns the file contents as a string.
func (f *Filesystem) ReadFile(p string) (string, error) {
	resolved, err := f.guard.Authorize(p)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// WriteFile writes content to a file, creating parent directories as needed.
func (f *Filesystem) WriteFile(p, content string) (string, error) {
	resolved, err := f.guard.Authorize(p)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(resolved, []byte(content), 0o644); err != nil {
		return "", err
	}
	return fmt.Sprintf("Successfully wrote to '%s'.", p), nil
}

// ListDirectory renders the entries of a directory, one per line, with
// [DIR] and [FILE] prefixes. Entries the guard rejects are skipped.
func (f *Filesystem) ListDirectory(p string) (string, error) {
	resolved, err := f.guard.Authorize(p)
	if err != nil {
		return "", err
	}
	entries, err := os.ReadDir(resolved)
	if err != nil {
		return "", err
	}

	var formatted []string
	for _, entry := range entries {
		if _, err := f.guard.Authorize(filepath.Join(resolved, entry.Name())); err != nil {
			continue
		}
		if entry.IsDir() {
			formatted = append(formatted, "[DIR] "+entry.Name())
		} else {
			formatted = append(formatted, "[FILE] "+entry.Name())
		}
	}
	if len(formatted) == 0 {
		return "Directory is empty or contains no accessible files.", nil
	}
	return strings.Join(formatted, "\n"), nil
}

// TreeEntry is one node of a directory tree. Children is null for files
// and an array (possibly empty) for directories.
type TreeEntry struct {
	Name     string      `json:"name"`
	Type     string      `json:"type"`
	Children []TreeEntry `json:"children"`
}

// DirectoryTree renders a recursive JSON tree of the directory. Subtrees
// the guard rejects are skipped.
func (f *Filesystem) DirectoryTree(p string) (string, error) {
	resolved, err := f.guard.Authorize(p)
	if err != nil {
		return "", err
	}
	tree, err := f.buildTree(resolved)
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(tree, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (f *Filesystem) buildTree(dir string) ([]TreeEntry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	result := make([]TreeEntry, 0, len(entries))
	for _, entry := range entries {
		full := filepath.Join(dir, entry.Name())
		if _, err := f.guard.Authorize(full); err != nil {
			continue
		}

		node := TreeEntry{Name: entry.Name(), Type: "file"}
		if entry.IsDir() {
			node.Type = "directory"
			children, err := f.buildTree(full)
			if err != nil {
				continue
			}
			node.Children = children
			if node.Children == nil {
				node.Children = []TreeEntry{}
			}
		}
		result = append(result, node)
	}
	return result, nil
}

// SearchFiles recursively finds entries whose name contains pattern
// (case-insensitive) and renders the full paths, one per line. Exclude
// patterns are matched against the path relative to the search root;
// bare names exclude everything beneath a segment of that name.
func (f *Filesystem) SearchFiles(root, pattern string, excludePatterns []string) (string, error) {
	if pattern == "" {
		return "", fmt.Errorf("pattern is required")
	}
	resolved, err := f.guard.Authorize(root)
	if err != nil {
		return "", err
	}

	var results []string
	var search func(dir string) error
	search = func(dir string) error {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			full := filepath.Join(dir, entry.Name())
			if _, err := f.guard.Authorize(full); err != nil {
				continue
			}

			rel, err := filepath.Rel(resolved, full)
			if err != nil {
				continue
			}
			if matchesExclude(filepath.ToSlash(rel), excludePatterns) {
				continue
			}

			if strings.Contains(strings.ToLower(entry.Name()), strings.ToLower(pattern)) {
				results = append(results, full)
			}
			if entry.IsDir() {
				if err := search(full); err != nil {
					continue
				}
			}
		}
		return nil
	}
	if err := search(resolved); err != nil {
		return "", err
	}

	if len(results) == 0 {
		return "No matching files found.", nil
	}
	return strings.Join(results, "\n"), nil
}

// CreateDirectory creates a directory including missing parents.
func (f *Filesystem) CreateDirectory(p string) (string, error) {
	resolved, err := f.guard.Authorize(p)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(resolved, 0o755); err != nil {
		return "", err
	}
	return fmt.Sprintf("Successfully created directory '%s'.", p), nil
}

// GetFileInfo renders file metadata as key: value lines.
func (f *Filesystem) GetFileInfo(p string) (string, error) {
	resolved, err := f.guard.Authorize(p)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", err
	}

	lines := []string{
		fmt.Sprintf("size: %d", info.Size()),
		fmt.Sprintf("modified: %s", info.ModTime().Format(time.RFC3339)),
		fmt.Sprintf("isDirectory: %t", info.IsDir()),
		fmt.Sprintf("isFile: %t", info.Mode().IsRegular()),
		fmt.Sprintf("permissions: %03o", info.Mode().Perm()),
	}
	return strings.Join(lines, "\n"), nil
}

// MoveFile renames source to destination. Both ends must be authorized.
func (f *Filesystem) MoveFile(source, destination string) (string, error) {
	src, err := f.guard.Authorize(source)
	if err != nil {
		return "", err
	}
	dst, err := f.guard.Authorize(destination)
	if err != nil {
		return "", err
	}
	if err := os.Rename(src, dst); err != nil {
		return "", err
	}
	return fmt.Sprintf("Successfully moved '%s' to '%s'.", source, destination), nil
}

// matchesExclude reports whether rel matches any exclude pattern. Patterns
// containing a wildcard are used as path globs where "*" stays within one
// segment and "**" spans segments; bare names match any non-final segment.
func matchesExclude(rel string, patterns []string) bool {
	for _, p := range patterns {
		if p == "" {
			continue
		}
		if strings.Contains(p, "*") {
			if globMatch(p, rel) {
				return true
			}
			continue
		}
		segs := strings.Split(rel, "/")
		for i := 0; i < len(segs)-1; i++ {
			if segs[i] == p {
				return true
			}
		}
	}
	return false
}

func globMatch(pattern, rel string) bool {
	return matchSegments(strings.Split(pattern, "/"), strings.Split(rel, "/"))
}

func matchSegments(pat, segs []string) bool {
	if len(pat) == 0 {
		return len(segs) == 0
	}
	if pat[0] == "**" {
		// A trailing "**" needs at least one remaining segment.
		if len(pat) == 1 {
			return len(segs) > 0
		}
		if matchSegments(pat[1:], segs) {
			return true
		}
		return len(segs) > 0 && matchSegments(pat, segs[1:])
	}
	if len(segs) == 0 {
		return false
	}
	ok, err := path.Match(pat[0], segs[0])
	if err != nil || !ok {
		return false
	}
	return matchSegments(pat[1:], segs[1:])
}
