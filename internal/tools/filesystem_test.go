package tools

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestFilesystem(t *testing.T, dir string) *Filesystem {
	t.Helper()
	guard, err := NewGuard([]string{dir})
	if err != nil {
		t.Fatalf("new guard: %v", err)
	}
	return NewFilesystem(guard)
}

func TestFilesystemReadWrite(t *testing.T) {
	dir := t.TempDir()
	fsTool := newTestFilesystem(t, dir)

	target := filepath.Join(dir, "sub", "file.txt")
	msg, err := fsTool.WriteFile(target, "hello")
	requireNoError(t, err)
	if !strings.Contains(msg, "Successfully wrote to") {
		t.Fatalf("unexpected message: %q", msg)
	}

	content, err := fsTool.ReadFile(target)
	requireNoError(t, err)
	if content != "hello" {
		t.Fatalf("expected hello, got %s", content)
	}
}

func TestFilesystemDeniedOutside(t *testing.T) {
	fsTool := newTestFilesystem(t, t.TempDir())

	_, err := fsTool.ReadFile("/etc/passwd")
	var denied *DeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("expected DeniedError, got %v", err)
	}
}

func TestFilesystemListDirectory(t *testing.T) {
	dir := t.TempDir()
	fsTool := newTestFilesystem(t, dir)

	requireNoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644))
	requireNoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	out, err := fsTool.ListDirectory(dir)
	requireNoError(t, err)
	if !strings.Contains(out, "[FILE] a.txt") || !strings.Contains(out, "[DIR] sub") {
		t.Fatalf("unexpected listing:\n%s", out)
	}

	empty, err := fsTool.ListDirectory(filepath.Join(dir, "sub"))
	requireNoError(t, err)
	if !strings.Contains(empty, "empty") {
		t.Fatalf("unexpected empty listing: %q", empty)
	}
}

func TestFilesystemDirectoryTree(t *testing.T) {
	dir := t.TempDir()
	fsTool := newTestFilesystem(t, dir)

	requireNoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	requireNoError(t, os.WriteFile(filepath.Join(dir, "sub", "inner.txt"), []byte("x"), 0o644))
	requireNoError(t, os.WriteFile(filepath.Join(dir, "top.txt"), []byte("x"), 0o644))

	out, err := fsTool.DirectoryTree(dir)
	requireNoError(t, err)

	var tree []TreeEntry
	requireNoError(t, json.Unmarshal([]byte(out), &tree))
	if len(tree) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(tree))
	}

	byName := map[string]TreeEntry{}
	for _, e := range tree {
		byName[e.Name] = e
	}
	sub := byName["sub"]
	if sub.Type != "directory" || len(sub.Children) != 1 || sub.Children[0].Name != "inner.txt" {
		t.Fatalf("unexpected sub entry: %+v", sub)
	}
	top := byName["top.txt"]
	if top.Type != "file" || top.Children != nil {
		t.Fatalf("unexpected top entry: %+v", top)
	}
}

func TestFilesystemSearchFiles(t *testing.T) {
	dir := t.TempDir()
	fsTool := newTestFilesystem(t, dir)

	requireNoError(t, os.WriteFile(filepath.Join(dir, "alpha.txt"), []byte("x"), 0o644))
	requireNoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	requireNoError(t, os.WriteFile(filepath.Join(dir, "sub", "ALPHA.md"), []byte("x"), 0o644))
	requireNoError(t, os.WriteFile(filepath.Join(dir, "sub", "beta.txt"), []byte("x"), 0o644))

	out, err := fsTool.SearchFiles(dir, "alpha", nil)
	requireNoError(t, err)
	if !strings.Contains(out, "alpha.txt") || !strings.Contains(out, "ALPHA.md") {
		t.Fatalf("case-insensitive search failed:\n%s", out)
	}

	out, err = fsTool.SearchFiles(dir, "alpha", []string{"sub"})
	requireNoError(t, err)
	if strings.Contains(out, "ALPHA.md") {
		t.Fatalf("exclude pattern not applied:\n%s", out)
	}

	out, err = fsTool.SearchFiles(dir, "nothing-here", nil)
	requireNoError(t, err)
	if out != "No matching files found." {
		t.Fatalf("unexpected no-match message: %q", out)
	}
}

func TestFilesystemCreateDirectory(t *testing.T) {
	dir := t.TempDir()
	fsTool := newTestFilesystem(t, dir)

	target := filepath.Join(dir, "a", "b", "c")
	msg, err := fsTool.CreateDirectory(target)
	requireNoError(t, err)
	if !strings.Contains(msg, "Successfully created directory") {
		t.Fatalf("unexpected message: %q", msg)
	}

	info, err := os.Stat(target)
	requireNoError(t, err)
	if !info.IsDir() {
		t.Fatalf("expected directory at %s", target)
	}
}

func TestFilesystemGetFileInfo(t *testing.T) {
	dir := t.TempDir()
	fsTool := newTestFilesystem(t, dir)

	target := filepath.Join(dir, "f.txt")
	requireNoError(t, os.WriteFile(target, []byte("hello"), 0o644))

	out, err := fsTool.GetFileInfo(target)
	requireNoError(t, err)
	for _, want := range []string{"size: 5", "isDirectory: false", "isFile: true", "permissions: 644"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestFilesystemMoveFile(t *testing.T) {
	dir := t.TempDir()
	fsTool := newTestFilesystem(t, dir)

	src := filepath.Join(dir, "old.txt")
	dst := filepath.Join(dir, "new.txt")
	requireNoError(t, os.WriteFile(src, []byte("x"), 0o644))

	_, err := fsTool.MoveFile(src, dst)
	requireNoError(t, err)
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatalf("source still exists")
	}
	if _, err := os.Stat(dst); err != nil {
		t.Fatalf("destination missing: %v", err)
	}

	if _, err := fsTool.MoveFile(dst, "/tmp/escape.txt"); err == nil {
		t.Fatalf("expected destination outside allowed dirs to be denied")
	}
}

func TestMatchesExclude(t *testing.T) {
	cases := []struct {
		rel      string
		patterns []string
		want     bool
	}{
		{"node_modules/pkg/index.js", []string{"node_modules"}, true},
		{"node_modules", []string{"node_modules"}, false},
		{"src/app.js", []string{"node_modules"}, false},
		{"x.log", []string{"*.log"}, true},
		{"sub/x.log", []string{"*.log"}, false},
		{"sub/x.log", []string{"**/*.log"}, true},
		{"deep/sub/x.log", []string{"**/*.log"}, true},
		{"sub/x.txt", []string{"**/*.log"}, false},
	}
	for _, tc := range cases {
		if got := matchesExclude(tc.rel, tc.patterns); got != tc.want {
			t.Fatalf("matchesExclude(%q, %v) = %v, want %v", tc.rel, tc.patterns, got, tc.want)
		}
	}
}

func requireNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
