package tools

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	target := filepath.Join(dir, name)
	if err := os.WriteFile(target, []byte(content), 0o644); err != nil {
		t.Fatalf("write test file: %v", err)
	}
	return target
}

func TestEditFileExactMatch(t *testing.T) {
	dir := t.TempDir()
	fsTool := newTestFilesystem(t, dir)
	target := writeTestFile(t, dir, "f.go", "package main\n\nfunc old() {}\n")

	diff, err := fsTool.EditFile(target, []EditOperation{
		{OldText: "func old() {}", NewText: "func new() {}"},
	}, false)
	requireNoError(t, err)

	if !strings.Contains(diff, "-func old() {}") || !strings.Contains(diff, "+func new() {}") {
		t.Fatalf("unexpected diff:\n%s", diff)
	}
	if !strings.HasPrefix(diff, "```diff\n") {
		t.Fatalf("diff not fenced:\n%s", diff)
	}

	data, err := os.ReadFile(target)
	requireNoError(t, err)
	if !strings.Contains(string(data), "func new() {}") {
		t.Fatalf("edit not applied:\n%s", data)
	}
}

func TestEditFileReplacesAllOccurrences(t *testing.T) {
	dir := t.TempDir()
	fsTool := newTestFilesystem(t, dir)
	target := writeTestFile(t, dir, "f.txt", "foo bar foo\n")

	_, err := fsTool.EditFile(target, []EditOperation{
		{OldText: "foo", NewText: "qux"},
	}, false)
	requireNoError(t, err)

	data, err := os.ReadFile(target)
	requireNoError(t, err)
	if string(data) != "qux bar qux\n" {
		t.Fatalf("expected all occurrences replaced, got %q", data)
	}
}

func TestEditFileWhitespaceFallback(t *testing.T) {
	dir := t.TempDir()
	fsTool := newTestFilesystem(t, dir)
	target := writeTestFile(t, dir, "f.txt", "    hello world\n")

	// Tab indentation in oldText defeats the exact substring match, so
	// the trimmed line comparison has to find the window and keep the
	// file's own indentation.
	_, err := fsTool.EditFile(target, []EditOperation{
		{OldText: "\thello world", NewText: "\tgoodbye world"},
	}, false)
	requireNoError(t, err)

	data, err := os.ReadFile(target)
	requireNoError(t, err)
	if string(data) != "    goodbye world\n" {
		t.Fatalf("indentation not preserved: %q", data)
	}
}

func TestEditFileFallbackRelativeIndent(t *testing.T) {
	dir := t.TempDir()
	fsTool := newTestFilesystem(t, dir)
	target := writeTestFile(t, dir, "f.txt", "\tif x {\n\t\tdo()\n\t}\n")

	_, err := fsTool.EditFile(target, []EditOperation{
		{OldText: "if x {\n  do()\n}", NewText: "if y {\n    do()\n}"},
	}, false)
	requireNoError(t, err)

	data, err := os.ReadFile(target)
	requireNoError(t, err)
	// First line keeps the file's tab indent; the second keeps it plus
	// the two extra spaces newText added relative to oldText.
	if string(data) != "\tif y {\n\t  do()\n}\n" {
		t.Fatalf("unexpected fallback result: %q", data)
	}
}

func TestEditFileSequentialEdits(t *testing.T) {
	dir := t.TempDir()
	fsTool := newTestFilesystem(t, dir)
	target := writeTestFile(t, dir, "f.txt", "a\n")

	_, err := fsTool.EditFile(target, []EditOperation{
		{OldText: "a", NewText: "b"},
		{OldText: "b", NewText: "c"},
	}, false)
	requireNoError(t, err)

	data, err := os.ReadFile(target)
	requireNoError(t, err)
	if string(data) != "c\n" {
		t.Fatalf("expected sequential application, got %q", data)
	}
}

func TestEditFileNoMatchFailsAtomically(t *testing.T) {
	dir := t.TempDir()
	fsTool := newTestFilesystem(t, dir)
	target := writeTestFile(t, dir, "f.txt", "original\n")

	_, err := fsTool.EditFile(target, []EditOperation{
		{OldText: "original", NewText: "changed"},
		{OldText: "no such text", NewText: "x"},
	}, false)
	if err == nil || !strings.Contains(err.Error(), "could not find exact match") {
		t.Fatalf("expected no-match error, got %v", err)
	}

	// The first edit must not have been written.
	data, err := os.ReadFile(target)
	requireNoError(t, err)
	if string(data) != "original\n" {
		t.Fatalf("file modified despite failed batch: %q", data)
	}
}

func TestEditFileDryRun(t *testing.T) {
	dir := t.TempDir()
	fsTool := newTestFilesystem(t, dir)
	target := writeTestFile(t, dir, "f.txt", "before\n")

	diff, err := fsTool.EditFile(target, []EditOperation{
		{OldText: "before", NewText: "after"},
	}, true)
	requireNoError(t, err)
	if !strings.Contains(diff, "+after") {
		t.Fatalf("dry run produced no diff:\n%s", diff)
	}

	data, err := os.ReadFile(target)
	requireNoError(t, err)
	if string(data) != "before\n" {
		t.Fatalf("dry run wrote the file: %q", data)
	}
}

func TestEditFileNormalizesCRLF(t *testing.T) {
	dir := t.TempDir()
	fsTool := newTestFilesystem(t, dir)
	target := writeTestFile(t, dir, "f.txt", "one\r\ntwo\r\n")

	_, err := fsTool.EditFile(target, []EditOperation{
		{OldText: "one\ntwo", NewText: "three"},
	}, false)
	requireNoError(t, err)

	data, err := os.ReadFile(target)
	requireNoError(t, err)
	if string(data) != "three\n" {
		t.Fatalf("CRLF not normalized: %q", data)
	}
}

func TestEditFileWidensFence(t *testing.T) {
	dir := t.TempDir()
	fsTool := newTestFilesystem(t, dir)
	target := writeTestFile(t, dir, "f.md", "```\ncode\n```\n")

	diff, err := fsTool.EditFile(target, []EditOperation{
		{OldText: "code", NewText: "text"},
	}, true)
	requireNoError(t, err)
	if !strings.HasPrefix(diff, "````diff\n") {
		t.Fatalf("fence not widened:\n%s", diff)
	}
}
