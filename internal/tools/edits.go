package tools

import (
	"fmt"
	"os"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// EditOperation replaces one block of text with another.
type EditOperation struct {
	OldText string `json:"oldText" jsonschema:"description=Text to replace"`
	NewText string `json:"newText" jsonschema:"description=Replacement text"`
}

// EditFile applies edits to a file and returns a fenced unified diff of
// the change. With dryRun the diff is produced without writing. Edits
// apply in order and the whole batch fails if any edit does not match.
func (f *Filesystem) EditFile(p string, edits []EditOperation, dryRun bool) (string, error) {
	resolved, err := f.guard.Authorize(p)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return "", err
	}

	original := normalizeLineEndings(string(data))
	modified, err := applyEdits(original, edits)
	if err != nil {
		return "", err
	}

	diff, err := unifiedDiff(original, modified, p)
	if err != nil {
		return "", err
	}

	if !dryRun {
		if err := os.WriteFile(resolved, []byte(modified), 0o644); err != nil {
			return "", err
		}
	}
	return diff, nil
}

func normalizeLineEndings(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}

// applyEdits applies each edit to content. An exact substring match
// replaces every occurrence. Otherwise a window of lines compared with
// trimmed whitespace is located and replaced, keeping the indentation
// found in the file.
func applyEdits(content string, edits []EditOperation) (string, error) {
	modified := content
	for _, edit := range edits {
		oldText := normalizeLineEndings(edit.OldText)
		newText := normalizeLineEndings(edit.NewText)

		if strings.Contains(modified, oldText) {
			modified = strings.ReplaceAll(modified, oldText, newText)
			continue
		}

		replaced, ok := replaceFlexible(modified, oldText, newText)
		if !ok {
			return "", fmt.Errorf("could not find exact match for edit:\n%s", edit.OldText)
		}
		modified = replaced
	}
	return modified, nil
}

func replaceFlexible(content, oldText, newText string) (string, bool) {
	oldLines := strings.Split(oldText, "\n")
	contentLines := strings.Split(content, "\n")

	for i := 0; i+len(oldLines) <= len(contentLines); i++ {
		window := contentLines[i : i+len(oldLines)]
		if !windowMatches(oldLines, window) {
			continue
		}

		origIndent := leadingWhitespace(window[0])
		newLines := strings.Split(newText, "\n")
		out := make([]string, 0, len(newLines))
		for j, line := range newLines {
			if j == 0 {
				out = append(out, origIndent+trimIndent(line))
				continue
			}
			oldIndent := ""
			if j < len(oldLines) {
				oldIndent = leadingWhitespace(oldLines[j])
			}
			newIndent := leadingWhitespace(line)
			if oldIndent != "" && newIndent != "" {
				relative := len(newIndent) - len(oldIndent)
				if relative < 0 {
					relative = 0
				}
				out = append(out, origIndent+strings.Repeat(" ", relative)+trimIndent(line))
			} else {
				out = append(out, line)
			}
		}

		replaced := make([]string, 0, len(contentLines)-len(oldLines)+len(out))
		replaced = append(replaced, contentLines[:i]...)
		replaced = append(replaced, out...)
		replaced = append(replaced, contentLines[i+len(oldLines):]...)
		return strings.Join(replaced, "\n"), true
	}
	return "", false
}

func windowMatches(oldLines, window []string) bool {
	for k := range oldLines {
		if strings.TrimSpace(oldLines[k]) != strings.TrimSpace(window[k]) {
			return false
		}
	}
	return true
}

func leadingWhitespace(s string) string {
	return s[:len(s)-len(trimIndent(s))]
}

func trimIndent(s string) string {
	return strings.TrimLeft(s, " \t")
}

// unifiedDiff renders the change as a fenced diff block, widening the
// fence when the diff itself contains a backtick run.
func unifiedDiff(original, modified, path string) (string, error) {
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(original),
		B:        difflib.SplitLines(modified),
		FromFile: path + " (original)",
		ToFile:   path + " (modified)",
		Context:  3,
	})
	if err != nil {
		return "", err
	}
	diff = strings.TrimSuffix(diff, "\n")

	fence := "```"
	for strings.Contains(diff, fence) {
		fence += "`"
	}
	return fmt.Sprintf("%sdiff\n%s\n%s\n\n", fence, diff, fence), nil
}
