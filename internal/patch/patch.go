// Package patch applies unified diffs to file content. Application is
// strict: every context and deletion line must match the original text
// exactly, otherwise the whole operation fails and the caller keeps the
// original untouched.
package patch

import (
	"fmt"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

// ApplyError reports a diff that could not be applied to the given content.
type ApplyError struct {
	Hunk   int    // 1-based hunk index
	Line   int    // 1-based line number in the original, 0 when unknown
	Reason string
}

func (e *ApplyError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("hunk %d: %s (original line %d)", e.Hunk, e.Reason, e.Line)
	}
	return fmt.Sprintf("hunk %d: %s", e.Hunk, e.Reason)
}

// Apply applies a unified diff to original and returns the new content.
// Missing ---/+++ file headers are tolerated since many diff producers
// emit bare hunks.
func Apply(original, diffText string) (string, error) {
	if !strings.HasPrefix(diffText, "---") && !strings.HasPrefix(diffText, "diff ") {
		diffText = "--- a/file\n+++ b/file\n" + diffText
	}

	fileDiff, err := diff.ParseFileDiff([]byte(diffText))
	if err != nil {
		return "", fmt.Errorf("parse unified diff: %w", err)
	}
	if len(fileDiff.Hunks) == 0 {
		return "", &ApplyError{Hunk: 0, Reason: "diff contains no hunks"}
	}

	originalLines := strings.Split(original, "\n")
	result := make([]string, 0, len(originalLines))
	cursor := 0

	for i, hunk := range fileDiff.Hunks {
		hunkStart := int(hunk.OrigStartLine) - 1
		if hunkStart < cursor {
			return "", &ApplyError{Hunk: i + 1, Reason: "hunks overlap or are out of order"}
		}
		if hunkStart > len(originalLines) {
			return "", &ApplyError{Hunk: i + 1, Reason: "hunk starts past end of file"}
		}

		for cursor < hunkStart {
			result = append(result, originalLines[cursor])
			cursor++
		}

		for _, line := range hunkLines(hunk.Body) {
			// Diff producers routinely trim the lone space off a
			// context line for an empty original line, so an empty
			// body line is context for "".
			op, content := byte(' '), ""
			if len(line) > 0 {
				op, content = line[0], line[1:]
			}
			switch op {
			case ' ':
				if cursor >= len(originalLines) {
					return "", &ApplyError{Hunk: i + 1, Reason: "context extends past end of file"}
				}
				if originalLines[cursor] != content {
					return "", &ApplyError{Hunk: i + 1, Line: cursor + 1, Reason: fmt.Sprintf("context mismatch: have %q, diff expects %q", originalLines[cursor], content)}
				}
				result = append(result, originalLines[cursor])
				cursor++
			case '-':
				if cursor >= len(originalLines) {
					return "", &ApplyError{Hunk: i + 1, Reason: "deletion extends past end of file"}
				}
				if originalLines[cursor] != content {
					return "", &ApplyError{Hunk: i + 1, Line: cursor + 1, Reason: fmt.Sprintf("deletion mismatch: have %q, diff removes %q", originalLines[cursor], content)}
				}
				cursor++
			case '+':
				result = append(result, content)
			case '\\':
				// "\ No newline at end of file" marker
			default:
				return "", &ApplyError{Hunk: i + 1, Reason: fmt.Sprintf("unrecognized diff line %q", line)}
			}
		}
	}

	for cursor < len(originalLines) {
		result = append(result, originalLines[cursor])
		cursor++
	}

	return strings.Join(result, "\n"), nil
}

// hunkLines splits a hunk body into its lines. The body carries a
// trailing newline that is not a line of its own.
func hunkLines(body []byte) []string {
	return strings.Split(strings.TrimSuffix(string(body), "\n"), "\n")
}

// ApplyNew builds file content from a diff against an empty file. The
// diff may only add lines; any context or deletion means it was produced
// against some other base.
func ApplyNew(diffText string) (string, error) {
	if !strings.HasPrefix(diffText, "---") && !strings.HasPrefix(diffText, "diff ") {
		diffText = "--- /dev/null\n+++ b/file\n" + diffText
	}

	fileDiff, err := diff.ParseFileDiff([]byte(diffText))
	if err != nil {
		return "", fmt.Errorf("parse unified diff: %w", err)
	}
	if len(fileDiff.Hunks) == 0 {
		return "", &ApplyError{Hunk: 0, Reason: "diff contains no hunks"}
	}

	var result []string
	for i, hunk := range fileDiff.Hunks {
		for _, line := range hunkLines(hunk.Body) {
			if len(line) == 0 || line[0] != '+' {
				if len(line) > 0 && line[0] == '\\' {
					continue
				}
				return "", &ApplyError{Hunk: i + 1, Reason: "diff for a new file may only contain additions"}
			}
			result = append(result, line[1:])
		}
	}

	return strings.Join(result, "\n"), nil
}
