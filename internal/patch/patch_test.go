package patch

import (
	"errors"
	"strings"
	"testing"
)

func TestApplySimpleInsertion(t *testing.T) {
	original := "0\n1\n2\n3\n4\n5\n6\n7"
	diffText := `--- a/numbers.txt
+++ b/numbers.txt
@@ -3,6 +3,9 @@
 2
 3
 4
+inserted one
+inserted two
+inserted three
 5
 6
 7
`
	got, err := Apply(original, diffText)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	want := "0\n1\n2\n3\n4\ninserted one\ninserted two\ninserted three\n5\n6\n7"
	if got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestApplyReplacement(t *testing.T) {
	original := "package main\n\nimport (\n\t\"fmt\"\n\t\"invalid\"\n)"
	diffText := `@@ -2,5 +2,5 @@

 import (
 	"fmt"
-	"invalid"
+	"os"
 )
`
	got, err := Apply(original, diffText)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if !strings.Contains(got, "\"os\"") || strings.Contains(got, "invalid") {
		t.Errorf("replacement not applied:\n%s", got)
	}
}

func TestApplyBareEmptyContextLine(t *testing.T) {
	original := "first\n\nlast"
	// The context line for the blank original line has its leading
	// space trimmed, as many producers emit it.
	diffText := "@@ -1,3 +1,3 @@\n first\n\n-last\n+LAST\n"

	got, err := Apply(original, diffText)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if got != "first\n\nLAST" {
		t.Errorf("got %q", got)
	}
}

func TestApplyBareEmptyContextMismatch(t *testing.T) {
	// An empty context line still has to match an empty original line.
	diffText := "@@ -1,2 +1,2 @@\n\n-b\n+B\n"
	_, err := Apply("not empty\nb", diffText)
	var applyErr *ApplyError
	if !errors.As(err, &applyErr) {
		t.Fatalf("expected ApplyError, got %v", err)
	}
	if applyErr.Line != 1 {
		t.Errorf("wrong location: line=%d", applyErr.Line)
	}
}

func TestApplyNewRejectsBareEmptyLine(t *testing.T) {
	_, err := ApplyNew("@@ -0,0 +1,2 @@\n\n+added\n")
	var applyErr *ApplyError
	if !errors.As(err, &applyErr) {
		t.Fatalf("expected ApplyError, got %v", err)
	}
}

func TestApplyToleratesMissingHeaders(t *testing.T) {
	original := "a\nb\nc"
	diffText := "@@ -1,3 +1,3 @@\n a\n-b\n+B\n c\n"

	got, err := Apply(original, diffText)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if got != "a\nB\nc" {
		t.Errorf("got %q", got)
	}
}

func TestApplyContextMismatch(t *testing.T) {
	original := "alpha\nbeta\ngamma"
	diffText := `@@ -1,3 +1,3 @@
 alpha
-BETA
+delta
 gamma
`
	_, err := Apply(original, diffText)
	var applyErr *ApplyError
	if !errors.As(err, &applyErr) {
		t.Fatalf("expected ApplyError, got %v", err)
	}
	if applyErr.Hunk != 1 || applyErr.Line != 2 {
		t.Errorf("wrong location: hunk=%d line=%d", applyErr.Hunk, applyErr.Line)
	}
}

func TestApplyDeletionMismatch(t *testing.T) {
	diffText := "@@ -1,2 +1,1 @@\n keep\n-gone\n"
	_, err := Apply("keep\nstill here", diffText)
	var applyErr *ApplyError
	if !errors.As(err, &applyErr) {
		t.Fatalf("expected ApplyError, got %v", err)
	}
}

func TestApplyHunkPastEndOfFile(t *testing.T) {
	diffText := "@@ -10,1 +10,2 @@\n x\n+y\n"
	_, err := Apply("only\ntwo", diffText)
	var applyErr *ApplyError
	if !errors.As(err, &applyErr) {
		t.Fatalf("expected ApplyError, got %v", err)
	}
}

func TestApplyMultipleHunks(t *testing.T) {
	original := "1\n2\n3\n4\n5\n6\n7\n8\n9\n10"
	diffText := `@@ -1,3 +1,3 @@
 1
-2
+two
 3
@@ -8,3 +8,3 @@
 8
-9
+nine
 10
`
	got, err := Apply(original, diffText)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	want := "1\ntwo\n3\n4\n5\n6\n7\n8\nnine\n10"
	if got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestApplyEmptyDiff(t *testing.T) {
	if _, err := Apply("content", "--- a/f\n+++ b/f\n"); err == nil {
		t.Error("expected error for diff without hunks")
	}
	if _, err := Apply("content", "not a diff at all"); err == nil {
		t.Error("expected error for garbage input")
	}
}

func TestApplyNew(t *testing.T) {
	diffText := `--- /dev/null
+++ b/hello.txt
@@ -0,0 +1,3 @@
+line one
+line two
+line three
`
	got, err := ApplyNew(diffText)
	if err != nil {
		t.Fatalf("ApplyNew failed: %v", err)
	}
	if got != "line one\nline two\nline three" {
		t.Errorf("got %q", got)
	}
}

func TestApplyNewRejectsContext(t *testing.T) {
	diffText := "@@ -1,2 +1,3 @@\n existing\n+added\n"
	_, err := ApplyNew(diffText)
	var applyErr *ApplyError
	if !errors.As(err, &applyErr) {
		t.Fatalf("expected ApplyError, got %v", err)
	}
}
