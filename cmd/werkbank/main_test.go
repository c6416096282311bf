package main

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/codefionn/werkbank/internal/approval"
	"github.com/codefionn/werkbank/internal/editor"
	"github.com/codefionn/werkbank/internal/shell"
	"github.com/codefionn/werkbank/internal/workspace"
)

func newTestBackend(t *testing.T) (*editor.Editor, *shell.Executor, string) {
	t.Helper()
	root := t.TempDir()
	ws, err := workspace.New(root)
	if err != nil {
		t.Fatalf("workspace: %v", err)
	}
	ed := editor.New(ws, approval.NewTracker(), approval.StaticGate{Allow: false}, editor.Options{AutoApprove: true})
	rewriter := &shell.Rewriter{ForceNonInteractive: true, ReactCompiler: "no"}
	executor := shell.NewExecutor(ws.Root(), rewriter, shell.ExecutorOptions{})
	return ed, executor, ws.Root()
}

func runCalls(t *testing.T, lines string) []reply {
	t.Helper()
	ed, executor, _ := newTestBackend(t)

	var out strings.Builder
	if err := serve(context.Background(), strings.NewReader(lines), &out, ed, executor); err != nil {
		t.Fatalf("serve failed: %v", err)
	}

	var replies []reply
	scanner := bufio.NewScanner(strings.NewReader(out.String()))
	for scanner.Scan() {
		var r reply
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
			t.Fatalf("bad reply line %q: %v", scanner.Text(), err)
		}
		replies = append(replies, r)
	}
	return replies
}

func TestServeApplyPatchAndShell(t *testing.T) {
	ed, executor, root := newTestBackend(t)

	calls := `{"id":1,"type":"apply_patch","operation":{"kind":"create","path":"hello.txt","diff":"@@ -0,0 +1,1 @@\n+hi\n"}}
{"id":2,"type":"shell","shell":{"commands":[{"command":"cat hello.txt"}]}}
`
	var out strings.Builder
	if err := serve(context.Background(), strings.NewReader(calls), &out, ed, executor); err != nil {
		t.Fatalf("serve failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 replies, got %d", len(lines))
	}

	var first reply
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil || !first.OK {
		t.Fatalf("apply_patch reply: %s (%v)", lines[0], err)
	}
	if data, err := os.ReadFile(filepath.Join(root, "hello.txt")); err != nil || string(data) != "hi" {
		t.Errorf("file not created: %q %v", data, err)
	}

	if !strings.Contains(lines[1], `"ok":true`) || !strings.Contains(lines[1], "hi") {
		t.Errorf("shell reply missing output: %s", lines[1])
	}
}

func TestServeRejectsMalformedCalls(t *testing.T) {
	replies := runCalls(t, "this is not json\n{\"id\":7,\"type\":\"nonsense\"}\n")
	if len(replies) != 2 {
		t.Fatalf("expected 2 replies, got %d", len(replies))
	}
	if replies[0].OK || replies[0].Error == "" {
		t.Errorf("malformed line should produce an error reply: %+v", replies[0])
	}
	if replies[1].OK || !strings.Contains(replies[1].Error, "unknown call type") {
		t.Errorf("unknown type should produce an error reply: %+v", replies[1])
	}
	if replies[1].ID != 7 {
		t.Errorf("reply should carry the call id, got %d", replies[1].ID)
	}
}

func TestServeMissingPayloads(t *testing.T) {
	replies := runCalls(t, `{"id":1,"type":"apply_patch"}`+"\n"+`{"id":2,"type":"shell"}`+"\n")
	for _, r := range replies {
		if r.OK || r.Error == "" {
			t.Errorf("missing payload should fail: %+v", r)
		}
	}
}

func TestParseArgs(t *testing.T) {
	opts, err := parseArgs([]string{"-root", "/srv/work", "-auto-approve", "-gate", "http", "-timeout", "30"})
	if err != nil {
		t.Fatalf("parseArgs failed: %v", err)
	}
	if opts.root != "/srv/work" || !opts.autoApprove || opts.gateMode != "http" || opts.timeoutSecs != 30 {
		t.Errorf("unexpected options: %+v", opts)
	}
}
