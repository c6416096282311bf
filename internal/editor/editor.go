// Package editor performs gated file mutations inside a workspace. Every
// create, update, and delete goes through path containment, an approval
// decision, and the audit journal, in that order. No byte is written
// before the operation is approved.
package editor

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/codefionn/werkbank/internal/approval"
	"github.com/codefionn/werkbank/internal/audit"
	"github.com/codefionn/werkbank/internal/logger"
	"github.com/codefionn/werkbank/internal/patch"
	"github.com/codefionn/werkbank/internal/workspace"
)

// NotFoundError reports an update against a file that does not exist.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("file %q does not exist", e.Path)
}

// Operation is one requested file mutation. Diff carries a unified diff:
// additions only for creates, a regular diff for updates. A delete does
// not apply its diff, but the diff is still part of the operation's
// approval identity, so a delete arriving with a different diff payload
// is gated again.
type Operation struct {
	Kind approval.Kind `json:"kind"`
	Path string        `json:"path"`
	Diff string        `json:"diff,omitempty"`
}

// Result reports a completed operation.
type Result struct {
	Path   string `json:"path"` // workspace-relative
	Output string `json:"output"`
}

// Editor applies operations to a workspace behind an approval gate.
type Editor struct {
	ws          *workspace.Workspace
	tracker     *approval.Tracker
	gate        approval.Gate
	journal     *audit.Journal
	autoApprove bool
	gateTimeout time.Duration
	log         *logger.Logger
}

// Options configures an Editor beyond its required collaborators.
type Options struct {
	AutoApprove bool
	// GateTimeout bounds how long a single approval decision may take.
	// Zero means wait indefinitely.
	GateTimeout time.Duration
	Journal     *audit.Journal
}

func New(ws *workspace.Workspace, tracker *approval.Tracker, gate approval.Gate, opts Options) *Editor {
	return &Editor{
		ws:          ws,
		tracker:     tracker,
		gate:        gate,
		journal:     opts.Journal,
		autoApprove: opts.AutoApprove,
		gateTimeout: opts.GateTimeout,
		log:         logger.Global().WithPrefix("editor"),
	}
}

// Apply dispatches an operation to the matching handler.
func (e *Editor) Apply(ctx context.Context, op Operation) (Result, error) {
	switch op.Kind {
	case approval.KindCreate:
		return e.Create(ctx, op.Path, op.Diff)
	case approval.KindUpdate:
		return e.Update(ctx, op.Path, op.Diff)
	case approval.KindDelete:
		return e.Delete(ctx, op.Path, op.Diff)
	default:
		return Result{}, fmt.Errorf("unknown operation kind %q", op.Kind)
	}
}

// Create writes a new file whose content is given as an additions-only
// diff. Parent directories are created as needed, after approval.
func (e *Editor) Create(ctx context.Context, path, diff string) (Result, error) {
	abs, rel, err := e.locate(path)
	if err != nil {
		return Result{}, err
	}

	// Validate the diff before asking anyone to approve it.
	content, err := patch.ApplyNew(diff)
	if err != nil {
		return Result{}, err
	}

	decision, err := e.requireApproval(ctx, approval.KindCreate, rel, diff)
	if err != nil {
		return Result{}, err
	}

	if err := e.ws.EnsureParent(abs); err != nil {
		return Result{}, fmt.Errorf("create parent directory: %w", err)
	}
	if err := os.WriteFile(abs, []byte(content), 0644); err != nil {
		return Result{}, fmt.Errorf("write file: %w", err)
	}

	e.log.Info("created %s (%d bytes)", rel, len(content))
	e.journalPatch(approval.KindCreate, rel, diff, decision, []byte(content))
	return Result{Path: rel, Output: fmt.Sprintf("Created %s", rel)}, nil
}

// Update applies a unified diff to an existing file. On any diff mismatch
// the file is left untouched.
func (e *Editor) Update(ctx context.Context, path, diff string) (Result, error) {
	abs, rel, err := e.locate(path)
	if err != nil {
		return Result{}, err
	}

	original, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{}, &NotFoundError{Path: rel}
		}
		return Result{}, fmt.Errorf("read file: %w", err)
	}

	patched, err := patch.Apply(string(original), diff)
	if err != nil {
		return Result{}, err
	}

	decision, err := e.requireApproval(ctx, approval.KindUpdate, rel, diff)
	if err != nil {
		return Result{}, err
	}

	if err := os.WriteFile(abs, []byte(patched), 0644); err != nil {
		return Result{}, fmt.Errorf("write file: %w", err)
	}

	e.log.Info("updated %s (%d bytes)", rel, len(patched))
	e.journalPatch(approval.KindUpdate, rel, diff, decision, []byte(patched))
	return Result{Path: rel, Output: fmt.Sprintf("Updated %s", rel)}, nil
}

// Delete removes a file. Deleting a file that is already gone succeeds;
// the approval question is still asked first. The diff is never applied
// but feeds the fingerprint and the preview.
func (e *Editor) Delete(ctx context.Context, path, diff string) (Result, error) {
	abs, rel, err := e.locate(path)
	if err != nil {
		return Result{}, err
	}

	decision, err := e.requireApproval(ctx, approval.KindDelete, rel, diff)
	if err != nil {
		return Result{}, err
	}

	if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
		return Result{}, fmt.Errorf("delete file: %w", err)
	}

	e.log.Info("deleted %s", rel)
	e.journalPatch(approval.KindDelete, rel, diff, decision, nil)
	return Result{Path: rel, Output: fmt.Sprintf("Deleted %s", rel)}, nil
}

func (e *Editor) locate(path string) (abs, rel string, err error) {
	abs, err = e.ws.Resolve(path)
	if err != nil {
		return "", "", err
	}
	rel, err = e.ws.Relativize(abs)
	if err != nil {
		return "", "", err
	}
	return abs, rel, nil
}

// requireApproval returns the decision label for the journal, or a
// DeniedError. Approving once covers every later identical operation.
func (e *Editor) requireApproval(ctx context.Context, kind approval.Kind, rel, diff string) (string, error) {
	fp := approval.Fingerprint(kind, rel, diff)

	if e.autoApprove {
		e.tracker.Approve(fp)
		return "auto", nil
	}
	if e.tracker.Approved(fp) {
		return "remembered", nil
	}

	if e.gateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.gateTimeout)
		defer cancel()
	}

	ok, err := e.gate.Decide(ctx, approval.Request{
		Kind:    kind,
		Path:    rel,
		Preview: approval.Preview(diff),
	})
	if err != nil {
		return "", fmt.Errorf("approval gate: %w", err)
	}
	if !ok {
		e.log.Warn("%s of %s denied", kind, rel)
		e.journalDenied(kind, rel, fp)
		return "", &approval.DeniedError{Kind: kind, Path: rel}
	}

	e.tracker.Approve(fp)
	return "approved", nil
}

func (e *Editor) journalPatch(kind approval.Kind, rel, diff, decision string, content []byte) {
	digest := ""
	if content != nil {
		digest = audit.ContentDigest(content)
	}
	err := e.journal.RecordPatch(audit.PatchRecord{
		Kind:        string(kind),
		Path:        rel,
		Fingerprint: approval.Fingerprint(kind, rel, diff),
		Decision:    decision,
		Digest:      digest,
	})
	if err != nil {
		e.log.Error("journal write failed: %v", err)
	}
}

func (e *Editor) journalDenied(kind approval.Kind, rel, fp string) {
	err := e.journal.RecordPatch(audit.PatchRecord{
		Kind:        string(kind),
		Path:        rel,
		Fingerprint: fp,
		Decision:    "denied",
	})
	if err != nil {
		e.log.Error("journal write failed: %v", err)
	}
}
