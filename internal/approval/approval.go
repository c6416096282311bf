// Package approval gates destructive operations behind an explicit
// human decision and remembers what was already approved.
package approval

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"unicode/utf8"
)

// Kind identifies the class of operation being approved.
type Kind string

const (
	KindCreate Kind = "create"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
)

// Request describes a single operation awaiting a decision.
type Request struct {
	Kind    Kind
	Path    string // workspace-relative, slash-separated
	Preview string // truncated diff or content preview
}

// DeniedError reports an operation the gate rejected.
type DeniedError struct {
	Kind Kind
	Path string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("%s of %q was not approved", e.Kind, e.Path)
}

// Gate decides whether an operation may proceed. Implementations block
// until a decision is made or ctx is done; a ctx error counts as denial.
type Gate interface {
	Decide(ctx context.Context, req Request) (bool, error)
}

// previewLimit caps previews shown to the approver.
const previewLimit = 400

// Preview truncates text to the preview limit, appending an ellipsis when
// anything was cut. Truncation never splits a UTF-8 sequence.
func Preview(text string) string {
	if len(text) <= previewLimit {
		return text
	}
	cut := previewLimit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "…"
}

// Fingerprint identifies an exact (kind, path, diff) combination. Equal
// inputs always produce equal fingerprints; any change to the diff text
// produces a new one.
func Fingerprint(kind Kind, path, diff string) string {
	h := sha256.New()
	h.Write([]byte(kind))
	h.Write([]byte{0})
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write([]byte(diff))
	return hex.EncodeToString(h.Sum(nil))
}

// Tracker remembers approved fingerprints so an identical operation is
// never asked about twice. Approvals are never revoked.
type Tracker struct {
	mu       sync.Mutex
	approved map[string]struct{}
}

func NewTracker() *Tracker {
	return &Tracker{approved: make(map[string]struct{})}
}

// Approved reports whether the fingerprint was approved earlier.
func (t *Tracker) Approved(fingerprint string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.approved[fingerprint]
	return ok
}

// Approve records a fingerprint as approved.
func (t *Tracker) Approve(fingerprint string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.approved[fingerprint] = struct{}{}
}

// StaticGate answers every request with a fixed decision. Used for
// auto-approve mode and for tests.
type StaticGate struct {
	Allow bool
}

func (g StaticGate) Decide(ctx context.Context, req Request) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return g.Allow, nil
}
