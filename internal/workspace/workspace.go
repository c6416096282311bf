// Package workspace confines all filesystem access to a single root
// directory. Every path coming in from the outside is resolved through a
// Workspace before anything touches the disk.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// OutOfWorkspaceError reports a path that resolves outside the workspace
// root, whether by "..", by an absolute path, or through a symlink.
type OutOfWorkspaceError struct {
	Path string
	Root string
}

func (e *OutOfWorkspaceError) Error() string {
	return fmt.Sprintf("path %q resolves outside workspace %q", e.Path, e.Root)
}

// Workspace is a resolved, absolute root directory.
type Workspace struct {
	root string
}

// New creates a workspace rooted at dir. The directory must exist; its
// path is made absolute and symlink-free so containment checks compare
// canonical paths.
func New(dir string) (*Workspace, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root: %w", err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, fmt.Errorf("stat workspace root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("workspace root %q is not a directory", dir)
	}
	return &Workspace{root: resolved}, nil
}

// Root returns the canonical absolute path of the workspace root.
func (w *Workspace) Root() string {
	return w.root
}

// Resolve maps a workspace-relative path to an absolute path, verifying it
// stays inside the root. Absolute inputs are taken as-is, so "/etc/passwd"
// names the system file and is rejected, while an absolute path under the
// root resolves normally. Symlinks in the existing part of the path are
// followed before the check, so a link pointing out of the workspace
// cannot smuggle writes outside.
func (w *Workspace) Resolve(path string) (string, error) {
	candidate := filepath.FromSlash(path)
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(w.root, candidate)
	}

	canonical, err := canonicalize(candidate)
	if err != nil {
		return "", err
	}

	if canonical != w.root && !strings.HasPrefix(canonical, w.root+string(filepath.Separator)) {
		return "", &OutOfWorkspaceError{Path: path, Root: w.root}
	}
	return canonical, nil
}

// Relativize converts an absolute path inside the workspace back to the
// slash-separated relative form used in approval requests and audit rows.
func (w *Workspace) Relativize(abs string) (string, error) {
	rel, err := filepath.Rel(w.root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", &OutOfWorkspaceError{Path: abs, Root: w.root}
	}
	return filepath.ToSlash(rel), nil
}

// EnsureParent creates the parent directory of an already-resolved path.
func (w *Workspace) EnsureParent(abs string) error {
	return os.MkdirAll(filepath.Dir(abs), 0755)
}

// canonicalize resolves symlinks in the deepest existing ancestor of path
// and re-joins the not-yet-existing remainder. filepath.EvalSymlinks alone
// fails on paths that do not exist yet, which is the common case for file
// creation.
func canonicalize(path string) (string, error) {
	remainder := ""
	current := filepath.Clean(path)
	for {
		resolved, err := filepath.EvalSymlinks(current)
		if err == nil {
			return filepath.Join(resolved, remainder), nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", err
		}
		remainder = filepath.Join(filepath.Base(current), remainder)
		current = parent
	}
}
