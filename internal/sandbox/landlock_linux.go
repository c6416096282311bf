//go:build linux

package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	landlock "github.com/landlock-lsm/go-landlock/landlock"

	"github.com/codefionn/werkbank/internal/logger"
)

// Sandbox confines the process to the workspace plus the grants needed to
// run toolchains. Restrict applies to the current process and everything
// it spawns afterwards.
type Sandbox struct {
	workspaceDir string
	extra        []PathGrant
	disabled     bool
	applied      bool
}

// toolchainEnvVars name directories that package managers write to.
var toolchainEnvVars = []string{
	"GOPATH", "GOMODCACHE", "GOCACHE",
	"NPM_CONFIG_CACHE", "YARN_CACHE_FOLDER", "PNPM_STORE_PATH",
	"VIRTUAL_ENV", "PIP_CACHE_DIR", "POETRY_CACHE_DIR",
	"CARGO_HOME", "RUSTUP_HOME",
}

// toolchainHomeSubdirs are cache and install directories under HOME that
// package managers expect to be writable.
var toolchainHomeSubdirs = []string{
	"go", ".cache/go-build",
	".npm", ".npm-global", ".nvm", ".yarn", ".pnpm-store",
	".local/share/pnpm", ".cache/yarn", ".cache/node-gyp",
	".cache/pip", ".cache/pypoetry", ".pyenv", ".conda",
	".cargo", ".rustup",
}

func New(workspaceDir string, cfg Config) *Sandbox {
	s := &Sandbox{workspaceDir: workspaceDir, disabled: cfg.Disabled}
	for _, p := range cfg.ExtraReadOnly {
		s.extra = append(s.extra, PathGrant{Path: p, Access: ReadOnly})
	}
	for _, p := range cfg.ExtraReadWrite {
		s.extra = append(s.extra, PathGrant{Path: p, Access: ReadWrite})
	}
	return s
}

// Enabled reports whether Restrict will attempt to apply rules.
func (s *Sandbox) Enabled() bool {
	return !s.disabled
}

// Restrict applies Landlock rules to the current process. Best-effort: on
// kernels without Landlock the process continues unrestricted, with a
// warning in the log.
func (s *Sandbox) Restrict() error {
	if s.disabled || s.applied {
		return nil
	}

	grants := s.collectGrants()

	rules := make([]landlock.Rule, 0, len(grants))
	for _, g := range grants {
		info, err := os.Stat(g.Path)
		if err != nil {
			continue
		}
		switch {
		case info.IsDir() && g.Access == ReadWrite:
			rules = append(rules, landlock.RWDirs(g.Path))
		case info.IsDir():
			rules = append(rules, landlock.RODirs(g.Path))
		case g.Access == ReadWrite:
			rules = append(rules, landlock.RWFiles(g.Path))
		default:
			rules = append(rules, landlock.ROFiles(g.Path))
		}
	}

	if err := landlock.V6.BestEffort().RestrictPaths(rules...); err != nil {
		logger.Warn("sandbox: landlock restriction failed, continuing unrestricted: %v", err)
		return fmt.Errorf("landlock restriction failed: %w", err)
	}

	s.applied = true
	logger.Info("sandbox: landlock applied with %d path rules", len(rules))
	return nil
}

func (s *Sandbox) collectGrants() []PathGrant {
	seen := make(map[string]bool)
	var grants []PathGrant

	add := func(path string, access Access) {
		if path == "" {
			return
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return
		}
		abs = filepath.Clean(abs)
		if seen[abs] {
			return
		}
		if _, err := os.Stat(abs); err != nil {
			return
		}
		seen[abs] = true
		grants = append(grants, PathGrant{Path: abs, Access: access})
	}

	add(s.workspaceDir, ReadWrite)

	for _, p := range []string{
		"/usr", "/bin", "/lib", "/lib64", "/sbin", "/etc",
		"/opt", "/run/current-system/sw", "/nix/store",
	} {
		add(p, ReadOnly)
	}

	homeDir, _ := os.UserHomeDir()
	if homeDir != "" {
		add(homeDir, ReadOnly)
		add(filepath.Join(homeDir, ".local/bin"), ReadOnly)
		for _, sub := range toolchainHomeSubdirs {
			add(filepath.Join(homeDir, sub), ReadWrite)
		}
	}

	for _, env := range toolchainEnvVars {
		val := os.Getenv(env)
		if val == "" {
			continue
		}
		for _, p := range strings.Split(val, ":") {
			add(p, ReadWrite)
		}
	}

	for _, dev := range []string{
		"/dev/null", "/dev/zero", "/dev/random", "/dev/urandom",
		"/dev/stdin", "/dev/stdout", "/dev/stderr",
	} {
		add(dev, ReadWrite)
	}

	add(os.TempDir(), ReadWrite)
	add("/tmp", ReadWrite)
	add("/var/tmp", ReadWrite)

	for _, g := range s.extra {
		add(g.Path, g.Access)
	}

	return grants
}
