//go:build !linux

package sandbox

import (
	"github.com/codefionn/werkbank/internal/logger"
)

// Sandbox is a no-op on platforms without Landlock.
type Sandbox struct {
	workspaceDir string
}

func New(workspaceDir string, cfg Config) *Sandbox {
	logger.Debug("sandbox: landlock not available on this platform")
	return &Sandbox{workspaceDir: workspaceDir}
}

func (s *Sandbox) Enabled() bool {
	return false
}

func (s *Sandbox) Restrict() error {
	return nil
}
