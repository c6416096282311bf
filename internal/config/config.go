package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

// Config represents application configuration
type Config struct {
	WorkspaceRoot string `json:"workspace_root"`

	// Approval settings. AutoApprove bypasses the interactive gate entirely.
	AutoApprove            bool `json:"auto_approve"`
	ApprovalTimeoutSeconds int  `json:"approval_timeout_seconds"`

	// Shell settings. ShellTimeoutSeconds of 0 means no default timeout;
	// callers can still set a per-command timeout.
	ShellTimeoutSeconds int    `json:"shell_timeout_seconds"`
	BackgroundOnTimeout bool   `json:"background_on_timeout"`
	ForceNonInteractive bool   `json:"force_non_interactive"`
	ReactCompiler       string `json:"react_compiler"` // "use" or "no"

	// Approval gate transport: "terminal", "http", or "static".
	GateMode string `json:"gate_mode"`
	GateAddr string `json:"gate_addr"`

	LogLevel  string `json:"log_level"` // debug, info, warn, error, none
	LogPath   string `json:"-"`
	AuditPath string `json:"audit_path"`

	// SandboxDisabled turns off the kernel-level filesystem sandbox.
	SandboxDisabled bool `json:"sandbox_disabled"`
}

func defaultStateDir() string {
	switch runtime.GOOS {
	case "linux":
		if stateHome := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); stateHome != "" {
			return filepath.Join(stateHome, "werkbank")
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".local", "state", "werkbank")
	case "windows":
		if localAppData := strings.TrimSpace(os.Getenv("LOCALAPPDATA")); localAppData != "" {
			return filepath.Join(localAppData, "werkbank")
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, "AppData", "Local", "werkbank")
	default:
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".config", "werkbank")
	}
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	stateDir := defaultStateDir()

	return &Config{
		WorkspaceRoot:          ".",
		AutoApprove:            false,
		ApprovalTimeoutSeconds: 0,
		ShellTimeoutSeconds:    0,
		BackgroundOnTimeout:    false,
		ForceNonInteractive:    true,
		ReactCompiler:          "no",
		GateMode:               "terminal",
		GateAddr:               "127.0.0.1:7343",
		LogLevel:               "info",
		LogPath:                filepath.Join(stateDir, "werkbank.log"),
		AuditPath:              filepath.Join(stateDir, "audit.db"),
	}
}

// Load loads configuration from file, then applies environment overrides.
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			config.applyEnvOverrides()
			return config, nil
		}
		return nil, err
	}

	// Unmarshal into default config (overrides only provided fields)
	if err := json.Unmarshal(data, config); err != nil {
		return nil, err
	}

	if config.WorkspaceRoot == "" {
		config.WorkspaceRoot = "."
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.LogPath == "" {
		config.LogPath = filepath.Join(defaultStateDir(), "werkbank.log")
	}
	if config.ReactCompiler != "use" && config.ReactCompiler != "no" {
		config.ReactCompiler = "no"
	}
	if config.GateMode == "" {
		config.GateMode = "terminal"
	}

	config.applyEnvOverrides()
	return config, nil
}

// applyEnvOverrides lets WERKBANK_* environment variables override file
// and default values. Unparsable values are ignored.
func (c *Config) applyEnvOverrides() {
	if v, ok := envBool("WERKBANK_AUTO_APPROVE"); ok {
		c.AutoApprove = v
	}
	if v, ok := envInt("WERKBANK_APPROVAL_TIMEOUT_SECONDS"); ok {
		c.ApprovalTimeoutSeconds = v
	}
	if v, ok := envInt("WERKBANK_SHELL_TIMEOUT_SECONDS"); ok {
		c.ShellTimeoutSeconds = v
	}
	if v, ok := envBool("WERKBANK_SHELL_BACKGROUND_ON_TIMEOUT"); ok {
		c.BackgroundOnTimeout = v
	}
	if v, ok := envBool("WERKBANK_SHELL_FORCE_NON_INTERACTIVE"); ok {
		c.ForceNonInteractive = v
	}
	if v := strings.TrimSpace(os.Getenv("WERKBANK_SHELL_REACT_COMPILER")); v == "use" || v == "no" {
		c.ReactCompiler = v
	}
	if v := strings.TrimSpace(os.Getenv("WERKBANK_LOG_LEVEL")); v != "" {
		c.LogLevel = v
	}
	if v := strings.TrimSpace(os.Getenv("WERKBANK_LOG_PATH")); v != "" {
		c.LogPath = v
	}
	if v := strings.TrimSpace(os.Getenv("WERKBANK_AUDIT_PATH")); v != "" {
		c.AuditPath = v
	}
	if v, ok := envBool("WERKBANK_SANDBOX_DISABLED"); ok {
		c.SandboxDisabled = v
	}
}

func envBool(key string) (bool, bool) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return false, false
	}
	switch strings.ToLower(raw) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	}
	return false, false
}

func envInt(key string) (int, bool) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Save saves configuration to file
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
