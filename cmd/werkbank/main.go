// Command werkbank runs a sandboxed execution backend for coding agents.
// It reads line-delimited JSON calls on stdin and answers on stdout;
// everything else (logs, approval prompts) goes to files or stderr.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/codefionn/werkbank/internal/approval"
	"github.com/codefionn/werkbank/internal/audit"
	"github.com/codefionn/werkbank/internal/config"
	"github.com/codefionn/werkbank/internal/editor"
	"github.com/codefionn/werkbank/internal/logger"
	"github.com/codefionn/werkbank/internal/sandbox"
	"github.com/codefionn/werkbank/internal/shell"
	"github.com/codefionn/werkbank/internal/workspace"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type cliOptions struct {
	configPath  string
	root        string
	autoApprove bool
	gateMode    string
	gateAddr    string
	timeoutSecs int
	noSandbox   bool
	noAudit     bool
}

func parseArgs(args []string) (*cliOptions, error) {
	opts := &cliOptions{}
	fs := flag.NewFlagSet("werkbank", flag.ContinueOnError)
	fs.StringVar(&opts.configPath, "config", "", "path to config file")
	fs.StringVar(&opts.root, "root", "", "workspace root directory")
	fs.BoolVar(&opts.autoApprove, "auto-approve", false, "apply file operations without asking")
	fs.StringVar(&opts.gateMode, "gate", "", "approval gate: terminal, http, or static")
	fs.StringVar(&opts.gateAddr, "gate-addr", "", "listen address for the http gate")
	fs.IntVar(&opts.timeoutSecs, "timeout", 0, "default shell timeout in seconds (0 = none)")
	fs.BoolVar(&opts.noSandbox, "no-sandbox", false, "disable the kernel filesystem sandbox")
	fs.BoolVar(&opts.noAudit, "no-audit", false, "disable the audit journal")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return opts, nil
}

func run() (err error) {
	opts, parseErr := parseArgs(os.Args[1:])
	if parseErr != nil {
		if parseErr == flag.ErrHelp {
			return nil
		}
		return parseErr
	}

	configPath := opts.configPath
	if configPath == "" {
		configPath = os.Getenv("WERKBANK_CONFIG")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Flags win over config file and environment.
	if opts.root != "" {
		cfg.WorkspaceRoot = opts.root
	}
	if opts.autoApprove {
		cfg.AutoApprove = true
	}
	if opts.gateMode != "" {
		cfg.GateMode = opts.gateMode
	}
	if opts.gateAddr != "" {
		cfg.GateAddr = opts.gateAddr
	}
	if opts.timeoutSecs > 0 {
		cfg.ShellTimeoutSeconds = opts.timeoutSecs
	}
	if opts.noSandbox {
		cfg.SandboxDisabled = true
	}
	if opts.noAudit {
		cfg.AuditPath = ""
	}

	if initErr := logger.Init(cfg.LogPath, logger.ParseLevel(cfg.LogLevel)); initErr != nil {
		return fmt.Errorf("failed to initialize logger: %w", initErr)
	}
	defer func() {
		if err != nil {
			logger.Error("fatal: %v", err)
		}
		if closeErr := logger.Global().Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close logger: %v\n", closeErr)
		}
	}()
	logger.Info("werkbank starting, root=%s gate=%s", cfg.WorkspaceRoot, cfg.GateMode)

	ws, err := workspace.New(cfg.WorkspaceRoot)
	if err != nil {
		return fmt.Errorf("failed to open workspace: %w", err)
	}

	var journal *audit.Journal
	if cfg.AuditPath != "" {
		journal, err = audit.Open(cfg.AuditPath)
		if err != nil {
			return fmt.Errorf("failed to open audit journal: %w", err)
		}
		defer journal.Close()
	}

	gate, gateCleanup, err := buildGate(cfg)
	if err != nil {
		return err
	}
	defer gateCleanup()

	// Restrict after all files (config, log, journal) are open and the
	// gate is listening, so only workspace and toolchain paths remain
	// writable for the rest of the process lifetime.
	box := sandbox.New(ws.Root(), sandbox.Config{Disabled: cfg.SandboxDisabled})
	if restrictErr := box.Restrict(); restrictErr != nil {
		logger.Warn("continuing without sandbox: %v", restrictErr)
	}

	ed := editor.New(ws, approval.NewTracker(), gate, editor.Options{
		AutoApprove: cfg.AutoApprove,
		GateTimeout: time.Duration(cfg.ApprovalTimeoutSeconds) * time.Second,
		Journal:     journal,
	})

	rewriter := &shell.Rewriter{
		ForceNonInteractive: cfg.ForceNonInteractive,
		ReactCompiler:       cfg.ReactCompiler,
	}
	executor := shell.NewExecutor(ws.Root(), rewriter, shell.ExecutorOptions{
		DefaultTimeout:      time.Duration(cfg.ShellTimeoutSeconds) * time.Second,
		BackgroundOnTimeout: cfg.BackgroundOnTimeout,
		Journal:             journal,
	})

	return serve(context.Background(), os.Stdin, os.Stdout, ed, executor)
}

func buildGate(cfg *config.Config) (approval.Gate, func(), error) {
	noop := func() {}
	switch cfg.GateMode {
	case "terminal", "":
		return approval.NewTerminalGate(), noop, nil
	case "http":
		gate, err := approval.NewHTTPGate(cfg.GateAddr)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to start http gate: %w", err)
		}
		return gate, func() { gate.Close() }, nil
	case "static":
		// Useful only with -auto-approve for file operations; as a gate
		// it denies everything, which makes misconfiguration loud.
		return approval.StaticGate{Allow: false}, noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown gate mode %q", cfg.GateMode)
	}
}

// call is one request on stdin.
type call struct {
	ID        int64             `json:"id"`
	Type      string            `json:"type"` // "apply_patch" or "shell"
	Operation *editor.Operation `json:"operation,omitempty"`
	Shell     *shell.Request    `json:"shell,omitempty"`
}

// reply is the answer on stdout.
type reply struct {
	ID     int64       `json:"id"`
	OK     bool        `json:"ok"`
	Result interface{} `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
}

func serve(ctx context.Context, in io.Reader, out io.Writer, ed *editor.Editor, executor *shell.Executor) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	encoder := json.NewEncoder(out)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var c call
		if err := json.Unmarshal(line, &c); err != nil {
			if encodeErr := encoder.Encode(reply{OK: false, Error: fmt.Sprintf("invalid call: %v", err)}); encodeErr != nil {
				return encodeErr
			}
			continue
		}

		r := dispatch(ctx, c, ed, executor)
		if err := encoder.Encode(r); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func dispatch(ctx context.Context, c call, ed *editor.Editor, executor *shell.Executor) reply {
	switch c.Type {
	case "apply_patch":
		if c.Operation == nil {
			return reply{ID: c.ID, Error: "apply_patch call is missing the operation"}
		}
		res, err := ed.Apply(ctx, *c.Operation)
		if err != nil {
			logger.Warn("apply_patch failed: %v", err)
			return reply{ID: c.ID, Error: err.Error()}
		}
		return reply{ID: c.ID, OK: true, Result: res}

	case "shell":
		if c.Shell == nil {
			return reply{ID: c.ID, Error: "shell call is missing the request"}
		}
		res, err := executor.Run(ctx, *c.Shell)
		if err != nil {
			logger.Warn("shell batch failed: %v", err)
			return reply{ID: c.ID, Error: err.Error()}
		}
		return reply{ID: c.ID, OK: true, Result: res}

	default:
		return reply{ID: c.ID, Error: fmt.Sprintf("unknown call type %q", c.Type)}
	}
}
