// Package shell runs batches of commands through `sh -c` with timeout
// handling, non-interactive rewriting, and dev-server detection.
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/codefionn/werkbank/internal/audit"
	"github.com/codefionn/werkbank/internal/logger"
)

// backgroundAdvice is returned when a dev server command is not detached.
const backgroundAdvice = "Command appears to start a long-running dev server or watcher. " +
	"Always run such commands in the background by appending ' &' (for example " +
	"'npm run dev &' or 'uvicorn app:app --reload &')."

// CommandSpec is one command in a batch.
type CommandSpec struct {
	Command string `json:"command"`
	// TimeoutMS overrides the executor's default timeout for this
	// command. nil means use the default; the default being zero means
	// no limit.
	TimeoutMS *int `json:"timeout_ms,omitempty"`
}

// Request is one batch of commands.
type Request struct {
	Commands []CommandSpec `json:"commands"`
}

// CommandOutput is the outcome of a single command.
type CommandOutput struct {
	Command  string `json:"command"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	TimedOut bool   `json:"timed_out"`
	// ExitCode is -1 while the process is still running in the background.
	ExitCode int `json:"exit_code"`
}

// Result collects the outputs of a batch.
type Result struct {
	Output           []CommandOutput `json:"output"`
	WorkingDirectory string          `json:"working_directory"`
}

// Executor runs command batches in a fixed working directory.
type Executor struct {
	cwd                 string
	defaultTimeout      time.Duration
	backgroundOnTimeout bool
	rewriter            *Rewriter
	envOverrides        map[string]string
	journal             *audit.Journal
	log                 *logger.Logger
}

// ExecutorOptions configures an Executor.
type ExecutorOptions struct {
	// DefaultTimeout applies when a request carries no timeout. Zero
	// means commands may run indefinitely.
	DefaultTimeout time.Duration
	// BackgroundOnTimeout leaves a timed-out process running instead of
	// killing it.
	BackgroundOnTimeout bool
	// EnvOverrides are applied on top of the inherited environment and
	// the rewriter's non-interactive seeds.
	EnvOverrides map[string]string
	Journal      *audit.Journal
}

func NewExecutor(cwd string, rewriter *Rewriter, opts ExecutorOptions) *Executor {
	return &Executor{
		cwd:                 cwd,
		defaultTimeout:      opts.DefaultTimeout,
		backgroundOnTimeout: opts.BackgroundOnTimeout,
		rewriter:            rewriter,
		envOverrides:        opts.EnvOverrides,
		journal:             opts.Journal,
		log:                 logger.Global().WithPrefix("shell"),
	}
}

// Run executes the batch in order. The batch stops early when a command
// times out or when a dev server command is rejected for not being
// backgrounded; a plain non-zero exit does not stop the batch.
func (e *Executor) Run(ctx context.Context, req Request) (Result, error) {
	result := Result{WorkingDirectory: e.cwd}

	for _, spec := range req.Commands {
		command := spec.Command
		timeout := e.defaultTimeout
		if spec.TimeoutMS != nil {
			timeout = time.Duration(*spec.TimeoutMS) * time.Millisecond
			if timeout < 0 {
				timeout = 0
			}
		}

		prepared := e.rewriter.Prepare(command)

		if e.rewriter.RequiresBackground(prepared) && !e.rewriter.IsBackgrounded(prepared) {
			e.log.Warn("rejected dev server command without '&': %s", prepared)
			result.Output = append(result.Output, CommandOutput{
				Command:  prepared,
				Stderr:   backgroundAdvice,
				ExitCode: 1,
			})
			e.journalRun(command, prepared, "rejected", 1, 0)
			break
		}

		started := time.Now()
		out, status, err := e.runOne(ctx, prepared, timeout)
		out.Command = prepared
		result.Output = append(result.Output, out)
		e.journalRun(command, prepared, status, out.ExitCode, time.Since(started))
		if err != nil {
			return result, err
		}
		if out.TimedOut {
			break
		}
	}

	return result, nil
}

func (e *Executor) runOne(ctx context.Context, command string, timeout time.Duration) (CommandOutput, string, error) {
	cmd := exec.Command("sh", "-c", command)
	cmd.Dir = e.cwd
	cmd.Env = e.buildEnv()
	configureProcessGroup(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return CommandOutput{}, "", fmt.Errorf("create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return CommandOutput{}, "", fmt.Errorf("create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return CommandOutput{}, "", fmt.Errorf("start command: %w", err)
	}

	var (
		wg        sync.WaitGroup
		stdoutBuf lockedBuffer
		stderrBuf lockedBuffer
	)
	startStreamReader(&wg, stdout, &stdoutBuf)
	startStreamReader(&wg, stderr, &stderrBuf)

	// Pipe reads must complete before Wait, or Wait closes the read ends
	// and drops still-buffered output.
	done := make(chan error, 1)
	go func() {
		wg.Wait()
		done <- cmd.Wait()
	}()

	var timerC <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timerC = timer.C
	}

	select {
	case waitErr := <-done:
		return CommandOutput{
			Stdout:   stdoutBuf.String(),
			Stderr:   stderrBuf.String(),
			ExitCode: exitCode(waitErr),
		}, "completed", nil

	case <-ctx.Done():
		killProcessTree(cmd)
		<-done
		return CommandOutput{
			Stdout:   stdoutBuf.String(),
			Stderr:   stderrBuf.String(),
			ExitCode: -1,
		}, "canceled", ctx.Err()

	case <-timerC:
		pid := 0
		if cmd.Process != nil {
			pid = cmd.Process.Pid
		}
		if e.backgroundOnTimeout {
			e.log.Info("command still running after %s, leaving in background (pid=%d)", timeout, pid)
			// The child keeps running. The wait goroutine keeps its
			// pipes drained and reaps it; a detached receiver takes
			// the result so it never lingers as a zombie.
			go func() {
				<-done
			}()
			return CommandOutput{
				Stderr: fmt.Sprintf("Command exceeded timeout of %g seconds and is still running in the background (pid=%d).",
					timeout.Seconds(), pid),
				TimedOut: true,
				ExitCode: -1,
			}, "backgrounded", nil
		}

		e.log.Warn("killing command after timeout %s (pid=%d)", timeout, pid)
		killProcessTree(cmd)
		waitErr := <-done
		message := fmt.Sprintf("Command exceeded timeout of %g seconds and was terminated (pid=%d).",
			timeout.Seconds(), pid)
		return CommandOutput{
			Stdout:   stdoutBuf.String(),
			Stderr:   message + "\n" + stderrBuf.String(),
			TimedOut: true,
			ExitCode: exitCode(waitErr),
		}, "timed_out", nil
	}
}

func (e *Executor) buildEnv() []string {
	env := os.Environ()
	for key, value := range e.rewriter.NonInteractiveEnv() {
		env = append(env, key+"="+value)
	}
	for key, value := range e.envOverrides {
		env = append(env, key+"="+value)
	}
	return env
}

func (e *Executor) journalRun(command, rewritten, status string, exitCode int, duration time.Duration) {
	err := e.journal.RecordShell(audit.ShellRecord{
		Command:   command,
		Rewritten: rewritten,
		Status:    status,
		ExitCode:  exitCode,
		Duration:  duration,
	})
	if err != nil {
		e.log.Error("journal write failed: %v", err)
	}
}

func exitCode(waitErr error) int {
	if waitErr == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// lockedBuffer lets a reader goroutine append while the main goroutine
// takes snapshots.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func startStreamReader(wg *sync.WaitGroup, reader io.Reader, buf *lockedBuffer) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		chunk := make([]byte, 4096)
		for {
			n, err := reader.Read(chunk)
			if n > 0 {
				_, _ = buf.Write(chunk[:n])
			}
			if err != nil {
				if err != io.EOF && !errors.Is(err, io.ErrClosedPipe) {
					logger.Debug("shell: stream read error: %v", err)
				}
				return
			}
		}
	}()
}
