package process

import (
	"context"
	stderrors "errors"
	"io"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/core-tools/hsu-netstatus/pkg/errors"
	"github.com/core-tools/hsu-netstatus/pkg/logging"
)

type ExecutionConfig struct {
	Command          string
	Shell            string // Defaults to /bin/sh, or cmd on Windows
	WorkingDirectory string
	Environment      []string // Appended to the inherited environment
	Stdout           io.Writer
	Stderr           io.Writer
	Timeout          time.Duration // 0 means wait as long as the command runs
	WaitDelay        time.Duration // Bound on waiting for I/O after the process group is killed
}

type Result struct {
	PID       int
	ExitCode  int
	StartedAt time.Time
	Duration  time.Duration
}

// DefaultShell returns the platform shell used when none is configured
func DefaultShell() string {
	if runtime.GOOS == "windows" {
		return "cmd"
	}
	return "/bin/sh"
}

func shellFlag(shell string) string {
	base := strings.ToLower(shell)
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	if base == "cmd" || base == "cmd.exe" {
		return "/C"
	}
	return "-c"
}

// Execute runs the command through the shell and waits for it to finish.
// A non-zero exit status is returned as a process error together with the result.
func Execute(ctx context.Context, config ExecutionConfig, logger logging.Logger) (*Result, error) {
	if strings.TrimSpace(config.Command) == "" {
		return nil, errors.NewValidationError("command cannot be empty", nil)
	}

	shell := config.Shell
	if shell == "" {
		shell = DefaultShell()
	}

	runCtx := ctx
	if config.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, config.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, shell, shellFlag(shell), config.Command)
	cmd.Stdout = config.Stdout
	cmd.Stderr = config.Stderr
	cmd.Dir = config.WorkingDirectory
	cmd.WaitDelay = config.WaitDelay
	killProcessGroup(cmd)
	if len(config.Environment) > 0 {
		cmd.Env = append(cmd.Environ(), config.Environment...)
	}

	result := &Result{
		ExitCode:  -1,
		StartedAt: time.Now(),
	}

	logger.Debugf("Starting command, shell: %s, command: %s", shell, config.Command)

	if err := cmd.Start(); err != nil {
		if ctxErr := contextError(ctx, runCtx, config.Timeout); ctxErr != nil {
			return result, ctxErr
		}
		return result, errors.NewProcessError("failed to start command", err).
			WithContext("shell", shell).
			WithContext("command", config.Command)
	}
	result.PID = cmd.Process.Pid

	waitErr := cmd.Wait()
	result.Duration = time.Since(result.StartedAt)
	if cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
	}

	if waitErr == nil {
		logger.Debugf("Command finished, PID: %d, duration: %s", result.PID, result.Duration)
		return result, nil
	}

	if ctxErr := contextError(ctx, runCtx, config.Timeout); ctxErr != nil {
		return result, ctxErr.WithContext("pid", result.PID)
	}

	var exitErr *exec.ExitError
	if stderrors.As(waitErr, &exitErr) {
		return result, errors.NewProcessError("command exited with non-zero status", waitErr).
			WithContext("exit_code", result.ExitCode).
			WithContext("command", config.Command)
	}

	return result, errors.NewProcessError("failed waiting for command", waitErr).
		WithContext("pid", result.PID).
		WithContext("command", config.Command)
}

// contextError distinguishes our own deadline from the caller's cancellation
func contextError(parent, runCtx context.Context, timeout time.Duration) *errors.DomainError {
	if parent.Err() != nil {
		if stderrors.Is(parent.Err(), context.DeadlineExceeded) {
			return errors.NewTimeoutError("command deadline exceeded", parent.Err())
		}
		return errors.NewCancelledError("command cancelled", parent.Err())
	}
	if runCtx.Err() != nil {
		return errors.NewTimeoutError("command timed out", runCtx.Err()).WithContext("timeout", timeout.String())
	}
	return nil
}
