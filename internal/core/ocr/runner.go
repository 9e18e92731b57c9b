package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"time"
)

// Runner executes an external tool. Tests substitute a stub.
type Runner interface {
	Run(ctx context.Context, name string, logger *slog.Logger, args ...string) (stdout, stderr []byte, err error)
}

// ExecError describes a tool that could not be started or exited non-zero.
type ExecError struct {
	Name     string
	ExitCode int // -1 when the process never ran
	Err      error
}

func (e *ExecError) Error() string {
	if e.ExitCode >= 0 {
		return fmt.Sprintf("%s exited with code %d", e.Name, e.ExitCode)
	}
	return fmt.Sprintf("%s: %v", e.Name, e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }

// ExecRunner runs tools found on PATH. It is shared by the OCR stage and the
// command detection backend.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, logger *slog.Logger, args ...string) ([]byte, []byte, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout, cmd.Stderr = &stdout, &stderr

	start := time.Now()
	err := cmd.Run()
	attrs := []any{"cmd", name, "args", len(args), "elapsed_ms", time.Since(start).Milliseconds()}
	if err == nil {
		logger.Debug("exec.ok", append(attrs, "stdout_bytes", stdout.Len())...)
		return stdout.Bytes(), stderr.Bytes(), nil
	}

	xe := &ExecError{Name: name, ExitCode: -1, Err: err}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		xe.ExitCode = exitErr.ExitCode()
	}
	logger.Warn("exec.failed", append(attrs, "exit_code", xe.ExitCode, "stderr", truncate(stderr.String(), 4<<10))...)
	return stdout.Bytes(), stderr.Bytes(), xe
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
