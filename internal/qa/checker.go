package qa

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	engerrors "effectlint/internal/errors"
)

// DefaultTimeout bounds one type checker invocation.
const DefaultTimeout = 30 * time.Second

// TypeChecker validates a candidate source. A nil error means the source
// type-checks; otherwise the error is an *errors.EngineError with code
// VALIDATOR_TIMEOUT or VALIDATOR_FAILED and diagnostics holds the captured
// output.
type TypeChecker interface {
	Check(ctx context.Context, filename, source string) (diagnostics string, err error)
}

// TSC runs the TypeScript compiler on a temporary copy of the source.
type TSC struct {
	// Path is the tsc executable; "tsc" is looked up on PATH
	Path string

	// Args precede the file name
	Args []string

	Timeout time.Duration
}

// NewTSC creates a checker with the default flags.
func NewTSC(path string, timeout time.Duration) *TSC {
	if path == "" {
		path = "tsc"
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &TSC{
		Path:    path,
		Args:    []string{"--noEmit", "--pretty", "false", "--skipLibCheck", "--strict"},
		Timeout: timeout,
	}
}

func (c *TSC) Check(ctx context.Context, filename, source string) (string, error) {
	dir, err := os.MkdirTemp("", "effectlint-qa-*")
	if err != nil {
		return "", engerrors.New(engerrors.ValidatorFailed, "failed to create work directory", err)
	}
	defer os.RemoveAll(dir)

	file := filepath.Join(dir, checkName(filename))
	if err := os.WriteFile(file, []byte(source), 0o600); err != nil {
		return "", engerrors.New(engerrors.ValidatorFailed, "failed to write candidate source", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	args := append(append([]string(nil), c.Args...), file)
	cmd := exec.CommandContext(ctx, c.Path, args...)
	cmd.Dir = dir
	// Children that inherit the output pipes must not outlive the timeout.
	cmd.WaitDelay = time.Second
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err = cmd.Run()
	diagnostics := out.String()
	switch {
	case err == nil:
		return diagnostics, nil
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return diagnostics, engerrors.New(engerrors.ValidatorTimeout,
			fmt.Sprintf("%s timed out after %s", c.Path, c.Timeout), ctx.Err())
	default:
		return diagnostics, engerrors.New(engerrors.ValidatorFailed,
			fmt.Sprintf("%s rejected %s", c.Path, filename), err)
	}
}

// checkName keeps the extension so tsx sources are checked as tsx.
func checkName(filename string) string {
	switch filepath.Ext(filename) {
	case ".tsx":
		return "candidate.tsx"
	default:
		return "candidate.ts"
	}
}
