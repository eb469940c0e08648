package qa

import (
	"context"
	"os/exec"
	"testing"
	"time"

	engerrors "effectlint/internal/errors"
)

// shellChecker runs a shell snippet in place of tsc; the candidate file is
// passed as $1.
func shellChecker(t *testing.T, script string, timeout time.Duration) *TSC {
	t.Helper()
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	return &TSC{Path: sh, Args: []string{"-c", script, "sh"}, Timeout: timeout}
}

func TestTSC_Success(t *testing.T) {
	c := shellChecker(t, `test -f "$1"`, 5*time.Second)
	if _, err := c.Check(context.Background(), "a.ts", "export const x = 1\n"); err != nil {
		t.Fatalf("Check() error = %v", err)
	}
}

func TestTSC_NonZeroExit(t *testing.T) {
	c := shellChecker(t, `echo "candidate.ts(1,1): error TS1005: ';' expected."; exit 2`, 5*time.Second)
	diagnostics, err := c.Check(context.Background(), "a.ts", "export const = \n")
	if !engerrors.Is(err, engerrors.ValidatorFailed) {
		t.Fatalf("Check() error = %v, want VALIDATOR_FAILED", err)
	}
	if diagnostics == "" {
		t.Error("expected captured diagnostics")
	}
}

func TestTSC_Timeout(t *testing.T) {
	c := shellChecker(t, "exec sleep 5", 100*time.Millisecond)
	start := time.Now()
	_, err := c.Check(context.Background(), "a.ts", "")
	if !engerrors.Is(err, engerrors.ValidatorTimeout) {
		t.Fatalf("Check() error = %v, want VALIDATOR_TIMEOUT", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("timeout took %s", elapsed)
	}
}

func TestTSC_MissingBinary(t *testing.T) {
	c := NewTSC("/nonexistent/tsc", time.Second)
	_, err := c.Check(context.Background(), "a.ts", "")
	if !engerrors.Is(err, engerrors.ValidatorFailed) {
		t.Fatalf("Check() error = %v, want VALIDATOR_FAILED", err)
	}
}

func TestCheckName(t *testing.T) {
	if got := checkName("view.tsx"); got != "candidate.tsx" {
		t.Errorf("checkName(view.tsx) = %s", got)
	}
	if got := checkName("a.ts"); got != "candidate.ts" {
		t.Errorf("checkName(a.ts) = %s", got)
	}
}
