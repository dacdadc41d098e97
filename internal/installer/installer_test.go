package installer

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/reqcheck/internal/config"
	"github.com/oshokin/reqcheck/internal/domain/requirement"
)

// TestHelperProcess stands in for pip. It echoes its arguments and fails for
// targets starting with "bad", sleeps for targets starting with "slow".
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	args := os.Args
	for len(args) > 0 {
		if args[0] == "--" {
			args = args[1:]
			break
		}

		args = args[1:]
	}

	target := args[len(args)-1]

	switch {
	case strings.HasPrefix(target, "bad"):
		fmt.Fprintf(os.Stderr, "ERROR: No matching distribution found for %s\n", target)
		os.Exit(1)
	case strings.HasPrefix(target, "slow"):
		time.Sleep(10 * time.Second)
	default:
		fmt.Printf("args=%s\n", strings.Join(args, " "))
	}

	os.Exit(0)
}

// helperCommand returns an argv prefix that re-executes the test binary as TestHelperProcess.
func helperCommand(t *testing.T, args ...string) []string {
	t.Helper()
	t.Setenv("GO_WANT_HELPER_PROCESS", "1")

	return append([]string{os.Args[0], "-test.run=^TestHelperProcess$", "--"}, args...)
}

// TestCommandInstaller_Command checks that the requirement is the single trailing target.
func TestCommandInstaller_Command(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Python: "/venv/bin/python", Installer: config.DefaultInstaller()}

	inst, err := New(cfg)
	require.NoError(t, err)

	req := requirement.Requirement{Line: 1, Raw: "requests>=2.31", Name: "requests"}
	require.Equal(t,
		[]string{"/venv/bin/python", "-m", "pip", "install", "-q", "requests>=2.31"},
		inst.Command(req))

	// The template is not mutated between calls.
	require.Len(t, inst.Command(req), 6)

	_, err = NewCommandInstaller(nil, 0)
	require.ErrorIs(t, err, errEmptyCommand)
}

// TestCommandInstaller_Install runs a successful and a failing installer process.
func TestCommandInstaller_Install(t *testing.T) {
	inst, err := NewCommandInstaller(helperCommand(t, "install", "-q"), 0)
	require.NoError(t, err)

	ctx := context.Background()

	require.NoError(t, inst.Install(ctx, requirement.Requirement{Raw: "rich", Name: "rich"}))

	err = inst.Install(ctx, requirement.Requirement{Raw: "bad-package", Name: "bad-package"})
	require.ErrorIs(t, err, ErrInstallFailed)
	require.Contains(t, err.Error(), "bad-package")
	require.Contains(t, err.Error(), "No matching distribution")
}

// TestCommandInstaller_Timeout kills an installer that outlives its timeout.
func TestCommandInstaller_Timeout(t *testing.T) {
	inst, err := NewCommandInstaller(helperCommand(t, "install"), 100*time.Millisecond)
	require.NoError(t, err)

	started := time.Now()
	err = inst.Install(context.Background(), requirement.Requirement{Raw: "slowpkg", Name: "slowpkg"})
	require.ErrorIs(t, err, ErrInstallFailed)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(started), 5*time.Second)
}

// TestTail keeps the end of long output.
func TestTail(t *testing.T) {
	t.Parallel()

	require.Equal(t, "short", tail("short", 10))
	require.Equal(t, "...6789", tail("0123456789", 4))
}
