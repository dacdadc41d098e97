package installer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/oshokin/reqcheck/internal/config"
	"github.com/oshokin/reqcheck/internal/domain/requirement"
	"github.com/oshokin/reqcheck/internal/logger"
)

// Installer installs one requirement into the target environment.
type Installer interface {
	Install(ctx context.Context, req requirement.Requirement) error
}

var (
	// ErrInstallFailed is returned when the installer process exits unsuccessfully.
	ErrInstallFailed = errors.New("install failed")

	// errEmptyCommand is returned when the installer template has no executable.
	errEmptyCommand = errors.New("installer command is empty")
)

// maxOutputInError caps how much installer output is attached to an error.
const maxOutputInError = 2048

// CommandInstaller runs a command template with the requirement appended as the single target.
type CommandInstaller struct {
	// command is the argv prefix, e.g. python -m pip install -q.
	command []string
	// timeout bounds one installer process; zero means no limit.
	timeout time.Duration
}

// NewCommandInstaller creates an installer running command followed by the requirement.
func NewCommandInstaller(command []string, timeout time.Duration) (*CommandInstaller, error) {
	if len(command) == 0 || command[0] == "" {
		return nil, errEmptyCommand
	}

	return &CommandInstaller{
		command: append([]string(nil), command...),
		timeout: timeout,
	}, nil
}

// New builds the installer described by cfg.
func New(cfg *config.Config) (*CommandInstaller, error) {
	return NewCommandInstaller(cfg.Expand(cfg.Installer), cfg.InstallTimeout)
}

// Command returns the full argv used to install req.
func (i *CommandInstaller) Command(req requirement.Requirement) []string {
	return append(append([]string(nil), i.command...), req.Raw)
}

// Install implements Installer. Output is captured rather than streamed so it
// does not tear the progress display; it is logged at debug level on success
// and attached to the error on failure.
func (i *CommandInstaller) Install(ctx context.Context, req requirement.Requirement) error {
	if i.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}

	argv := i.Command(req)

	var output bytes.Buffer

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...) //nolint:gosec // Command comes from settings.
	cmd.Stdout = &output
	cmd.Stderr = &output

	logger.DebugKV(ctx, "Running installer", "command", strings.Join(argv, " "))

	started := time.Now()
	err := cmd.Run()

	trimmed := strings.TrimSpace(output.String())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w (%w)", err, ctxErr)
		}

		if trimmed == "" {
			return fmt.Errorf("%w: %s: %w", ErrInstallFailed, req.Raw, err)
		}

		return fmt.Errorf("%w: %s: %w: %s", ErrInstallFailed, req.Raw, err, tail(trimmed, maxOutputInError))
	}

	logger.DebugKV(ctx, "Installer finished",
		"requirement", req.Raw, "elapsed", time.Since(started), "output", trimmed)

	return nil
}

// tail returns the last limit bytes of s, which is where installers put the actual error.
func tail(s string, limit int) string {
	if len(s) <= limit {
		return s
	}

	return "..." + s[len(s)-limit:]
}
