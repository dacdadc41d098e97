package registry

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// pipNotFoundMarker appears in `pip show` output for unknown packages.
const pipNotFoundMarker = "not found"

// PipRegistry resolves versions by running `pip show <name>`.
type PipRegistry struct {
	// command is the argv prefix; the package name is appended.
	command []string
}

// NewPipRegistry creates a registry running command with the package name appended.
func NewPipRegistry(command []string) (*PipRegistry, error) {
	if len(command) == 0 || command[0] == "" {
		return nil, errEmptyCommand
	}

	return &PipRegistry{
		command: append([]string(nil), command...),
	}, nil
}

// Version implements Registry.
func (r *PipRegistry) Version(ctx context.Context, name string) (string, error) {
	argv := append(append([]string(nil), r.command...), name)

	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...) //nolint:gosec // Command comes from settings.
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError

		output := strings.TrimSpace(stderr.String() + "\n" + stdout.String())
		if errors.As(err, &exitErr) && strings.Contains(strings.ToLower(output), pipNotFoundMarker) {
			return "", fmt.Errorf("%s: %w", name, ErrPackageNotFound)
		}

		return "", fmt.Errorf("pip show %s: %w: %s", name, err, output)
	}

	version, err := readVersionHeader(&stdout)
	if err != nil {
		return "", fmt.Errorf("parse pip show output for %s: %w", name, err)
	}

	return version, nil
}
