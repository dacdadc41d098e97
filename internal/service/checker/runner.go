package checker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oshokin/reqcheck/internal/console"
	"github.com/oshokin/reqcheck/internal/domain/requirement"
	"github.com/oshokin/reqcheck/internal/installer"
	"github.com/oshokin/reqcheck/internal/logger"
	"github.com/oshokin/reqcheck/internal/registry"
)

const (
	// animationTicks is the number of pauses of the per-package animation: 0%, 10%, ..., 100%.
	animationTicks = 11
	// animationIncrement is how far one tick advances the task; the last tick is capped at the total.
	animationIncrement = 10
	// animationTotal is the size of a per-package task.
	animationTotal = 100
)

// runner processes a requirements list against a registry and an installer.
type runner struct {
	registry  registry.Registry
	installer installer.Installer
	console   *console.Console

	progressOptions []console.ProgressOption
	animationStep   time.Duration
	dryRun          bool
}

// check prints the status block, then walks the list again installing what is missing.
// Installer failures are recorded in the report and do not stop the loop.
func (r *runner) check(ctx context.Context, list *requirement.List) (*Report, error) {
	// First pass: the status block.
	if err := r.printStatus(ctx, list); err != nil {
		return nil, err
	}

	report := &Report{Entries: make([]Entry, 0, list.Len())}

	// Second pass: one overall task plus one task per package being installed.
	progress := console.NewProgress(r.console.Out(), list.Len(), r.progressOptions...)
	progress.Start()

	defer progress.Stop()

	for _, req := range list.Requirements {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		entry, err := r.process(ctx, progress, req)
		if err != nil {
			return report, err
		}

		// Overall progress advances whatever the outcome was.
		report.add(entry)
		progress.Step(req.Raw)
	}

	return report, nil
}

// printStatus prints the "Dependencies:" block.
func (r *runner) printStatus(ctx context.Context, list *requirement.List) error {
	r.console.Heading()

	for _, req := range list.Requirements {
		if err := ctx.Err(); err != nil {
			return err
		}

		installed, _, err := r.resolve(ctx, req)
		if err != nil {
			return err
		}

		r.console.Dependency(req.Raw, installed)
	}

	r.console.Separator()

	return nil
}

// resolve reports whether req is installed. Only a missing package is a normal outcome.
func (r *runner) resolve(ctx context.Context, req requirement.Requirement) (bool, string, error) {
	version, err := r.registry.Version(ctx, req.Name)
	switch {
	case err == nil:
		return true, version, nil
	case errors.Is(err, registry.ErrPackageNotFound):
		return false, "", nil
	default:
		return false, "", fmt.Errorf("resolve %s: %w", req.Name, err)
	}
}

// process handles one requirement of the progress loop.
func (r *runner) process(ctx context.Context, progress *console.Progress, req requirement.Requirement) (Entry, error) {
	ctx = logger.WithKV(ctx, "requirement", req.Raw, "line", req.Line)

	installed, version, err := r.resolve(ctx, req)
	if err != nil {
		return Entry{}, err
	}

	if installed {
		logger.DebugKV(ctx, "Already installed", "version", version)

		return Entry{Requirement: req, Status: requirement.StatusAlreadyInstalled, Version: version}, nil
	}

	if r.dryRun {
		logger.InfoKV(ctx, "Missing, skipping install in dry run")

		return Entry{Requirement: req, Status: requirement.StatusSkipped}, nil
	}

	// Cosmetic animation, not tied to the installer's real progress.
	task := progress.AddTask(req.Raw, animationTotal)

	for range animationTicks {
		task.Advance(animationIncrement)

		if err = sleep(ctx, r.animationStep); err != nil {
			return Entry{}, err
		}
	}

	logger.InfoKV(ctx, "Installing")

	if err = r.installer.Install(ctx, req); err != nil {
		// An installer killed by cancellation is not a package failure.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Entry{}, ctxErr
		}

		// Warnings go out after the progress display stops, see Run.
		logger.DebugKV(ctx, "Installer returned an error", "error", err)

		return Entry{Requirement: req, Status: requirement.StatusFailed, Err: err}, nil
	}

	return Entry{Requirement: req, Status: requirement.StatusInstalled}, nil
}

// sleep pauses for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
