package checker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/oshokin/reqcheck/internal/config"
	"github.com/oshokin/reqcheck/internal/console"
	"github.com/oshokin/reqcheck/internal/installer"
	"github.com/oshokin/reqcheck/internal/logger"
	"github.com/oshokin/reqcheck/internal/registry"
	"github.com/oshokin/reqcheck/internal/repository/requirements"
	"github.com/oshokin/reqcheck/internal/service/common"
)

// Options controls a checker run. Non-empty fields override the configuration file.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// ConfigExplicit makes a missing configuration file an error instead of falling back to defaults.
	ConfigExplicit bool
	// RequirementsFile overrides the requirements file to read.
	RequirementsFile string
	// Python overrides the interpreter whose environment is checked.
	Python string
	// Registry overrides the version lookup method: "metadata" or "pip".
	Registry string
	// LogLevel overrides the diagnostic log level.
	LogLevel string
	// Strict turns installer failures into a failed run.
	Strict bool
	// DryRun reports missing packages without installing them.
	DryRun bool
	// NoColor disables colored output.
	NoColor bool
	// Out receives the console output; os.Stdout when nil.
	Out io.Writer
}

// ErrInstallFailures is returned in strict mode when at least one install failed.
var ErrInstallFailures = errors.New("some packages failed to install")

// Run checks every requirement and installs the missing ones.
//
//nolint:cyclop,funlen // Linear setup of the run reads better in one place.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "reqcheck")

	// Load settings, then let command line flags override them.
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	// Validate already rejected unknown levels.
	level, _ := logger.ParseLogLevel(cfg.LogLevel)
	logger.SetLevel(level)

	// Refuse to run next to another reqcheck run against the same interpreter.
	release, err := common.AcquireMarker(ctx, cfg.MarkerPath())
	if err != nil {
		return fmt.Errorf("acquire run marker: %w", err)
	}

	defer release()

	// Detect current system actor for the run log.
	if actor, actorErr := common.DetectActor(); actorErr != nil {
		logger.Warnf(ctx, "Unable to detect actor: %v", actorErr)
	} else {
		ctx = logger.WithKV(ctx, "actor", actor.String())
	}

	logger.InfoKV(ctx, "Starting run",
		"requirements", cfg.RequirementsFile,
		"python", cfg.Python,
		"registry", cfg.Registry,
		"dry_run", opts.DryRun)

	// Read the requirements file; a missing file aborts the run.
	list, err := requirements.NewFileRepository(cfg.RequirementsFile, cfg.CommentPrefix).Load(ctx)
	if err != nil {
		return fmt.Errorf("load requirements: %w", err)
	}

	for _, option := range list.Options {
		logger.Warnf(ctx, "Ignoring unsupported option line %q", option)
	}

	// Build the version lookup, the installer and the console.
	reg, err := registry.New(cfg)
	if err != nil {
		return fmt.Errorf("create registry: %w", err)
	}

	inst, err := installer.New(cfg)
	if err != nil {
		return fmt.Errorf("create installer: %w", err)
	}

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	con := console.New(out, opts.NoColor)

	r := &runner{
		registry:      reg,
		installer:     inst,
		console:       con,
		animationStep: cfg.AnimationStep,
		dryRun:        opts.DryRun,
	}

	if opts.NoColor {
		r.progressOptions = append(r.progressOptions, console.WithoutColor())
	}

	// Status block, then the install loop.
	report, err := r.check(ctx, list)
	if err != nil {
		return fmt.Errorf("check requirements: %w", err)
	}

	con.Separator()

	// Report failures now that the progress display no longer owns the terminal.
	for _, entry := range report.Failed() {
		logger.WarnKV(ctx, "Install failed",
			"requirement", entry.Requirement.Raw,
			"line", entry.Requirement.Line,
			"error", entry.Err)

		con.Failure(entry.Requirement.Raw, entry.Err)
	}

	con.Summary(report.Summary())

	failed := len(report.Failed())
	logger.InfoKV(ctx, "Run finished", "entries", len(report.Entries), "failed", failed)

	// Installer failures only fail the run in strict mode.
	if failed > 0 && cfg.Strict {
		return fmt.Errorf("%w: %d of %d", ErrInstallFailures, failed, len(report.Entries))
	}

	return nil
}

// loadConfig reads the settings file and applies command line overrides.
func loadConfig(opts *Options) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)

	if opts.ConfigExplicit {
		cfg, err = config.Load(opts.ConfigPath)
	} else {
		cfg, err = config.LoadOrDefault(opts.ConfigPath)
	}

	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	if opts.RequirementsFile != "" {
		cfg.RequirementsFile = opts.RequirementsFile
	}

	if opts.Python != "" {
		cfg.Python = opts.Python
	}

	if opts.Registry != "" {
		cfg.Registry = opts.Registry
	}

	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}

	cfg.Strict = cfg.Strict || opts.Strict

	if err = config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate configuration: %w", err)
	}

	return cfg, nil
}
