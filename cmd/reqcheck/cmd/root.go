package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/reqcheck/internal/config"
	"github.com/oshokin/reqcheck/internal/service/checker"
	"github.com/oshokin/reqcheck/internal/version"
)

var (
	// checkerOptions collects flag values for the run.
	checkerOptions = &checker.Options{}

	// rootCmd represents the base command for checking requirements.
	rootCmd = &cobra.Command{
		Use:   "reqcheck [requirements-file]",
		Short: "Install missing Python packages from a requirements file.",
		Long: `Reads a requirements file, reports which packages are already installed
in the target Python environment and installs the missing ones one at a time
with pip, showing progress on the console.

Blank lines and lines starting with the comment prefix are ignored.
Installer failures are reported and the run continues; use --strict to make
them fail the run. Settings are read from reqcheck.yaml when it exists.`,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			// A positional argument wins over --requirements.
			if len(args) > 0 {
				checkerOptions.RequirementsFile = args[0]
			}

			checkerOptions.ConfigExplicit = cmd.Flags().Changed("config")
			checkerOptions.Out = cmd.OutOrStdout()

			return checker.Run(ctx, checkerOptions)
		},
	}
)

// Execute runs the reqcheck CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	flags := rootCmd.Flags()

	flags.StringVarP(&checkerOptions.ConfigPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	flags.StringVarP(&checkerOptions.RequirementsFile, "requirements", "r", "",
		"requirements file (default "+config.DefaultRequirementsFilename+")")
	flags.StringVar(&checkerOptions.Python, "python", "", "Python interpreter of the target environment")
	flags.StringVar(&checkerOptions.Registry, "registry", "",
		"version lookup: "+config.RegistryMetadata+" or "+config.RegistryPip)
	flags.StringVar(&checkerOptions.LogLevel, "log-level", "", "diagnostic log level (debug, info, warn, error)")
	flags.BoolVar(&checkerOptions.Strict, "strict", false, "fail the run when any install fails")
	flags.BoolVar(&checkerOptions.DryRun, "dry-run", false, "report missing packages without installing them")
	flags.BoolVar(&checkerOptions.NoColor, "no-color", false, "disable colored output")
}
