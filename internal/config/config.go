package config

import (
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/reqcheck/internal/logger"
)

// Config holds the settings of a reqcheck run.
type Config struct {
	// RequirementsFile is the newline-delimited list of packages to check.
	RequirementsFile string `yaml:"requirements_file"`
	// Python is the interpreter whose environment is checked and modified.
	Python string `yaml:"python"`
	// Installer is the argv prefix used to install one package; the requirement is appended.
	// The {python} token is replaced by Python.
	Installer []string `yaml:"installer"`
	// Registry selects how installed versions are resolved: "metadata" or "pip".
	Registry string `yaml:"registry"`
	// RegistryCommand is the argv prefix used by the pip registry; the package name is appended.
	RegistryCommand []string `yaml:"registry_command"`
	// SitePackages overrides the directories scanned by the metadata registry.
	// When empty they are taken from the interpreter's sys.path.
	SitePackages []string `yaml:"site_packages,omitempty"`
	// CommentPrefix marks lines of the requirements file that are ignored.
	CommentPrefix string `yaml:"comment_prefix"`
	// AnimationStep is the pause between steps of the install animation, 0 disables it.
	AnimationStep time.Duration `yaml:"animation_step"`
	// InstallTimeout bounds a single installer process, 0 means no limit.
	InstallTimeout time.Duration `yaml:"install_timeout"`
	// MarkerFile guards against two runs modifying the same environment.
	// When empty it is derived from Python, see MarkerPath.
	MarkerFile string `yaml:"marker_file,omitempty"`
	// Strict makes installer failures fail the whole run.
	Strict bool `yaml:"strict"`
	// LogLevel is the minimum level of diagnostic logs written to stderr.
	LogLevel string `yaml:"log_level"`
}

const (
	// DefaultConfigFilename is the default filename for reqcheck settings.
	DefaultConfigFilename = "reqcheck.yaml"

	// DefaultRequirementsFilename is the requirements file read when none is given.
	DefaultRequirementsFilename = "requirements.txt"

	// DefaultCommentPrefix starts a comment line in the requirements file.
	DefaultCommentPrefix = "#"

	// DefaultAnimationStep is the pause between the ten steps of the install animation.
	DefaultAnimationStep = 20 * time.Millisecond

	// DefaultLogLevel keeps diagnostic logs out of the way of the console UI.
	DefaultLogLevel = "warn"

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600

	// RegistryMetadata resolves versions by scanning installed distribution metadata.
	RegistryMetadata = "metadata"
	// RegistryPip resolves versions with `pip show`.
	RegistryPip = "pip"

	// PythonToken is replaced by the configured interpreter in command templates.
	PythonToken = "{python}"

	markerDirectory   = "reqcheck"
	markerHashLength  = 8
	markerFilePattern = "reqcheck-%s.marker"
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errUnknownRegistry is returned for an unsupported registry kind.
	errUnknownRegistry = errors.New("unknown registry")
	// errNegativeDuration is returned when a duration setting is below zero.
	errNegativeDuration = errors.New("duration must not be negative")
	// errUnknownLogLevel is returned when the log level cannot be parsed.
	errUnknownLogLevel = errors.New("unknown log level")
)

// DefaultInstaller returns the default installer template: a quiet single-target pip install.
func DefaultInstaller() []string {
	return []string{PythonToken, "-m", "pip", "install", "-q"}
}

// DefaultRegistryCommand returns the default `pip show` template used by the pip registry.
func DefaultRegistryCommand() []string {
	return []string{PythonToken, "-m", "pip", "show"}
}

// DefaultPython returns the interpreter of the active virtualenv, or the one found on PATH.
func DefaultPython() string {
	if venv := os.Getenv("VIRTUAL_ENV"); venv != "" {
		if runtime.GOOS == "windows" {
			return filepath.Join(venv, "Scripts", "python.exe")
		}

		return filepath.Join(venv, "bin", "python")
	}

	if runtime.GOOS == "windows" {
		return "python"
	}

	return "python3"
}

// DefaultMarkerFile returns the marker path for runs of the current user against python.
// It lives in the user cache directory, or in a per-user directory under the temp dir
// when there is no cache directory.
func DefaultMarkerFile(python string) string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = filepath.Join(os.TempDir(), markerDirectory+"-"+strconv.Itoa(os.Getuid()))
	} else {
		dir = filepath.Join(dir, markerDirectory)
	}

	// Relative interpreter paths name the same environment from any working directory.
	if strings.ContainsRune(python, filepath.Separator) {
		if absolute, absErr := filepath.Abs(python); absErr == nil {
			python = absolute
		}
	}

	sum := sha512.Sum512([]byte(python))

	return filepath.Join(dir, fmt.Sprintf(markerFilePattern, hex.EncodeToString(sum[:markerHashLength])))
}

// MarkerPath returns MarkerFile, or the default marker of the configured interpreter.
func (c *Config) MarkerPath() string {
	if c.MarkerFile != "" {
		return c.MarkerFile
	}

	return DefaultMarkerFile(c.Python)
}

// Default returns a configuration populated with defaults.
func Default() *Config {
	return &Config{
		RequirementsFile: DefaultRequirementsFilename,
		Python:           DefaultPython(),
		Installer:        DefaultInstaller(),
		Registry:         RegistryMetadata,
		RegistryCommand:  DefaultRegistryCommand(),
		CommentPrefix:    DefaultCommentPrefix,
		AnimationStep:    DefaultAnimationStep,
		LogLevel:         DefaultLogLevel,
	}
}

// Load reads configuration from the provided path on top of the defaults and validates it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	cfg := Default()
	if err = yaml.Unmarshal(contents, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err = Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadOrDefault behaves like Load but returns the defaults when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}

	return cfg, err
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills empty fields with defaults and rejects values reqcheck cannot work with.
//
//nolint:cyclop // A flat list of field checks reads better than helpers.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.RequirementsFile == "" {
		cfg.RequirementsFile = DefaultRequirementsFilename
	}

	if cfg.Python == "" {
		cfg.Python = DefaultPython()
	}

	if len(cfg.Installer) == 0 {
		cfg.Installer = DefaultInstaller()
	}

	if len(cfg.RegistryCommand) == 0 {
		cfg.RegistryCommand = DefaultRegistryCommand()
	}

	cfg.Registry = strings.ToLower(strings.TrimSpace(cfg.Registry))
	switch cfg.Registry {
	case "":
		cfg.Registry = RegistryMetadata
	case RegistryMetadata, RegistryPip:
	default:
		return fmt.Errorf("%w: %q", errUnknownRegistry, cfg.Registry)
	}

	if cfg.CommentPrefix == "" {
		cfg.CommentPrefix = DefaultCommentPrefix
	}

	if cfg.AnimationStep < 0 {
		return fmt.Errorf("animation_step: %w", errNegativeDuration)
	}

	if cfg.InstallTimeout < 0 {
		return fmt.Errorf("install_timeout: %w", errNegativeDuration)
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}

	if _, ok := logger.ParseLogLevel(cfg.LogLevel); !ok {
		return fmt.Errorf("%w: %q", errUnknownLogLevel, cfg.LogLevel)
	}

	return nil
}

// Expand returns a copy of argv with the {python} token replaced by the configured interpreter.
func (c *Config) Expand(argv []string) []string {
	expanded := make([]string, len(argv))
	for i, arg := range argv {
		expanded[i] = strings.ReplaceAll(arg, PythonToken, c.Python)
	}

	return expanded
}
