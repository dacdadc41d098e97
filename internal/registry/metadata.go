package registry

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/oshokin/reqcheck/internal/domain/requirement"
	"github.com/oshokin/reqcheck/internal/logger"
)

const (
	distInfoSuffix = ".dist-info"
	eggInfoSuffix  = ".egg-info"

	distInfoMetadata = "METADATA"
	eggInfoMetadata  = "PKG-INFO"

	// searchPathScript prints the interpreter's sys.path, one entry per line.
	searchPathScript = "import sys\nfor p in sys.path:\n    print(p)"
)

// SearchPathCommand returns the template that prints the interpreter's search path.
func SearchPathCommand() []string {
	return []string{"{python}", "-c", searchPathScript}
}

// MetadataRegistry finds installed distributions by scanning metadata directories.
// Directories are searched in order and the first match wins.
type MetadataRegistry struct {
	// paths are the directories to scan; nil until resolved when pathsCommand is set.
	paths []string
	// pathsCommand prints the directories to scan, one per line.
	pathsCommand []string
}

// NewMetadataRegistry creates a registry scanning the given directories.
func NewMetadataRegistry(paths []string) *MetadataRegistry {
	return &MetadataRegistry{
		paths: append([]string(nil), paths...),
	}
}

// NewInterpreterMetadataRegistry creates a registry whose directories are printed by command.
// The command runs once, on the first lookup.
func NewInterpreterMetadataRegistry(command []string) (*MetadataRegistry, error) {
	if len(command) == 0 || command[0] == "" {
		return nil, errEmptyCommand
	}

	return &MetadataRegistry{
		pathsCommand: append([]string(nil), command...),
	}, nil
}

// Version implements Registry.
func (r *MetadataRegistry) Version(ctx context.Context, name string) (string, error) {
	paths, err := r.searchPaths(ctx)
	if err != nil {
		return "", err
	}

	want := requirement.NormalizeName(name)
	if want == "" {
		return "", fmt.Errorf("empty name: %w", ErrPackageNotFound)
	}

	for _, dir := range paths {
		version, found := findInDirectory(ctx, dir, want)
		if found {
			return version, nil
		}
	}

	return "", fmt.Errorf("%s: %w", name, ErrPackageNotFound)
}

// searchPaths returns the directories to scan, running pathsCommand on first use.
func (r *MetadataRegistry) searchPaths(ctx context.Context) ([]string, error) {
	if r.paths != nil || len(r.pathsCommand) == 0 {
		return r.paths, nil
	}

	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, r.pathsCommand[0], r.pathsCommand[1:]...) //nolint:gosec // Interpreter comes from settings.
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if message := strings.TrimSpace(stderr.String()); message != "" {
			return nil, fmt.Errorf("query interpreter search path: %w: %s", err, message)
		}

		return nil, fmt.Errorf("query interpreter search path: %w", err)
	}

	paths := make([]string, 0)

	for line := range strings.Lines(stdout.String()) {
		if path := strings.TrimSpace(line); path != "" {
			paths = append(paths, path)
		}
	}

	logger.DebugKV(ctx, "Resolved interpreter search path", "paths", paths)

	r.paths = paths

	return r.paths, nil
}

// findInDirectory looks for metadata of the normalized distribution name in dir.
func findInDirectory(ctx context.Context, dir, want string) (string, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		// Zip archives and missing directories are legitimate sys.path members.
		if !errors.Is(err, os.ErrNotExist) {
			logger.DebugKV(ctx, "Skipping search path entry", "path", dir, "error", err)
		}

		return "", false
	}

	for _, entry := range entries {
		distName, dirVersion, metadataFile, ok := parseMetadataEntry(entry)
		if !ok || requirement.NormalizeName(distName) != want {
			continue
		}

		version, err := readVersionFile(filepath.Join(dir, metadataFile))
		if err != nil {
			logger.DebugKV(ctx, "Unreadable distribution metadata",
				"path", filepath.Join(dir, entry.Name()), "error", err)
		}

		if version == "" {
			version = dirVersion
		}

		return version, true
	}

	return "", false
}

// parseMetadataEntry splits a metadata directory entry name into distribution name and version,
// and returns the relative path of its metadata file.
func parseMetadataEntry(entry os.DirEntry) (name, version, metadataFile string, ok bool) {
	fileName := entry.Name()

	switch {
	case strings.HasSuffix(fileName, distInfoSuffix) && entry.IsDir():
		name, version, _ = strings.Cut(strings.TrimSuffix(fileName, distInfoSuffix), "-")
		metadataFile = filepath.Join(fileName, distInfoMetadata)
	case strings.HasSuffix(fileName, eggInfoSuffix):
		// pkg-1.0-py3.12.egg-info: the version is the second dash-separated part.
		parts := strings.Split(strings.TrimSuffix(fileName, eggInfoSuffix), "-")

		name = parts[0]
		if len(parts) > 1 {
			version = parts[1]
		}

		// An egg-info may be a directory or a bare PKG-INFO file.
		metadataFile = fileName
		if entry.IsDir() {
			metadataFile = filepath.Join(fileName, eggInfoMetadata)
		}
	default:
		return "", "", "", false
	}

	return name, version, metadataFile, name != ""
}
