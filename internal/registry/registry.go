package registry

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/textproto"
	"os"

	"github.com/oshokin/reqcheck/internal/config"
)

// Registry resolves installed package versions.
type Registry interface {
	// Version returns the installed version of the named distribution,
	// or an error wrapping ErrPackageNotFound when it is not installed.
	Version(ctx context.Context, name string) (string, error)
}

var (
	// ErrPackageNotFound indicates that no installed distribution matches the name.
	ErrPackageNotFound = errors.New("package metadata not found")

	// errEmptyCommand is returned when a command template has no executable.
	errEmptyCommand = errors.New("command is empty")
)

// New builds the registry selected by cfg.Registry.
//
//nolint:ireturn // Callers only need the interface.
func New(cfg *config.Config) (Registry, error) {
	switch cfg.Registry {
	case config.RegistryPip:
		return NewPipRegistry(cfg.Expand(cfg.RegistryCommand))
	case config.RegistryMetadata, "":
		if len(cfg.SitePackages) > 0 {
			return NewMetadataRegistry(cfg.SitePackages), nil
		}

		return NewInterpreterMetadataRegistry(cfg.Expand(SearchPathCommand()))
	default:
		return nil, fmt.Errorf("unsupported registry: %s", cfg.Registry)
	}
}

// readVersionHeader reads the Version field from an RFC 822 style metadata file
// (METADATA, PKG-INFO or `pip show` output).
func readVersionHeader(r io.Reader) (string, error) {
	header, err := textproto.NewReader(bufio.NewReader(r)).ReadMIMEHeader()
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}

	return header.Get("Version"), nil
}

// readVersionFile is readVersionHeader applied to a file on disk.
func readVersionFile(path string) (string, error) {
	file, err := os.Open(path) //nolint:gosec // Path comes from a directory listing of the search path.
	if err != nil {
		return "", err
	}

	defer func() {
		_ = file.Close()
	}()

	return readVersionHeader(file)
}
