package requirements

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oshokin/reqcheck/internal/domain/requirement"
)

// Repository loads the list of required packages.
type Repository interface {
	Load(ctx context.Context) (*requirement.List, error)
}

// FileRepository reads a newline-delimited requirements file.
type FileRepository struct {
	// path is the filesystem location of the requirements file.
	path string
	// commentPrefix marks lines to ignore.
	commentPrefix string
}

// ErrNotFound is returned when the requirements file does not exist.
var ErrNotFound = errors.New("requirements file not found")

// NewFileRepository creates a repository reading the file at path.
func NewFileRepository(path, commentPrefix string) *FileRepository {
	return &FileRepository{
		path:          filepath.Clean(path),
		commentPrefix: commentPrefix,
	}
}

// Path returns the location of the requirements file.
func (r *FileRepository) Path() string {
	return r.path
}

// Load reads and parses the requirements file.
func (r *FileRepository) Load(_ context.Context) (*requirement.List, error) {
	file, err := os.Open(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", r.path, ErrNotFound)
		}

		return nil, fmt.Errorf("open requirements file: %w", err)
	}

	defer func() {
		_ = file.Close()
	}()

	list, err := requirement.Parse(file, r.commentPrefix)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", r.path, err)
	}

	return list, nil
}
