package ledger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// LocalArchiver implements the Archiver interface on the local filesystem.
// Used in development and tests, where there is no Drive folder to talk to.
type LocalArchiver struct {
	basePath string
}

// NewLocalArchiver creates a new LocalArchiver instance
func NewLocalArchiver(basePath string) (*LocalArchiver, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating archive directory: %w", err)
	}
	return &LocalArchiver{basePath: basePath}, nil
}

// Archive writes the file under a unique name and returns its path.
func (l *LocalArchiver) Archive(_ context.Context, filename string, data []byte, _ string) (string, error) {
	name := fmt.Sprintf("%s_%s", uuid.NewString(), sanitizeFilename(filename))
	path := filepath.Join(l.basePath, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing file: %w", err)
	}
	return path, nil
}
