package output

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// ErrExists is returned by FileWriter.Write when the target exists and
// overwriting was not requested.
var ErrExists = errors.New("file already exists")

// FileWriter writes a whole file at once, creating parent directories as
// needed. The content is staged in a temporary file next to the target and
// renamed into place.
type FileWriter struct {
	path      string
	perm      os.FileMode
	overwrite bool
	logger    *slog.Logger
}

// FileWriterOption configures a FileWriter.
type FileWriterOption func(*FileWriter)

// WithPermissions overrides the default file permissions (0644).
func WithPermissions(perm os.FileMode) FileWriterOption {
	return func(fw *FileWriter) {
		fw.perm = perm
	}
}

// WithOverwrite allows replacing an existing file.
func WithOverwrite(overwrite bool) FileWriterOption {
	return func(fw *FileWriter) {
		fw.overwrite = overwrite
	}
}

// WithLogger sets a logger for the FileWriter.
func WithLogger(logger *slog.Logger) FileWriterOption {
	return func(fw *FileWriter) {
		fw.logger = logger
	}
}

// NewFileWriter creates a writer for path.
func NewFileWriter(path string, opts ...FileWriterOption) *FileWriter {
	fw := &FileWriter{
		path:   path,
		perm:   0o644,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(fw)
	}

	return fw
}

// Write replaces the file content with data.
func (fw *FileWriter) Write(data []byte) error {
	if _, err := os.Stat(fw.path); err == nil {
		if !fw.overwrite {
			return fmt.Errorf("%s: %w", fw.path, ErrExists)
		}

		fw.logger.Warn("overwriting existing file", slog.String("path", fw.path))
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("checking %s: %w", fw.path, err)
	}

	dir := filepath.Dir(fw.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(fw.path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	defer os.Remove(tmp.Name()) //nolint:errcheck // gone after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", tmp.Name(), err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmp.Name(), err)
	}

	if err := os.Chmod(tmp.Name(), fw.perm); err != nil {
		return fmt.Errorf("setting permissions on %s: %w", tmp.Name(), err)
	}

	if err := os.Rename(tmp.Name(), fw.path); err != nil {
		return fmt.Errorf("writing file %s: %w", fw.path, err)
	}

	return nil
}

// Path returns the target file path.
func (fw *FileWriter) Path() string {
	return fw.path
}
