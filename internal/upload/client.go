// internal/upload/client.go
package upload

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tendant/simple-converter/internal/media"
)

// Store reads source files and persists outputs on the local filesystem.
// Relative source paths resolve against Root; outputs are written under
// OutputDir.
type Store struct {
	Root      string
	OutputDir string
	MaxBytes  int64
}

func NewStore(root, outputDir string, maxBytes int64) *Store {
	return &Store{Root: root, OutputDir: outputDir, MaxBytes: maxBytes}
}

func (s *Store) resolve(path string) string {
	if filepath.IsAbs(path) || s.Root == "" {
		return filepath.Clean(path)
	}
	return filepath.Join(s.Root, path)
}

// FetchSource loads a source file and detects its media type.
func (s *Store) FetchSource(ctx context.Context, path string) (media.File, error) {
	if err := ctx.Err(); err != nil {
		return media.File{}, err
	}
	full := s.resolve(path)

	info, err := os.Stat(full)
	if err != nil {
		return media.File{}, fmt.Errorf("stat source: %w", err)
	}
	if info.IsDir() {
		return media.File{}, media.Errorf(media.KindValidation, nil, "%s is a directory", path)
	}
	if s.MaxBytes > 0 && info.Size() > s.MaxBytes {
		return media.File{}, media.Errorf(media.KindValidation, nil, "%s is %d bytes, upload limit is %d", path, info.Size(), s.MaxBytes)
	}

	data, err := os.ReadFile(full)
	if err != nil {
		return media.File{}, fmt.Errorf("read source: %w", err)
	}
	return media.NewFile(filepath.Base(full), "", data), nil
}

// FetchSources loads every path. Unreadable paths are returned separately
// so a batch can still run over the rest.
func (s *Store) FetchSources(ctx context.Context, paths []string) ([]media.File, map[string]error) {
	files := make([]media.File, 0, len(paths))
	failed := map[string]error{}
	for _, p := range paths {
		f, err := s.FetchSource(ctx, p)
		if err != nil {
			failed[p] = err
			continue
		}
		files = append(files, f)
	}
	return files, failed
}

// SaveFile writes f under OutputDir and returns its path.
func (s *Store) SaveFile(ctx context.Context, f media.File) (string, error) {
	return s.write(ctx, f.Name, func(w io.Writer) error {
		_, err := w.Write(f.Data)
		return err
	})
}

// SaveArchive streams an archive into OutputDir/{name}. The file only
// appears once fully written.
func (s *Store) SaveArchive(ctx context.Context, name string, write func(io.Writer) (int, error)) (string, int, error) {
	entries := 0
	path, err := s.write(ctx, name, func(w io.Writer) error {
		n, err := write(w)
		entries = n
		return err
	})
	return path, entries, err
}

func (s *Store) write(ctx context.Context, name string, fill func(io.Writer) error) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "", media.Errorf(media.KindValidation, nil, "invalid output name")
	}

	dir := s.OutputDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	temp, err := os.CreateTemp(dir, ".partial-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if err := fill(temp); err != nil {
		temp.Close()
		os.Remove(temp.Name())
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := temp.Close(); err != nil {
		os.Remove(temp.Name())
		return "", fmt.Errorf("close temp file: %w", err)
	}

	final := filepath.Join(dir, name)
	if err := os.Rename(temp.Name(), final); err != nil {
		os.Remove(temp.Name())
		return "", fmt.Errorf("move %s into place: %w", name, err)
	}
	return final, nil
}
