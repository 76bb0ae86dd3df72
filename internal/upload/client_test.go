package upload

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/tendant/simple-converter/internal/media"
)

func TestFetchSourceDetectsType(t *testing.T) {
	root := t.TempDir()
	pdf := []byte("%PDF-1.4\n%%EOF\n")
	if err := os.WriteFile(filepath.Join(root, "report.bin"), pdf, 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	store := NewStore(root, t.TempDir(), 0)
	f, err := store.FetchSource(context.Background(), "report.bin")
	if err != nil {
		t.Fatalf("FetchSource returned error: %v", err)
	}
	if f.Name != "report.bin" || f.MimeType != media.MimePDF {
		t.Fatalf("unexpected file: %s", f)
	}
}

func TestFetchSourceLimits(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "big.png"), make([]byte, 64), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	store := NewStore(root, "", 32)

	if _, err := store.FetchSource(context.Background(), "big.png"); !media.IsKind(err, media.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := store.FetchSource(context.Background(), "missing.png"); err == nil {
		t.Fatal("expected error for missing file")
	}
	if _, err := store.FetchSource(context.Background(), "."); !media.IsKind(err, media.KindValidation) {
		t.Fatalf("expected validation error for directory, got %v", err)
	}
}

func TestFetchSourcesKeepsGoing(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "a.png"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	store := NewStore(root, "", 0)

	files, failed := store.FetchSources(context.Background(), []string{"a.png", "gone.png"})
	if len(files) != 1 || len(failed) != 1 {
		t.Fatalf("files=%d failed=%d", len(files), len(failed))
	}
	if _, ok := failed["gone.png"]; !ok {
		t.Fatalf("missing failure for gone.png: %v", failed)
	}
}

func TestSaveArchive(t *testing.T) {
	out := t.TempDir()
	store := NewStore("", out, 0)

	path, n, err := store.SaveArchive(context.Background(), "job-1.zip", func(w io.Writer) (int, error) {
		_, err := w.Write([]byte("PK"))
		return 2, err
	})
	if err != nil {
		t.Fatalf("SaveArchive returned error: %v", err)
	}
	if path != filepath.Join(out, "job-1.zip") || n != 2 {
		t.Fatalf("path=%s entries=%d", path, n)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "PK" {
		t.Fatalf("archive contents %q, err %v", data, err)
	}
}

func TestSaveArchivePropagatesErrors(t *testing.T) {
	out := t.TempDir()
	store := NewStore("", out, 0)

	expected := errors.New("disk full")
	_, _, err := store.SaveArchive(context.Background(), "job.zip", func(io.Writer) (int, error) {
		return 0, expected
	})
	if !errors.Is(err, expected) {
		t.Fatalf("expected wrapped error, got %v", err)
	}

	entries, _ := os.ReadDir(out)
	if len(entries) != 0 {
		t.Fatalf("partial file left behind: %v", entries)
	}
}

func TestSaveFileStripsDirectories(t *testing.T) {
	out := t.TempDir()
	store := NewStore("", out, 0)

	path, err := store.SaveFile(context.Background(), media.File{Name: "../../etc/photo_converted.png", Data: []byte("x")})
	if err != nil {
		t.Fatalf("SaveFile returned error: %v", err)
	}
	if path != filepath.Join(out, "photo_converted.png") {
		t.Fatalf("unexpected path %s", path)
	}
}
