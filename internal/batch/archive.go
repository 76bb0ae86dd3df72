package batch

import (
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/tendant/simple-converter/internal/process"
)

// Stats summarises a batch. Byte totals cover completed items only.
type Stats struct {
	Total          int     `json:"total"`
	Pending        int     `json:"pending"`
	Running        int     `json:"running"`
	Completed      int     `json:"completed"`
	Failed         int     `json:"failed"`
	Rejected       int     `json:"rejected"`
	OriginalBytes  int64   `json:"original_bytes"`
	OutputBytes    int64   `json:"output_bytes"`
	SavedBytes     int64   `json:"saved_bytes"`
	SavingsPercent float64 `json:"savings_percent"`
}

func (b *Batch) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	s := Stats{Total: len(b.entries), Rejected: b.rejected}
	for _, e := range b.entries {
		switch {
		case e.job.Status == process.JobStatusPending:
			s.Pending++
		case e.job.IsRunning():
			s.Running++
		case e.job.Status == process.JobStatusError:
			s.Failed++
		case e.job.Status == process.JobStatusCompleted:
			s.Completed++
			s.OriginalBytes += e.source.Size()
			s.OutputBytes += e.item.OutputSize
		}
	}
	s.SavedBytes = s.OriginalBytes - s.OutputBytes
	if s.OriginalBytes > 0 {
		s.SavingsPercent = float64(s.SavedBytes) / float64(s.OriginalBytes) * 100
	}
	return s
}

// ArchiveName is the suggested download name for the batch archive.
func (b *Batch) ArchiveName() string {
	if b.Operation == OpCompress {
		return "compressed-images.zip"
	}
	return "converted-files.zip"
}

// Archive writes one deflated ZIP entry per completed item with an output
// and returns the number of entries. Pending and failed items are skipped.
// Duplicate output names get a -2, -3 ... suffix.
func (b *Batch) Archive(w io.Writer) (int, error) {
	b.mu.RLock()
	var outputs []Item
	for _, e := range b.entries {
		if e.job.Status == process.JobStatusCompleted && e.item.Output != nil {
			outputs = append(outputs, e.snapshot())
		}
	}
	b.mu.RUnlock()

	zw := zip.NewWriter(w)
	names := make(map[string]int, len(outputs))
	now := time.Now()
	for _, it := range outputs {
		name := uniqueName(names, it.Output.Name)
		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: now,
		})
		if err != nil {
			return 0, fmt.Errorf("create archive entry %s: %w", name, err)
		}
		if _, err := fw.Write(it.Output.Data); err != nil {
			return 0, fmt.Errorf("write archive entry %s: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return 0, fmt.Errorf("finish archive: %w", err)
	}
	return len(outputs), nil
}

func uniqueName(seen map[string]int, name string) string {
	key := strings.ToLower(name)
	n := seen[key]
	seen[key] = n + 1
	if n == 0 {
		return name
	}
	ext := path.Ext(name)
	candidate := fmt.Sprintf("%s-%d%s", strings.TrimSuffix(name, ext), n+1, ext)
	// a literal "x-2.png" input may already occupy the suffixed name
	return uniqueName(seen, candidate)
}
