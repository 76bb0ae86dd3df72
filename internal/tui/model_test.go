package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tendant/simple-converter/internal/batch"
	"github.com/tendant/simple-converter/internal/convert"
	"github.com/tendant/simple-converter/internal/process"
)

func TestModelCountsItems(t *testing.T) {
	updates := make(chan Update)
	var m tea.Model = NewModel("convert", 2, updates)

	steps := []Update{
		{Item: &batch.Item{Name: "a.png", Status: process.JobStatusConverting}},
		{Progress: &convert.Event{Stage: convert.StageDecode, Percent: 30}},
		{Item: &batch.Item{Name: "a.png", Status: process.JobStatusCompleted, Size: 1000, OutputSize: 400}},
		{Item: &batch.Item{Name: "b.png", Status: process.JobStatusError, Error: "decode failed"}},
	}
	for _, u := range steps {
		m, _ = m.Update(updateMsg(u))
	}

	got := m.(Model)
	if got.done != 1 || got.failed != 1 || got.saved != 600 {
		t.Fatalf("done=%d failed=%d saved=%d", got.done, got.failed, got.saved)
	}
	if view := got.View(); !strings.Contains(view, "Files: 2/2") {
		t.Fatalf("view missing progress:\n%s", view)
	}

	m, cmd := m.Update(doneMsg{})
	if cmd == nil || m.View() != "" {
		t.Fatal("done message should quit and clear the view")
	}
}

func TestRenderSummary(t *testing.T) {
	out := RenderSummary(StatsRows(batch.Stats{Completed: 3, Failed: 1, OriginalBytes: 4096, OutputBytes: 1024, SavingsPercent: 75}))
	for _, want := range []string{"Files processed", "4.0 KB", "75.0%"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestRenderItems(t *testing.T) {
	out := RenderItems([]batch.Item{
		{Name: "a.png", OutputName: "a_converted.webp", Status: process.JobStatusCompleted},
		{Name: "b.png", Status: process.JobStatusError, Error: "unsupported"},
	})
	if !strings.Contains(out, "a_converted.webp") || !strings.Contains(out, "unsupported") {
		t.Fatalf("unexpected items output:\n%s", out)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := map[int64]string{
		0:                "0 B",
		1023:             "1023 B",
		1536:             "1.5 KB",
		10 * 1024 * 1024: "10.0 MB",
	}
	for in, want := range tests {
		if got := FormatBytes(in); got != want {
			t.Errorf("FormatBytes(%d) = %s, want %s", in, got, want)
		}
	}
}
