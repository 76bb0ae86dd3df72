package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/tendant/simple-converter/internal/batch"
	"github.com/tendant/simple-converter/internal/process"
)

type SummaryRow struct {
	Label string
	Value string
}

func RenderSummary(rows []SummaryRow) string {
	labelWidth := 0
	valueWidth := 0
	for _, row := range rows {
		if len(row.Label) > labelWidth {
			labelWidth = len(row.Label)
		}
		if len(row.Value) > valueWidth {
			valueWidth = len(row.Value)
		}
	}

	hline := strings.Repeat("-", labelWidth+valueWidth+3)
	lines := []string{hline}

	for _, row := range rows {
		label := padRight(row.Label, labelWidth)
		value := padRight(row.Value, valueWidth)
		line := fmt.Sprintf("%s | %s", labelStyle.Render(label), valueStyle.Render(value))
		lines = append(lines, line)
	}

	lines = append(lines, hline)
	return strings.Join(lines, "\n")
}

// StatsRows lays out batch statistics for RenderSummary.
func StatsRows(s batch.Stats) []SummaryRow {
	return []SummaryRow{
		{Label: "Files processed", Value: fmt.Sprintf("%d", s.Completed)},
		{Label: "Failed", Value: fmt.Sprintf("%d", s.Failed)},
		{Label: "Rejected at intake", Value: fmt.Sprintf("%d", s.Rejected)},
		{Label: "Original size", Value: FormatBytes(s.OriginalBytes)},
		{Label: "Output size", Value: FormatBytes(s.OutputBytes)},
		{Label: "Savings", Value: fmt.Sprintf("%.1f%%", s.SavingsPercent)},
	}
}

// RenderItems lists every item with its outcome, one per line.
func RenderItems(items []batch.Item) string {
	lines := make([]string, 0, len(items))
	for _, it := range items {
		switch it.Status {
		case process.JobStatusCompleted:
			lines = append(lines, fmt.Sprintf("%s %s %s",
				okStyle.Render("✓"),
				labelStyle.Render(it.OutputName),
				dimStyle.Render(fmt.Sprintf("(%s → %s)", FormatBytes(it.Size), FormatBytes(it.OutputSize)))))
		case process.JobStatusError:
			lines = append(lines, fmt.Sprintf("%s %s %s",
				errStyle.Render("✗"),
				labelStyle.Render(it.Name),
				errStyle.Render(it.Error)))
		default:
			lines = append(lines, fmt.Sprintf("%s %s %s",
				dimStyle.Render("·"),
				labelStyle.Render(it.Name),
				dimStyle.Render(string(it.Status))))
		}
	}
	return strings.Join(lines, "\n")
}

func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

var (
	valueStyle = lipgloss.NewStyle().Foreground(ColorInk).Bold(true)
	okStyle    = lipgloss.NewStyle().Foreground(ColorSuccess)
	errStyle   = lipgloss.NewStyle().Foreground(ColorError)
)
