package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tendant/simple-converter/internal/convert"
	"github.com/tendant/simple-converter/internal/media"
	"github.com/tendant/simple-converter/internal/tui"
)

var (
	convFormat  string
	convPage    int
	convScale   float64
	convQuality float64
	convWidth   int
	convHeight  int
	convTimeout time.Duration
)

var fileCmd = &cobra.Command{
	Use:   "file [flags] <path>",
	Short: "Convert one file to jpg, png, webp, pdf or png-no-bg",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, store, logger, err := setup()
		if err != nil {
			return err
		}
		defer p.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), convTimeout)
		defer cancel()

		src, err := store.FetchSource(ctx, args[0])
		if err != nil {
			return err
		}

		start := time.Now()
		res := p.Convert(ctx, convert.Request{
			Source:    src,
			Format:    convFormat,
			Page:      convPage,
			Scale:     convScale,
			Quality:   convQuality,
			MaxWidth:  convWidth,
			MaxHeight: convHeight,
		}, convert.ObserverFunc(func(e convert.Event) {
			logger.Debug("progress", "stage", e.Stage, "percent", e.Percent)
		}))
		if !res.OK() {
			return res.Err
		}

		path, err := store.SaveFile(ctx, *res.Output)
		if err != nil {
			return err
		}

		rows := []tui.SummaryRow{
			{Label: "Input", Value: fmt.Sprintf("%s (%s)", src.Name, tui.FormatBytes(src.Size()))},
			{Label: "Output", Value: fmt.Sprintf("%s (%s)", res.Output.Name, tui.FormatBytes(res.Output.Size()))},
			{Label: "Time", Value: time.Since(start).Round(time.Millisecond).String()},
		}
		fmt.Fprintln(os.Stdout, tui.RenderSummary(rows))
		fmt.Fprintf(os.Stdout, "Written to: %s\n", absPath(path))
		return nil
	},
}

var probeCmd = &cobra.Command{
	Use:   "probe <path>",
	Short: "Show file metadata without converting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, store, _, err := setup()
		if err != nil {
			return err
		}
		defer p.Close()

		src, err := store.FetchSource(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		info, err := p.Probe(cmd.Context(), src)
		if err != nil {
			return err
		}

		rows := []tui.SummaryRow{
			{Label: "MIME type", Value: info.MimeType},
			{Label: "Dimensions", Value: fmt.Sprintf("%dx%d", info.Width, info.Height)},
			{Label: "File size", Value: tui.FormatBytes(info.Size)},
		}
		if info.Pages > 0 {
			rows = append(rows, tui.SummaryRow{Label: "Pages", Value: fmt.Sprintf("%d", info.Pages)})
		} else {
			rows = append(rows, tui.SummaryRow{Label: "EXIF tags", Value: fmt.Sprintf("%d", info.Tags)})
		}
		fmt.Fprintln(os.Stdout, tui.RenderSummary(rows))
		return nil
	},
}

func init() {
	fileCmd.Flags().StringVarP(&convFormat, "format", "f", "png", "target format ("+media.FormatList()+")")
	fileCmd.Flags().IntVar(&convPage, "page", 0, "PDF page to render (default 1)")
	fileCmd.Flags().Float64Var(&convScale, "scale", 0, "PDF render scale (default 2)")
	fileCmd.Flags().Float64Var(&convQuality, "quality", 0, "lossy encode quality in (0, 1]")
	fileCmd.Flags().IntVar(&convWidth, "max-width", 0, "fit output within this width")
	fileCmd.Flags().IntVar(&convHeight, "max-height", 0, "fit output within this height")
	fileCmd.Flags().DurationVar(&convTimeout, "timeout", 2*time.Minute, "conversion timeout")

	rootCmd.AddCommand(fileCmd)
	rootCmd.AddCommand(probeCmd)
}
