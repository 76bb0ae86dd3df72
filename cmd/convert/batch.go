package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"sort"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/tendant/simple-converter/internal/batch"
	"github.com/tendant/simple-converter/internal/media"
	"github.com/tendant/simple-converter/internal/tui"
)

var (
	batchFormat   string
	batchPage     int
	batchScale    float64
	batchArchive  bool
	batchProgress bool
)

var compressCmd = &cobra.Command{
	Use:   "compress [flags] <path>...",
	Short: "Compress images one by one and package them into a ZIP archive",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatch(cmd.Context(), batch.Options{Operation: batch.OpCompress}, args)
	},
}

var batchCmd = &cobra.Command{
	Use:   "batch [flags] <path>...",
	Short: "Convert many files to one target format",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatch(cmd.Context(), batch.Options{
			Operation: batch.OpConvert,
			Format:    batchFormat,
			Page:      batchPage,
			Scale:     batchScale,
		}, args)
	},
}

func runBatch(ctx context.Context, opts batch.Options, args []string) error {
	p, store, logger, err := setup()
	if err != nil {
		return err
	}
	defer p.Close()
	opts.MaxSourceBytes = p.Options().MaxSourceBytes

	paths, err := collectPaths(args)
	if err != nil {
		return err
	}
	files, failures := store.FetchSources(ctx, paths)
	for path, ferr := range failures {
		logger.Warn("skipping unreadable file", "path", path, "err", ferr)
	}

	b, err := batch.Intake(opts, files)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	var hooks batch.Hooks
	var uiDone chan struct{}
	var updates chan tui.Update
	if batchProgress {
		updates = make(chan tui.Update, 64)
		hooks = tui.Hooks(updates)
		program := tea.NewProgram(tui.NewModel(fmt.Sprintf("%s %d files", b.Operation, len(b.Items())), len(b.Items()), updates))

		uiDone = make(chan struct{})
		go func() {
			_, _ = program.Run()
			// ctrl+c in the UI stops the batch too
			stop()
			close(uiDone)
			for range updates {
			}
		}()
	}

	summary, runErr := b.Run(ctx, p, hooks)
	if updates != nil {
		close(updates)
		<-uiDone
	}

	fmt.Fprintln(os.Stdout, tui.RenderItems(b.Items()))
	fmt.Fprintln(os.Stdout, tui.RenderSummary(tui.StatsRows(summary.Stats)))
	if runErr != nil {
		fmt.Fprintf(os.Stdout, "Stopped: %d files left unprocessed.\n", summary.Stats.Pending)
	}
	if summary.Stats.Completed == 0 {
		return runErr
	}

	if batchArchive {
		path, n, err := store.SaveArchive(context.Background(), b.ArchiveName(), b.Archive)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Archive with %d files written to: %s\n", n, absPath(path))
		return runErr
	}
	for _, it := range b.Items() {
		if it.Output == nil {
			continue
		}
		if _, err := store.SaveFile(context.Background(), *it.Output); err != nil {
			return err
		}
	}
	fmt.Fprintf(os.Stdout, "Files written to: %s\n", absPath(store.OutputDir))
	return runErr
}

// collectPaths expands directories into the regular files below them.
// Files named directly are kept in the order given; files found in a
// directory follow in lexical order.
func collectPaths(args []string) ([]string, error) {
	var out []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, arg)
			continue
		}

		var found []string
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.Type().IsRegular() {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		sort.Strings(found)
		out = append(out, found...)
	}
	if len(out) == 0 {
		return nil, media.Errorf(media.KindValidation, nil, "no files found")
	}
	return out, nil
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

func init() {
	for _, c := range []*cobra.Command{compressCmd, batchCmd} {
		c.Flags().BoolVar(&batchArchive, "zip", true, "write a single ZIP archive instead of loose files")
		c.Flags().BoolVar(&batchProgress, "progress", true, "show a live progress view")
	}
	batchCmd.Flags().StringVarP(&batchFormat, "format", "f", "png", "target format ("+media.FormatList()+")")
	batchCmd.Flags().IntVar(&batchPage, "page", 0, "PDF page to render (default 1)")
	batchCmd.Flags().Float64Var(&batchScale, "scale", 0, "PDF render scale (default 2)")

	rootCmd.AddCommand(compressCmd)
	rootCmd.AddCommand(batchCmd)
}
