// Command convert runs the conversion pipeline from the terminal.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tendant/simple-converter/internal/config"
	"github.com/tendant/simple-converter/internal/convert"
	"github.com/tendant/simple-converter/internal/logging"
	"github.com/tendant/simple-converter/internal/upload"
)

var (
	logLevel  string
	logFormat string
	outputDir string
)

var rootCmd = &cobra.Command{
	Use:           "convert",
	Short:         "convert - compress and convert images and PDFs",
	Long:          "convert compresses images, converts between JPG, PNG, WebP and PDF, removes backgrounds and packages batches into ZIP archives.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	_ = godotenv.Load()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", convert.Reason(err))
		os.Exit(1)
	}
}

func init() {
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "tint", "log format (tint, text, json)")
	rootCmd.PersistentFlags().StringVarP(&outputDir, "output", "o", "converted", "destination folder")
}

// setup loads the environment configuration and builds the pipeline and
// the file store used by every command.
func setup() (*convert.Pipeline, *upload.Store, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}
	logger := logging.New(os.Stderr, logLevel, logFormat)

	p, err := convert.New(convert.OptionsFromConfig(cfg), logger)
	if err != nil {
		return nil, nil, nil, err
	}
	return p, upload.NewStore("", outputDir, cfg.MaxUploadBytes), logger, nil
}
