// Package config loads runtime settings from the environment. Mains call
// godotenv.Load first so a local .env file is honoured.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	LogLevel  string
	LogFormat string

	MaxSourceBytes int64
	PDFPage        int
	PDFScale       float64
	Quality        float64
	PdftoppmBin    string
	PdftocairoBin  string
	Segmenter      string
	SegmentTol     float64
	RembgBin       string
	WorkDir        string

	NATSURL         string
	JobSubject      string
	WorkerQueue     string
	ProgressSubject string
	DoneSubject     string
	OutputDir       string

	HTTPAddr       string
	MaxUploadBytes int64
	BatchTTL       time.Duration
	BatchTimeout   time.Duration
}

func Load() (Config, error) {
	cfg := Config{
		LogLevel:        getenv("LOG_LEVEL", "info"),
		LogFormat:       getenv("LOG_FORMAT", "text"),
		PdftoppmBin:     getenv("PDFTOPPM_BIN", "pdftoppm"),
		PdftocairoBin:   getenv("PDFTOCAIRO_BIN", "pdftocairo"),
		Segmenter:       strings.ToLower(getenv("SEGMENTER", "floodfill")),
		RembgBin:        getenv("REMBG_BIN", "rembg"),
		WorkDir:         getenv("WORK_DIR", os.TempDir()),
		NATSURL:         getenv("NATS_URL", "nats://127.0.0.1:4222"),
		JobSubject:      getenv("CONVERT_JOB_SUBJECT", "convert.jobs"),
		WorkerQueue:     getenv("CONVERT_QUEUE", "convert-workers"),
		ProgressSubject: getenv("CONVERT_PROGRESS_SUBJECT", "convert.progress"),
		DoneSubject:     getenv("CONVERT_DONE_SUBJECT", "convert.done"),
		OutputDir:       getenv("OUTPUT_DIR", "./data/output"),
		HTTPAddr:        getenv("HTTP_ADDR", ":8080"),
	}

	switch cfg.Segmenter {
	case "floodfill", "rembg":
	default:
		return Config{}, fmt.Errorf("invalid SEGMENTER %q (floodfill or rembg)", cfg.Segmenter)
	}

	maxSource, err := parsePositiveInt(getenv("MAX_SOURCE_BYTES", "10485760"), "MAX_SOURCE_BYTES")
	if err != nil {
		return Config{}, err
	}
	cfg.MaxSourceBytes = int64(maxSource)

	maxUpload, err := parsePositiveInt(getenv("MAX_UPLOAD_BYTES", "104857600"), "MAX_UPLOAD_BYTES")
	if err != nil {
		return Config{}, err
	}
	cfg.MaxUploadBytes = int64(maxUpload)

	if cfg.PDFPage, err = parsePositiveInt(getenv("PDF_PAGE", "1"), "PDF_PAGE"); err != nil {
		return Config{}, err
	}
	if cfg.PDFScale, err = parsePositiveFloat(getenv("PDF_SCALE", "2.0"), "PDF_SCALE"); err != nil {
		return Config{}, err
	}
	if cfg.Quality, err = parsePositiveFloat(getenv("QUALITY", "0.92"), "QUALITY"); err != nil {
		return Config{}, err
	}
	if cfg.Quality > 1 {
		return Config{}, fmt.Errorf("QUALITY must be at most 1 (got %g)", cfg.Quality)
	}
	if cfg.SegmentTol, err = parsePositiveFloat(getenv("SEGMENT_TOLERANCE", "40"), "SEGMENT_TOLERANCE"); err != nil {
		return Config{}, err
	}
	if cfg.BatchTTL, err = parseDuration(getenv("BATCH_TTL", "1h"), "BATCH_TTL"); err != nil {
		return Config{}, err
	}
	if cfg.BatchTimeout, err = parseDuration(getenv("BATCH_TIMEOUT", "30m"), "BATCH_TIMEOUT"); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func parsePositiveInt(value string, name string) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be greater than zero (got %d)", name, v)
	}
	return v, nil
}

func parsePositiveFloat(value string, name string) (float64, error) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be greater than zero (got %g)", name, v)
	}
	return v, nil
}

func parseDuration(value string, name string) (time.Duration, error) {
	v, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be greater than zero (got %s)", name, v)
	}
	return v, nil
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}
