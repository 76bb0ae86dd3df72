// cmd/worker/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tendant/simple-converter/internal/batch"
	"github.com/tendant/simple-converter/internal/bus"
	"github.com/tendant/simple-converter/internal/config"
	"github.com/tendant/simple-converter/internal/convert"
	"github.com/tendant/simple-converter/internal/logging"
	"github.com/tendant/simple-converter/internal/media"
	"github.com/tendant/simple-converter/internal/process"
	"github.com/tendant/simple-converter/internal/upload"
	"github.com/tendant/simple-converter/pkg/schema"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fatal(slog.Default(), "load config", err)
	}

	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	logger.Info("worker starting", "nats_url", cfg.NATSURL, "job_subject", cfg.JobSubject, "queue", cfg.WorkerQueue, "done_subject", cfg.DoneSubject, "output_dir", cfg.OutputDir)

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		fatal(logger, "ensure output directory", err, "output_dir", cfg.OutputDir)
	}
	store := upload.NewStore("", cfg.OutputDir, cfg.MaxUploadBytes)

	pipeline, err := convert.New(convert.OptionsFromConfig(cfg), logger)
	if err != nil {
		fatal(logger, "create pipeline", err)
	}
	defer pipeline.Close()

	warmCtx, cancelWarm := context.WithTimeout(context.Background(), 30*time.Second)
	pipeline.Warmup(warmCtx)
	cancelWarm()

	nc, err := bus.Connect(cfg.NATSURL, "simple-converter-worker")
	if err != nil {
		fatal(logger, "connect to NATS", err, "nats_url", cfg.NATSURL)
	}
	logger.Info("connected to NATS", "nats_url", cfg.NATSURL)
	defer nc.Close()

	w := &worker{cfg: cfg, store: store, engine: pipeline, pub: nc, logger: logger}
	sub, err := nc.SubscribeJSON(cfg.JobSubject, cfg.WorkerQueue, cfg.BatchTimeout, w.handleMessage)
	if err != nil {
		fatal(logger, "subscribe worker", err, "job_subject", cfg.JobSubject, "queue", cfg.WorkerQueue)
	}
	logger.Info("listening for jobs", "subject", cfg.JobSubject, "queue", cfg.WorkerQueue)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("worker shutting down")
	_ = sub.Unsubscribe()
}

func fatal(logger *slog.Logger, msg string, err error, attrs ...any) {
	attrs = append(attrs, "err", err)
	logger.Error(msg, attrs...)
	os.Exit(1)
}

type worker struct {
	cfg    config.Config
	store  *upload.Store
	engine batch.Engine
	pub    bus.JSONPublisher
	logger *slog.Logger
}

func (w *worker) handleMessage(ctx context.Context, data []byte) {
	var req schema.BatchRequested
	if err := json.Unmarshal(data, &req); err != nil {
		w.logger.Error("invalid job payload", "err", err)
		return
	}
	if err := w.handleJob(ctx, req); err != nil {
		w.logger.Error("job failed", "job_id", req.JobID, "err", err)
	}
}

// handleJob runs one requested batch and always publishes a BatchDone,
// whether the job succeeded or not.
func (w *worker) handleJob(ctx context.Context, req schema.BatchRequested) error {
	logger := w.logger.With("job_id", req.JobID, "operation", req.Operation)
	state := &ProcessingState{JobID: req.JobID, Operation: req.Operation, Format: req.Format, StartTime: time.Now()}
	logger.Info("processing job", "sources", len(req.Sources))

	state.AddLifecycleEvent(schema.StageValidation, nil, "")
	w.publishLifecycleEvent(state.lastEvent())

	b, err := w.intakeStep(ctx, req, state)
	if err != nil {
		return w.fail(state, nil, err)
	}

	state.AddLifecycleEvent(schema.StageProcessing, nil, "")
	w.publishLifecycleEvent(state.lastEvent())

	progress := bus.NewProgressPublisher(w.pub, w.cfg.ProgressSubject, req.JobID, logger)
	summary, err := b.Run(ctx, w.engine, batch.Hooks{
		Progress: progress,
		OnItem: func(it batch.Item) {
			if it.Status == process.JobStatusError {
				logger.Warn("item failed", "item_id", it.ID, "name", it.Name, "err", it.Error, "failure_type", it.FailureType)
			}
		},
	})
	if err != nil {
		return w.fail(state, b, err)
	}
	logger.Info("batch processed", "completed", summary.Stats.Completed, "failed", summary.Stats.Failed, "elapsed", summary.Elapsed)

	state.AddLifecycleEvent(schema.StagePackaging, nil, "")
	w.publishLifecycleEvent(state.lastEvent())

	if summary.Stats.Completed > 0 {
		path, entries, err := w.store.SaveArchive(ctx, req.JobID+".zip", b.Archive)
		if err != nil {
			return w.fail(state, b, fmt.Errorf("save archive: %w", err))
		}
		state.ArchivePath = path
		logger.Info("archive written", "path", path, "entries", entries)
	}

	state.AddLifecycleEvent(schema.StageCompleted, nil, "")
	w.publishLifecycleEvent(state.lastEvent())
	w.publishEventsStep(state, b, nil, "")
	logger.Info("job completed", "duration_ms", state.GetProcessingDuration())
	return nil
}

func (w *worker) intakeStep(ctx context.Context, req schema.BatchRequested, state *ProcessingState) (*batch.Batch, error) {
	if req.JobID == "" {
		return nil, media.Errorf(media.KindValidation, nil, "job_id is required")
	}
	if len(req.Sources) == 0 {
		return nil, media.Errorf(media.KindValidation, nil, "no sources given")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	files, failures := w.store.FetchSources(ctx, req.Sources)
	for path, err := range failures {
		w.logger.Warn("source unavailable", "job_id", req.JobID, "path", path, "err", err)
	}
	state.Unreadable = len(failures)

	page := req.Page
	if page == 0 {
		page = w.cfg.PDFPage
	}
	return batch.Intake(batch.Options{
		ID:             req.JobID,
		Operation:      batch.Operation(req.Operation),
		Format:         req.Format,
		Page:           page,
		Scale:          req.Scale,
		MaxSourceBytes: w.cfg.MaxSourceBytes,
	}, files)
}

func (w *worker) fail(state *ProcessingState, b *batch.Batch, err error) error {
	ft := convert.ClassifyError(err)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = errors.New(convert.Reason(err))
	}
	state.AddLifecycleEvent(schema.StageFailed, err, ft)
	w.publishLifecycleEvent(state.lastEvent())
	w.publishEventsStep(state, b, err, ft)
	return err
}

type ProcessingState struct {
	JobID       string
	Operation   string
	Format      string
	ArchivePath string
	Unreadable  int
	StartTime   time.Time
	Lifecycle   []schema.BatchLifecycleEvent
}

func (ps *ProcessingState) AddLifecycleEvent(stage schema.ProcessingStage, err error, failureType schema.FailureType) {
	event := schema.BatchLifecycleEvent{
		JobID:      ps.JobID,
		Operation:  ps.Operation,
		Stage:      stage,
		HappenedAt: time.Now().Unix(),
	}

	if stage == schema.StageProcessing {
		event.ProcessingStart = ps.StartTime.UnixMilli()
	} else if stage == schema.StageCompleted || stage == schema.StageFailed {
		event.ProcessingStart = ps.StartTime.UnixMilli()
		event.ProcessingEnd = time.Now().UnixMilli()
	}

	if err != nil {
		event.Error = err.Error()
		event.FailureType = failureType
	}

	ps.Lifecycle = append(ps.Lifecycle, event)
}

func (ps *ProcessingState) lastEvent() schema.BatchLifecycleEvent {
	return ps.Lifecycle[len(ps.Lifecycle)-1]
}

func (ps *ProcessingState) GetProcessingDuration() int64 {
	if ps.StartTime.IsZero() {
		return 0
	}
	return time.Since(ps.StartTime).Milliseconds()
}

func (w *worker) publishLifecycleEvent(event schema.BatchLifecycleEvent) {
	subject := w.cfg.DoneSubject + ".lifecycle"
	if err := w.pub.PublishJSON(subject, event); err != nil {
		w.logger.Error("publish lifecycle event failed", "subject", subject, "stage", event.Stage, "err", err)
	}
}

// publishEventsStep reports the final outcome. b is nil when the job
// failed before a batch existed.
func (w *worker) publishEventsStep(state *ProcessingState, b *batch.Batch, cause error, failureType schema.FailureType) {
	done := buildDone(state, b)
	if cause != nil {
		done.Error = cause.Error()
		done.FailureType = failureType
	}
	if err := w.pub.PublishJSON(w.cfg.DoneSubject, done); err != nil {
		w.logger.Error("publish result failed", "subject", w.cfg.DoneSubject, "id", state.JobID, "err", err)
	}
}

func buildDone(state *ProcessingState, b *batch.Batch) schema.BatchDone {
	done := schema.BatchDone{
		ID:               state.JobID,
		Operation:        state.Operation,
		Format:           state.Format,
		ArchivePath:      state.ArchivePath,
		TotalRejected:    state.Unreadable,
		ProcessingTimeMs: state.GetProcessingDuration(),
		Lifecycle:        state.Lifecycle,
		HappenedAt:       time.Now().Unix(),
	}
	if b == nil {
		return done
	}

	stats := b.Stats()
	done.TotalProcessed = stats.Completed + stats.Failed
	done.TotalFailed = stats.Failed
	done.TotalRejected += stats.Rejected
	done.OriginalBytes = stats.OriginalBytes
	done.OutputBytes = stats.OutputBytes
	done.SavingsPercent = stats.SavingsPercent

	for _, it := range b.Items() {
		done.Results = append(done.Results, schema.ItemResult{
			ItemID:       it.ID,
			Name:         it.Name,
			OutputName:   it.OutputName,
			Status:       string(it.Status),
			OriginalSize: it.Size,
			OutputSize:   it.OutputSize,
			Error:        it.Error,
			FailureType:  it.FailureType,
		})
	}
	return done
}
