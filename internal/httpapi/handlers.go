package httpapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tendant/simple-converter/internal/batch"
	"github.com/tendant/simple-converter/internal/convert"
	"github.com/tendant/simple-converter/internal/media"
	"github.com/tendant/simple-converter/internal/process"
)

// BatchView is the JSON shape of a batch.
type BatchView struct {
	ID         string          `json:"id"`
	Operation  batch.Operation `json:"operation"`
	Format     string          `json:"format,omitempty"`
	Running    bool            `json:"running"`
	Items      []batch.Item    `json:"items"`
	Stats      batch.Stats     `json:"stats"`
	ArchiveURL string          `json:"archive_url,omitempty"`
	ElapsedMs  int64           `json:"elapsed_ms"`
	CreatedAt  time.Time       `json:"created_at"`
}

func newBatchView(b *batch.Batch) BatchView {
	v := BatchView{
		ID:        b.ID,
		Operation: b.Operation,
		Format:    string(b.Format),
		Running:   b.Running(),
		Items:     b.Items(),
		Stats:     b.Stats(),
		ElapsedMs: b.Elapsed().Milliseconds(),
		CreatedAt: b.CreatedAt,
	}
	if v.Stats.Completed > 0 && !v.Running {
		v.ArchiveURL = "/batches/" + b.ID + "/archive"
	}
	return v
}

// convertOne converts a single uploaded file and responds with the output.
func (a *App) convertOne(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, a.opts.MaxUploadBytes+1024)
	if err := r.ParseMultipartForm(a.opts.MaxUploadBytes); err != nil {
		a.logger.Warn("invalid multipart upload", "error", err)
		http.Error(w, "invalid multipart upload", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	_, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file is required", http.StatusBadRequest)
		return
	}
	src, err := readPart(header, a.opts.MaxUploadBytes)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	page, scale, err := pageParams(r)
	if err != nil {
		a.respondError(w, err)
		return
	}
	quality, err := floatParam(r, "quality")
	if err != nil {
		a.respondError(w, err)
		return
	}

	itemID := uuid.NewString()
	start := time.Now()
	res := a.engine.Convert(r.Context(), convert.Request{
		Source:  src,
		Format:  r.FormValue("format"),
		Page:    page,
		Scale:   scale,
		Quality: quality,
		ItemID:  itemID,
	}, nil)

	var outSize int64
	if res.OK() {
		outSize = res.Output.Size()
	}
	a.metrics.ObserveItem(string(batch.OpConvert), time.Since(start), src.Size(), outSize, res.Err)

	if !res.OK() {
		a.respondError(w, res.Err)
		return
	}
	a.writeFile(w, r, *res.Output)
}

// createBatch accepts files, filters them and starts processing in the
// background.
func (a *App) createBatch(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, a.opts.MaxUploadBytes+1024)
	if err := r.ParseMultipartForm(a.opts.MaxUploadBytes); err != nil {
		a.logger.Warn("invalid multipart upload", "error", err)
		http.Error(w, "invalid multipart upload", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	var files []media.File
	for _, header := range r.MultipartForm.File["files"] {
		f, err := readPart(header, a.opts.MaxUploadBytes)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		files = append(files, f)
	}

	page, scale, err := pageParams(r)
	if err != nil {
		a.respondError(w, err)
		return
	}

	b, err := batch.Intake(batch.Options{
		Operation:      batch.Operation(r.FormValue("operation")),
		Format:         r.FormValue("format"),
		Page:           page,
		Scale:          scale,
		MaxSourceBytes: a.opts.MaxSourceBytes,
	}, files)
	if err != nil {
		a.respondError(w, err)
		return
	}
	a.metrics.ObserveRejected(b.Rejected())

	ctx, cancel := context.WithTimeout(a.base, a.opts.BatchTimeout)
	a.mu.Lock()
	a.batches[b.ID] = &batchState{b: b, cancel: cancel, updatedAt: time.Now()}
	a.mu.Unlock()

	a.logger.Info("batch created", "batch_id", b.ID, "operation", b.Operation, "items", len(b.Items()), "rejected", b.Rejected())
	a.wg.Add(1)
	go a.runBatch(ctx, cancel, b)

	a.respondJSON(w, http.StatusAccepted, newBatchView(b))
}

func (a *App) runBatch(ctx context.Context, cancel context.CancelFunc, b *batch.Batch) {
	defer a.wg.Done()
	defer cancel()

	logger := a.logger.With("batch_id", b.ID, "operation", b.Operation)
	finish := a.metrics.BatchStarted(string(b.Operation))
	started := map[string]time.Time{}

	summary, err := b.Run(ctx, a.engine, batch.Hooks{
		Progress: convert.ObserverFunc(func(e convert.Event) {
			a.broadcast(b.ID, Message{Type: "progress", BatchID: b.ID, Progress: &e})
		}),
		OnItem: func(it batch.Item) {
			a.touch(b.ID)
			switch it.Status {
			case process.JobStatusCompressing, process.JobStatusConverting:
				started[it.ID] = time.Now()
			case process.JobStatusError:
				a.metrics.ObserveFailure(string(b.Operation), time.Since(started[it.ID]), string(it.FailureType))
				delete(started, it.ID)
			case process.JobStatusCompleted:
				a.metrics.ObserveItem(string(b.Operation), time.Since(started[it.ID]), it.Size, it.OutputSize, nil)
				delete(started, it.ID)
			}
			a.broadcast(b.ID, Message{Type: "item", BatchID: b.ID, Item: &it})
		},
	})

	outcome := "completed"
	if err != nil {
		outcome = "canceled"
		logger.Warn("batch stopped", "err", err, "completed", summary.Stats.Completed, "pending", summary.Stats.Pending)
	} else {
		logger.Info("batch completed",
			"completed", summary.Stats.Completed,
			"failed", summary.Stats.Failed,
			"savings_percent", summary.Stats.SavingsPercent,
			"elapsed", summary.Elapsed)
	}
	finish(outcome)

	a.touch(b.ID)
	view := newBatchView(b)
	a.broadcast(b.ID, Message{Type: "done", BatchID: b.ID, Batch: &view})
}

func (a *App) getBatch(w http.ResponseWriter, r *http.Request) {
	st, ok := a.getBatchState(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "batch not found", http.StatusNotFound)
		return
	}
	a.respondJSON(w, http.StatusOK, newBatchView(st.b))
}

// deleteBatch cancels a running batch and releases its outputs.
func (a *App) deleteBatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	a.mu.Lock()
	st, ok := a.batches[id]
	if ok {
		delete(a.batches, id)
	}
	a.mu.Unlock()
	if !ok {
		http.Error(w, "batch not found", http.StatusNotFound)
		return
	}

	st.cancel()
	go func() {
		// the run loop stops at the next item boundary
		for st.b.Running() {
			time.Sleep(50 * time.Millisecond)
		}
		_ = st.b.Clear()
	}()
	a.logger.Info("batch deleted", "batch_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) deleteItem(w http.ResponseWriter, r *http.Request) {
	st, ok := a.getBatchState(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "batch not found", http.StatusNotFound)
		return
	}
	itemID := chi.URLParam(r, "itemID")
	if _, ok := st.b.Item(itemID); !ok {
		http.Error(w, "item not found", http.StatusNotFound)
		return
	}
	if err := st.b.Remove(itemID); err != nil {
		a.respondJSON(w, http.StatusConflict, errorBody{Error: err.Error(), Kind: string(media.KindOf(err))})
		return
	}
	a.touch(st.b.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) downloadItem(w http.ResponseWriter, r *http.Request) {
	st, ok := a.getBatchState(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "batch not found", http.StatusNotFound)
		return
	}
	it, ok := st.b.Item(chi.URLParam(r, "itemID"))
	if !ok {
		http.Error(w, "item not found", http.StatusNotFound)
		return
	}
	if it.Output == nil {
		http.Error(w, "output is not ready", http.StatusConflict)
		return
	}
	a.writeFile(w, r, *it.Output)
}

func (a *App) downloadArchive(w http.ResponseWriter, r *http.Request) {
	st, ok := a.getBatchState(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "batch not found", http.StatusNotFound)
		return
	}
	if st.b.Running() {
		http.Error(w, "batch is still running", http.StatusConflict)
		return
	}

	var buf bytes.Buffer
	n, err := st.b.Archive(&buf)
	if err != nil {
		a.logger.Error("archive failed", "batch_id", st.b.ID, "error", err)
		http.Error(w, "failed to build archive", http.StatusInternalServerError)
		return
	}
	a.logger.Info("archive served", "batch_id", st.b.ID, "entries", n, "bytes", buf.Len())

	w.Header().Set("Content-Type", media.MimeZIP)
	w.Header().Set("Content-Disposition", "attachment; filename=\""+st.b.ArchiveName()+"\"")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = w.Write(buf.Bytes())
}

func (a *App) writeFile(w http.ResponseWriter, r *http.Request, f media.File) {
	w.Header().Set("Content-Type", f.MimeType)
	w.Header().Set("Content-Disposition", "attachment; filename=\""+f.Name+"\"")
	http.ServeContent(w, r, f.Name, time.Now(), bytes.NewReader(f.Data))
}

func readPart(header *multipart.FileHeader, limit int64) (media.File, error) {
	if header.Size > limit {
		return media.File{}, fmt.Errorf("%s exceeds the upload limit", header.Filename)
	}
	part, err := header.Open()
	if err != nil {
		return media.File{}, fmt.Errorf("open %s: %w", header.Filename, err)
	}
	defer part.Close()

	data, err := io.ReadAll(io.LimitReader(part, limit+1))
	if err != nil {
		return media.File{}, fmt.Errorf("read %s: %w", header.Filename, err)
	}
	return media.NewFile(sanitizeFileName(header.Filename), header.Header.Get("Content-Type"), data), nil
}

func pageParams(r *http.Request) (int, float64, error) {
	page := 0
	if v := strings.TrimSpace(r.FormValue("page")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return 0, 0, media.Errorf(media.KindValidation, nil, "page must be a positive integer")
		}
		page = n
	}
	scale, err := floatParam(r, "scale")
	return page, scale, err
}

func floatParam(r *http.Request, key string) (float64, error) {
	v := strings.TrimSpace(r.FormValue(key))
	if v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return 0, media.Errorf(media.KindValidation, nil, "%s must be a positive number", key)
	}
	return f, nil
}

func sanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == '"' {
			return '_'
		}
		return r
	}, name)
	if name == "" {
		return "file.bin"
	}
	return name
}
