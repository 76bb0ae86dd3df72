// Package httpapi serves conversions, batches and their progress over HTTP
// and websockets.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/tendant/simple-converter/internal/batch"
	"github.com/tendant/simple-converter/internal/convert"
	"github.com/tendant/simple-converter/internal/media"
	"github.com/tendant/simple-converter/internal/metrics"
)

const defaultMaxUploadBytes = 100 * 1024 * 1024

type Options struct {
	MaxUploadBytes int64
	MaxSourceBytes int64
	BatchTimeout   time.Duration
	RequestTimeout time.Duration
}

type App struct {
	logger  *slog.Logger
	router  *chi.Mux
	engine  batch.Engine
	metrics *metrics.Metrics
	opts    Options

	// base is canceled by Shutdown and parents every batch run
	base       context.Context
	cancelBase context.CancelFunc
	wg         sync.WaitGroup

	mu      sync.RWMutex
	batches map[string]*batchState
	subs    map[string]map[*client]struct{}

	upgrader websocket.Upgrader
}

type batchState struct {
	b         *batch.Batch
	cancel    context.CancelFunc
	updatedAt time.Time
}

// client serialises writes to one websocket connection.
type client struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *client) write(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteJSON(v)
}

func NewApp(logger *slog.Logger, engine batch.Engine, m *metrics.Metrics, opts Options) *App {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.New()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	if opts.MaxSourceBytes <= 0 {
		opts.MaxSourceBytes = media.DefaultMaxSourceBytes
	}
	if opts.BatchTimeout <= 0 {
		opts.BatchTimeout = 30 * time.Minute
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 5 * time.Minute
	}

	base, cancel := context.WithCancel(context.Background())
	app := &App{
		logger:     logger,
		router:     chi.NewRouter(),
		engine:     engine,
		metrics:    m,
		opts:       opts,
		base:       base,
		cancelBase: cancel,
		batches:    make(map[string]*batchState),
		subs:       make(map[string]map[*client]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	app.registerRoutes()
	return app
}

func (a *App) Router() http.Handler {
	return a.router
}

func (a *App) registerRoutes() {
	a.router.Use(middleware.RequestID)
	a.router.Use(middleware.RealIP)
	a.router.Use(middleware.Recoverer)
	a.router.Use(a.corsMiddleware)

	a.router.Get("/healthz", a.health)
	a.router.Method(http.MethodGet, "/metrics", a.metrics.Handler())
	a.router.Get("/ws/{id}", a.batchWS)

	a.router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(a.opts.RequestTimeout))
		r.Post("/convert", a.convertOne)
		r.Post("/batches", a.createBatch)
		r.Get("/batches/{id}", a.getBatch)
		r.Delete("/batches/{id}", a.deleteBatch)
		r.Delete("/batches/{id}/items/{itemID}", a.deleteItem)
		r.Get("/batches/{id}/items/{itemID}/download", a.downloadItem)
		r.Get("/batches/{id}/archive", a.downloadArchive)
	})
}

// Shutdown cancels running batches and waits for them to stop.
func (a *App) Shutdown(ctx context.Context) error {
	a.cancelBase()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	a.mu.Lock()
	for id, clients := range a.subs {
		for c := range clients {
			_ = c.conn.Close()
		}
		delete(a.subs, id)
	}
	a.mu.Unlock()
	return nil
}

func (a *App) getBatchState(id string) (*batchState, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	st, ok := a.batches[id]
	return st, ok
}

func (a *App) touch(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if st, ok := a.batches[id]; ok {
		st.updatedAt = time.Now()
	}
}

// Message is what websocket subscribers receive.
type Message struct {
	Type     string         `json:"type"` // snapshot, progress, item or done
	BatchID  string         `json:"batch_id"`
	Progress *convert.Event `json:"progress,omitempty"`
	Item     *batch.Item    `json:"item,omitempty"`
	Batch    *BatchView     `json:"batch,omitempty"`
}

func (a *App) broadcast(batchID string, msg Message) {
	a.mu.RLock()
	clients := make([]*client, 0, len(a.subs[batchID]))
	for c := range a.subs[batchID] {
		clients = append(clients, c)
	}
	a.mu.RUnlock()

	for _, c := range clients {
		if err := c.write(msg); err != nil {
			a.unsubscribe(batchID, c)
		}
	}
}

func (a *App) subscribe(batchID string, c *client) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.subs[batchID] == nil {
		a.subs[batchID] = make(map[*client]struct{})
	}
	a.subs[batchID][c] = struct{}{}
}

func (a *App) unsubscribe(batchID string, c *client) {
	a.mu.Lock()
	if set := a.subs[batchID]; set != nil {
		delete(set, c)
		if len(set) == 0 {
			delete(a.subs, batchID)
		}
	}
	a.mu.Unlock()
	_ = c.conn.Close()
}

func (a *App) batchWS(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "id")
	st, ok := a.getBatchState(batchID)
	if !ok {
		http.Error(w, "batch not found", http.StatusNotFound)
		return
	}

	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	c := &client{conn: conn}
	a.subscribe(batchID, c)

	view := newBatchView(st.b)
	_ = c.write(Message{Type: "snapshot", BatchID: batchID, Batch: &view})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	a.unsubscribe(batchID, c)
}

func (a *App) StartCleanupLoop(ctx context.Context, interval, ttl time.Duration) {
	if interval <= 0 || ttl <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				a.cleanup(ttl)
			}
		}
	}()
}

func (a *App) cleanup(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)
	var old []*batch.Batch

	a.mu.Lock()
	for id, st := range a.batches {
		if st.b.Running() || !st.updatedAt.Before(cutoff) {
			continue
		}
		old = append(old, st.b)
		delete(a.batches, id)
	}
	a.mu.Unlock()

	for _, b := range old {
		_ = b.Clear()
	}
	if len(old) > 0 {
		a.logger.Info("cleanup completed", "removed_batches", len(old))
	}
	return len(old)
}

func (a *App) health(w http.ResponseWriter, r *http.Request) {
	a.respondJSON(w, http.StatusOK, map[string]string{"status": "ok", "timestamp": time.Now().Format(time.RFC3339)})
}

func (a *App) respondJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		a.logger.Error("failed to encode json", "error", err)
	}
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func (a *App) respondError(w http.ResponseWriter, err error) {
	a.respondJSON(w, statusFor(err), errorBody{Error: convert.Reason(err), Kind: string(media.KindOf(err))})
}

func statusFor(err error) int {
	switch media.KindOf(err) {
	case media.KindValidation, media.KindUnsupportedFormat:
		return http.StatusBadRequest
	case media.KindDecode:
		return http.StatusUnprocessableEntity
	case media.KindCapabilityUnavailable:
		return http.StatusServiceUnavailable
	case media.KindEncode:
		return http.StatusInternalServerError
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	if errors.Is(err, batch.ErrRunning) {
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (a *App) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
