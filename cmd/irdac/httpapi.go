package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const maxRequestBody = 4 << 10

type apiHandlers struct {
	events chan<- Event
	volume *VolumeModel // scratch model for validating requests; never mutated
	labels map[Source]string
	logger *slog.Logger
}

// newAPIRouter builds the HTTP API:
//
//	GET  /api/state              current StateSnapshot
//	PUT  /api/volume             step or dB, same forms as the MQTT set topic
//	PUT  /api/source             source name or label
//	PUT  /api/display            free text
//	POST /api/remote/{command}   press a remote button (up, down, source)
//	GET  /ws                     state websocket
//
// Requests are validated here so callers get a 4xx, then handed to the daemon
// loop. A 202 means queued, not applied.
func newAPIRouter(cfg *Config, events chan<- Event, hub *Hub, logger *slog.Logger) http.Handler {
	h := &apiHandlers{
		events: events,
		volume: NewVolumeModel(&cfg.Volume, 0),
		labels: cfg.SourceLabels(),
		logger: logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.CleanPath)
	r.Use(requestLogger(logger))

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", h.getState)
		r.Put("/volume", h.putVolume)
		r.Put("/source", h.putSource)
		r.Put("/display", h.putDisplay)
		r.Post("/remote/{command}", h.postRemote)
	})
	if hub != nil {
		r.Get("/ws", stateWSHandler(hub, events, logger))
	}
	return r
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("http",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start))
		})
	}
}

type apiError struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, apiError{Error: err.Error()})
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
}

// enqueue hands ev to the daemon and answers 202, or 503 when the queue is full.
func (h *apiHandlers) enqueue(w http.ResponseWriter, ev Event) {
	if !trySend(h.events, ev, h.logger) {
		writeError(w, http.StatusServiceUnavailable, errors.New("event queue full"))
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func (h *apiHandlers) getState(w http.ResponseWriter, r *http.Request) {
	snap, err := requestSnapshot(r.Context(), h.events, snapshotTimeout)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *apiHandlers) putVolume(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	ev, err := parseVolumePayload(body, "http")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.checkVolume(ev); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	h.enqueue(w, ev)
}

func (h *apiHandlers) checkVolume(ev ExternalVolumeSet) error {
	if ev.DB != nil {
		_, err := h.volume.StepForDB(*ev.DB)
		return err
	}
	if *ev.Step < 0 || *ev.Step > h.volume.Steps() {
		return fmt.Errorf("step %d: %w", *ev.Step, ErrOutOfRange)
	}
	return nil
}

func (h *apiHandlers) putSource(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	ev, err := parseSourcePayload(body, h.labels, "http")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	h.enqueue(w, ev)
}

func (h *apiHandlers) putDisplay(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	h.enqueue(w, DisplayMessage{Text: string(body), Origin: "http"})
}

func (h *apiHandlers) postRemote(w http.ResponseWriter, r *http.Request) {
	kind, err := parseCommandKind(chi.URLParam(r, "command"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	h.enqueue(w, IRCommandReceived{Command: RemoteCommand{Kind: kind}, Input: "http"})
}

// runHTTPServer serves handler on port until ctx is canceled, then shuts down
// gracefully.
func runHTTPServer(ctx context.Context, port int, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP API listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP server shutdown: %w", err)
		}
		<-errCh
		return nil
	case err := <-errCh:
		return err
	}
}
