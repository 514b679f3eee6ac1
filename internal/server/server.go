// Package server exposes extraction, summarization and the document store
// over HTTP for the browser extension.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"tldr-buffer/internal/extract"
	"tldr-buffer/internal/metrics"
	"tldr-buffer/internal/model"
	"tldr-buffer/internal/store"
	"tldr-buffer/internal/summarize"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// maxBody bounds request bodies; page snapshots can be large.
const maxBody = 8 << 20

type Deps struct {
	Store      store.Store
	Pipeline   *extract.Pipeline
	Summarizer *summarize.Summarizer
	Logger     *zap.Logger
	// Extraction is the base extraction config; requests may narrow it.
	Extraction extract.Config
	Params     model.SummarizationParams
	// Events, when set, backs GET /debug/extractions.
	Events *metrics.Memory
}

type Server struct {
	store      store.Store
	queue      store.Queue
	pipeline   *extract.Pipeline
	summarizer *summarize.Summarizer
	extraction extract.Config
	params     model.SummarizationParams
	events     *metrics.Memory
	logger     *zap.Logger
	router     *mux.Router
	server     *http.Server
}

func NewServer(d Deps) *Server {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Pipeline == nil {
		d.Pipeline = extract.NewPipeline(extract.WithLogger(d.Logger))
	}
	if d.Params == (model.SummarizationParams{}) {
		d.Params = model.DefaultParams()
	}
	s := &Server{
		store:      d.Store,
		pipeline:   d.Pipeline,
		summarizer: d.Summarizer,
		extraction: d.Extraction,
		params:     d.Params,
		events:     d.Events,
		logger:     d.Logger,
		router:     mux.NewRouter(),
	}
	if q, ok := d.Store.(store.Queue); ok {
		s.queue = q
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/debug/extractions", s.handleEvents).Methods("GET")

	s.router.HandleFunc("/extract", s.handleExtract).Methods("POST")
	s.router.HandleFunc("/manual", s.handleManual).Methods("POST")

	s.router.HandleFunc("/summarize", s.handleSummarizeStream).Methods("POST")
	s.router.HandleFunc("/summarize/complete", s.handleSummarizeComplete).Methods("POST")

	s.router.HandleFunc("/documents", s.handleList).Methods("GET")
	s.router.HandleFunc("/documents", s.handlePut).Methods("PUT")
	s.router.HandleFunc("/documents", s.handleClear).Methods("DELETE")
	s.router.HandleFunc("/documents/{id}", s.handleGet).Methods("GET")
	s.router.HandleFunc("/documents/{id}", s.handleDelete).Methods("DELETE")
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start launches the HTTP server
func (s *Server) Start(addr string, readTimeout, writeTimeout time.Duration) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	s.logger.Info("Web server listening", zap.String("addr", addr))
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop gracefully shuts down
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type errorBody struct {
	Kind    model.ErrorKind `json:"kind"`
	Message string          `json:"message"`
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	events := []metrics.Event{}
	if s.events != nil {
		events = s.events.Events()
	}
	writeJSON(w, http.StatusOK, events)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps an error kind onto an HTTP status.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	kind := model.KindOf(err)
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errDocumentNotFound):
		status = http.StatusNotFound
	case kind == model.KindInvalidInput || kind == model.KindInvalidParameter:
		status = http.StatusBadRequest
	case kind == model.KindProviderRateLimit:
		status = http.StatusTooManyRequests
	case kind == model.KindProviderAuth || kind == model.KindProviderNetwork || kind == model.KindProvider:
		status = http.StatusBadGateway
	case kind == model.KindCancelled:
		status = http.StatusRequestTimeout
	case kind == model.KindStorage:
		s.logger.Error("storage failure", zap.Error(err))
	case kind == "":
		kind = model.KindInvalidInput
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]errorBody{"error": {Kind: kind, Message: err.Error()}})
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	if err := dec.Decode(v); err != nil {
		return &model.Error{Kind: model.KindInvalidInput, Op: "decode", Err: err}
	}
	return nil
}
