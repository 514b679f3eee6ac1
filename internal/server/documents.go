package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"tldr-buffer/internal/model"

	"github.com/gorilla/mux"
)

var errNoProvider = &model.Error{Kind: model.KindProviderAuth, Op: "summarize", Reason: "no summarization provider is configured"}

var errDocumentNotFound = errors.New("document not found")

func errNotFound(id string) error {
	return &model.Error{Kind: model.KindInvalidInput, Op: "get", ID: id, Err: errDocumentNotFound}
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, &model.Error{Kind: model.KindInvalidParameter, Op: "list", Reason: "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	docs, err := s.store.List(r.Context(), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

// handlePut saves a document; a missing id gets a new one.
func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	var doc model.Document
	if err := decode(w, r, &doc); err != nil {
		s.writeError(w, err)
		return
	}
	if doc.ID == "" {
		doc.ID = model.NewDocumentID()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	if doc.Domain == "" {
		doc.Domain = model.DomainOf(doc.URL)
	}
	if err := s.store.Save(r.Context(), &doc); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	doc, found, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !found {
		s.writeError(w, errNotFound(id))
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.store.Delete(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Clear(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	s.logger.Info("Document store cleared")
	w.WriteHeader(http.StatusNoContent)
}
