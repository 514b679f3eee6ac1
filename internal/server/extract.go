package server

import (
	"context"
	"net/http"
	"strings"

	"tldr-buffer/internal/extract"
	"tldr-buffer/internal/manual"
	"tldr-buffer/internal/model"

	"go.uber.org/zap"
)

type extractRequest struct {
	URL             string `json:"url"`
	HTML            string `json:"html"`
	ReadyState      string `json:"ready_state,omitempty"`
	RecentMutations int    `json:"recent_mutations,omitempty"`

	PreferredMethod      model.Method   `json:"preferred_method,omitempty"`
	DisabledMethods      []model.Method `json:"disabled_methods,omitempty"`
	MinimumContentLength int            `json:"minimum_content_length,omitempty"`
}

type extractResponse struct {
	Result     model.ExtractionResult `json:"result"`
	DocumentID string                 `json:"document_id,omitempty"`
}

func (req extractRequest) config(base extract.Config) extract.Config {
	cfg := base
	if req.PreferredMethod != "" {
		cfg.PreferredMethod = req.PreferredMethod
	}
	cfg.DisabledMethods = append(append([]model.Method{}, base.DisabledMethods...), req.DisabledMethods...)
	if req.MinimumContentLength > cfg.MinimumContentLength {
		cfg.MinimumContentLength = req.MinimumContentLength
	}
	return cfg
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if m := req.PreferredMethod; m != "" && !m.Valid() {
		s.writeError(w, &model.Error{Kind: model.KindInvalidParameter, Op: "extract", Reason: "unknown preferred_method " + string(m)})
		return
	}
	page, err := extract.ParsePage(strings.NewReader(req.HTML))
	if err != nil {
		s.writeError(w, &model.Error{Kind: model.KindInvalidInput, Op: "extract", Err: err})
		return
	}
	page.State = req.ReadyState
	page.Recent = req.RecentMutations

	res := s.pipeline.Extract(r.Context(), page, req.URL, req.config(s.extraction))
	resp := extractResponse{Result: res}
	if res.Content.OK() && r.URL.Query().Get("save") == "1" {
		id, err := s.persist(r.Context(), res.Content)
		if err != nil {
			s.writeError(w, err)
			return
		}
		resp.DocumentID = id
	}
	writeJSON(w, http.StatusOK, resp)
}

type manualRequest struct {
	URL      string `json:"url"`
	HTML     string `json:"html"`
	Selector string `json:"selector,omitempty"`
	Text     string `json:"text,omitempty"`
}

type manualResponse struct {
	Content    model.ExtractedContent `json:"content"`
	DocumentID string                 `json:"document_id,omitempty"`
}

// handleManual confirms a selection made in the page overlay.
func (s *Server) handleManual(w http.ResponseWriter, r *http.Request) {
	var req manualRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	page, err := extract.ParsePage(strings.NewReader(req.HTML))
	if err != nil {
		s.writeError(w, &model.Error{Kind: model.KindInvalidInput, Op: "manual", Err: err})
		return
	}

	sess := manual.NewSession(page.Doc, req.URL)
	defer sess.Cancel()
	if req.Selector != "" {
		_, err = sess.SelectElement(req.Selector)
	} else {
		_, err = sess.SelectText(req.Text)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	content, err := sess.Confirm()
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := manualResponse{Content: content}
	if r.URL.Query().Get("save") == "1" {
		if resp.DocumentID, err = s.persist(r.Context(), content); err != nil {
			s.writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// persist stores content as a new document and queues it for summarization
// when the store carries a queue.
func (s *Server) persist(ctx context.Context, c model.ExtractedContent) (string, error) {
	doc := model.NewDocument(c)
	if err := s.store.Save(ctx, &doc); err != nil {
		return "", err
	}
	if s.queue != nil {
		if err := s.queue.Enqueue(ctx, doc.ID); err != nil {
			s.logger.Warn("Failed to queue summary", zap.String("id", doc.ID), zap.Error(err))
		}
	}
	return doc.ID, nil
}
