package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"tldr-buffer/internal/model"

	"go.uber.org/zap"
)

type summarizeRequest struct {
	Text string `json:"text,omitempty"`
	// DocumentID summarizes a stored document and saves the summary onto it.
	DocumentID string                     `json:"document_id,omitempty"`
	Params     *model.SummarizationParams `json:"params,omitempty"`
}

// streamEvent is one NDJSON line of a streamed summary.
type streamEvent struct {
	Chunk  string                     `json:"chunk,omitempty"`
	Result *model.SummarizationResult `json:"result,omitempty"`
	Error  *errorBody                 `json:"error,omitempty"`
}

// prepare resolves the text and params of a request, loading the document
// when one is named.
func (s *Server) prepare(ctx context.Context, req summarizeRequest) (string, model.SummarizationParams, *model.Document, error) {
	params := s.params
	if req.Params != nil {
		params = *req.Params
	}
	if req.DocumentID == "" {
		return req.Text, params, nil, nil
	}
	doc, found, err := s.store.Get(ctx, req.DocumentID)
	if err != nil {
		return "", params, nil, err
	}
	if !found {
		return "", params, nil, errNotFound(req.DocumentID)
	}
	text := req.Text
	if text == "" {
		text = doc.RawText
	}
	return text, params, doc, nil
}

func (s *Server) saveSummary(ctx context.Context, doc *model.Document, res model.SummarizationResult, params model.SummarizationParams) error {
	if doc == nil {
		return nil
	}
	doc.ApplySummary(res, params, time.Now().UTC())
	stored, err := s.store.Update(ctx, doc)
	if err != nil {
		return err
	}
	if !stored {
		return errNotFound(doc.ID)
	}
	return nil
}

func (s *Server) handleSummarizeComplete(w http.ResponseWriter, r *http.Request) {
	if s.summarizer == nil {
		s.writeError(w, errNoProvider)
		return
	}
	var req summarizeRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	text, params, doc, err := s.prepare(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	res, err := s.summarizer.Complete(r.Context(), text, params)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.saveSummary(r.Context(), doc, res, params); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleSummarizeStream writes one {"chunk"} line per provider chunk and ends
// with a {"result"} or {"error"} line. A client disconnect cancels the stream.
func (s *Server) handleSummarizeStream(w http.ResponseWriter, r *http.Request) {
	if s.summarizer == nil {
		s.writeError(w, errNoProvider)
		return
	}
	var req summarizeRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	text, params, doc, err := s.prepare(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	st, err := s.summarizer.Stream(r.Context(), text, params)
	if err != nil {
		s.writeError(w, err)
		return
	}
	defer st.Cancel()

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)
	send := func(ev streamEvent) bool {
		if err := enc.Encode(ev); err != nil {
			return false
		}
		if flusher != nil {
			flusher.Flush()
		}
		return true
	}

	for {
		chunk, err := st.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			send(streamEvent{Error: &errorBody{Kind: model.KindOf(err), Message: err.Error()}})
			return
		}
		if !send(streamEvent{Chunk: chunk}) {
			s.logger.Debug("client went away, cancelling summary")
			st.Cancel()
			return
		}
	}

	res, err := st.Result()
	if err == nil {
		err = s.saveSummary(r.Context(), doc, res, params)
	}
	if err != nil {
		s.logger.Error("summary stream failed", zap.Error(err))
		send(streamEvent{Error: &errorBody{Kind: model.KindOf(err), Message: err.Error()}})
		return
	}
	send(streamEvent{Result: &res})
}
