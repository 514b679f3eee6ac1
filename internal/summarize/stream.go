package summarize

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"tldr-buffer/internal/model"

	"go.uber.org/zap"
)

type State int

const (
	StateIdle State = iota
	StateValidating
	StateStreaming
	StateComplete
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateStreaming:
		return "streaming"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateFailed || s == StateCancelled
}

// Stream is a single, non-restartable summarization in progress. Recv
// returns chunks in provider order and io.EOF once the summary is parsed.
// Cancel may be called from any goroutine.
type Stream struct {
	s *Summarizer

	mu     sync.Mutex
	state  State
	raw    ChatStream
	ctx    context.Context
	cancel context.CancelFunc
	buf    strings.Builder
	result model.SummarizationResult
	err    error
}

func newStream(s *Summarizer) *Stream {
	return &Stream{s: s, state: StateIdle}
}

func (st *Stream) start(ctx context.Context, cancel context.CancelFunc, raw ChatStream) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.ctx, st.cancel, st.raw = ctx, cancel, raw
	st.state = StateStreaming
}

func (st *Stream) setState(s State) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if !st.state.Terminal() {
		st.state = s
	}
}

func (st *Stream) State() State {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.state
}

// Recv blocks for the next chunk.
func (st *Stream) Recv() (string, error) {
	for {
		st.mu.Lock()
		if st.state.Terminal() {
			err := st.terminalErr()
			st.mu.Unlock()
			return "", err
		}
		raw, ctx := st.raw, st.ctx
		st.mu.Unlock()

		resp, err := raw.Recv()

		st.mu.Lock()
		switch {
		case st.state.Terminal():
			// Cancelled while blocked; the chunk is dropped.
		case ctx.Err() != nil:
			st.cancelLocked()
		case errors.Is(err, io.EOF):
			st.completeLocked()
		case err != nil:
			st.finishLocked(StateFailed, classify("summarize.stream", err))
		default:
			chunk := ""
			if len(resp.Choices) > 0 {
				chunk = resp.Choices[0].Delta.Content
			}
			if chunk == "" {
				st.mu.Unlock()
				continue
			}
			st.buf.WriteString(chunk)
			st.mu.Unlock()
			return chunk, nil
		}
		err = st.terminalErr()
		st.mu.Unlock()
		return "", err
	}
}

// Cancel stops consuming the provider stream. Later Recv calls return a
// cancelled error and the accumulated text is never parsed.
func (st *Stream) Cancel() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.cancelLocked()
}

// Result returns the parsed summary once the stream completed.
func (st *Stream) Result() (model.SummarizationResult, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.state == StateComplete {
		return st.result, nil
	}
	if st.err != nil {
		return model.SummarizationResult{}, st.err
	}
	return model.SummarizationResult{}, ErrNotComplete
}

// Text is everything received so far.
func (st *Stream) Text() string {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.buf.String()
}

func (st *Stream) finish(s State, err error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.finishLocked(s, err)
}

func (st *Stream) cancelLocked() {
	st.finishLocked(StateCancelled, &model.Error{Kind: model.KindCancelled, Op: "summarize.stream", Err: ErrCancelled})
}

func (st *Stream) completeLocked() {
	text := st.buf.String()
	if strings.TrimSpace(text) == "" {
		st.finishLocked(StateFailed, &model.Error{Kind: model.KindProvider, Op: "summarize.stream", Err: ErrEmptyOutput})
		return
	}
	st.result = st.s.parseOutput(text)
	st.finishLocked(StateComplete, nil)
}

func (st *Stream) finishLocked(s State, err error) {
	if st.state.Terminal() {
		return
	}
	st.state, st.err = s, err
	if st.raw != nil {
		st.raw.Close()
	}
	if st.cancel != nil {
		st.cancel()
	}
	st.s.Logger.Debug("summary stream finished",
		zap.Stringer("state", s),
		zap.Int("chars", st.buf.Len()),
		zap.Error(err),
	)
}

func (st *Stream) terminalErr() error {
	if st.state == StateComplete {
		return io.EOF
	}
	return st.err
}
