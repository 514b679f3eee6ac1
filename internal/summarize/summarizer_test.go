package summarize

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"tldr-buffer/internal/model"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var article = strings.Repeat("The city council approved the new transit budget after a long debate. ", 5)

type fakeStream struct {
	mu     sync.Mutex
	chunks []string
	err    error
	// hold blocks Recv after the chunks run out until Close is called.
	hold   bool
	done   chan struct{}
	closed bool
}

func newFakeStream(chunks ...string) *fakeStream {
	return &fakeStream{chunks: chunks, done: make(chan struct{})}
}

func (f *fakeStream) Recv() (openai.ChatCompletionStreamResponse, error) {
	f.mu.Lock()
	if len(f.chunks) > 0 {
		c := f.chunks[0]
		f.chunks = f.chunks[1:]
		f.mu.Unlock()
		return openai.ChatCompletionStreamResponse{
			Choices: []openai.ChatCompletionStreamChoice{{Delta: openai.ChatCompletionStreamChoiceDelta{Content: c}}},
		}, nil
	}
	err, hold := f.err, f.hold
	f.mu.Unlock()
	if err != nil {
		return openai.ChatCompletionStreamResponse{}, err
	}
	if hold {
		<-f.done
		return openai.ChatCompletionStreamResponse{}, errors.New("stream closed")
	}
	return openai.ChatCompletionStreamResponse{}, io.EOF
}

func (f *fakeStream) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.done)
	}
	return nil
}

type fakeProvider struct {
	mu            sync.Mutex
	errs          []error
	reply         string
	tokens        int
	stream        *fakeStream
	completeCalls int
	streamCalls   int
	lastReq       openai.ChatCompletionRequest
}

func (f *fakeProvider) nextErr() error {
	if len(f.errs) == 0 {
		return nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return err
}

func (f *fakeProvider) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completeCalls++
	f.lastReq = req
	if err := f.nextErr(); err != nil {
		return openai.ChatCompletionResponse{}, err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: f.reply},
		}},
		Usage: openai.Usage{TotalTokens: f.tokens},
	}, nil
}

func (f *fakeProvider) CreateChatCompletionStream(_ context.Context, req openai.ChatCompletionRequest) (ChatStream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.streamCalls++
	f.lastReq = req
	if err := f.nextErr(); err != nil {
		return nil, err
	}
	return f.stream, nil
}

func newTestSummarizer(p Provider) (*Summarizer, *[]time.Duration) {
	s := New(p, "test-model", zap.NewNop())
	var delays []time.Duration
	s.sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	return s, &delays
}

func TestSummarizer_RejectsBadInputWithoutCallingProvider(t *testing.T) {
	p := &fakeProvider{}
	s, _ := newTestSummarizer(p)
	ctx := context.Background()

	_, err := s.Complete(ctx, "too short", model.DefaultParams())
	assert.True(t, model.IsKind(err, model.KindInvalidInput))
	assert.Contains(t, err.Error(), "too short")

	_, err = s.Stream(ctx, strings.Repeat("a", DefaultMaxChars+1), model.DefaultParams())
	assert.True(t, model.IsKind(err, model.KindInvalidInput))
	assert.Contains(t, err.Error(), "too long")

	_, err = s.Complete(ctx, article, model.SummarizationParams{Length: "epic", Style: model.StyleBullets})
	assert.True(t, model.IsKind(err, model.KindInvalidParameter))

	assert.Zero(t, p.completeCalls)
	assert.Zero(t, p.streamCalls)
}

func TestSummarizer_CompleteReportsTokens(t *testing.T) {
	p := &fakeProvider{reply: "Key Points:\n- Budget approved\n\nTL;DR: Transit gets funded.", tokens: 321}
	s, _ := newTestSummarizer(p)

	res, err := s.Complete(context.Background(), article, model.SummarizationParams{Length: model.LengthMedium, Style: model.StylePlain})
	require.NoError(t, err)
	assert.Equal(t, []string{"Budget approved"}, res.KeyPoints)
	assert.Equal(t, "Transit gets funded.", res.TLDR)
	require.NotNil(t, res.TokensUsed)
	assert.Equal(t, 321, *res.TokensUsed)

	require.Len(t, p.lastReq.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, p.lastReq.Messages[0].Role)
	assert.Contains(t, p.lastReq.Messages[0].Content, "5 to 7 key points")
	assert.Contains(t, p.lastReq.Messages[0].Content, "without bullets")
	assert.Equal(t, strings.TrimSpace(article), p.lastReq.Messages[1].Content)
	assert.False(t, p.lastReq.Stream)
}

func TestSummarizer_EmptyReplyIsProviderError(t *testing.T) {
	s, _ := newTestSummarizer(&fakeProvider{reply: "  "})
	_, err := s.Complete(context.Background(), article, model.DefaultParams())
	assert.True(t, model.IsKind(err, model.KindProvider))
	assert.ErrorIs(t, err, ErrEmptyOutput)
}

func TestSummarizer_RetriesRateLimitThenSucceeds(t *testing.T) {
	p := &fakeProvider{
		errs:  []error{&openai.APIError{HTTPStatusCode: 429, Message: "slow down"}},
		reply: "TL;DR: ok",
	}
	s, delays := newTestSummarizer(p)

	res, err := s.Complete(context.Background(), article, model.DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, "ok", res.TLDR)
	assert.Equal(t, 2, p.completeCalls)
	assert.Equal(t, []time.Duration{DefaultBaseDelay}, *delays)
}

func TestSummarizer_RetriesAreBounded(t *testing.T) {
	p := &fakeProvider{errs: []error{
		&openai.RequestError{HTTPStatusCode: 503, Err: errors.New("unavailable")},
		&openai.RequestError{HTTPStatusCode: 502, Err: errors.New("bad gateway")},
		&openai.RequestError{HTTPStatusCode: 500, Err: errors.New("boom")},
	}}
	s, delays := newTestSummarizer(p)

	_, err := s.Complete(context.Background(), article, model.DefaultParams())
	assert.True(t, model.IsKind(err, model.KindProviderNetwork))
	assert.Equal(t, 3, p.completeCalls)
	assert.Equal(t, []time.Duration{DefaultBaseDelay, 2 * DefaultBaseDelay}, *delays)
}

func TestSummarizer_AuthIsNotRetried(t *testing.T) {
	p := &fakeProvider{errs: []error{&openai.APIError{HTTPStatusCode: 401, Message: "bad key"}}}
	s, delays := newTestSummarizer(p)

	_, err := s.Stream(context.Background(), article, model.DefaultParams())
	assert.True(t, model.IsKind(err, model.KindProviderAuth))
	assert.Equal(t, 1, p.streamCalls)
	assert.Empty(t, *delays)
}

func drain(t *testing.T, st *Stream) ([]string, error) {
	t.Helper()
	var chunks []string
	for {
		c, err := st.Recv()
		if err != nil {
			return chunks, err
		}
		chunks = append(chunks, c)
	}
}

func TestStream_DeliversChunksInOrderThenParses(t *testing.T) {
	p := &fakeProvider{stream: newFakeStream("Key Points:\n- Budget ", "approved\n- Fares frozen\n\n", "", "TL;DR: Transit is funded.")}
	s, _ := newTestSummarizer(p)

	st, err := s.Stream(context.Background(), article, model.DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, StateStreaming, st.State())
	assert.True(t, p.lastReq.Stream)

	chunks, err := drain(t, st)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, []string{"Key Points:\n- Budget ", "approved\n- Fares frozen\n\n", "TL;DR: Transit is funded."}, chunks)
	assert.Equal(t, StateComplete, st.State())

	res, err := st.Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"Budget approved", "Fares frozen"}, res.KeyPoints)
	assert.Equal(t, "Transit is funded.", res.TLDR)

	_, err = st.Recv()
	assert.ErrorIs(t, err, io.EOF, "terminal state is sticky")
	st.Cancel()
	assert.Equal(t, StateComplete, st.State())
}

func TestStream_RetriesConnectOnly(t *testing.T) {
	fs := newFakeStream("Key Points:\n- partial")
	fs.err = &openai.APIError{HTTPStatusCode: 500, Message: "upstream reset"}
	p := &fakeProvider{
		errs:   []error{&openai.APIError{HTTPStatusCode: 429}},
		stream: fs,
	}
	s, delays := newTestSummarizer(p)

	st, err := s.Stream(context.Background(), article, model.DefaultParams())
	require.NoError(t, err)
	assert.Len(t, *delays, 1)

	chunks, err := drain(t, st)
	assert.Len(t, chunks, 1)
	assert.True(t, model.IsKind(err, model.KindProviderNetwork))
	assert.Equal(t, StateFailed, st.State())
	assert.Equal(t, 2, p.streamCalls, "mid-stream failure is not retried")
	_, err = st.Result()
	assert.Error(t, err)
}

func TestStream_EmptyOutputFails(t *testing.T) {
	s, _ := newTestSummarizer(&fakeProvider{stream: newFakeStream()})
	st, err := s.Stream(context.Background(), article, model.DefaultParams())
	require.NoError(t, err)
	_, err = st.Recv()
	assert.True(t, model.IsKind(err, model.KindProvider))
	assert.Equal(t, StateFailed, st.State())
}

func TestStream_CancelStopsDeliveryAndSkipsParsing(t *testing.T) {
	fs := newFakeStream("Key Points:\n", "- never seen")
	p := &fakeProvider{stream: fs}
	s, _ := newTestSummarizer(p)
	parsed := 0
	s.parse = func(text string) model.SummarizationResult {
		parsed++
		return ParseSummary(text)
	}

	st, err := s.Stream(context.Background(), article, model.DefaultParams())
	require.NoError(t, err)
	c, err := st.Recv()
	require.NoError(t, err)
	assert.Equal(t, "Key Points:\n", c)

	st.Cancel()
	c, err = st.Recv()
	assert.Empty(t, c)
	assert.True(t, model.IsKind(err, model.KindCancelled))
	assert.Equal(t, StateCancelled, st.State())
	assert.Zero(t, parsed)
	assert.True(t, fs.closed)
	assert.Equal(t, "Key Points:\n", st.Text())
}

func TestStream_CancelUnblocksPendingRecv(t *testing.T) {
	fs := newFakeStream("Key Points:\n")
	fs.hold = true
	s, _ := newTestSummarizer(&fakeProvider{stream: fs})

	st, err := s.Stream(context.Background(), article, model.DefaultParams())
	require.NoError(t, err)
	_, err = st.Recv()
	require.NoError(t, err)

	errc := make(chan error, 1)
	go func() {
		_, err := st.Recv()
		errc <- err
	}()
	time.Sleep(10 * time.Millisecond)
	st.Cancel()

	select {
	case err := <-errc:
		assert.True(t, model.IsKind(err, model.KindCancelled))
	case <-time.After(time.Second):
		t.Fatal("Recv did not return after Cancel")
	}
}

func TestStream_ContextCancellation(t *testing.T) {
	fs := newFakeStream("Key Points:\n", "- more")
	s, _ := newTestSummarizer(&fakeProvider{stream: fs})
	ctx, cancel := context.WithCancel(context.Background())

	st, err := s.Stream(ctx, article, model.DefaultParams())
	require.NoError(t, err)
	_, err = st.Recv()
	require.NoError(t, err)

	cancel()
	_, err = st.Recv()
	assert.True(t, model.IsKind(err, model.KindCancelled))
	assert.Equal(t, StateCancelled, st.State())
}
