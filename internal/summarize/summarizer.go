// Package summarize drives summarization calls against an OpenAI-compatible
// provider: input validation, connect-phase retries, token streaming with
// cancellation, and parsing of the "Key Points" / "TL;DR" output.
package summarize

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tldr-buffer/internal/htmltext"
	"tldr-buffer/internal/model"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const (
	DefaultModel      = "gpt-4o-mini"
	DefaultMinChars   = 100
	DefaultMaxChars   = 12000
	DefaultMaxRetries = 2
	DefaultBaseDelay  = 500 * time.Millisecond
)

type Summarizer struct {
	Provider Provider
	Model    string
	Logger   *zap.Logger

	// MaxRetries bounds connect-phase retries; the delay doubles from BaseDelay.
	MaxRetries int
	BaseDelay  time.Duration
	MinChars   int
	MaxChars   int

	sleep func(ctx context.Context, d time.Duration) error
	parse func(text string) model.SummarizationResult
}

func New(p Provider, modelName string, logger *zap.Logger) *Summarizer {
	if modelName == "" {
		modelName = DefaultModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Summarizer{
		Provider:   p,
		Model:      modelName,
		Logger:     logger,
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  DefaultBaseDelay,
		MinChars:   DefaultMinChars,
		MaxChars:   DefaultMaxChars,
		sleep:      sleepContext,
		parse:      ParseSummary,
	}
}

// Validate checks params and text bounds. It never touches the network.
func (s *Summarizer) Validate(text string, params model.SummarizationParams) error {
	if err := params.Validate(); err != nil {
		return err
	}
	n := htmltext.Length(strings.TrimSpace(text))
	if n < s.MinChars {
		return &model.Error{
			Kind:   model.KindInvalidInput,
			Op:     "summarize.validate",
			Reason: fmt.Sprintf("text is too short to summarize (%d of at least %d characters)", n, s.MinChars),
		}
	}
	if n > s.MaxChars {
		return &model.Error{
			Kind:   model.KindInvalidInput,
			Op:     "summarize.validate",
			Reason: fmt.Sprintf("text is too long (%d of at most %d characters); truncate it or select a smaller region", n, s.MaxChars),
		}
	}
	return nil
}

// Complete runs a non-streaming summarization and reports token usage.
func (s *Summarizer) Complete(ctx context.Context, text string, params model.SummarizationParams) (model.SummarizationResult, error) {
	if err := s.Validate(text, params); err != nil {
		return model.SummarizationResult{}, err
	}
	req := s.request(text, params, false)

	var resp openai.ChatCompletionResponse
	err := s.retry(ctx, "summarize.complete", func(ctx context.Context) error {
		var err error
		resp, err = s.Provider.CreateChatCompletion(ctx, req)
		return err
	})
	if err != nil {
		return model.SummarizationResult{}, err
	}

	var out string
	if len(resp.Choices) > 0 {
		out = resp.Choices[0].Message.Content
	}
	if strings.TrimSpace(out) == "" {
		return model.SummarizationResult{}, &model.Error{Kind: model.KindProvider, Op: "summarize.complete", Err: ErrEmptyOutput}
	}
	res := s.parseOutput(out)
	if resp.Usage.TotalTokens > 0 {
		tokens := resp.Usage.TotalTokens
		res.TokensUsed = &tokens
	}
	s.Logger.Info("summary complete",
		zap.Int("key_points", len(res.KeyPoints)),
		zap.Int("tokens", resp.Usage.TotalTokens),
	)
	return res, nil
}

// Stream validates the input, opens a streaming completion and returns a
// Stream the caller pulls chunks from. Validation failures make no provider call.
func (s *Summarizer) Stream(ctx context.Context, text string, params model.SummarizationParams) (*Stream, error) {
	st := newStream(s)
	st.setState(StateValidating)
	if err := s.Validate(text, params); err != nil {
		st.finish(StateFailed, err)
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	req := s.request(text, params, true)
	var raw ChatStream
	err := s.retry(ctx, "summarize.connect", func(ctx context.Context) error {
		var err error
		raw, err = s.Provider.CreateChatCompletionStream(ctx, req)
		return err
	})
	if err != nil {
		cancel()
		st.finish(StateFailed, err)
		return nil, err
	}
	st.start(ctx, cancel, raw)
	return st, nil
}

func (s *Summarizer) request(text string, params model.SummarizationParams, stream bool) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model: s.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt(params)},
			{Role: openai.ChatMessageRoleUser, Content: strings.TrimSpace(text)},
		},
		Temperature: 0.2,
		Stream:      stream,
	}
}

// retry runs fn, retrying rate-limit and network failures with a doubling delay.
func (s *Summarizer) retry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	delay := s.BaseDelay
	for attempt := 0; ; attempt++ {
		err := classify(op, fn(ctx))
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return classify(op, ctx.Err())
		}
		if !retryable(err) || attempt >= s.MaxRetries {
			s.Logger.Warn("provider call failed",
				zap.String("op", op),
				zap.Int("attempt", attempt+1),
				zap.String("kind", string(model.KindOf(err))),
				zap.Error(err),
			)
			return err
		}
		s.Logger.Debug("retrying provider call",
			zap.String("op", op),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if serr := s.sleep(ctx, delay); serr != nil {
			return classify(op, serr)
		}
		delay *= 2
	}
}

func (s *Summarizer) parseOutput(text string) model.SummarizationResult {
	if s.parse != nil {
		return s.parse(text)
	}
	return ParseSummary(text)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
