package summarize

import (
	"context"

	openai "github.com/sashabaranov/go-openai"
)

// ChatStream is the receiving end of a streamed chat completion.
type ChatStream interface {
	Recv() (openai.ChatCompletionStreamResponse, error)
	Close() error
}

// Provider mirrors the two go-openai calls the summarizer needs, so any
// OpenAI-compatible backend (or a test fake) can be plugged in.
type Provider interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	CreateChatCompletionStream(ctx context.Context, request openai.ChatCompletionRequest) (ChatStream, error)
}

// OpenAIProvider adapts *openai.Client to Provider.
type OpenAIProvider struct {
	Inner *openai.Client
}

// NewOpenAIProvider builds a client for apiKey. An empty baseURL keeps the
// library default.
func NewOpenAIProvider(apiKey, baseURL string) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIProvider{Inner: openai.NewClientWithConfig(cfg)}
}

func (p *OpenAIProvider) CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	return p.Inner.CreateChatCompletion(ctx, request)
}

func (p *OpenAIProvider) CreateChatCompletionStream(ctx context.Context, request openai.ChatCompletionRequest) (ChatStream, error) {
	s, err := p.Inner.CreateChatCompletionStream(ctx, request)
	if err != nil {
		return nil, err
	}
	return &openAIStream{inner: s}, nil
}

type openAIStream struct {
	inner *openai.ChatCompletionStream
}

func (s *openAIStream) Recv() (openai.ChatCompletionStreamResponse, error) {
	return s.inner.Recv()
}

func (s *openAIStream) Close() error {
	s.inner.Close()
	return nil
}
