package summarize

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"

	"tldr-buffer/internal/model"

	openai "github.com/sashabaranov/go-openai"
)

var (
	ErrCancelled   = errors.New("summarization cancelled")
	ErrEmptyOutput = errors.New("provider returned no text")
	ErrNotComplete = errors.New("summary is not complete")
)

// classify maps a provider failure onto an error kind.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var me *model.Error
	if errors.As(err, &me) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return &model.Error{Kind: model.KindCancelled, Op: op, Err: ErrCancelled}
	}
	return &model.Error{Kind: kindOf(err), Op: op, Err: err}
}

func kindOf(err error) model.ErrorKind {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return kindForStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == 0 {
			return model.KindProviderNetwork
		}
		return kindForStatus(reqErr.HTTPStatusCode)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF) {
		return model.KindProviderNetwork
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return model.KindProviderNetwork
	}
	return model.KindProvider
}

func kindForStatus(code int) model.ErrorKind {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return model.KindProviderAuth
	case code == http.StatusTooManyRequests:
		return model.KindProviderRateLimit
	case code >= 500:
		return model.KindProviderNetwork
	}
	return model.KindProvider
}

// retryable reports whether the connect phase should try again.
func retryable(err error) bool {
	switch model.KindOf(err) {
	case model.KindProviderRateLimit, model.KindProviderNetwork:
		return true
	}
	return false
}
