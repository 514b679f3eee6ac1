package store

import (
	"context"
	"errors"
	"time"

	"tldr-buffer/internal/model"

	"go.uber.org/zap"
)

const (
	// DefaultCap is the retention cap: older documents are evicted past it.
	DefaultCap       = 200
	DefaultListLimit = 20

	DefaultGCInterval = 5 * time.Minute
)

var ErrEmptyID = errors.New("document id is empty")

// Store persists documents newest first. Get reports absence through its
// bool result, never through an error.
type Store interface {
	Save(ctx context.Context, doc *model.Document) error
	// Update overwrites a document that is still stored, keeping its place
	// in the index. It reports false and writes nothing when the id is gone.
	Update(ctx context.Context, doc *model.Document) (bool, error)
	Get(ctx context.Context, id string) (*model.Document, bool, error)
	List(ctx context.Context, limit int) ([]model.Document, error)
	Delete(ctx context.Context, id string) error
	Clear(ctx context.Context) error
	Close() error
}

// Queue carries document ids waiting for background summarization.
type Queue interface {
	Enqueue(ctx context.Context, id string) error
	PopQueue(ctx context.Context) (string, error)
}

type options struct {
	cap        int
	gcInterval time.Duration
	logger     *zap.Logger
}

type Option func(*options)

// WithCap overrides the retention cap.
func WithCap(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.cap = n
		}
	}
}

// WithGCInterval sets how often Badger's value log is garbage collected.
// Zero disables the collector.
func WithGCInterval(d time.Duration) Option {
	return func(o *options) { o.gcInterval = d }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{cap: DefaultCap, gcInterval: DefaultGCInterval, logger: zap.NewNop()}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

func listLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}
