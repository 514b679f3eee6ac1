package extract

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"tldr-buffer/internal/extract/sites"
	"tldr-buffer/internal/metrics"
	"tldr-buffer/internal/model"
	"tldr-buffer/internal/spa"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

const manualSuggestion = "Select the article text on the page and confirm the selection."

var errDeadline = errors.New("extraction timed out")

// maxSettleMargin caps the time kept back from the SPA wait for the final
// extraction attempt.
const maxSettleMargin = 250 * time.Millisecond

// Config controls one pipeline run. Zero values take the defaults.
type Config struct {
	Timeout time.Duration `yaml:"timeout" json:"timeout,omitempty"`
	// MinimumContentLength can only raise each strategy's own minimum.
	MinimumContentLength int            `yaml:"minimum_content_length" json:"minimum_content_length,omitempty"`
	PreferredMethod      model.Method   `yaml:"preferred_method" json:"preferred_method,omitempty"`
	DisabledMethods      []model.Method `yaml:"disabled_methods" json:"disabled_methods,omitempty"`
	SPATimeout           time.Duration  `yaml:"spa_timeout" json:"spa_timeout,omitempty"`
}

func DefaultConfig() Config {
	return Config{Timeout: 5 * time.Second, SPATimeout: 5 * time.Second}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.SPATimeout <= 0 {
		c.SPATimeout = d.SPATimeout
	}
	return c
}

func (c Config) enabled(m model.Method) bool {
	for _, d := range c.DisabledMethods {
		if d == m {
			return false
		}
	}
	return true
}

// Pipeline runs the extraction strategies in fallback order.
type Pipeline struct {
	sites       *sites.Registry
	readability Strategy
	heuristic   Strategy
	recorder    metrics.Recorder
	logger      *zap.Logger
	clock       spa.Clock
	spa         spa.Config
}

type Option func(*Pipeline)

func WithSites(r *sites.Registry) Option { return func(p *Pipeline) { p.sites = r } }
func WithReadability(s Strategy) Option  { return func(p *Pipeline) { p.readability = s } }
func WithHeuristic(s Strategy) Option    { return func(p *Pipeline) { p.heuristic = s } }
func WithRecorder(r metrics.Recorder) Option {
	return func(p *Pipeline) {
		if r != nil {
			p.recorder = r
		}
	}
}
func WithLogger(l *zap.Logger) Option   { return func(p *Pipeline) { p.logger = l } }
func WithClock(c spa.Clock) Option      { return func(p *Pipeline) { p.clock = c } }
func WithSPAConfig(c spa.Config) Option { return func(p *Pipeline) { p.spa = c } }

func NewPipeline(opts ...Option) *Pipeline {
	p := &Pipeline{
		sites:       sites.Default(),
		readability: NewReadability(),
		heuristic:   NewHeuristic(),
		recorder:    metrics.Nop{},
		logger:      zap.NewNop(),
		clock:       spa.RealClock,
		spa:         spa.DefaultConfig(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Extract runs the pipeline against page. It never returns an error: every
// failure is reported through the result, with RequiresManualSelection set
// when the caller should fall back to a user selection.
func (p *Pipeline) Extract(ctx context.Context, page Page, rawURL string, cfg Config) model.ExtractionResult {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	u, err := url.Parse(rawURL)
	if err != nil {
		u = &url.URL{}
	}
	r := &run{p: p, cfg: cfg, u: u, start: time.Now(), logger: p.logger.With(zap.String("url", rawURL))}

	doc, err := page.Snapshot()
	if err != nil {
		return r.fail(model.KindExtractionFailure, err.Error(), "Reload the page and try again.", false)
	}
	if bad := detectUnsupported(page, doc, u); bad != nil {
		return r.fail(model.KindUnsupportedPage, bad.Reason, bad.Suggestion, true)
	}
	if cfg.PreferredMethod == model.MethodManual {
		return r.fail(model.KindExtractionFailure, "manual selection requested", manualSuggestion, true)
	}

	if res, ok := r.attemptAll(ctx, doc, true); ok {
		return res
	}

	if signal := spaSignal(page, doc); signal != "" && ctx.Err() == nil {
		if res, ok := r.waitAndRetry(ctx, page, signal); ok {
			return res
		}
	}

	reason := r.lastErr
	if ctx.Err() != nil {
		reason = fmt.Sprintf("%v after %s", errDeadline, cfg.Timeout)
	}
	if reason == "" {
		reason = "no extraction method is enabled"
	}
	return r.fail(model.KindExtractionFailure, reason, manualSuggestion, true)
}

// run carries the state of one Extract call.
type run struct {
	p        *Pipeline
	cfg      Config
	u        *url.URL
	start    time.Time
	logger   *zap.Logger
	attempts int
	method   model.Method
	lastErr  string
}

// attemptAll tries the site-specific extractor (when withSite is set) and the
// generic strategies in order, returning the first success.
func (r *run) attemptAll(ctx context.Context, doc *goquery.Document, withSite bool) (model.ExtractionResult, bool) {
	if withSite && r.cfg.enabled(model.MethodSiteSpecific) && r.p.sites != nil {
		if ext := r.p.sites.Resolve(r.u, doc); ext != nil {
			if c, ok := r.trySite(ext, doc); ok {
				return r.success(c), true
			}
		}
	}
	for _, s := range r.generic() {
		if ctx.Err() != nil {
			return model.ExtractionResult{}, false
		}
		if c, ok := r.try(s, doc); ok {
			return r.success(c), true
		}
	}
	return model.ExtractionResult{}, false
}

// generic returns the enabled generic strategies, the preferred one first.
func (r *run) generic() []Strategy {
	order := []Strategy{r.p.readability, r.p.heuristic}
	if r.cfg.PreferredMethod == model.MethodHeuristic {
		order[0], order[1] = order[1], order[0]
	}
	out := order[:0]
	for _, s := range order {
		if s != nil && r.cfg.enabled(s.Method()) {
			out = append(out, s)
		}
	}
	return out
}

func (r *run) trySite(ext sites.Extractor, doc *goquery.Document) (model.ExtractedContent, bool) {
	begin := time.Now()
	r.attempts++
	r.method = model.MethodSiteSpecific
	c := ext.Extract(doc, r.u)
	var err error
	switch {
	case c == nil:
		err = fmt.Errorf("%s extractor found no content", ext.Name())
	case c.CharCount < r.minimum(sites.MinContentLength):
		err = fmt.Errorf("%w: %d characters", errTooShort, c.CharCount)
	}
	r.record(ext.Name(), begin, c, err)
	if err != nil {
		return model.ExtractedContent{}, false
	}
	return *c, true
}

func (r *run) try(s Strategy, doc *goquery.Document) (model.ExtractedContent, bool) {
	begin := time.Now()
	r.attempts++
	r.method = s.Method()
	c, err := s.Extract(doc, r.u)
	if err == nil && c.CharCount < r.minimum(GenericMinLength) {
		err = fmt.Errorf("%w: %d characters", errTooShort, c.CharCount)
	}
	r.record(string(s.Method()), begin, &c, err)
	return c, err == nil
}

func (r *run) minimum(own int) int {
	if r.cfg.MinimumContentLength > own {
		return r.cfg.MinimumContentLength
	}
	return own
}

// waitAndRetry waits for a single-page app to settle, trying the generic
// strategies at each checkpoint and once more when the page is ready.
func (r *run) waitAndRetry(ctx context.Context, page Page, signal string) (model.ExtractionResult, bool) {
	var src spa.Source
	if mp, ok := page.(MutationPage); ok {
		src = mp.Mutations()
	}
	remaining := r.cfg.SPATimeout
	if dl, ok := ctx.Deadline(); ok {
		// Leave room for the forced attempt before the pipeline deadline.
		left := time.Until(dl)
		left -= min(left/10, maxSettleMargin)
		if left < remaining {
			remaining = left
		}
	}
	if remaining <= 0 {
		return model.ExtractionResult{}, false
	}
	r.logger.Debug("waiting for page to settle", zap.String("signal", signal), zap.Duration("ceiling", remaining))

	var (
		found model.ExtractionResult
		ok    bool
	)
	retry := func() bool {
		doc, err := page.Snapshot()
		if err != nil {
			r.lastErr = err.Error()
			return false
		}
		found, ok = r.attemptAll(ctx, doc, false)
		return ok
	}

	outcome := spa.Wait(ctx, src, r.p.spa.WithCeiling(remaining), r.p.clock, func(stage int) bool {
		r.logger.Debug("spa checkpoint", zap.Int("stage", stage))
		return retry()
	})
	if ok {
		return found, true
	}
	r.logger.Debug("page settled",
		zap.String("reason", string(outcome.Reason)),
		zap.Bool("stable", outcome.Stable),
		zap.Duration("elapsed", outcome.Elapsed),
	)
	if !outcome.Ready || ctx.Err() != nil {
		return model.ExtractionResult{}, false
	}
	if retry() {
		return found, true
	}
	return model.ExtractionResult{}, false
}

func (r *run) record(strategy string, begin time.Time, c *model.ExtractedContent, err error) {
	e := metrics.Event{
		At:         begin,
		URL:        r.u.String(),
		Method:     r.method,
		Strategy:   strategy,
		Attempt:    r.attempts,
		Success:    err == nil,
		DurationMs: time.Since(begin).Milliseconds(),
	}
	if c != nil {
		e.Chars = c.CharCount
	}
	if err != nil {
		e.Error = err.Error()
		r.lastErr = err.Error()
	}
	r.p.recorder.Record(e)
}

// metrics reports the last attempted strategy, or manual when nothing ran.
func (r *run) metrics() model.ExtractionMetrics {
	m := r.method
	if m == "" {
		m = model.MethodManual
	}
	return model.ExtractionMetrics{
		ExtractionTimeMs: time.Since(r.start).Milliseconds(),
		MethodUsed:       m,
		Attempts:         r.attempts,
	}
}

func (r *run) success(c model.ExtractedContent) model.ExtractionResult {
	if c.Metadata.URL == "" {
		c.Metadata.URL = r.u.String()
	}
	res := model.ExtractionResult{Content: c, Metrics: r.metrics()}
	r.logger.Info("extraction succeeded",
		zap.String("method", string(res.Metrics.MethodUsed)),
		zap.Int("attempts", res.Metrics.Attempts),
		zap.Int("chars", c.CharCount),
	)
	return res
}

func (r *run) fail(kind model.ErrorKind, reason, suggestion string, manual bool) model.ExtractionResult {
	meta := model.ContentMetadata{URL: r.u.String(), ExtractedAt: time.Now().UTC()}
	res := model.ExtractionResult{
		Content:                 model.FailedContent(reason, meta),
		Metrics:                 r.metrics(),
		RequiresManualSelection: manual,
		FailureKind:             kind,
		Suggestion:              suggestion,
	}
	r.logger.Info("extraction failed",
		zap.String("kind", string(kind)),
		zap.String("reason", reason),
		zap.Int("attempts", r.attempts),
	)
	return res
}
