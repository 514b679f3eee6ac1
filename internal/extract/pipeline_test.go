package extract

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"tldr-buffer/internal/metrics"
	"tldr-buffer/internal/model"
	"tldr-buffer/internal/spa"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sentence = "The committee reviewed the quarterly figures and agreed that the new process had reduced waiting times considerably. "

func paragraphs(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "<p>%d. %s%s</p>\n", i+1, sentence, sentence)
	}
	return b.String()
}

func articlePage(n int) string {
	return `<html><head><title>Quarterly review</title></head><body>
<header><nav><a href="/">Home</a> <a href="/news">News</a> <a href="/about">About</a></nav></header>
<article><h1>Quarterly review</h1>` + paragraphs(n) + `</article>
<footer><p>Copyright Example Corp</p></footer>
</body></html>`
}

func staticPage(t *testing.T, src string) *StaticPage {
	t.Helper()
	p, err := ParsePage(strings.NewReader(src))
	require.NoError(t, err)
	return p
}

func newTestPipeline(rec metrics.Recorder) *Pipeline {
	return NewPipeline(WithRecorder(rec), WithSPAConfig(spa.Config{
		Window:        20 * time.Millisecond,
		Debounce:      10 * time.Millisecond,
		StableWindows: 2,
		StaticWindow:  10 * time.Millisecond,
		Stages:        []time.Duration{40 * time.Millisecond, 80 * time.Millisecond, 120 * time.Millisecond},
	}))
}

func TestPipeline_ReadabilityArticle(t *testing.T) {
	rec := &metrics.Memory{}
	res := newTestPipeline(rec).Extract(context.Background(), staticPage(t, articlePage(5)), "https://blog.example.com/q3", Config{})

	require.True(t, res.Content.OK(), res.Content.Error)
	assert.Equal(t, model.MethodReadability, res.Metrics.MethodUsed)
	assert.Equal(t, 1, res.Metrics.Attempts)
	assert.False(t, res.RequiresManualSelection)
	assert.GreaterOrEqual(t, res.Content.CharCount, GenericMinLength)
	assert.Contains(t, res.Content.Text, "reduced waiting times")
	assert.Equal(t, "https://blog.example.com/q3", res.Content.Metadata.URL)

	events := rec.Events()
	require.Len(t, events, 1)
	assert.True(t, events[0].Success)
	assert.Equal(t, model.MethodReadability, events[0].Method)
}

func TestPipeline_LeavesLiveDOMUntouched(t *testing.T) {
	page := staticPage(t, articlePage(5))
	before, err := goquery.OuterHtml(page.Doc.Selection)
	require.NoError(t, err)

	cfg := Config{DisabledMethods: []model.Method{model.MethodReadability}}
	res := newTestPipeline(nil).Extract(context.Background(), page, "https://blog.example.com/q3", cfg)
	require.True(t, res.Content.OK())

	after, err := goquery.OuterHtml(page.Doc.Selection)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, 1, page.Doc.Find("nav").Length())
}

func TestPipeline_SiteSpecificBeforeGeneric(t *testing.T) {
	src := `<html><head><title>Issue</title></head><body>
<h1 class="gh-header-title"><bdi class="js-issue-title">Flaky test on CI</bdi></h1>
<div class="timeline-comment"><a class="author">octocat</a>
<div class="comment-body"><article>` + paragraphs(5) + `</article></div></div>
</body></html>`
	rec := &metrics.Memory{}
	res := newTestPipeline(rec).Extract(context.Background(), staticPage(t, src), "https://github.com/acme/tool/issues/7", Config{})

	require.True(t, res.Content.OK())
	assert.Equal(t, model.MethodSiteSpecific, res.Metrics.MethodUsed)
	assert.Equal(t, "github", res.Content.Metadata.Source)
	assert.Equal(t, 1, res.Metrics.Attempts)
	require.Len(t, rec.Events(), 1)
	assert.Equal(t, "github", rec.Events()[0].Strategy)
}

func TestPipeline_FallsBackToManualSelection(t *testing.T) {
	rec := &metrics.Memory{}
	res := newTestPipeline(rec).Extract(context.Background(), staticPage(t, `<html><body><div>Hello there</div></body></html>`), "https://example.com/", Config{})

	assert.False(t, res.Content.OK())
	assert.NotEmpty(t, res.Content.Error)
	assert.Empty(t, res.Content.Text)
	assert.True(t, res.RequiresManualSelection)
	assert.Equal(t, model.KindExtractionFailure, res.FailureKind)
	assert.Equal(t, model.MethodHeuristic, res.Metrics.MethodUsed, "last attempted strategy")
	assert.Equal(t, 2, res.Metrics.Attempts)
	assert.NotEmpty(t, res.Suggestion)
	assert.Len(t, rec.Events(), 2)
}

func TestPipeline_UnsupportedPages(t *testing.T) {
	cases := []struct {
		name string
		page *StaticPage
		url  string
	}{
		{"pdf url", staticPage(t, articlePage(5)), "https://example.com/paper.pdf"},
		{"pdf embed", staticPage(t, `<html><body><embed type="application/pdf" src="/a.pdf"></body></html>`), "https://example.com/view"},
		{"cross-origin frame", staticPage(t, `<html><body><iframe src="https://other.example.net/app"></iframe></body></html>`), "https://example.com/"},
		{"loading", func() *StaticPage { p := staticPage(t, articlePage(5)); p.State = "loading"; return p }(), "https://example.com/a"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := &metrics.Memory{}
			res := newTestPipeline(rec).Extract(context.Background(), tc.page, tc.url, Config{})
			assert.Equal(t, model.KindUnsupportedPage, res.FailureKind)
			assert.True(t, res.RequiresManualSelection)
			assert.Equal(t, 0, res.Metrics.Attempts)
			assert.Equal(t, model.MethodManual, res.Metrics.MethodUsed)
			assert.NotEmpty(t, res.Suggestion)
			assert.Empty(t, rec.Events())
		})
	}
}

func TestPipeline_PreferredAndDisabledMethods(t *testing.T) {
	p := newTestPipeline(nil)
	ctx := context.Background()

	res := p.Extract(ctx, staticPage(t, articlePage(5)), "https://blog.example.com/q3", Config{PreferredMethod: model.MethodHeuristic})
	require.True(t, res.Content.OK())
	assert.Equal(t, model.MethodHeuristic, res.Metrics.MethodUsed)
	assert.Equal(t, 1, res.Metrics.Attempts)

	res = p.Extract(ctx, staticPage(t, articlePage(5)), "https://blog.example.com/q3", Config{
		DisabledMethods: []model.Method{model.MethodReadability, model.MethodHeuristic},
	})
	assert.True(t, res.RequiresManualSelection)
	assert.Equal(t, 0, res.Metrics.Attempts)

	res = p.Extract(ctx, staticPage(t, articlePage(5)), "https://blog.example.com/q3", Config{PreferredMethod: model.MethodManual})
	assert.True(t, res.RequiresManualSelection)
	assert.Equal(t, 0, res.Metrics.Attempts)
}

func TestPipeline_MinimumContentLengthOnlyRaises(t *testing.T) {
	p := newTestPipeline(nil)
	res := p.Extract(context.Background(), staticPage(t, articlePage(5)), "https://blog.example.com/q3", Config{MinimumContentLength: 50})
	require.True(t, res.Content.OK())

	res = p.Extract(context.Background(), staticPage(t, articlePage(5)), "https://blog.example.com/q3", Config{MinimumContentLength: 50000})
	assert.True(t, res.RequiresManualSelection)
	assert.Contains(t, res.Content.Error, "too short")
}

// renderingPage serves an empty app shell for the first shellCalls snapshots
// (default 1) and the rendered article afterwards.
type renderingPage struct {
	mu         sync.Mutex
	calls      int
	shellCalls int
	shell      string
	full       string
	recent     int
	source     spa.Source
}

func (p *renderingPage) Snapshot() (*goquery.Document, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	src := p.full
	if p.calls <= max(p.shellCalls, 1) {
		src = p.shell
	}
	return goquery.NewDocumentFromReader(strings.NewReader(src))
}

func (p *renderingPage) RecentMutations() int  { return p.recent }
func (p *renderingPage) Mutations() spa.Source { return p.source }

func TestPipeline_RetriesAfterSPASettles(t *testing.T) {
	page := &renderingPage{
		shell: `<html><body><div id="__next"></div><script src="/a.js"></script></body></html>`,
		full:  articlePage(5),
	}
	res := newTestPipeline(nil).Extract(context.Background(), page, "https://app.example.com/", Config{})

	require.True(t, res.Content.OK(), res.Content.Error)
	assert.Equal(t, model.MethodReadability, res.Metrics.MethodUsed)
	assert.Equal(t, 3, res.Metrics.Attempts)
	assert.Equal(t, 2, page.calls)
}

func TestPipeline_ForcedAttemptRunsBeforeDeadline(t *testing.T) {
	// The page never stops mutating, so only the forced attempt at the
	// ceiling sees the rendered article.
	mutations := make(chan spa.Mutation)
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(5 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				select {
				case mutations <- spa.Mutation{Count: 3}:
				case <-done:
					return
				}
			}
		}
	}()

	page := &renderingPage{
		shellCalls: 3,
		shell:      `<html><body><div id="__next"></div><script src="/a.js"></script></body></html>`,
		full:       articlePage(5),
		recent:     25,
		source:     spa.ChannelSource(mutations),
	}
	p := NewPipeline(WithSPAConfig(spa.Config{
		Window:       40 * time.Millisecond,
		Debounce:     20 * time.Millisecond,
		StaticWindow: 10 * time.Millisecond,
		Stages:       []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond},
	}))
	cfg := Config{Timeout: 400 * time.Millisecond, SPATimeout: 400 * time.Millisecond}

	start := time.Now()
	res := p.Extract(context.Background(), page, "https://app.example.com/", cfg)

	require.True(t, res.Content.OK(), res.Content.Error)
	assert.Equal(t, 4, page.calls, "initial snapshot, two checkpoints, forced attempt")
	assert.Less(t, time.Since(start), cfg.Timeout+100*time.Millisecond)
}

func TestSPASignal(t *testing.T) {
	doc := func(src string) *goquery.Document {
		d, err := goquery.NewDocumentFromReader(strings.NewReader(src))
		require.NoError(t, err)
		return d
	}
	plain := &StaticPage{}
	assert.Equal(t, "framework root", spaSignal(plain, doc(`<body><div id="__nuxt"></div></body>`)))
	assert.Equal(t, "empty app root", spaSignal(plain, doc(`<body><div id="root">Loading</div></body>`)))
	assert.Equal(t, "script-heavy thin body", spaSignal(plain, doc(`<body><p>hi</p><script></script><script></script><script></script></body>`)))
	assert.Equal(t, "dom mutating", spaSignal(&StaticPage{Recent: 25}, doc(articlePage(5))))
	assert.Empty(t, spaSignal(plain, doc(articlePage(5))))
}
