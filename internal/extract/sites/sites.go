// Package sites holds extractors that know the markup of specific platforms.
// They are tried before any generic strategy and return nil when the page does
// not carry the structure they expect.
package sites

import (
	"net/url"
	"sort"
	"strings"
	"time"

	"tldr-buffer/internal/htmltext"
	"tldr-buffer/internal/model"

	"github.com/PuerkitoBio/goquery"
)

// MinContentLength is the smallest joined text a site extractor will return.
const MinContentLength = 100

// PostSeparator is placed between successive posts of a thread.
const PostSeparator = "\n\n---\n\n"

var renderOpts = htmltext.Options{MediaPlaceholders: true}

// Extractor reads one platform's pages.
type Extractor interface {
	Name() string
	// Priority orders extractors when several claim the same URL; higher wins.
	Priority() int
	CanHandle(u *url.URL, doc *goquery.Document) bool
	// Extract returns nil when the expected structural markers are absent or
	// the joined text is shorter than MinContentLength.
	Extract(doc *goquery.Document, u *url.URL) *model.ExtractedContent
}

// Registry resolves a URL to the best matching extractor.
type Registry struct {
	extractors []Extractor
}

// NewRegistry builds an empty registry.
func NewRegistry(extractors ...Extractor) *Registry {
	r := &Registry{}
	for _, e := range extractors {
		r.Register(e)
	}
	return r
}

// Default builds a registry with every built-in extractor.
func Default() *Registry {
	return NewRegistry(
		&GitHub{},
		&StackExchange{},
		&Reddit{},
		&HackerNews{},
		&Twitter{},
	)
}

// Register adds an extractor, replacing one with the same name.
func (r *Registry) Register(e Extractor) {
	for i, existing := range r.extractors {
		if existing.Name() == e.Name() {
			r.extractors[i] = e
			return
		}
	}
	r.extractors = append(r.extractors, e)
	sort.SliceStable(r.extractors, func(i, j int) bool {
		return r.extractors[i].Priority() > r.extractors[j].Priority()
	})
}

// Resolve returns the highest-priority extractor that can handle the page,
// or nil when none matches.
func (r *Registry) Resolve(u *url.URL, doc *goquery.Document) Extractor {
	if r == nil || u == nil {
		return nil
	}
	for _, e := range r.extractors {
		if e.CanHandle(u, doc) {
			return e
		}
	}
	return nil
}

// Names lists registered extractors in priority order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.extractors))
	for _, e := range r.extractors {
		names = append(names, e.Name())
	}
	return names
}

func hostIs(u *url.URL, hosts ...string) bool {
	h := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	for _, want := range hosts {
		if h == want || strings.HasSuffix(h, "."+want) {
			return true
		}
	}
	return false
}

func text(sel *goquery.Selection) string {
	return htmltext.FromSelection(sel, renderOpts)
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// finish joins posts and applies the shared minimum-length rule.
func finish(source string, u *url.URL, title, author string, posts []string) *model.ExtractedContent {
	kept := posts[:0]
	for _, p := range posts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	body := strings.Join(kept, PostSeparator)
	// Only the fragments count toward the minimum.
	if htmltext.Length(body) < MinContentLength {
		return nil
	}
	if title != "" {
		body = title + "\n\n" + body
	}
	c := model.NewContent(body, model.ContentMetadata{
		Title:       title,
		URL:         u.String(),
		ExtractedAt: time.Now().UTC(),
		Author:      author,
		WordCount:   htmltext.WordCount(body),
		SiteName:    siteName(u),
		Source:      source,
	})
	return &c
}

func siteName(u *url.URL) string {
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
