package extract

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"tldr-buffer/internal/htmltext"
	"tldr-buffer/internal/model"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
)

// GenericMinLength is the minimum text the generic strategies accept.
const GenericMinLength = 800

var (
	errNotReadable = errors.New("page does not look like an article")
	errTooShort    = errors.New("extracted text is too short")
)

// Strategy is a generic, site-independent extraction method.
type Strategy interface {
	Method() model.Method
	Extract(doc *goquery.Document, u *url.URL) (model.ExtractedContent, error)
}

// Readability wraps go-readability behind a cheap "is this an article" check.
type Readability struct {
	MinLength int
	// MinTextRatio is the smallest visible-text to markup ratio worth parsing.
	MinTextRatio float64
}

func NewReadability() *Readability {
	return &Readability{MinLength: GenericMinLength, MinTextRatio: 0.05}
}

func (r *Readability) Method() model.Method { return model.MethodReadability }

// ProbablyReadable is the structural pre-check run before a full parse.
func (r *Readability) ProbablyReadable(doc *goquery.Document) bool {
	if textToMarkupRatio(doc) < r.MinTextRatio {
		return false
	}
	if doc.Find("article").Length() > 0 || doc.Find("p").Length() >= 3 {
		return true
	}
	return readability.CheckDocument(doc.Get(0))
}

func (r *Readability) Extract(doc *goquery.Document, u *url.URL) (model.ExtractedContent, error) {
	meta := model.ContentMetadata{URL: u.String(), ExtractedAt: time.Now().UTC(), Source: "readability"}
	clone := cloneDocument(doc)
	if !r.ProbablyReadable(clone) {
		return model.FailedContent(errNotReadable.Error(), meta), errNotReadable
	}

	article, err := readability.FromDocument(clone.Get(0), u)
	if err != nil {
		err = fmt.Errorf("readability parse: %w", err)
		return model.FailedContent(err.Error(), meta), err
	}
	text, err := htmltext.FromHTML(article.Content, htmltext.Options{})
	if err != nil {
		err = fmt.Errorf("render article: %w", err)
		return model.FailedContent(err.Error(), meta), err
	}
	if n := htmltext.Length(text); n < r.MinLength {
		err := fmt.Errorf("%w: %d < %d characters", errTooShort, n, r.MinLength)
		return model.FailedContent(err.Error(), meta), err
	}

	meta.Title = strings.TrimSpace(article.Title)
	meta.Author = strings.TrimSpace(article.Byline)
	meta.SiteName = strings.TrimSpace(article.SiteName)
	meta.WordCount = htmltext.WordCount(text)
	return model.NewContent(text, meta), nil
}

// textToMarkupRatio compares visible body text with the body's serialized size.
func textToMarkupRatio(doc *goquery.Document) float64 {
	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}
	markup, err := goquery.OuterHtml(body)
	if err != nil || len(markup) == 0 {
		return 0
	}
	visible := len(strings.Join(strings.Fields(body.Text()), " "))
	body.Find("script, style, noscript, template").Each(func(_ int, s *goquery.Selection) {
		visible -= len(strings.Join(strings.Fields(s.Text()), " "))
	})
	if visible < 0 {
		visible = 0
	}
	return float64(visible) / float64(len(markup))
}
