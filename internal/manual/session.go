// Package manual implements the selection fallback used when no automated
// strategy produced enough text. A Session works on its own copy of the page,
// so hovering and selecting never touch the caller's DOM.
package manual

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"tldr-buffer/internal/htmltext"
	"tldr-buffer/internal/model"

	"github.com/PuerkitoBio/goquery"
)

// MinLength is the shortest selection Confirm accepts.
const MinLength = 100

const previewLength = 120

var (
	ErrClosed      = errors.New("selection session is closed")
	ErrNoSelection = errors.New("nothing selected")
	ErrNoMatch     = errors.New("selector matched nothing")
)

// Highlight describes the element under the pointer or the current selection.
type Highlight struct {
	Selector  string `json:"selector"`
	Tag       string `json:"tag"`
	Preview   string `json:"preview"`
	CharCount int    `json:"char_count"`
	// Acceptable is false while the selection is still below MinLength.
	Acceptable bool `json:"acceptable"`
}

type Session struct {
	mu        sync.Mutex
	doc       *goquery.Document
	url       string
	title     string
	selection string
	closed    bool
	now       func() time.Time
}

// NewSession starts a session on a copy of doc.
func NewSession(doc *goquery.Document, rawURL string) *Session {
	clone := goquery.NewDocumentFromNode(doc.Selection.Clone().Get(0))
	return &Session{
		doc:   clone,
		url:   rawURL,
		title: strings.TrimSpace(clone.Find("title").First().Text()),
		now:   time.Now,
	}
}

// Hover previews the element matched by selector without selecting it.
func (s *Session) Hover(selector string) (Highlight, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Highlight{}, ErrClosed
	}
	h, _, err := s.resolve(selector)
	return h, err
}

// SelectElement selects the text of the first element matched by selector.
func (s *Session) SelectElement(selector string) (Highlight, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Highlight{}, ErrClosed
	}
	h, text, err := s.resolve(selector)
	if err != nil {
		return h, err
	}
	s.selection = text
	return h, nil
}

// SelectText records a drag selection made directly by the user.
func (s *Session) SelectText(text string) (Highlight, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Highlight{}, ErrClosed
	}
	s.selection = htmltext.Normalize(text)
	return highlight("", "", s.selection), nil
}

// Confirm packages the selection. A short selection is rejected and the
// session stays open so the user can extend it.
func (s *Session) Confirm() (model.ExtractedContent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return model.ExtractedContent{}, ErrClosed
	}
	if s.selection == "" {
		return model.ExtractedContent{}, &model.Error{Kind: model.KindInvalidInput, Op: "manual.confirm", Err: ErrNoSelection}
	}
	if n := htmltext.Length(s.selection); n < MinLength {
		return model.ExtractedContent{}, &model.Error{
			Kind:   model.KindInvalidInput,
			Op:     "manual.confirm",
			Reason: fmt.Sprintf("selection has %d characters, at least %d needed", n, MinLength),
		}
	}
	s.closed = true
	return model.NewContent(s.selection, model.ContentMetadata{
		Title:       s.title,
		URL:         s.url,
		ExtractedAt: s.now().UTC(),
		WordCount:   htmltext.WordCount(s.selection),
		Source:      string(model.MethodManual),
	}), nil
}

// Cancel ends the session. It is safe to call more than once.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.selection = ""
}

func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

// resolve finds selector in the session copy. Invalid selectors match nothing.
func (s *Session) resolve(selector string) (Highlight, string, error) {
	sel := s.doc.Find(selector).First()
	if sel.Length() == 0 {
		return Highlight{}, "", &model.Error{Kind: model.KindInvalidInput, Op: "manual.select", Err: ErrNoMatch}
	}
	text := htmltext.FromSelection(sel, htmltext.Options{})
	return highlight(selector, goquery.NodeName(sel), text), text, nil
}

func highlight(selector, tag, text string) Highlight {
	preview := []rune(strings.Join(strings.Fields(text), " "))
	if len(preview) > previewLength {
		preview = append(preview[:previewLength], '…')
	}
	n := htmltext.Length(text)
	return Highlight{
		Selector:   selector,
		Tag:        tag,
		Preview:    string(preview),
		CharCount:  n,
		Acceptable: n >= MinLength,
	}
}
