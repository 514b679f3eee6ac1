// Package extract turns a page's DOM into article text. Pipeline runs the
// site-specific, readability and heuristic strategies in order, waits for
// single-page apps to settle, and falls back to manual selection.
package extract

import (
	"fmt"
	"io"
	"os"

	"tldr-buffer/internal/spa"

	"github.com/PuerkitoBio/goquery"
)

// Page is a source of DOM snapshots. Strategies never modify a snapshot in
// place; anything destructive runs on a clone.
type Page interface {
	Snapshot() (*goquery.Document, error)
}

// MutationPage is implemented by pages that can report DOM activity.
type MutationPage interface {
	Page
	Mutations() spa.Source
	// RecentMutations is how many mutations were seen just before the snapshot.
	RecentMutations() int
}

// ReadyStatePage is implemented by pages that know document.readyState.
type ReadyStatePage interface {
	ReadyState() string
}

// StaticPage is a single snapshot posted by a content script.
type StaticPage struct {
	Doc    *goquery.Document
	State  string
	Recent int
	Source spa.Source
}

// ParsePage parses an HTML snapshot.
func ParsePage(r io.Reader) (*StaticPage, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	return &StaticPage{Doc: doc}, nil
}

func (p *StaticPage) Snapshot() (*goquery.Document, error) {
	if p.Doc == nil {
		return nil, fmt.Errorf("empty snapshot")
	}
	return p.Doc, nil
}

func (p *StaticPage) ReadyState() string    { return p.State }
func (p *StaticPage) RecentMutations() int  { return p.Recent }
func (p *StaticPage) Mutations() spa.Source { return p.Source }

// FilePage re-reads a snapshot file on every Snapshot call, so a retry after
// waiting sees whatever the browser wrote last.
type FilePage struct {
	Path   string
	Source spa.Source
	Recent int
}

func (p *FilePage) Snapshot() (*goquery.Document, error) {
	f, err := os.Open(p.Path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()
	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	return doc, nil
}

func (p *FilePage) RecentMutations() int  { return p.Recent }
func (p *FilePage) Mutations() spa.Source { return p.Source }

// cloneDocument deep-copies doc so destructive passes leave the caller's DOM alone.
func cloneDocument(doc *goquery.Document) *goquery.Document {
	return goquery.NewDocumentFromNode(doc.Selection.Clone().Get(0))
}
