package extract

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"tldr-buffer/internal/htmltext"
	"tldr-buffer/internal/model"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

const (
	semanticCandidates = "main, article, [role=main], [role=article]"
	blockCandidates    = "div, section"
	boilerplateTags    = "nav, footer, aside, header, " +
		"[role=navigation], [role=banner], [role=contentinfo], [role=complementary], [role=search]"
)

// boilerplatePattern matches whole class/id words, so "has-sidebar" or
// "nav_links" match but "sidenav" and "shared-layout" do not.
var boilerplatePattern = regexp.MustCompile(`(?i)(^|[-_\s])(nav|navbar|menu|footer|sidebar|breadcrumbs?|share|sharing|social|advert|ads|promo|cookie|cookies|related)([-_\s]|$)`)

// Heuristic scores candidate containers by paragraph density and picks the best.
type Heuristic struct {
	MinScore  float64 `yaml:"min_score"`
	MinLength int     `yaml:"min_length"`
	// ShortBlock is the text length under which a child block counts as noise.
	ShortBlock int `yaml:"short_block"`
}

func NewHeuristic() *Heuristic {
	return &Heuristic{MinScore: 100, MinLength: GenericMinLength, ShortBlock: 25}
}

func (h *Heuristic) Method() model.Method { return model.MethodHeuristic }

func (h *Heuristic) Extract(doc *goquery.Document, u *url.URL) (model.ExtractedContent, error) {
	meta := model.ContentMetadata{URL: u.String(), ExtractedAt: time.Now().UTC(), Source: "heuristic"}
	clone := cloneDocument(doc)
	stripBoilerplate(clone)

	best, score := h.bestCandidate(clone)
	if best == nil {
		err := fmt.Errorf("no content container found")
		return model.FailedContent(err.Error(), meta), err
	}
	if score < h.MinScore {
		err := fmt.Errorf("best container scored %.0f, below %.0f", score, h.MinScore)
		return model.FailedContent(err.Error(), meta), err
	}

	text := htmltext.FromSelection(best, htmltext.Options{})
	if n := htmltext.Length(text); n < h.MinLength {
		err := fmt.Errorf("%w: %d < %d characters", errTooShort, n, h.MinLength)
		return model.FailedContent(err.Error(), meta), err
	}

	meta.Title = pageTitle(doc)
	meta.WordCount = htmltext.WordCount(text)
	return model.NewContent(text, meta), nil
}

func (h *Heuristic) bestCandidate(doc *goquery.Document) (*goquery.Selection, float64) {
	candidates := doc.Find(semanticCandidates)
	if candidates.Length() == 0 {
		candidates = doc.Find(blockCandidates)
	}
	var (
		best      *goquery.Selection
		bestScore float64
	)
	candidates.Each(func(_ int, s *goquery.Selection) {
		score := h.Score(s)
		if best == nil || score > bestScore {
			best, bestScore = s, score
		}
	})
	return best, bestScore
}

// Score rates a container: text length times paragraph count, plus bonuses
// for headings, list items and semantic tags, discounted by link density.
func (h *Heuristic) Score(s *goquery.Selection) float64 {
	textLen := float64(len([]rune(squash(s.Text()))))
	paragraphs := float64(s.Find("p").Length())
	score := textLen * paragraphs
	score += 25 * float64(s.Find("h1, h2, h3, h4, h5, h6").Length())
	score += 10 * float64(s.Find("li").Length())
	if isSemantic(s) {
		score += 50
	}

	density := linkDensity(s, textLen)
	score *= 1 - density
	if density > 0.5 {
		score *= 0.2
	}

	s.Children().Each(func(_ int, child *goquery.Selection) {
		if !isBlock(child) {
			return
		}
		if len([]rune(squash(child.Text()))) < h.ShortBlock {
			score -= 10
		}
	})
	return score
}

func stripBoilerplate(doc *goquery.Document) {
	doc.Find(boilerplateTags).Remove()
	doc.Find("[class], [id]").Each(func(_ int, s *goquery.Selection) {
		if s.Is("html, body, main, article") || s.Find(semanticCandidates).Length() > 0 {
			return
		}
		class, _ := s.Attr("class")
		id, _ := s.Attr("id")
		if boilerplatePattern.MatchString(class + " " + id) {
			s.Remove()
		}
	})
}

func linkDensity(s *goquery.Selection, textLen float64) float64 {
	if textLen == 0 {
		return 0
	}
	var linkLen float64
	s.Find("a").Each(func(_ int, a *goquery.Selection) {
		linkLen += float64(len([]rune(squash(a.Text()))))
	})
	if linkLen > textLen {
		return 1
	}
	return linkLen / textLen
}

func isSemantic(s *goquery.Selection) bool {
	if s.Is("main, article") {
		return true
	}
	role, _ := s.Attr("role")
	return role == "main" || role == "article"
}

func isBlock(s *goquery.Selection) bool {
	n := s.Get(0)
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	switch n.Data {
	case "p", "div", "section", "ul", "ol", "table", "blockquote", "pre", "figure",
		"h1", "h2", "h3", "h4", "h5", "h6":
		return true
	}
	return false
}

func pageTitle(doc *goquery.Document) string {
	if t, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok && strings.TrimSpace(t) != "" {
		return strings.TrimSpace(t)
	}
	if t := squash(doc.Find("h1").First().Text()); t != "" {
		return t
	}
	return squash(doc.Find("title").First().Text())
}

func squash(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
