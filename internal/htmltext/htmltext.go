// Package htmltext renders HTML nodes as readable plain text. Code blocks are
// fenced, inline code is backtick-wrapped, lists become bullets, and paragraph
// boundaries survive whitespace collapsing.
package htmltext

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"
)

// Fence delimits preformatted blocks in the rendered text.
const Fence = "```"

// Options tunes rendering.
type Options struct {
	// MediaPlaceholders renders images, video and embeds as short bracketed
	// markers instead of dropping them.
	MediaPlaceholders bool
}

// Render converts n and its subtree to text.
func Render(n *html.Node, opts Options) string {
	if n == nil {
		return ""
	}
	r := &renderer{opts: opts}
	r.walk(n)
	return Normalize(r.b.String())
}

// FromSelection renders every node of sel in document order, separating
// nodes by a paragraph break.
func FromSelection(sel *goquery.Selection, opts Options) string {
	if sel == nil {
		return ""
	}
	r := &renderer{opts: opts}
	for _, n := range sel.Nodes {
		r.walk(n)
		r.block()
	}
	return Normalize(r.b.String())
}

// FromHTML parses an HTML fragment and renders it.
func FromHTML(fragment string, opts Options) (string, error) {
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return "", err
	}
	return Render(doc, opts), nil
}

// Length counts code points, the unit every minimum-length rule uses.
func Length(s string) int {
	return utf8.RuneCountInString(s)
}

// WordCount counts whitespace-separated words.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

type listState struct {
	ordered bool
	n       int
}

type renderer struct {
	b     strings.Builder
	opts  Options
	lists []listState
}

func (r *renderer) block() { r.b.WriteString("\n\n") }

// line starts a new line unless the output already ends with one.
func (r *renderer) line() {
	if s := r.b.String(); s != "" && !strings.HasSuffix(s, "\n") {
		r.b.WriteString("\n")
	}
}

func (r *renderer) children(n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		r.walk(c)
	}
}

func (r *renderer) walk(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		r.b.WriteString(collapseSpaces(n.Data))
		return
	case html.ElementNode:
	default:
		r.children(n)
		return
	}

	tag := strings.ToLower(n.Data)
	switch tag {
	case "script", "style", "noscript", "template", "svg", "head", "button", "input", "select", "textarea", "canvas":
		return
	case "br":
		r.b.WriteString("\n")
	case "hr":
		r.block()
	case "pre":
		r.block()
		r.b.WriteString(Fence + "\n")
		r.b.WriteString(strings.Trim(rawText(n), "\n"))
		r.b.WriteString("\n" + Fence)
		r.block()
	case "code", "kbd", "samp":
		code := strings.TrimSpace(collapseSpaces(rawText(n)))
		if code != "" {
			r.b.WriteString("`" + code + "`")
		}
	case "img":
		r.media(n, "Image")
	case "video":
		r.media(n, "Video")
	case "audio":
		r.media(n, "Audio")
	case "iframe", "embed", "object":
		r.media(n, "Embed")
	case "ul", "ol":
		r.lists = append(r.lists, listState{ordered: tag == "ol"})
		r.block()
		r.children(n)
		r.lists = r.lists[:len(r.lists)-1]
		r.block()
	case "li":
		r.line()
		r.b.WriteString(r.bullet())
		r.children(n)
		r.line()
	case "tr", "dt", "dd", "figcaption", "summary":
		r.line()
		r.children(n)
		r.line()
	case "td", "th":
		r.children(n)
		r.b.WriteString(" ")
	case "p", "div", "section", "article", "main", "header", "footer", "aside", "nav", "blockquote",
		"h1", "h2", "h3", "h4", "h5", "h6", "table", "figure", "dl", "details", "address":
		r.block()
		r.children(n)
		r.block()
	default:
		r.children(n)
	}
}

func (r *renderer) bullet() string {
	if len(r.lists) == 0 {
		return "- "
	}
	top := &r.lists[len(r.lists)-1]
	if !top.ordered {
		return "- "
	}
	top.n++
	return strconv.Itoa(top.n) + ". "
}

func (r *renderer) media(n *html.Node, label string) {
	if !r.opts.MediaPlaceholders {
		return
	}
	if alt := strings.TrimSpace(attr(n, "alt")); alt != "" {
		r.b.WriteString(" [" + label + ": " + alt + "] ")
		return
	}
	r.b.WriteString(" [" + label + "] ")
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func rawText(n *html.Node) string {
	var b strings.Builder
	var dfs func(*html.Node)
	dfs = func(cur *html.Node) {
		if cur.Type == html.TextNode {
			b.WriteString(cur.Data)
		}
		if cur.Type == html.ElementNode && strings.EqualFold(cur.Data, "br") {
			b.WriteString("\n")
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			dfs(c)
		}
	}
	dfs(n)
	return b.String()
}

// Normalize collapses whitespace outside fenced blocks, keeps at most one
// blank line between paragraphs and NFC-normalizes the result.
func Normalize(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	inFence := false
	for _, line := range lines {
		if strings.TrimSpace(line) == Fence {
			inFence = !inFence
			out = append(out, Fence)
			continue
		}
		if inFence {
			out = append(out, strings.TrimRight(line, " \t\r"))
			continue
		}
		trimmed := strings.TrimSpace(collapseSpaces(line))
		if trimmed == "" {
			if len(out) > 0 && out[len(out)-1] == "" {
				continue
			}
			out = append(out, "")
			continue
		}
		out = append(out, trimmed)
	}
	for len(out) > 0 && out[0] == "" {
		out = out[1:]
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return norm.NFC.String(strings.Join(out, "\n"))
}

func collapseSpaces(s string) string {
	var b strings.Builder
	lastSpace := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\f' || r == '\u00a0' {
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
			continue
		}
		b.WriteRune(r)
		lastSpace = false
	}
	return b.String()
}
