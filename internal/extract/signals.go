package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

const (
	// busyMutations is the recent-mutation count that marks a page as still rendering.
	busyMutations = 20
	thinBody      = 200
	frameworkRoot = "#__next, #__nuxt, [data-reactroot], [ng-version], [data-v-app]"
)

// spaSignal returns a short description of why the page looks like a
// single-page app that has not finished rendering, or "" when it does not.
func spaSignal(page Page, doc *goquery.Document) string {
	if mp, ok := page.(MutationPage); ok && mp.RecentMutations() >= busyMutations {
		return "dom mutating"
	}
	bodyLen := visibleLength(doc.Find("body"))
	scripts := doc.Find("script").Length()
	if doc.Find(frameworkRoot).Length() > 0 && bodyLen < 4*thinBody {
		return "framework root"
	}
	if doc.Find("#root, #app").Length() > 0 && bodyLen < thinBody {
		return "empty app root"
	}
	if bodyLen < thinBody && scripts >= 3 {
		return "script-heavy thin body"
	}
	return ""
}

// visibleLength counts the runes of squashed text outside script-like elements.
func visibleLength(sel *goquery.Selection) int {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			b.WriteByte(' ')
			return
		case html.ElementNode:
			switch n.Data {
			case "script", "style", "noscript", "template":
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return len([]rune(squash(b.String())))
}
