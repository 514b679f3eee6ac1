package sites

import (
	"net/url"
	"regexp"

	"tldr-buffer/internal/model"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var githubThreadPath = regexp.MustCompile(`^/[^/]+/[^/]+/(issues|pull|discussions)/\d+`)
var githubRepoPath = regexp.MustCompile(`^/[^/]+/[^/]+/?$`)

// GitHub reads issues, pull requests, discussions and repository READMEs.
type GitHub struct{}

func (g *GitHub) Name() string  { return "github" }
func (g *GitHub) Priority() int { return 100 }

func (g *GitHub) CanHandle(u *url.URL, _ *goquery.Document) bool {
	if !hostIs(u, "github.com") {
		return false
	}
	return githubThreadPath.MatchString(u.Path) || githubRepoPath.MatchString(u.Path)
}

func (g *GitHub) Extract(doc *goquery.Document, u *url.URL) *model.ExtractedContent {
	title := clean(doc.Find(`.js-issue-title, bdi.markdown-title, [data-testid="issue-title"], h1.gh-header-title`).First().Text())

	var posts []string
	var author string
	seen := map[*html.Node]bool{}
	// Comment containers, possibly nested; the first one is the opening post.
	doc.Find(`.timeline-comment, .js-comment-container, [data-testid="issue-viewer-issue-container"], [data-testid="comment-viewer-outer-box"]`).Each(func(_ int, c *goquery.Selection) {
		body := c.Find(`.comment-body, .js-comment-body, [data-testid="markdown-body"]`).First()
		if body.Length() == 0 || seen[body.Get(0)] {
			return
		}
		seen[body.Get(0)] = true
		who := clean(c.Find(`.author, [data-testid="issue-body-header-author"], a[data-hovercard-type="user"]`).First().Text())
		if author == "" {
			author = who
		}
		post := text(body)
		if who != "" {
			post = "@" + who + ":\n" + post
		}
		posts = append(posts, post)
	})

	if len(posts) == 0 {
		readme := doc.Find(`#readme article.markdown-body, article.markdown-body`).First()
		if readme.Length() == 0 {
			return nil
		}
		if title == "" {
			title = clean(doc.Find(`strong[itemprop="name"] a, [itemprop="name"]`).First().Text())
		}
		posts = append(posts, text(readme))
	}
	return finish(g.Name(), u, title, author, posts)
}
