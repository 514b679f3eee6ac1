package sites

import (
	"net/url"
	"regexp"

	"tldr-buffer/internal/model"

	"github.com/PuerkitoBio/goquery"
)

var redditThreadPath = regexp.MustCompile(`^/r/[^/]+/comments/`)

// Reddit reads a post and its comments in both the current and the old layout.
type Reddit struct{}

func (r *Reddit) Name() string  { return "reddit" }
func (r *Reddit) Priority() int { return 80 }

func (r *Reddit) CanHandle(u *url.URL, _ *goquery.Document) bool {
	return hostIs(u, "reddit.com") && redditThreadPath.MatchString(u.Path)
}

func (r *Reddit) Extract(doc *goquery.Document, u *url.URL) *model.ExtractedContent {
	if post := doc.Find("shreddit-post").First(); post.Length() > 0 {
		return r.extractCurrent(doc, post, u)
	}
	if post := doc.Find(`.thing.link`).First(); post.Length() > 0 {
		return r.extractOld(doc, post, u)
	}
	return nil
}

func (r *Reddit) extractCurrent(doc *goquery.Document, post *goquery.Selection, u *url.URL) *model.ExtractedContent {
	title, _ := post.Attr("post-title")
	if title == "" {
		title = clean(doc.Find(`h1[slot="title"], h1`).First().Text())
	}
	author, _ := post.Attr("author")

	body := text(post.Find(`[slot="text-body"]`))
	if body == "" && post.Find(`[slot="post-media-container"], shreddit-player, gallery-carousel, img`).Length() > 0 {
		body = "[Media]"
	}
	posts := []string{body}
	doc.Find("shreddit-comment").Each(func(_ int, c *goquery.Selection) {
		who, _ := c.Attr("author")
		content := text(c.Find(`[slot="comment"]`).First())
		if content == "" {
			return
		}
		posts = append(posts, "u/"+who+":\n"+content)
	})
	return finish(r.Name(), u, clean(title), author, posts)
}

func (r *Reddit) extractOld(doc *goquery.Document, post *goquery.Selection, u *url.URL) *model.ExtractedContent {
	title := clean(post.Find("a.title").First().Text())
	author := clean(post.Find("a.author").First().Text())

	body := text(post.Find(".usertext-body .md").First())
	if body == "" && post.Find(".media-preview, .expando video, .expando img").Length() > 0 {
		body = "[Media]"
	}
	posts := []string{body}
	doc.Find(".commentarea .comment").Each(func(_ int, c *goquery.Selection) {
		entry := c.ChildrenFiltered(".entry")
		content := text(entry.Find(".usertext-body .md").First())
		if content == "" {
			return
		}
		who := clean(entry.Find("a.author").First().Text())
		posts = append(posts, "u/"+who+":\n"+content)
	})
	return finish(r.Name(), u, title, author, posts)
}
