package sites

import (
	"net/url"
	"strconv"
	"strings"

	"tldr-buffer/internal/model"

	"github.com/PuerkitoBio/goquery"
)

// HackerNews reads an item page: the story header, its text and the comment tree.
type HackerNews struct{}

func (h *HackerNews) Name() string  { return "hackernews" }
func (h *HackerNews) Priority() int { return 70 }

func (h *HackerNews) CanHandle(u *url.URL, _ *goquery.Document) bool {
	return hostIs(u, "news.ycombinator.com") && u.Path == "/item" && u.Query().Get("id") != ""
}

func (h *HackerNews) Extract(doc *goquery.Document, u *url.URL) *model.ExtractedContent {
	story := doc.Find(".fatitem").First()
	if story.Length() == 0 {
		return nil
	}
	title := clean(story.Find(".titleline > a").First().Text())
	author := clean(story.Find(".hnuser").First().Text())

	var posts []string
	if top := text(story.Find(".toptext")); top != "" {
		posts = append(posts, top)
	} else if title == "" {
		// A comment permalink: the item itself is a comment.
		posts = append(posts, text(story.Find(".commtext").First()))
	}

	doc.Find(".comment-tree tr.comtr").Each(func(_ int, c *goquery.Selection) {
		content := text(c.Find(".commtext").First())
		if content == "" {
			return
		}
		depth := 0
		if v, ok := c.Find("td.ind").First().Attr("indent"); ok {
			depth, _ = strconv.Atoi(v)
		}
		who := clean(c.Find(".hnuser").First().Text())
		posts = append(posts, strings.Repeat("> ", depth)+who+":\n"+content)
	})
	return finish(h.Name(), u, title, author, posts)
}
