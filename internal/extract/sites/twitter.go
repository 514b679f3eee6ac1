package sites

import (
	"net/url"
	"regexp"

	"tldr-buffer/internal/model"

	"github.com/PuerkitoBio/goquery"
)

var statusPath = regexp.MustCompile(`^/[^/]+/status/\d+`)

// Twitter reads a status and the visible thread below it.
type Twitter struct{}

func (t *Twitter) Name() string  { return "twitter" }
func (t *Twitter) Priority() int { return 60 }

func (t *Twitter) CanHandle(u *url.URL, _ *goquery.Document) bool {
	return hostIs(u, "twitter.com", "x.com") && statusPath.MatchString(u.Path)
}

func (t *Twitter) Extract(doc *goquery.Document, u *url.URL) *model.ExtractedContent {
	tweets := doc.Find(`article[data-testid="tweet"]`)
	if tweets.Length() == 0 {
		return nil
	}
	var author string
	var posts []string
	tweets.Each(func(i int, tw *goquery.Selection) {
		who := clean(tw.Find(`[data-testid="User-Name"]`).First().Text())
		if i == 0 {
			author = who
		}
		body := text(tw.Find(`[data-testid="tweetText"]`).First())
		if tw.Find(`[data-testid="tweetPhoto"]`).Length() > 0 {
			body += " [Image]"
		}
		if tw.Find(`[data-testid="videoPlayer"], [data-testid="videoComponent"]`).Length() > 0 {
			body += " [Video]"
		}
		if body == "" {
			return
		}
		if who != "" {
			body = who + ":\n" + body
		}
		posts = append(posts, body)
	})
	return finish(t.Name(), u, "", author, posts)
}
