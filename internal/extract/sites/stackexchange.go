package sites

import (
	"net/url"
	"regexp"

	"tldr-buffer/internal/model"

	"github.com/PuerkitoBio/goquery"
)

var questionPath = regexp.MustCompile(`^/questions/\d+`)

// StackExchange reads a question and its answers on the Stack Exchange network.
type StackExchange struct{}

func (s *StackExchange) Name() string  { return "stackexchange" }
func (s *StackExchange) Priority() int { return 90 }

func (s *StackExchange) CanHandle(u *url.URL, _ *goquery.Document) bool {
	if !hostIs(u, "stackoverflow.com", "stackexchange.com", "superuser.com", "serverfault.com", "askubuntu.com", "mathoverflow.net") {
		return false
	}
	return questionPath.MatchString(u.Path)
}

func (s *StackExchange) Extract(doc *goquery.Document, u *url.URL) *model.ExtractedContent {
	question := doc.Find(`#question .s-prose, #question .post-text, .question .js-post-body`).First()
	if question.Length() == 0 {
		return nil
	}
	title := clean(doc.Find(`#question-header h1, h1[itemprop="name"]`).First().Text())
	author := clean(doc.Find(`#question .post-signature.owner .user-details a, #question .user-details a`).Last().Text())

	posts := []string{"Question:\n" + text(question)}
	doc.Find(`.answer`).Each(func(_ int, a *goquery.Selection) {
		body := a.Find(`.s-prose, .post-text, .js-post-body`).First()
		if body.Length() == 0 {
			return
		}
		label := "Answer"
		if a.HasClass("accepted-answer") || a.Find(`.js-accepted-answer-indicator:not(.d-none)`).Length() > 0 {
			label = "Accepted answer"
		}
		if votes := clean(a.Find(`.js-vote-count`).First().Text()); votes != "" {
			label += " (" + votes + " votes)"
		}
		posts = append(posts, label+":\n"+text(body))
	})
	return finish(s.Name(), u, title, author, posts)
}
