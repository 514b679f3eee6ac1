package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// unsupported describes a page the pipeline refuses to run on.
type unsupported struct {
	Reason     string
	Suggestion string
}

const pdfEmbeds = `embed[type="application/pdf"], object[type="application/pdf"], iframe[src$=".pdf"], embed#plugin`

// detectUnsupported reports PDFs, pages whose content is inside a
// cross-origin frame, and pages that are still loading.
func detectUnsupported(page Page, doc *goquery.Document, u *url.URL) *unsupported {
	if strings.HasSuffix(strings.ToLower(u.Path), ".pdf") || doc.Find(pdfEmbeds).Length() > 0 {
		return &unsupported{
			Reason:     "PDF documents cannot be extracted",
			Suggestion: "Open the PDF in a reader and copy the text you want summarized.",
		}
	}
	if rs, ok := page.(ReadyStatePage); ok && rs.ReadyState() == "loading" {
		return &unsupported{
			Reason:     "page is still loading",
			Suggestion: "Wait for the page to finish loading and try again.",
		}
	}
	if crossOriginFrame(doc, u) {
		return &unsupported{
			Reason:     "content is inside a cross-origin frame",
			Suggestion: "Open the framed page in its own tab and try again.",
		}
	}
	return nil
}

// crossOriginFrame is true when the page is little more than a frame onto
// another origin.
func crossOriginFrame(doc *goquery.Document, u *url.URL) bool {
	if u.Host == "" {
		return false
	}
	body := doc.Find("body")
	frames := body.Find("iframe[src], frame[src]")
	if frames.Length() == 0 {
		return false
	}
	if visibleLength(body) >= thinBody {
		return false
	}
	foreign := false
	frames.Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		fu, err := u.Parse(src)
		if err != nil || fu.Host == "" {
			return
		}
		if !strings.EqualFold(fu.Hostname(), u.Hostname()) {
			foreign = true
		}
	})
	return foreign
}
