package extract

import (
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doc(t *testing.T, src string) *goquery.Document {
	t.Helper()
	d, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	require.NoError(t, err)
	return d
}

func TestHeuristic_PicksMainContent(t *testing.T) {
	src := `<html><head><meta property="og:title" content="Release notes"></head><body>
<div class="sidebar"><ul><li><a href="/1">One</a></li><li><a href="/2">Two</a></li></ul></div>
<main>` + paragraphs(5) + `</main>
<div class="related-posts">` + paragraphs(1) + `</div>
</body></html>`
	u, _ := url.Parse("https://example.com/notes")
	got, err := NewHeuristic().Extract(doc(t, src), u)
	require.NoError(t, err)

	assert.Equal(t, "heuristic", got.Metadata.Source)
	assert.Equal(t, "Release notes", got.Metadata.Title)
	assert.Contains(t, got.Text, "5. The committee")
	assert.NotContains(t, got.Text, "One")
	assert.Equal(t, 10, strings.Count(got.Text, "The committee reviewed"))
}

func TestHeuristic_KeepsMainInsideLayoutWrappers(t *testing.T) {
	u, _ := url.Parse("https://example.com/post")
	wrappers := []string{
		`class="container"`,
		`class="layout has-sidebar"`,
		`id="content-with-sidenav"`,
		`class="shared-layout"`,
	}
	for _, attr := range wrappers {
		t.Run(attr, func(t *testing.T) {
			src := `<html><body><div ` + attr + `><main><h1>Field notes</h1>` + paragraphs(6) + `</main></div></body></html>`
			got, err := NewHeuristic().Extract(doc(t, src), u)
			require.NoError(t, err)
			assert.Greater(t, got.CharCount, GenericMinLength)
			assert.Contains(t, got.Text, "6. The committee")
		})
	}
}

func TestBoilerplatePattern(t *testing.T) {
	for _, v := range []string{"nav", "main-nav", "site_footer", "Related-Posts", "share buttons", "cookie-banner"} {
		assert.True(t, boilerplatePattern.MatchString(v), v)
	}
	for _, v := range []string{"sidenav", "shared-layout", "canvas", "menuitem-wrapper", "unrelated"} {
		assert.False(t, boilerplatePattern.MatchString(v), v)
	}
}

func TestHeuristic_RejectsShortContent(t *testing.T) {
	u, _ := url.Parse("https://example.com/")
	got, err := NewHeuristic().Extract(doc(t, `<html><body><main>`+paragraphs(1)+`</main></body></html>`), u)
	require.Error(t, err)
	assert.False(t, got.OK())
	assert.NotEmpty(t, got.Error)
}

func TestHeuristic_FallsBackToBlocks(t *testing.T) {
	src := `<html><body>
<div id="menu"><a href="/a">A</a><a href="/b">B</a></div>
<div class="content">` + paragraphs(5) + `</div>
</body></html>`
	u, _ := url.Parse("https://example.com/")
	got, err := NewHeuristic().Extract(doc(t, src), u)
	require.NoError(t, err)
	assert.Contains(t, got.Text, "1. The committee")
}

func TestHeuristic_LinkDensityPenalty(t *testing.T) {
	h := NewHeuristic()
	d := doc(t, `<html><body>
<div id="a"><p>`+sentence+`</p><p>`+sentence+`</p></div>
<div id="b"><p><a href="/x">`+sentence+`</a></p><p><a href="/y">`+sentence+`</a></p></div>
</body></html>`)
	prose := h.Score(d.Find("#a"))
	links := h.Score(d.Find("#b"))
	assert.Greater(t, prose, links)
	assert.Less(t, links, 1.0)
}
