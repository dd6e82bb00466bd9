package selector

import (
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestSelectFallbackOnlySecondMatches(t *testing.T) {
	doc := mustDoc(t, `<div><p example>hi</p></div>`)
	found := Select(doc.Selection, "a, p[example], p")
	require.Equal(t, 1, found.Length())
	assert.Equal(t, "hi", strings.TrimSpace(found.Text()))
}

func TestSelectFallbackFirstMatches(t *testing.T) {
	doc := mustDoc(t, `<div><a>first</a><p>second</p></div>`)
	found := Select(doc.Selection, "a, p")
	require.Equal(t, 1, found.Length())
	assert.Equal(t, "first", strings.TrimSpace(found.Text()))
}

func TestSelectNoMatch(t *testing.T) {
	doc := mustDoc(t, `<div></div>`)
	found := Select(doc.Selection, "a, p")
	assert.Equal(t, 0, found.Length())
}

func TestTextOrAttrFallsBackToText(t *testing.T) {
	doc := mustDoc(t, `<span>hello world</span>`)
	sel := doc.Find("span")
	assert.Equal(t, "hello world", TextOrAttr(sel, "title"))
}

func TestTextOrAttrPrefersAttribute(t *testing.T) {
	doc := mustDoc(t, `<span title="  Hello  ">ignored</span>`)
	sel := doc.Find("span")
	assert.Equal(t, "Hello", TextOrAttr(sel, "title"))
}

func TestCollectListSingleElementSplitsOnPunctuation(t *testing.T) {
	doc := mustDoc(t, `<div class="genres">Action; Adventure - Drama</div>`)
	values := CollectList(doc.Selection, ".genres")
	assert.Equal(t, []string{"Action", "Adventure", "Drama"}, values)
}

func TestCollectListMultipleElementsSplitsOnNewline(t *testing.T) {
	doc := mustDoc(t, `<ul><li>Action</li><li>Adventure</li></ul>`)
	values := CollectList(doc.Selection, "li")
	assert.Equal(t, []string{"Action", "Adventure"}, values)
}

func TestAbsoluteURLResolvesRelativeAgainstRoot(t *testing.T) {
	base, _ := url.Parse("https://example.com/manga/one/chapter/3")
	doc := mustDoc(t, `<a href="/manga/one/chapter/4">next</a>`)
	sel := doc.Find("a")
	resolved, ok := AbsoluteURL(base, sel, nil)
	require.True(t, ok)
	assert.Equal(t, "https://example.com/manga/one/chapter/4", resolved)
}

func TestAbsoluteURLKeepsAbsoluteHref(t *testing.T) {
	base, _ := url.Parse("https://example.com/manga/one")
	doc := mustDoc(t, `<img data-src="https://cdn.example.com/cover.jpg">`)
	sel := doc.Find("img")
	resolved, ok := AbsoluteURL(base, sel, []string{"src", "data-src"})
	require.True(t, ok)
	assert.Equal(t, "https://cdn.example.com/cover.jpg", resolved)
}

func TestLastIntegerPicksFinalRun(t *testing.T) {
	value, ok := LastInteger("Chapter 12 - Page 2024")
	require.True(t, ok)
	assert.Equal(t, float64(2024), value)
}

func TestLastIntegerNoDigits(t *testing.T) {
	_, ok := LastInteger("no numbers here")
	assert.False(t, ok)
}
