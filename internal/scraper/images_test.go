package scraper

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPage(t *testing.T, html string) *page {
	t.Helper()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err, "Setup: could not parse test document")
	return &page{doc: doc, html: html}
}

func TestNormalizeImageURL(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		raw string

		want string
	}{
		"Absolute passes through":   {raw: "https://cdn.example.com/a.jpg", want: "https://cdn.example.com/a.jpg"},
		"Protocol relative":         {raw: "//cdn.example.com/a.jpg", want: "https://cdn.example.com/a.jpg"},
		"Root relative joins base":  {raw: "/media/a.jpg", want: "https://www.humblebundle.com/media/a.jpg"},
		"Images path joins base":    {raw: "images/a.jpg", want: "https://www.humblebundle.com/images/a.jpg"},
		"Bare filename goes under images": {raw: "a.jpg", want: "https://www.humblebundle.com/images/a.jpg"},
		"Empty stays empty":         {raw: "", want: ""},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, normalizeImageURL(tc.raw))
		})
	}
}

func TestBuildImageIndexChannels(t *testing.T) {
	t.Parallel()

	html := `<html><body>
		<img src="https://cdn.example.com/cover.jpg">
		<img srcset="https://cdn.example.com/small.jpg 1x, https://cdn.example.com/large.jpg 2x">
		<div style="background-image: url('https://cdn.example.com/hero.png')"></div>
		<div data-image="/media/lazy.webp"></div>
		<script>var banner = "https://cdn.example.com/banner.jpg";</script>
	</body></html>`

	detailJSON := map[string]any{
		"bundleData": map[string]any{
			"logo": "https://hb.imgix.net/logo",
		},
	}

	ix := buildImageIndex(testPage(t, html), detailJSON)

	bySource := map[string][]string{}
	for _, obs := range ix.observations {
		bySource[obs.Source] = append(bySource[obs.Source], obs.URL)
	}

	assert.ElementsMatch(t, []string{
		"https://cdn.example.com/cover.jpg",
		"https://cdn.example.com/small.jpg",
		"https://cdn.example.com/large.jpg",
	}, bySource[ChannelImgTag], "img elements and srcset entries should be scanned")
	assert.Equal(t, []string{"https://cdn.example.com/hero.png"}, bySource[ChannelStyle])
	assert.Equal(t, []string{"https://www.humblebundle.com/media/lazy.webp"}, bySource[ChannelDataAttr])
	assert.Equal(t, []string{"https://hb.imgix.net/logo"}, bySource[ChannelJSON], "CDN URLs without extension should still count as images")
	assert.Equal(t, []string{"https://cdn.example.com/banner.jpg"}, bySource[ChannelRegex], "URLs in script text should be caught by the sweep")
}

func TestBuildImageIndexFirstChannelWins(t *testing.T) {
	t.Parallel()

	// The same filename is served from two places; the img element is
	// scanned before the regex sweep, so its URL owns the filename.
	html := `<html><body>
		<img src="https://cdn.example.com/real/cover.jpg">
		<script>var other = "https://mirror.example.com/stale/cover.jpg";</script>
	</body></html>`

	ix := buildImageIndex(testPage(t, html), nil)

	assert.Equal(t, "https://cdn.example.com/real/cover.jpg", ix.byFile["cover.jpg"])
}

func TestImageStringsFromJSONIsDeterministic(t *testing.T) {
	t.Parallel()

	payload := map[string]any{
		"z": "https://cdn.example.com/z.jpg",
		"a": "https://cdn.example.com/a.jpg",
		"nested": map[string]any{
			"list": []any{"https://cdn.example.com/n.png", "not an image"},
		},
	}

	want := []string{
		"https://cdn.example.com/a.jpg",
		"https://cdn.example.com/n.png",
		"https://cdn.example.com/z.jpg",
	}
	for range 5 {
		assert.Equal(t, want, imageStringsFromJSON(payload), "walk order should not depend on map iteration")
	}
}

func TestResolveImage(t *testing.T) {
	t.Parallel()

	ix := newImageIndex()
	ix.add("https://cdn.example.com/real/cover.jpg", ChannelImgTag, "src")
	ix.add("https://cdn.example.com/tiles/logo-large.png", ChannelImgTag, "src")

	tests := map[string]struct {
		ref string

		want string
	}{
		"Absolute passes through": {
			ref:  "https://elsewhere.example.com/x.jpg",
			want: "https://elsewhere.example.com/x.jpg",
		},
		"Exact filename key": {
			ref:  "cover.jpg",
			want: "https://cdn.example.com/real/cover.jpg",
		},
		"Basename of a path returns the indexed URL": {
			ref:  "assets/deep/cover.jpg",
			want: "https://cdn.example.com/real/cover.jpg",
		},
		"Substring falls back to a containing key": {
			ref:  "logo-large",
			want: "https://cdn.example.com/tiles/logo-large.png",
		},
		"Unknown reference constructs from the origin": {
			ref:  "missing/unknown.jpg",
			want: "https://www.humblebundle.com/missing/unknown.jpg",
		},
		"Empty resolves to empty": {
			ref:  "",
			want: "",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, ix.resolveImage(tc.ref))
		})
	}
}

func TestResolveImageEmptyIndexConstructs(t *testing.T) {
	t.Parallel()

	ix := newImageIndex()

	got := ix.resolveImage("covers/book.jpg")
	assert.Equal(t, "https://www.humblebundle.com/covers/book.jpg", got, "resolution should never fail, even against an empty index")
}

func TestScanAndResolveOrders(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{ChannelImgTag, ChannelStyle, ChannelDataAttr, ChannelJSON, ChannelRegex}, ChannelOrder)
	assert.Equal(t, []string{"exact", "filename", "substring", "constructed"}, MatcherOrder)

	require.Len(t, imageMatchers, len(MatcherOrder))
	for i, matcher := range imageMatchers {
		assert.Equal(t, MatcherOrder[i], matcher.name, "matchers should run in the declared order")
	}
}

func TestImageIndexDeduplicates(t *testing.T) {
	t.Parallel()

	ix := newImageIndex()
	ix.add("/media/cover.jpg", ChannelImgTag, "src")
	ix.add("https://www.humblebundle.com/media/cover.jpg", ChannelRegex, "")

	assert.Len(t, ix.observations, 1, "the same absolute URL should be recorded once")
	assert.Equal(t, ChannelImgTag, ix.observations[0].Source)
}
