package scraper

import (
	"net/url"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/bundlefeed/bundlefeed/internal/constants"
	"github.com/bundlefeed/bundlefeed/internal/models"
)

// ChannelOrder lists the scan channels of the image index in the order they
// contribute candidates. Structurally explicit markup is trusted over the
// regex text sweep, which is noisiest and placed last; on a filename
// collision the earliest channel wins.
var ChannelOrder = []string{
	ChannelImgTag,
	ChannelStyle,
	ChannelDataAttr,
	ChannelJSON,
	ChannelRegex,
}

// Discovery source tags recorded on each image observation.
const (
	ChannelImgTag   = "img_tag"
	ChannelStyle    = "style"
	ChannelDataAttr = "data_attr"
	ChannelJSON     = "json"
	ChannelRegex    = "regex"
)

// MatcherOrder names the resolution strategies in the order they are tried.
// Each strategy is total; the first match wins and the constructed fallback
// guarantees resolution never fails.
var MatcherOrder = []string{"exact", "filename", "substring", "constructed"}

var (
	// img element attributes that may carry an image URL, scanned in order.
	imgAttrs = []string{"src", "data-src", "data-lazy-src", "data-original", "srcset"}

	// generic attributes conventionally used for lazy-loaded images.
	dataImageAttrs = []string{"data-image", "data-bg", "data-background", "data-img"}

	imageExtensions = []string{".jpg", ".jpeg", ".png", ".webp", ".gif"}

	// cdnMarker flags CDN-hosted image URLs that carry no extension.
	cdnMarker = "imgix"

	styleURLRe = regexp.MustCompile(`(?i)url\(["']?([^"'()]+\.(?:jpg|jpeg|png|webp|gif))["']?\)`)

	// The regex sweep covers URLs the structured channels miss, e.g. ones
	// embedded in inline scripts. Absolute first, then quoted relative,
	// then bare root-relative.
	regexSweepPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)https?://[^"'<>)\s]+\.jpe?g(?:\?[^"'<>)\s]*)?`),
		regexp.MustCompile(`(?i)["'](/[^"'<>)\s]+\.jpe?g(?:\?[^"'<>)\s]*)?)["']`),
		regexp.MustCompile(`(?i)["'](images/[^"'<>)\s]+\.jpe?g(?:\?[^"'<>)\s]*)?)["']`),
		regexp.MustCompile(`(?i)(/[^"'<>)\s]+\.jpe?g(?:\?[^"'<>)\s]*)?)`),
	}
)

// imageIndex maps image filenames to the absolute URLs actually served, as
// observed on one detail page. Key insertion order is preserved so matcher
// ties resolve toward the earliest channel.
type imageIndex struct {
	byFile       map[string]string
	keys         []string
	seen         map[string]struct{}
	observations []models.ImageObservation
}

func newImageIndex() *imageIndex {
	return &imageIndex{
		byFile: map[string]string{},
		seen:   map[string]struct{}{},
	}
}

// add normalizes one candidate URL and records it. Candidates are
// de-duplicated by their final absolute form; the first filename observation
// wins.
func (ix *imageIndex) add(raw, source, attribute string) {
	abs := normalizeImageURL(raw)
	if abs == "" {
		return
	}
	if _, ok := ix.seen[abs]; ok {
		return
	}
	ix.seen[abs] = struct{}{}
	ix.observations = append(ix.observations, models.ImageObservation{
		URL:       abs,
		Source:    source,
		Attribute: attribute,
	})

	filename := imageFilename(abs)
	if filename == "" {
		return
	}
	if _, ok := ix.byFile[filename]; !ok {
		ix.byFile[filename] = abs
		ix.keys = append(ix.keys, filename)
	}
}

// buildImageIndex scans one detail page through all channels of ChannelOrder.
func buildImageIndex(p *page, detailJSON map[string]any) *imageIndex {
	ix := newImageIndex()

	// a: img elements, including source-set lists.
	p.doc.Find("img").Each(func(_ int, img *goquery.Selection) {
		for _, attr := range imgAttrs {
			value, ok := img.Attr(attr)
			if !ok || value == "" {
				continue
			}
			if attr == "srcset" {
				for _, candidate := range strings.Split(value, ",") {
					fields := strings.Fields(candidate)
					if len(fields) > 0 {
						ix.add(fields[0], ChannelImgTag, attr)
					}
				}
				continue
			}
			ix.add(value, ChannelImgTag, attr)
		}
	})

	// b: inline style background-image declarations.
	p.doc.Find("[style]").Each(func(_ int, node *goquery.Selection) {
		style, _ := node.Attr("style")
		for _, match := range styleURLRe.FindAllStringSubmatch(style, -1) {
			ix.add(match[1], ChannelStyle, "style")
		}
	})

	// c: lazy-load data attributes.
	for _, attr := range dataImageAttrs {
		p.doc.Find("[" + attr + "]").Each(func(_ int, node *goquery.Selection) {
			if value, ok := node.Attr(attr); ok {
				ix.add(value, ChannelDataAttr, attr)
			}
		})
	}

	// d: strings inside the embedded detail JSON.
	for _, candidate := range imageStringsFromJSON(detailJSON) {
		ix.add(candidate, ChannelJSON, "")
	}

	// e: textual sweep of the raw HTML.
	for _, pattern := range regexSweepPatterns {
		for _, match := range pattern.FindAllStringSubmatch(p.html, -1) {
			candidate := match[0]
			if len(match) > 1 {
				candidate = match[1]
			}
			ix.add(candidate, ChannelRegex, "")
		}
	}

	return ix
}

// imageStringsFromJSON walks a decoded JSON value and collects every string
// that looks like an image reference. Maps are walked in sorted key order so
// the index is deterministic.
func imageStringsFromJSON(value any) []string {
	var out []string
	var walk func(v any)
	walk = func(v any) {
		switch node := v.(type) {
		case string:
			if isImageLike(node) {
				out = append(out, node)
			}
		case []any:
			for _, item := range node {
				walk(item)
			}
		case map[string]any:
			keys := make([]string, 0, len(node))
			for k := range node {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				walk(node[k])
			}
		}
	}
	walk(value)
	return out
}

func isImageLike(s string) bool {
	lower := strings.ToLower(s)
	if strings.Contains(lower, cdnMarker) {
		return true
	}
	if i := strings.IndexByte(lower, '?'); i >= 0 {
		lower = lower[:i]
	}
	for _, ext := range imageExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// normalizeImageURL brings a candidate to absolute form: protocol-relative
// URLs get https, root-relative paths join the origin, and bare filenames
// are assumed to live under /images/.
func normalizeImageURL(raw string) string {
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw
	}
	if strings.HasPrefix(raw, "//") {
		return "https:" + raw
	}
	if strings.HasPrefix(raw, "/") {
		return constants.BaseURL + raw
	}
	clean := strings.TrimLeft(raw, "/")
	if strings.HasPrefix(clean, "images/") {
		return constants.BaseURL + "/" + clean
	}
	return constants.BaseURL + "/images/" + clean
}

// imageFilename extracts the final path segment of a URL, without its query.
func imageFilename(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		parts := strings.Split(strings.TrimRight(raw, "/"), "/")
		last := parts[len(parts)-1]
		if isImageLike(last) {
			return last
		}
		return ""
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" {
		return ""
	}
	return name
}

// imageMatchers are the ordered resolution strategies behind MatcherOrder.
// Every strategy is total: it reports match-or-none and never errors.
var imageMatchers = []struct {
	name  string
	match func(ix *imageIndex, ref, filename string) (string, bool)
}{
	{"exact", func(ix *imageIndex, ref, _ string) (string, bool) {
		abs, ok := ix.byFile[ref]
		return abs, ok
	}},
	{"filename", func(ix *imageIndex, _, filename string) (string, bool) {
		if filename == "" {
			return "", false
		}
		abs, ok := ix.byFile[filename]
		return abs, ok
	}},
	{"substring", func(ix *imageIndex, _, filename string) (string, bool) {
		if filename == "" {
			return "", false
		}
		for _, key := range ix.keys {
			if strings.Contains(key, filename) || strings.HasSuffix(key, filename) {
				return ix.byFile[key], true
			}
		}
		return "", false
	}},
	{"constructed", func(_ *imageIndex, ref, _ string) (string, bool) {
		return constants.BaseURL + "/" + strings.TrimLeft(ref, "/"), true
	}},
}

// resolveImage maps a logical image reference from the JSON to the concrete
// URL served by the page. Absolute references pass through; otherwise the
// strategies of MatcherOrder are tried first-match-wins, ending in the
// constructed fallback. Resolution is best effort and never fails.
func (ix *imageIndex) resolveImage(ref string) string {
	if ref == "" {
		return ""
	}
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}

	filename := imageFilename(ref)
	for _, matcher := range imageMatchers {
		if abs, ok := matcher.match(ix, ref, filename); ok {
			return abs
		}
	}
	return "" // unreachable, the constructed matcher always resolves
}
