package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// page is one fetched storefront page: the parsed document plus the raw HTML
// it was built from.
type page struct {
	doc  *goquery.Document
	html string
}

// fetchPage performs one blocking GET with the client's timeout and parses
// the body. Transport failures, timeouts and non-2xx statuses all surface as
// ErrUnreachable; there is no retry.
func fetchPage(ctx context.Context, client *http.Client, url string) (*page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s returned status %d", ErrUnreachable, url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrUnreachable, err)
	}

	html := string(body)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("%w: parsing document: %v", ErrUnreachable, err)
	}

	return &page{doc: doc, html: html}, nil
}

// embeddedJSON locates the script element with the given id and decodes its
// body, returning the decoded payload alongside the raw JSON text. A missing
// element or empty body is ErrMissingPayload; a body that is not valid JSON
// is ErrCorruptPayload.
//
// The raw text is kept because decoding into Go maps loses the key order the
// storefront emitted, which callers may want to recover.
func embeddedJSON(p *page, scriptID string) (map[string]any, []byte, error) {
	script := p.doc.Find("script#" + scriptID).First()
	if script.Length() == 0 {
		return nil, nil, fmt.Errorf("%w: script#%s", ErrMissingPayload, scriptID)
	}

	text := strings.TrimSpace(script.Text())
	if text == "" {
		return nil, nil, fmt.Errorf("%w: script#%s is empty", ErrMissingPayload, scriptID)
	}

	raw := []byte(text)
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, nil, fmt.Errorf("%w: script#%s: %v", ErrCorruptPayload, scriptID, err)
	}
	return payload, raw, nil
}
