package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyOrder(t *testing.T) {
	t.Parallel()

	raw := []byte(`{
		"bundleData": {
			"other": [1, {"deep": true}],
			"tier_pricing_data": {
				"tier_2": {"price|money": {"amount": 1}},
				"tier_10": {"price|money": {"amount": 18}},
				"tier_1": {"price|money": {"amount": 25}}
			}
		}
	}`)

	tests := map[string]struct {
		path []string

		want []string
	}{
		"Keys in document order":   {path: []string{"bundleData", "tier_pricing_data"}, want: []string{"tier_2", "tier_10", "tier_1"}},
		"Top level object":         {path: []string{"bundleData"}, want: []string{"other", "tier_pricing_data"}},
		"Missing path yields nil":  {path: []string{"bundleData", "absent"}, want: nil},
		"Non object value is nil":  {path: []string{"bundleData", "other"}, want: nil},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, keyOrder(raw, tc.path...))
		})
	}

	t.Run("Invalid JSON yields nil", func(t *testing.T) {
		t.Parallel()

		assert.Nil(t, keyOrder([]byte(`{"bundleData": `), "bundleData"))
	})
}

func TestOrderedKeys(t *testing.T) {
	t.Parallel()

	m := map[string]any{"a": 1, "b": 2, "c": 3}

	tests := map[string]struct {
		order []string

		want []string
	}{
		"Order preserved":            {order: []string{"c", "a", "b"}, want: []string{"c", "a", "b"}},
		"Unknown keys filtered":      {order: []string{"c", "zz", "a", "b"}, want: []string{"c", "a", "b"}},
		"Leftovers appended sorted":  {order: []string{"b"}, want: []string{"b", "a", "c"}},
		"Empty order falls back":     {order: nil, want: []string{"a", "b", "c"}},
		"Duplicates collapse":        {order: []string{"b", "b", "a", "c"}, want: []string{"b", "a", "c"}},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, orderedKeys(m, tc.order))
		})
	}
}

func TestFetchDetailKeepsStorefrontOrder(t *testing.T) {
	t.Parallel()

	// Hand-written payload: tier and item keys deliberately ordered so that
	// sorting them alphabetically would scramble the sequence.
	payload := `{
		"bundleData": {
			"basic_data": {},
			"tier_pricing_data": {
				"tier_2": {"price|money": {"currency": "USD", "amount": 1}},
				"tier_10": {"price|money": {"currency": "USD", "amount": 18}}
			},
			"tier_display_data": {
				"tier_2": {"header": "Pay $1", "tier_item_machine_names": ["book_zulu"]},
				"tier_10": {"header": "Pay $18", "tier_item_machine_names": ["book_zulu", "book_alpha"]}
			},
			"tier_item_data": {
				"book_zulu": {"human_name": "Zulu"},
				"book_alpha": {"human_name": "Alpha"}
			}
		}
	}`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><head><script id="webpack-bundle-page-data" type="application/json">%s</script></head><body></body></html>`, payload)
	}))
	t.Cleanup(server.Close)

	d := detailScraper{client: server.Client()}
	detail, err := d.fetchDetail(context.Background(), server.URL)
	require.NoError(t, err, "fetchDetail should not have failed")
	require.NotNil(t, detail)

	require.Len(t, detail.PriceTiers, 2)
	assert.Equal(t, "tier_2", detail.PriceTiers[0].Identifier, "tiers should keep document order, not sort order")
	assert.Equal(t, "tier_10", detail.PriceTiers[1].Identifier)

	require.Len(t, detail.BookList, 2)
	assert.Equal(t, "book_zulu", detail.BookList[0].MachineName, "books should keep document order, not sort order")
	assert.Equal(t, "book_alpha", detail.BookList[1].MachineName)
	assert.Equal(t, []string{"tier_2", "tier_10"}, detail.BookList[0].Tiers, "tier membership should follow the storefront's tier order")
}
