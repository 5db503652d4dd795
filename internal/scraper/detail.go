package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/bundlefeed/bundlefeed/internal/constants"
	"github.com/bundlefeed/bundlefeed/internal/models"
)

// detailScraper enriches one bundle from its own page: price tiers, item
// membership, total MSRP and resolved image URLs. Failures here are never
// fatal to a run; the caller logs them and proceeds without detail.
type detailScraper struct {
	client *http.Client
}

// fetchDetail performs the per-bundle page fetch and extraction. The
// productURL may be relative or absolute.
func (d detailScraper) fetchDetail(ctx context.Context, productURL string) (*models.BundleDetail, error) {
	if productURL == "" {
		return nil, nil
	}
	if !strings.HasPrefix(productURL, "http") {
		productURL = constants.BaseURL + "/" + strings.TrimLeft(productURL, "/")
	}

	p, err := fetchPage(ctx, d.client, productURL)
	if err != nil {
		return nil, err
	}

	payload, raw, err := embeddedJSON(p, constants.DetailScriptID)
	if err != nil {
		return nil, err
	}

	bundleData, ok := payload["bundleData"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: missing key %q", ErrUnexpectedStructure, "bundleData")
	}

	// Missing sub-maps default to empty rather than failing: a partially
	// filled detail page still yields a usable record.
	pricing := subMap(bundleData, "tier_pricing_data")
	display := subMap(bundleData, "tier_display_data")
	tierItems := subMap(bundleData, "tier_item_data")
	basicData := subMap(bundleData, "basic_data")

	// The storefront lists tiers and items in a meaningful order that the
	// map decode loses; recover it from the raw payload text.
	tierOrder := orderedKeys(pricing, keyOrder(raw, "bundleData", "tier_pricing_data"))
	displayOrder := orderedKeys(display, keyOrder(raw, "bundleData", "tier_display_data"))
	itemOrder := orderedKeys(tierItems, keyOrder(raw, "bundleData", "tier_item_data"))

	ix := buildImageIndex(p, payload)

	detail := &models.BundleDetail{
		PriceTiers:   extractPriceTiers(pricing, display, tierOrder),
		BookList:     extractBookList(tierItems, display, ix, displayOrder, itemOrder),
		MsrpTotal:    amountOf(basicData["msrp|money"]),
		RawHTML:      p.html,
		Observations: ix.observations,
	}

	if logo, ok := basicData["logo"].(string); ok && logo != "" {
		if resolved := ix.resolveImage(logo); resolved != "" {
			detail.FeaturedImage = &resolved
		}
	}

	return detail, nil
}

// extractPriceTiers joins the pricing map with its display metadata by tier
// identifier. A missing display entry yields an empty header and item list,
// not a failure. Tiers keep the order the storefront lists them in.
func extractPriceTiers(pricing, display map[string]any, tierOrder []string) []models.PriceTier {
	tiers := make([]models.PriceTier, 0, len(pricing))
	for _, identifier := range tierOrder {
		info := subMap(pricing, identifier)
		tier := models.PriceTier{
			Identifier:           identifier,
			Price:                moneyOf(info["price|money"]),
			AveragePurchasePrice: moneyOf(info["average_purchase_price|money"]),
			IsInitial:            boolOf(info["is_initial_tier"]),
			Items:                []string{},
		}
		if entry := subMap(display, identifier); len(entry) > 0 {
			tier.Header = stringOf(entry["header"])
			tier.Items = machineNames(entry["tier_item_machine_names"])
		}
		tiers = append(tiers, tier)
	}
	return tiers
}

// extractBookList builds the item list, inverting the per-tier item lists
// into an item-to-tiers map so each book records which tiers unlock it.
// Books and their tier memberships keep the storefront's listing order.
// Image references resolve through the page's image index.
func extractBookList(tierItems, display map[string]any, ix *imageIndex, displayOrder, itemOrder []string) []models.BookItem {
	membership := map[string][]string{}
	for _, tierID := range displayOrder {
		for _, machine := range machineNames(subMap(display, tierID)["tier_item_machine_names"]) {
			membership[machine] = append(membership[machine], tierID)
		}
	}

	books := make([]models.BookItem, 0, len(tierItems))
	for _, machineName := range itemOrder {
		info := subMap(tierItems, machineName)

		book := models.BookItem{
			MachineName: machineName,
			Title:       stringOf(info["human_name"]),
			Msrp:        amountOf(info["msrp_price"]),
			ContentType: stringOf(info["item_content_type"]),
			Tiers:       membership[machineName],
		}
		if book.Tiers == nil {
			book.Tiers = []string{}
		}
		if preview, ok := info["book_preview"]; ok && preview != nil {
			if raw, err := json.Marshal(preview); err == nil {
				book.Preview = raw
			}
		}

		imageRef, _ := info["featured_image"].(string)
		if imageRef == "" {
			imageRef, _ = info["preview_image"].(string)
		}
		if resolved := ix.resolveImage(imageRef); resolved != "" {
			book.Image = &resolved
		}

		books = append(books, book)
	}
	return books
}

func subMap(parent map[string]any, key string) map[string]any {
	child, _ := parent[key].(map[string]any)
	return child
}

func machineNames(value any) []string {
	list, _ := value.([]any)
	names := make([]string, 0, len(list))
	for _, item := range list {
		if name, ok := item.(string); ok {
			names = append(names, name)
		}
	}
	return names
}

// moneyOf reads a money object ({currency, amount}) into a typed value.
func moneyOf(value any) *models.Money {
	m, ok := value.(map[string]any)
	if !ok {
		return nil
	}
	amount := floatOf(m["amount"])
	if amount == nil {
		return nil
	}
	currency, _ := m["currency"].(string)
	return &models.Money{Currency: currency, Amount: *amount}
}

// amountOf reads the numeric amount out of a money object.
func amountOf(value any) *float64 {
	m, ok := value.(map[string]any)
	if !ok {
		return nil
	}
	return floatOf(m["amount"])
}

func floatOf(value any) *float64 {
	switch v := value.(type) {
	case float64:
		return &v
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return &f
		}
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return &f
		}
	}
	return nil
}

func stringOf(value any) *string {
	if s, ok := value.(string); ok && s != "" {
		return &s
	}
	return nil
}

func boolOf(value any) *bool {
	if b, ok := value.(bool); ok {
		return &b
	}
	return nil
}
