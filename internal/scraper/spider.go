package scraper

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/bundlefeed/bundlefeed/internal/constants"
	"github.com/bundlefeed/bundlefeed/internal/models"
	"github.com/google/uuid"
)

// Spider fetches the storefront bundle catalog and turns it into validated
// records. One Spider serves one pipeline run; it keeps the last fetched
// payload so a snapshot can be taken after the catalog is processed.
type Spider struct {
	client     *http.Client
	landingURL string
	detail     detailScraper

	lastPayload map[string]any
}

type options struct {
	client     *http.Client
	landingURL string
}

// Options represents an optional function to override Spider default values.
type Options func(*options)

// WithHTTPClient overrides the HTTP client used for every fetch.
func WithHTTPClient(client *http.Client) Options {
	return func(o *options) {
		o.client = client
	}
}

// WithLandingURL overrides the landing page URL.
func WithLandingURL(url string) Options {
	return func(o *options) {
		o.landingURL = url
	}
}

// New creates a Spider with a bounded-timeout HTTP client.
func New(args ...Options) *Spider {
	opts := options{
		client:     &http.Client{Timeout: constants.FetchTimeout},
		landingURL: constants.LandingURL,
	}
	for _, opt := range args {
		opt(&opts)
	}

	return &Spider{
		client:     opts.client,
		landingURL: opts.landingURL,
		detail:     detailScraper{client: opts.client},
	}
}

// FetchBundles runs the extraction half of the pipeline: landing page fetch,
// product extraction, normalization, per-bundle detail enrichment and
// validation.
//
// Landing page failures are fatal and returned. Detail fetch failures and
// validation failures are absorbed: the former leaves a bundle without
// detail, the latter discards the row. The discarded count is reported
// alongside the surviving bundles.
func (s *Spider) FetchBundles(ctx context.Context, now time.Time) (bundles []models.ScrapedBundle, discarded int, err error) {
	p, err := fetchPage(ctx, s.client, s.landingURL)
	if err != nil {
		return nil, 0, err
	}
	payload, _, err := embeddedJSON(p, constants.LandingScriptID)
	if err != nil {
		return nil, 0, err
	}
	s.lastPayload = payload

	products, err := extractProducts(payload)
	if err != nil {
		return nil, 0, err
	}

	rows := normalizeProducts(products, now)
	for _, row := range rows {
		machineName, _ := row["machine_name"].(string)

		var detail *models.BundleDetail
		if productURL, ok := row["product_url"].(string); ok {
			var detailErr error
			detail, detailErr = s.detail.fetchDetail(ctx, productURL)
			if detailErr != nil {
				slog.Warn("Failed to fetch bundle detail", "bundle", machineName, "err", detailErr)
			}
		}

		record, err := models.ValidateRow(row, now)
		if err != nil {
			discarded++
			slog.Warn("Discarded bundle row", "bundle", machineName, "err", err)
			continue
		}
		record.ID = uuid.New()

		var observations []models.ImageObservation
		if detail != nil {
			record.PriceTiers = detail.PriceTiers
			record.BookList = detail.BookList
			record.FeaturedImage = detail.FeaturedImage
			record.MsrpTotal = detail.MsrpTotal
			record.RawHTML = &detail.RawHTML
			observations = detail.Observations
		}
		if err := record.CheckDetailCeilings(); err != nil {
			discarded++
			slog.Warn("Discarded bundle row", "bundle", machineName, "err", err)
			continue
		}

		bundles = append(bundles, models.ScrapedBundle{
			Record:       record,
			Observations: observations,
		})
	}

	if discarded > 0 {
		slog.Info("Discarded bundle rows failed validation", "count", discarded)
	}
	return bundles, discarded, nil
}

// Snapshot returns the hashed raw snapshot of the last fetched landing
// payload, or nil when no payload has been fetched yet.
func (s *Spider) Snapshot(now time.Time) (*models.RawSnapshot, error) {
	if s.lastPayload == nil {
		return nil, nil
	}
	snap, err := models.NewSnapshot(s.lastPayload, s.landingURL, now)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}
